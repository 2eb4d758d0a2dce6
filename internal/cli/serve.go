package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mathengine/internal/api"
	"mathengine/internal/auth"
	"mathengine/internal/config"
	"mathengine/internal/database"
	"mathengine/internal/engine"
	"mathengine/internal/grpc"
	"mathengine/internal/notify"
	"mathengine/internal/orchestrator"
	"mathengine/internal/postgres"
	"mathengine/internal/worker"
)

// NewServeCmd запускает оркестратор
func NewServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the orchestrator",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	var history engine.AnswerStore = db
	if cfg.Postgres.URL != "" {
		if err := postgres.Migrate(ctx, cfg.Postgres.URL); err != nil {
			return err
		}
		pg, err := postgres.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pg.Close()
		history = pg
		log.Printf("История ответов хранится в postgres")
	}

	manager := worker.NewManager(worker.RealClock{}, db, cfg.LeaseTimeout())
	defer manager.Stop()
	e := engine.New(manager, history, time.Now)
	manager.SetCompletion(e.Deliver)

	// движок останавливается после серверов и пула, иначе результаты,
	// принятые во время остановки, будут потеряны
	engineCtx, stopEngine := context.WithCancel(context.Background())
	defer stopEngine()
	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		e.Run(engineCtx)
	}()

	g, ctx := errgroup.WithContext(ctx)

	// трекер восстанавливается до запуска исполнителей, иначе ранние
	// результаты будут отброшены как неизвестные
	works, err := manager.Restore(ctx)
	if err != nil {
		return err
	}
	if err := e.Restore(ctx, works); err != nil {
		return err
	}

	hub := notify.NewHub(time.Now)
	defer hub.Close()
	if err := e.AddListener(ctx, hub); err != nil {
		return err
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		publisher := notify.NewRedisPublisher(client, time.Now)
		if err := e.AddListener(ctx, publisher); err != nil {
			return err
		}
		g.Go(func() error {
			publisher.Run(ctx)
			return nil
		})
		log.Printf("Публикация событий в redis %s", cfg.Redis.Addr)
	}

	if cfg.Worker.Local > 0 {
		pool := worker.NewPool(manager, cfg.Worker.Local, cfg.Worker.RatePerSec)
		g.Go(func() error {
			return pool.Run(ctx)
		})
	}

	publicServer := &http.Server{
		Addr: cfg.Server.HTTPAddr,
		Handler: api.SetupRouter(api.Deps{
			Engine: e,
			Users:  db,
			Issuer: auth.NewIssuer(cfg.Auth.JWTSecret, cfg.TokenTTL()),
			Hub:    hub,
		}),
		ReadTimeout: 15 * time.Second,
	}
	internalServer := &http.Server{
		Addr:         cfg.Server.InternalAddr,
		Handler:      orchestrator.NewRouter(manager, cfg.Auth.AgentKey),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	grpcServer := grpc.NewServer(manager)

	for _, srv := range []*http.Server{publicServer, internalServer} {
		srv := srv
		g.Go(func() error {
			log.Printf("Starting HTTP server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		return grpc.StartServer(grpcServer, cfg.Server.GRPCAddr)
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down orchestrator...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		hub.Close()
		grpcServer.GracefulStop()
		if err := internalServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("internal server shutdown: %v", err)
		}
		return publicServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	stopEngine()
	<-engineDone
	return err
}
