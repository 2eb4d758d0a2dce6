package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mathengine/internal/auth"
	"mathengine/internal/models"
	"mathengine/internal/notify"
)

// Engine - операции движка, доступные через API (engine.Engine)
type Engine interface {
	Calculate(ctx context.Context, q models.Question) (string, error)
	CancelAll(ctx context.Context) error
	Snapshot(ctx context.Context) ([]models.Operation, []models.Answer, error)
	Summary(ctx context.Context) (models.Summary, error)
	History(ctx context.Context, limit int) ([]models.Answer, error)
}

// UserStore - хранилище пользователей (database.DB)
type UserStore interface {
	CreateUser(ctx context.Context, login, password string) (int, error)
	GetUser(ctx context.Context, login string) (*models.User, error)
}

type Deps struct {
	Engine Engine
	Users  UserStore
	Issuer *auth.Issuer
	Hub    *notify.Hub
	Now    func() time.Time
}

// SetupRouter настраивает маршруты для API
func SetupRouter(deps Deps) *chi.Mux {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	questions := NewQuestionHandler(deps.Engine, deps.Now)
	users := NewAuthHandler(deps.Users, deps.Issuer)

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Публичные маршруты (без аутентификации)
		r.Group(func(r chi.Router) {
			r.Post("/register", users.Register)
			r.Post("/login", users.Login)
			r.Get("/token-info", users.TokenInfo)
		})

		// Защищенные маршруты (с аутентификацией)
		r.Group(func(r chi.Router) {
			r.Use(deps.Issuer.Middleware)
			r.Post("/questions", questions.Submit)
			r.Get("/operations", questions.Operations)
			r.Get("/answers", questions.Answers)
			r.Get("/summary", questions.Summary)
			r.Get("/history", questions.History)
			r.Post("/cancel", questions.CancelAll)
			if deps.Hub != nil {
				r.Get("/ws", deps.Hub.ServeWS)
			}
		})
	})

	return r
}
