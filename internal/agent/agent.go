package agent

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mathengine/internal/grpc"
	"mathengine/internal/models"
	"mathengine/internal/worker"
)

// Client - транспорт к оркестратору (grpc.WorkClient)
type Client interface {
	GetWork(ctx context.Context, agentID string) (*models.Work, error)
	SubmitResult(ctx context.Context, req *grpc.ResultRequest) error
}

// Agent - удаленный исполнитель: ComputingPower воркеров забирают готовую
// работу у оркестратора и отправляют результаты обратно
type Agent struct {
	client     Client
	workers    int
	maxRetries int
	retryDelay time.Duration
	idleDelay  time.Duration
	execute    func(models.Work) (string, error)
}

func New(client Client, workers int) *Agent {
	if workers < 1 {
		workers = 1
	}
	return &Agent{
		client:     client,
		workers:    workers,
		maxRetries: 3,
		retryDelay: time.Second,
		idleDelay:  time.Second,
		execute:    worker.Execute,
	}
}

// Run блокируется до отмены ctx
func (a *Agent) Run(ctx context.Context) error {
	log.Printf("Агент запущен с COMPUTING_POWER: %d", a.workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < a.workers; i++ {
		workerID := i
		agentID := uuid.New().String()
		g.Go(func() error {
			for ctx.Err() == nil {
				a.processWork(ctx, workerID, agentID)
			}
			return nil
		})
	}
	return g.Wait()
}

// processWork забирает и выполняет одну работу
func (a *Agent) processWork(ctx context.Context, workerID int, agentID string) {
	var w *models.Work
	var err error
	retryDelay := a.retryDelay

	for retry := 0; retry < a.maxRetries; retry++ {
		w, err = a.client.GetWork(ctx, agentID)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return
		}

		log.Printf("Worker %d (агент %s): Ошибка получения работы (попытка %d/%d): %v",
			workerID, agentID, retry+1, a.maxRetries, err)
		if retry == a.maxRetries-1 {
			sleep(ctx, a.idleDelay)
			return
		}
		sleep(ctx, retryDelay)
		retryDelay *= 2
	}

	if w == nil {
		sleep(ctx, a.idleDelay)
		return
	}

	log.Printf("Worker %d (агент %s): Получена работа %s: %s", workerID, agentID, w.ID, w.Question())

	req := &grpc.ResultRequest{AgentID: agentID, ID: w.ID}
	result, err := a.execute(*w)
	if err != nil {
		req.Error = err.Error()
	} else {
		req.Result = result
	}

	retryDelay = a.retryDelay
	for retry := 0; retry < a.maxRetries; retry++ {
		err = a.client.SubmitResult(ctx, req)
		if err == nil {
			log.Printf("Worker %d (агент %s): Результат для работы %s успешно отправлен", workerID, agentID, w.ID)
			return
		}
		if errors.Is(err, grpc.ErrRejected) {
			// работа отменена или уже выполнена
			log.Printf("Worker %d (агент %s): Результат для работы %s отклонен: %v", workerID, agentID, w.ID, err)
			return
		}
		if ctx.Err() != nil {
			return
		}

		log.Printf("Worker %d (агент %s): Ошибка отправки результата (попытка %d/%d): %v",
			workerID, agentID, retry+1, a.maxRetries, err)
		if retry < a.maxRetries-1 {
			sleep(ctx, retryDelay)
			retryDelay *= 2
		}
	}
	log.Printf("Worker %d (агент %s): Не удалось отправить результат после %d попыток", workerID, agentID, a.maxRetries)
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
