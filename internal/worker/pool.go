package worker

import (
	"context"
	"errors"
	"log"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"mathengine/internal/models"
)

// Pool - локальные воркеры, забирающие готовую работу у менеджера
type Pool struct {
	manager *Manager
	workers int
	limiter *rate.Limiter
	execute func(models.Work) (string, error)
}

// NewPool создает пул из workers воркеров. perSecond > 0 ограничивает
// скорость обработки.
func NewPool(manager *Manager, workers int, perSecond float64) *Pool {
	p := &Pool{
		manager: manager,
		workers: workers,
		execute: Execute,
	}
	if perSecond > 0 {
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
	return p
}

// Run блокируется до отмены ctx
func (p *Pool) Run(ctx context.Context) error {
	log.Printf("Пул запущен с %d воркерами", p.workers)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		workerID := i
		g.Go(func() error {
			return p.loop(ctx, workerID)
		})
	}
	return g.Wait()
}

func (p *Pool) loop(ctx context.Context, workerID int) error {
	for {
		w, err := p.manager.Wait(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil
			}
		}

		p.process(ctx, workerID, w)
	}
}

func (p *Pool) process(ctx context.Context, workerID int, w models.Work) {
	// вычисленный результат доводится до хранилища и при остановке пула
	ctx = context.WithoutCancel(ctx)
	result, err := p.execute(w)
	if err != nil {
		if failErr := p.manager.Fail(ctx, w.ID, err); failErr != nil {
			log.Printf("Worker %d: %v", workerID, failErr)
		}
		return
	}

	if err := p.manager.Complete(ctx, w.ID, result); err != nil {
		// работа отменена, пока вычислялась, или движок уже остановлен
		log.Printf("Worker %d: результат %s отброшен: %v", workerID, w.ID, err)
		return
	}
	log.Printf("Worker %d: работа %s выполнена: %s", workerID, w.ID, result)
}
