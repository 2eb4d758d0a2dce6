package engine

import (
	"context"
	"errors"
	"sync"
)

var ErrLoopStopped = errors.New("engine loop is stopped")

// Loop - последовательность, в которой выполняются все изменения трекера.
// Замыкания выполняются строго по очереди в одной горутине.
type Loop struct {
	tasks    chan func()
	stopped  chan struct{}
	stopOnce sync.Once
}

func NewLoop(buffer int) *Loop {
	return &Loop{
		tasks:   make(chan func(), buffer),
		stopped: make(chan struct{}),
	}
}

// Run обрабатывает задачи до отмены ctx
func (l *Loop) Run(ctx context.Context) {
	defer l.stopOnce.Do(func() { close(l.stopped) })
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.tasks:
			fn()
		}
	}
}

// Post ставит fn в очередь и не ждет ее выполнения.
// Нельзя вызывать из самой очереди при заполненном буфере.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.stopped:
		return ErrLoopStopped
	default:
	}
	select {
	case l.tasks <- fn:
		return nil
	case <-l.stopped:
		return ErrLoopStopped
	}
}

// Call выполняет fn в очереди и дожидается завершения. ctx ограничивает
// только постановку в очередь: принятая задача всегда доводится до конца,
// чтобы вызывающий не получил ошибку для уже примененного изменения.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case l.tasks <- wrapped:
	case <-l.stopped:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-l.stopped:
		// задача могла успеть выполниться перед остановкой
		select {
		case <-done:
			return nil
		default:
			return ErrLoopStopped
		}
	}
}
