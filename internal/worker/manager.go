package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"mathengine/internal/models"
)

var (
	ErrUnknownWork   = errors.New("work not found")
	ErrDuplicateWork = errors.New("work already scheduled")
	ErrNoWork        = errors.New("no work is due")
)

// WorkStore хранит запланированную работу, чтобы она пережила перезапуск
type WorkStore interface {
	SaveWork(ctx context.Context, w models.Work) error
	DeleteWork(ctx context.Context, id string) error
	DeleteWorkByTag(ctx context.Context, tag string) error
	ListWork(ctx context.Context) ([]models.Work, error)
}

// CompletionFunc получает результат ровно один раз для каждой работы.
// Ошибка означает, что результат не принят: работа остается в очереди.
type CompletionFunc func(id, result string) error

// Stats - состояние очереди
type Stats struct {
	Scheduled int `json:"scheduled"`
	Ready     int `json:"ready"`
	InFlight  int `json:"in_flight"`
}

// Manager - механизм отложенного выполнения. Работа ждет своего времени
// на таймере, затем попадает в очередь готовых, откуда ее забирают
// локальные воркеры (Wait) или удаленные агенты (Next).
type Manager struct {
	clock        Clock
	store        WorkStore
	leaseTimeout time.Duration

	mu       sync.Mutex
	sink     CompletionFunc
	works    map[string]models.Work
	timers   map[string]Timer
	ready    []string
	inflight map[string]time.Time
	// работы, результат которых сейчас передается получателю
	completing map[string]struct{}
	wake       chan struct{}
}

// NewManager создает менеджер. store может быть nil - тогда работа
// хранится только в памяти.
func NewManager(clock Clock, store WorkStore, leaseTimeout time.Duration) *Manager {
	if clock == nil {
		clock = RealClock{}
	}
	if leaseTimeout <= 0 {
		leaseTimeout = time.Minute
	}
	return &Manager{
		clock:        clock,
		store:        store,
		leaseTimeout: leaseTimeout,
		works:        make(map[string]models.Work),
		timers:       make(map[string]Timer),
		inflight:     make(map[string]time.Time),
		completing:   make(map[string]struct{}),
		wake:         make(chan struct{}),
	}
}

// SetCompletion задает получателя результатов
func (m *Manager) SetCompletion(sink CompletionFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sink = sink
}

// Schedule сохраняет работу и запускает таймер до NotBefore
func (m *Manager) Schedule(ctx context.Context, w models.Work) error {
	m.mu.Lock()
	_, exists := m.works[w.ID]
	m.mu.Unlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrDuplicateWork, w.ID)
	}

	if m.store != nil {
		if err := m.store.SaveWork(ctx, w); err != nil {
			return fmt.Errorf("save work: %w", err)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.arm(w)
	return nil
}

// Restore заново планирует сохраненную работу после перезапуска
func (m *Manager) Restore(ctx context.Context) ([]models.Work, error) {
	if m.store == nil {
		return nil, nil
	}
	works, err := m.store.ListWork(ctx)
	if err != nil {
		return nil, fmt.Errorf("list work: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range works {
		if _, ok := m.works[w.ID]; ok {
			continue
		}
		m.arm(w)
	}
	log.Printf("Восстановлено работ после перезапуска: %d", len(works))
	return works, nil
}

// arm вызывается под m.mu
func (m *Manager) arm(w models.Work) {
	m.works[w.ID] = w
	delay := w.NotBefore.Sub(m.clock.Now())
	if delay <= 0 {
		m.markReady(w.ID)
		return
	}
	id := w.ID
	m.timers[id] = m.clock.AfterFunc(delay, func() { m.fire(id) })
}

func (m *Manager) fire(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.timers[id]; !ok {
		return
	}
	delete(m.timers, id)
	if _, ok := m.works[id]; ok {
		m.markReady(id)
	}
}

func (m *Manager) markReady(id string) {
	m.ready = append(m.ready, id)
	close(m.wake)
	m.wake = make(chan struct{})
}

// Next выдает готовую работу в аренду без ожидания
func (m *Manager) Next() (models.Work, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextLocked()
}

func (m *Manager) nextLocked() (models.Work, bool) {
	now := m.clock.Now()
	m.requeueExpired(now)

	for len(m.ready) > 0 {
		id := m.ready[0]
		m.ready = m.ready[1:]
		w, ok := m.works[id]
		if !ok {
			continue
		}
		m.inflight[id] = now.Add(m.leaseTimeout)
		return w, true
	}
	return models.Work{}, false
}

// Wait блокируется до появления готовой работы или отмены ctx
func (m *Manager) Wait(ctx context.Context) (models.Work, error) {
	for {
		m.mu.Lock()
		w, ok := m.nextLocked()
		wake := m.wake
		m.mu.Unlock()
		if ok {
			return w, nil
		}

		poll := time.NewTimer(m.leaseTimeout / 2)
		select {
		case <-ctx.Done():
			poll.Stop()
			return models.Work{}, ctx.Err()
		case <-wake:
		case <-poll.C:
		}
		poll.Stop()
	}
}

func (m *Manager) requeueExpired(now time.Time) {
	for id, deadline := range m.inflight {
		if now.After(deadline) {
			log.Printf("Аренда работы %s истекла, возвращаем в очередь", id)
			delete(m.inflight, id)
			m.ready = append(m.ready, id)
		}
	}
}

// Complete передает результат получателю. Для неизвестной работы
// (отмененной или уже завершенной) возвращает ErrUnknownWork. Работа
// удаляется только после того, как получатель принял результат.
func (m *Manager) Complete(ctx context.Context, id, result string) error {
	m.mu.Lock()
	_, known := m.works[id]
	_, busy := m.completing[id]
	if !known || busy {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownWork, id)
	}
	m.completing[id] = struct{}{}
	sink := m.sink
	m.mu.Unlock()

	if sink != nil {
		if err := sink(id, result); err != nil {
			m.mu.Lock()
			delete(m.completing, id)
			m.mu.Unlock()
			return fmt.Errorf("deliver result %s: %w", id, err)
		}
	}

	m.mu.Lock()
	delete(m.completing, id)
	m.drop(id)
	m.mu.Unlock()
	if m.store != nil {
		if err := m.store.DeleteWork(ctx, id); err != nil {
			log.Printf("Ошибка удаления работы %s из хранилища: %v", id, err)
		}
	}
	return nil
}

// Fail завершает работу без результата. Операция в трекере остается
// ожидающей.
func (m *Manager) Fail(ctx context.Context, id string, cause error) error {
	if !m.forget(id) {
		return fmt.Errorf("%w: %s", ErrUnknownWork, id)
	}
	log.Printf("Работа %s завершилась ошибкой: %v", id, cause)
	if m.store != nil {
		if err := m.store.DeleteWork(ctx, id); err != nil {
			log.Printf("Ошибка удаления работы %s из хранилища: %v", id, err)
		}
	}
	return nil
}

func (m *Manager) forget(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.works[id]; !ok {
		return false
	}
	if _, ok := m.completing[id]; ok {
		return false
	}
	m.drop(id)
	return true
}

// drop вызывается под m.mu
func (m *Manager) drop(id string) {
	delete(m.works, id)
	delete(m.inflight, id)
	if t, ok := m.timers[id]; ok {
		t.Stop()
		delete(m.timers, id)
	}
	for i, readyID := range m.ready {
		if readyID == id {
			m.ready = append(m.ready[:i], m.ready[i+1:]...)
			break
		}
	}
}

// CancelAllTagged отменяет всю работу с тегом. Уже выполняющаяся работа
// не прерывается, но ее результат будет отброшен.
func (m *Manager) CancelAllTagged(ctx context.Context, tag string) error {
	m.mu.Lock()
	cancelled := 0
	for id, w := range m.works {
		if w.Tag == tag {
			m.drop(id)
			cancelled++
		}
	}
	m.mu.Unlock()

	log.Printf("Отменено работ с тегом %s: %d", tag, cancelled)
	if m.store != nil {
		if err := m.store.DeleteWorkByTag(ctx, tag); err != nil {
			return fmt.Errorf("delete work by tag: %w", err)
		}
	}
	return nil
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Scheduled: len(m.timers),
		Ready:     len(m.ready),
		InFlight:  len(m.inflight),
	}
}

// Stop останавливает все таймеры. Сохраненная работа остается в хранилище.
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}
