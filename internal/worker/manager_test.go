package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"mathengine/internal/models"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type memoryStore struct {
	mu    sync.Mutex
	works map[string]models.Work
}

func newMemoryStore() *memoryStore {
	return &memoryStore{works: make(map[string]models.Work)}
}

func (s *memoryStore) SaveWork(ctx context.Context, w models.Work) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.works[w.ID] = w
	return nil
}

func (s *memoryStore) DeleteWork(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.works, id)
	return nil
}

func (s *memoryStore) DeleteWorkByTag(ctx context.Context, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, w := range s.works {
		if w.Tag == tag {
			delete(s.works, id)
		}
	}
	return nil
}

func (s *memoryStore) ListWork(ctx context.Context) ([]models.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Work
	for _, w := range s.works {
		out = append(out, w)
	}
	return out, nil
}

func (s *memoryStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.works)
}

type resultSink struct {
	mu      sync.Mutex
	results map[string]string
	calls   int
	err     error
}

func (r *resultSink) deliver(id, result string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.results == nil {
		r.results = make(map[string]string)
	}
	r.results[id] = result
	r.calls++
	return nil
}

func (r *resultSink) fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func work(id string, delay int64, now time.Time) models.Work {
	q := models.Question{ID: id, FirstOperand: 1, SecondOperand: 1, Operator: models.Add, DelaySeconds: delay}
	return models.NewWork(q, "TAG", now)
}

func TestManagerDelayedWork(t *testing.T) {
	clock := newFakeClock()
	store := newMemoryStore()
	sink := &resultSink{}
	m := NewManager(clock, store, time.Minute)
	m.SetCompletion(sink.deliver)
	ctx := context.Background()

	if err := m.Schedule(ctx, work("w1", 5, clock.Now())); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	if _, ok := m.Next(); ok {
		t.Fatal("работа выдана до истечения задержки")
	}

	clock.Advance(4 * time.Second)
	if _, ok := m.Next(); ok {
		t.Fatal("работа выдана через 4с при задержке 5с")
	}

	clock.Advance(time.Second)
	w, ok := m.Next()
	if !ok {
		t.Fatal("работа не готова после 5с")
	}

	result, err := Execute(w)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result != "1.00 + 1.00 = 2.00" {
		t.Fatalf("Execute() = %q", result)
	}

	if err := m.Complete(ctx, w.ID, result); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if err := m.Complete(ctx, w.ID, result); !errors.Is(err, ErrUnknownWork) {
		t.Fatalf("повторный Complete() error = %v, want ErrUnknownWork", err)
	}
	if sink.calls != 1 || sink.results["w1"] != result {
		t.Errorf("sink: calls=%d results=%v", sink.calls, sink.results)
	}
	if store.len() != 0 {
		t.Errorf("работа осталась в хранилище")
	}
}

func TestManagerCompleteRejectedBySink(t *testing.T) {
	clock := newFakeClock()
	store := newMemoryStore()
	sink := &resultSink{}
	m := NewManager(clock, store, time.Minute)
	m.SetCompletion(sink.deliver)
	ctx := context.Background()

	if err := m.Schedule(ctx, work("w1", 0, clock.Now())); err != nil {
		t.Fatalf("Schedule() error = %v", err)
	}
	w, ok := m.Next()
	if !ok {
		t.Fatal("работа не готова")
	}

	stopped := errors.New("engine loop is stopped")
	sink.fail(stopped)
	if err := m.Complete(ctx, w.ID, "2"); !errors.Is(err, stopped) {
		t.Fatalf("Complete() error = %v, want %v", err, stopped)
	}
	if store.len() != 1 {
		t.Fatalf("работа удалена из хранилища, хотя результат не принят")
	}
	if s := m.Stats(); s.InFlight != 1 {
		t.Errorf("Stats() = %+v, работа должна остаться в аренде", s)
	}

	// после истечения аренды работу можно взять снова
	clock.Advance(2 * time.Minute)
	again, ok := m.Next()
	if !ok || again.ID != w.ID {
		t.Fatalf("Next() = %v, %v, want %s", again.ID, ok, w.ID)
	}

	sink.fail(nil)
	if err := m.Complete(ctx, again.ID, "2"); err != nil {
		t.Fatalf("повторный Complete() error = %v", err)
	}
	if sink.calls != 1 || store.len() != 0 {
		t.Errorf("calls=%d stored=%d", sink.calls, store.len())
	}
}

func TestManagerDuplicateSchedule(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil, time.Minute)
	_ = m.Schedule(context.Background(), work("w1", 5, clock.Now()))

	if err := m.Schedule(context.Background(), work("w1", 5, clock.Now())); !errors.Is(err, ErrDuplicateWork) {
		t.Fatalf("Schedule(duplicate) error = %v", err)
	}
}

func TestManagerCancelAllTagged(t *testing.T) {
	clock := newFakeClock()
	store := newMemoryStore()
	sink := &resultSink{}
	m := NewManager(clock, store, time.Minute)
	m.SetCompletion(sink.deliver)
	ctx := context.Background()

	_ = m.Schedule(ctx, work("scheduled", 10, clock.Now()))
	_ = m.Schedule(ctx, work("ready", 0, clock.Now()))
	_ = m.Schedule(ctx, work("leased", 0, clock.Now()))
	other := work("other", 0, clock.Now())
	other.Tag = "OTHER"
	_ = m.Schedule(ctx, other)

	// одна работа уже у воркера
	var leased models.Work
	for {
		w, ok := m.Next()
		if !ok {
			t.Fatal("работа leased не выдана")
		}
		if w.ID == "leased" {
			leased = w
			break
		}
	}

	if err := m.CancelAllTagged(ctx, "TAG"); err != nil {
		t.Fatalf("CancelAllTagged() error = %v", err)
	}

	clock.Advance(time.Minute)
	for {
		w, ok := m.Next()
		if !ok {
			break
		}
		if w.Tag == "TAG" {
			t.Fatalf("отмененная работа %s выдана", w.ID)
		}
	}

	if err := m.Complete(ctx, leased.ID, "late"); !errors.Is(err, ErrUnknownWork) {
		t.Fatalf("Complete(cancelled) error = %v", err)
	}
	if sink.calls != 0 {
		t.Errorf("результат отмененной работы доставлен")
	}
	if store.len() != 1 {
		t.Errorf("в хранилище осталось %d работ, want 1", store.len())
	}
}

func TestManagerLeaseExpiry(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil, 30*time.Second)
	_ = m.Schedule(context.Background(), work("w1", 0, clock.Now()))

	if _, ok := m.Next(); !ok {
		t.Fatal("работа не выдана")
	}
	if _, ok := m.Next(); ok {
		t.Fatal("работа выдана дважды в пределах аренды")
	}

	clock.Advance(31 * time.Second)
	w, ok := m.Next()
	if !ok || w.ID != "w1" {
		t.Fatal("работа не возвращена в очередь после истечения аренды")
	}
}

func TestManagerRestore(t *testing.T) {
	clock := newFakeClock()
	store := newMemoryStore()
	ctx := context.Background()

	first := NewManager(clock, store, time.Minute)
	_ = first.Schedule(ctx, work("w1", 10, clock.Now()))
	_ = first.Schedule(ctx, work("w2", 60, clock.Now()))
	first.Stop()

	clock.Advance(20 * time.Second)

	second := NewManager(clock, store, time.Minute)
	works, err := second.Restore(ctx)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if len(works) != 2 {
		t.Fatalf("Restore() = %d работ, want 2", len(works))
	}

	w, ok := second.Next()
	if !ok || w.ID != "w1" {
		t.Fatalf("просроченная работа должна быть готова сразу, got %+v ok=%v", w, ok)
	}
	if _, ok := second.Next(); ok {
		t.Fatal("w2 не должна быть готова")
	}

	clock.Advance(40 * time.Second)
	if w, ok := second.Next(); !ok || w.ID != "w2" {
		t.Fatal("w2 не готова после оставшейся задержки")
	}
	if s := second.Stats(); s.InFlight != 2 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestManagerWait(t *testing.T) {
	clock := newFakeClock()
	m := NewManager(clock, nil, time.Minute)

	got := make(chan models.Work, 1)
	go func() {
		w, err := m.Wait(context.Background())
		if err == nil {
			got <- w
		}
	}()

	_ = m.Schedule(context.Background(), work("w1", 3, clock.Now()))
	clock.Advance(3 * time.Second)

	select {
	case w := <-got:
		if w.ID != "w1" {
			t.Errorf("Wait() = %s", w.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() не вернул работу")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Wait(cancelled) error = %v", err)
	}
}

func TestManagerFail(t *testing.T) {
	clock := newFakeClock()
	store := newMemoryStore()
	sink := &resultSink{}
	m := NewManager(clock, store, time.Minute)
	m.SetCompletion(sink.deliver)

	_ = m.Schedule(context.Background(), work("w1", 0, clock.Now()))
	if err := m.Fail(context.Background(), "w1", ErrInvalidWork); err != nil {
		t.Fatalf("Fail() error = %v", err)
	}
	if sink.calls != 0 || store.len() != 0 {
		t.Errorf("calls=%d stored=%d", sink.calls, store.len())
	}
	if err := m.Fail(context.Background(), "w1", ErrInvalidWork); !errors.Is(err, ErrUnknownWork) {
		t.Errorf("повторный Fail() error = %v", err)
	}
}
