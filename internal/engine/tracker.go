package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"mathengine/internal/models"
)

// WorkTag помечает всю арифметическую работу движка
const WorkTag = "ARITHMETIC_WORK"

var ErrDuplicateQuestion = errors.New("question with this id is already known")

// Scheduler - внешний механизм отложенного выполнения.
// Результат возвращается позже через Tracker.OnResult.
type Scheduler interface {
	Schedule(ctx context.Context, work models.Work) error
	CancelAllTagged(ctx context.Context, tag string) error
}

// Listener получает уведомления об изменении списков
type Listener interface {
	OnPendingChanged(pending []models.Operation)
	OnResultsChanged(results []models.Answer)
}

// CancelListener дополнительно уведомляется об отмене всех операций
type CancelListener interface {
	OnCancelAll()
}

// Tracker хранит ожидающие операции и готовые ответы.
// Tracker не синхронизирован: все вызовы должны выполняться в одной горутине
// (см. Loop).
type Tracker struct {
	scheduler Scheduler
	now       func() time.Time

	pending   []models.Operation
	completed []models.Answer
	done      map[string]struct{}
	listeners []Listener
}

func NewTracker(scheduler Scheduler, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		scheduler: scheduler,
		now:       now,
		done:      make(map[string]struct{}),
	}
}

func (t *Tracker) AddListener(l Listener) {
	t.listeners = append(t.listeners, l)
}

func (t *Tracker) RemoveListener(l Listener) {
	for i, existing := range t.listeners {
		if existing == l {
			t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
			return
		}
	}
}

// Submit добавляет вопрос в ожидающие и планирует его вычисление
func (t *Tracker) Submit(ctx context.Context, q models.Question) error {
	if t.indexOf(q.ID) >= 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateQuestion, q.ID)
	}
	if _, ok := t.done[q.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateQuestion, q.ID)
	}

	now := t.now()
	t.pending = append(t.pending, models.NewOperation(q, now))
	t.notifyPending()

	if err := t.scheduler.Schedule(ctx, models.NewWork(q, WorkTag, now)); err != nil {
		log.Printf("Не удалось запланировать вопрос %s: %v", q.ID, err)
		t.remove(q.ID)
		t.notifyPending()
		return fmt.Errorf("schedule question %s: %w", q.ID, err)
	}

	log.Printf("Вопрос %s запланирован: %g %s %g через %d с",
		q.ID, q.FirstOperand, q.Operator.Symbol(), q.SecondOperand, q.DelaySeconds)
	return nil
}

// OnResult переносит операцию в готовые. Результаты для неизвестных
// идентификаторов (повторные или пришедшие после отмены) игнорируются.
// Возвращает true, если результат применен.
func (t *Tracker) OnResult(id, result string) bool {
	if t.indexOf(id) < 0 {
		log.Printf("Результат для %s отброшен: операция не ожидается", id)
		return false
	}
	t.remove(id)
	t.done[id] = struct{}{}
	t.completed = append(t.completed, models.Answer{ID: id, Result: result, CompletedAt: t.now()})

	t.notifyPending()
	t.notifyResults()
	return true
}

// CancelAll очищает ожидающие операции. Готовые ответы не затрагиваются.
func (t *Tracker) CancelAll(ctx context.Context) error {
	for _, l := range t.listeners {
		if cl, ok := l.(CancelListener); ok {
			cl.OnCancelAll()
		}
	}

	t.pending = nil
	err := t.scheduler.CancelAllTagged(ctx, WorkTag)
	if err != nil {
		log.Printf("Ошибка отмены работы с тегом %s: %v", WorkTag, err)
	}
	t.notifyPending()
	return err
}

// Restore заполняет состояние после перезапуска без повторного планирования
func (t *Tracker) Restore(pending []models.Operation, completed []models.Answer) {
	for _, a := range completed {
		if _, ok := t.done[a.ID]; ok {
			continue
		}
		t.done[a.ID] = struct{}{}
		t.completed = append(t.completed, a)
	}
	for _, op := range pending {
		if _, ok := t.done[op.ID()]; ok || t.indexOf(op.ID()) >= 0 {
			continue
		}
		t.pending = append(t.pending, op)
	}
	t.notifyPending()
	t.notifyResults()
}

func (t *Tracker) Pending() []models.Operation {
	return append([]models.Operation(nil), t.pending...)
}

func (t *Tracker) Completed() []models.Answer {
	return append([]models.Answer(nil), t.completed...)
}

func (t *Tracker) Summary() models.Summary {
	return models.Summary{Pending: len(t.pending), Completed: len(t.completed)}
}

func (t *Tracker) indexOf(id string) int {
	for i, op := range t.pending {
		if op.ID() == id {
			return i
		}
	}
	return -1
}

func (t *Tracker) remove(id string) {
	if i := t.indexOf(id); i >= 0 {
		t.pending = append(t.pending[:i], t.pending[i+1:]...)
	}
}

func (t *Tracker) notifyPending() {
	for _, l := range t.listeners {
		l.OnPendingChanged(t.Pending())
	}
}

func (t *Tracker) notifyResults() {
	for _, l := range t.listeners {
		l.OnResultsChanged(t.Completed())
	}
}
