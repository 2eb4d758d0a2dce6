package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"mathengine/internal/models"
)

// AnswerStore сохраняет историю ответов
type AnswerStore interface {
	SaveAnswer(ctx context.Context, answer models.Answer) error
	ListAnswers(ctx context.Context, limit int) ([]models.Answer, error)
}

// Engine - потокобезопасный фасад над Tracker. Все обращения к трекеру
// проходят через Loop.
type Engine struct {
	loop    *Loop
	tracker *Tracker
	history AnswerStore
}

// New создает движок. history может быть nil.
func New(scheduler Scheduler, history AnswerStore, now func() time.Time) *Engine {
	e := &Engine{
		loop:    NewLoop(64),
		tracker: NewTracker(scheduler, now),
		history: history,
	}
	return e
}

// Run запускает основную последовательность движка
func (e *Engine) Run(ctx context.Context) {
	log.Printf("Движок запущен")
	e.loop.Run(ctx)
	log.Printf("Движок остановлен")
}

// Calculate отправляет вопрос на вычисление. Пустой ID заменяется на uuid.
// Вопрос должен быть заранее проверен (calculator.Validate).
func (e *Engine) Calculate(ctx context.Context, q models.Question) (string, error) {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	var err error
	if callErr := e.loop.Call(ctx, func() {
		err = e.tracker.Submit(ctx, q)
	}); callErr != nil {
		return "", callErr
	}
	if err != nil {
		return "", err
	}
	return q.ID, nil
}

// Deliver - обратный вызов для планировщика. Безопасен для вызова из любой
// горутины: результат переносится в основную последовательность.
// После остановки движка возвращает ErrLoopStopped.
func (e *Engine) Deliver(id, result string) error {
	err := e.loop.Post(func() {
		if !e.tracker.OnResult(id, result) || e.history == nil {
			return
		}
		go e.saveAnswer(e.tracker.completed[len(e.tracker.completed)-1])
	})
	if err != nil {
		return fmt.Errorf("deliver %s: %w", id, err)
	}
	return nil
}

func (e *Engine) saveAnswer(answer models.Answer) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := e.history.SaveAnswer(ctx, answer); err != nil {
		log.Printf("Ошибка сохранения ответа %s: %v", answer.ID, err)
	}
}

// CancelAll отменяет все ожидающие операции
func (e *Engine) CancelAll(ctx context.Context) error {
	var err error
	if callErr := e.loop.Call(ctx, func() {
		err = e.tracker.CancelAll(ctx)
	}); callErr != nil {
		return callErr
	}
	return err
}

// Restore восстанавливает ожидающие операции по сохраненной работе
func (e *Engine) Restore(ctx context.Context, works []models.Work) error {
	pending := make([]models.Operation, 0, len(works))
	for _, w := range works {
		if w.Tag != WorkTag {
			continue
		}
		start := w.NotBefore.Add(-time.Duration(w.DelaySeconds) * time.Second)
		pending = append(pending, models.NewOperation(w.Question(), start))
	}
	return e.loop.Call(ctx, func() {
		e.tracker.Restore(pending, nil)
	})
}

func (e *Engine) AddListener(ctx context.Context, l Listener) error {
	return e.loop.Call(ctx, func() {
		e.tracker.AddListener(l)
		// новый слушатель сразу получает текущее состояние
		l.OnPendingChanged(e.tracker.Pending())
		l.OnResultsChanged(e.tracker.Completed())
	})
}

func (e *Engine) RemoveListener(ctx context.Context, l Listener) error {
	return e.loop.Call(ctx, func() {
		e.tracker.RemoveListener(l)
	})
}

// Snapshot возвращает копии обоих списков, согласованные между собой
func (e *Engine) Snapshot(ctx context.Context) ([]models.Operation, []models.Answer, error) {
	var pending []models.Operation
	var completed []models.Answer
	err := e.loop.Call(ctx, func() {
		pending = e.tracker.Pending()
		completed = e.tracker.Completed()
	})
	return pending, completed, err
}

func (e *Engine) Summary(ctx context.Context) (models.Summary, error) {
	var s models.Summary
	err := e.loop.Call(ctx, func() {
		s = e.tracker.Summary()
	})
	return s, err
}

// History возвращает сохраненные ответы
func (e *Engine) History(ctx context.Context, limit int) ([]models.Answer, error) {
	if e.history == nil {
		_, completed, err := e.Snapshot(ctx)
		return completed, err
	}
	answers, err := e.history.ListAnswers(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	return answers, nil
}
