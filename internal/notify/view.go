package notify

import (
	"time"

	"mathengine/internal/calculator"
	"mathengine/internal/models"
)

// OperationView - ожидающая операция в виде для клиентов
type OperationView struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Remaining string    `json:"remaining"`
}

func NewOperationView(op models.Operation, now time.Time) OperationView {
	q := op.Question
	return OperationView{
		ID:        op.ID(),
		Question:  calculator.FormatQuestion(q),
		StartTime: op.StartTime,
		EndTime:   op.EndTime,
		Remaining: calculator.FormatDuration(op.Remaining(now)),
	}
}

func Views(ops []models.Operation, now time.Time) []OperationView {
	views := make([]OperationView, 0, len(ops))
	for _, op := range ops {
		views = append(views, NewOperationView(op, now))
	}
	return views
}
