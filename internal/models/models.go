package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Operator - арифметическая операция вопроса
type Operator string

const (
	Add      Operator = "add"
	Subtract Operator = "subtract"
	Multiply Operator = "multiply"
	Divide   Operator = "divide"
)

// Operators перечисляет операции в порядке их объявления
var Operators = []Operator{Add, Subtract, Multiply, Divide}

// Symbol возвращает символ операции: "+", "-", "*", "/"
func (o Operator) Symbol() string {
	switch o {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	}
	return "?"
}

// Valid сообщает, известна ли операция
func (o Operator) Valid() bool {
	switch o {
	case Add, Subtract, Multiply, Divide:
		return true
	}
	return false
}

// Compute выполняет операцию. Деление на ноль должно отсекаться до вызова.
func (o Operator) Compute(a, b float64) float64 {
	switch o {
	case Add:
		return a + b
	case Subtract:
		return a - b
	case Multiply:
		return a * b
	case Divide:
		return a / b
	}
	return 0
}

func (o Operator) String() string {
	return string(o)
}

// ParseOperator принимает имя операции ("add") или ее символ ("+")
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "add", "+":
		return Add, nil
	case "subtract", "-":
		return Subtract, nil
	case "multiply", "*", "x":
		return Multiply, nil
	case "divide", "/":
		return Divide, nil
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

func (o *Operator) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	op, err := ParseOperator(raw)
	if err != nil {
		return err
	}
	*o = op
	return nil
}

// Question - неизменяемый арифметический вопрос.
// Два вопроса равны, если совпадают их ID.
type Question struct {
	ID            string   `json:"id"`
	FirstOperand  float64  `json:"first_operand"`
	SecondOperand float64  `json:"second_operand"`
	Operator      Operator `json:"operator"`
	DelaySeconds  int64    `json:"delay_seconds"`
}

// Delay возвращает задержку ответа как time.Duration
func (q Question) Delay() time.Duration {
	return time.Duration(q.DelaySeconds) * time.Second
}

func (q Question) String() string {
	return fmt.Sprintf("Question(id=%s, %g %s %g, delay=%ds)",
		q.ID, q.FirstOperand, q.Operator.Symbol(), q.SecondOperand, q.DelaySeconds)
}

// Answer - готовый результат вопроса, после создания не меняется
type Answer struct {
	ID          string    `json:"id"`
	Result      string    `json:"result"`
	CompletedAt time.Time `json:"completed_at"`
}

// Operation связывает вопрос со временем начала и окончания.
// Используется только для отображения и таймеров.
type Operation struct {
	Question  Question  `json:"question"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

// NewOperation создает операцию, которая заканчивается через задержку вопроса
func NewOperation(q Question, start time.Time) Operation {
	return Operation{
		Question:  q,
		StartTime: start,
		EndTime:   start.Add(q.Delay()),
	}
}

func (o Operation) ID() string {
	return o.Question.ID
}

// Remaining возвращает оставшееся время, но не меньше нуля
func (o Operation) Remaining(now time.Time) time.Duration {
	if d := o.EndTime.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Summary - счетчики для уведомлений
type Summary struct {
	Pending   int `json:"pending"`
	Completed int `json:"completed"`
}

// Work - единица отложенной работы для исполнителя
type Work struct {
	ID            string    `json:"id"`
	Tag           string    `json:"tag"`
	FirstOperand  float64   `json:"first_operand"`
	SecondOperand float64   `json:"second_operand"`
	Operator      Operator  `json:"operator"`
	DelaySeconds  int64     `json:"delay_seconds"`
	NotBefore     time.Time `json:"not_before"`
}

// NewWork строит работу для вопроса с тегом tag
func NewWork(q Question, tag string, now time.Time) Work {
	return Work{
		ID:            q.ID,
		Tag:           tag,
		FirstOperand:  q.FirstOperand,
		SecondOperand: q.SecondOperand,
		Operator:      q.Operator,
		DelaySeconds:  q.DelaySeconds,
		NotBefore:     now.Add(q.Delay()),
	}
}

// Question восстанавливает вопрос из работы (после перезапуска)
func (w Work) Question() Question {
	return Question{
		ID:            w.ID,
		FirstOperand:  w.FirstOperand,
		SecondOperand: w.SecondOperand,
		Operator:      w.Operator,
		DelaySeconds:  w.DelaySeconds,
	}
}

// WorkResult - ответ исполнителя. Непустой Error означает, что работа
// не может быть выполнена.
type WorkResult struct {
	ID     string `json:"id"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}
