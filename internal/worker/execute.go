package worker

import (
	"errors"
	"fmt"

	"mathengine/internal/calculator"
	"mathengine/internal/models"
)

var ErrInvalidWork = errors.New("invalid work payload")

// Execute вычисляет ответ для работы. Структурно некорректная работа
// завершается ошибкой ErrInvalidWork и не повторяется.
func Execute(w models.Work) (string, error) {
	if w.ID == "" {
		return "", fmt.Errorf("%w: empty id", ErrInvalidWork)
	}
	if err := calculator.Validate(w.Question()); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidWork, err)
	}
	return calculator.FormatAnswer(w.FirstOperand, w.Operator, w.SecondOperand), nil
}
