package calculator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"mathengine/internal/models"
)

var (
	ErrEmptyExpression = errors.New("empty expression")
	ErrInvalidOperand  = errors.New("invalid operand")
	ErrDivisionByZero  = errors.New("division by zero")
	ErrUnknownOperator = errors.New("unknown operator")
	ErrInvalidDelay    = errors.New("invalid delay")
	ErrInvalidFormat   = errors.New("expected <number> <operator> <number>")
)

// MaxDelaySeconds - верхняя граница задержки (одни сутки)
const MaxDelaySeconds = 24 * 60 * 60

type TokenType string

const (
	Number   TokenType = "number"
	Operator TokenType = "operator"
)

type Token struct {
	Type  TokenType
	Value string
}

// Tokenize разбивает выражение вида "1.5 * -2" на токены.
// Минус перед числом считается знаком, если перед ним нет числа.
func Tokenize(expr string) ([]Token, error) {
	expr = strings.ReplaceAll(strings.TrimSpace(expr), " ", "")
	if expr == "" {
		return nil, ErrEmptyExpression
	}

	var tokens []Token
	for i := 0; i < len(expr); i++ {
		char := expr[i]

		signed := char == '-' && (len(tokens) == 0 || tokens[len(tokens)-1].Type == Operator)
		switch {
		case unicode.IsDigit(rune(char)) || char == '.' || signed:
			j := i + 1
			for j < len(expr) && (unicode.IsDigit(rune(expr[j])) || expr[j] == '.') {
				j++
			}
			tokens = append(tokens, Token{Type: Number, Value: expr[i:j]})
			i = j - 1
		case char == '+' || char == '-' || char == '*' || char == '/':
			tokens = append(tokens, Token{Type: Operator, Value: string(char)})
		default:
			return nil, fmt.Errorf("invalid character: %c", char)
		}
	}

	return tokens, nil
}

// ParseQuestion разбирает бинарное выражение и проверяет его.
// ID вопроса не заполняется.
func ParseQuestion(expr string, delaySeconds int64) (models.Question, error) {
	tokens, err := Tokenize(expr)
	if err != nil {
		return models.Question{}, err
	}
	if len(tokens) != 3 || tokens[0].Type != Number || tokens[1].Type != Operator || tokens[2].Type != Number {
		return models.Question{}, ErrInvalidFormat
	}

	first, err := strconv.ParseFloat(tokens[0].Value, 64)
	if err != nil {
		return models.Question{}, fmt.Errorf("%w: %s", ErrInvalidOperand, tokens[0].Value)
	}
	second, err := strconv.ParseFloat(tokens[2].Value, 64)
	if err != nil {
		return models.Question{}, fmt.Errorf("%w: %s", ErrInvalidOperand, tokens[2].Value)
	}
	op, err := models.ParseOperator(tokens[1].Value)
	if err != nil {
		return models.Question{}, fmt.Errorf("%w: %s", ErrUnknownOperator, tokens[1].Value)
	}

	q := models.Question{
		FirstOperand:  first,
		SecondOperand: second,
		Operator:      op,
		DelaySeconds:  delaySeconds,
	}
	if err := Validate(q); err != nil {
		return models.Question{}, err
	}
	return q, nil
}

// Validate проверяет вопрос перед отправкой в движок
func Validate(q models.Question) error {
	if !q.Operator.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOperator, string(q.Operator))
	}
	if !finite(q.FirstOperand) || !finite(q.SecondOperand) {
		return ErrInvalidOperand
	}
	if q.Operator == models.Divide && q.SecondOperand == 0 {
		return ErrDivisionByZero
	}
	if q.DelaySeconds < 0 || q.DelaySeconds > MaxDelaySeconds {
		return fmt.Errorf("%w: %d", ErrInvalidDelay, q.DelaySeconds)
	}
	return nil
}

// FormatAnswer строит текст ответа: "1.00 + 1.00 = 2.00"
func FormatAnswer(first float64, op models.Operator, second float64) string {
	return fmt.Sprintf("%.2f %s %.2f = %.2f", first, op.Symbol(), second, op.Compute(first, second))
}

// FormatQuestion строит текст вопроса без результата: "1.00 + 1.00"
func FormatQuestion(q models.Question) string {
	return fmt.Sprintf("%.2f %s %.2f", q.FirstOperand, q.Operator.Symbol(), q.SecondOperand)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
