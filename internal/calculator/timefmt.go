package calculator

import (
	"errors"
	"strconv"
	"time"
)

var ErrNegativeTime = errors.New("time components can not be negative")

// FormatTime возвращает время в формате "hh:mm:ss"
func FormatTime(hours, minutes, seconds int64) (string, error) {
	if hours < 0 || minutes < 0 || seconds < 0 {
		return "", ErrNegativeTime
	}
	return digits(hours) + ":" + digits(minutes) + ":" + digits(seconds), nil
}

// FormatDuration форматирует оставшееся время операции.
// Отрицательные значения считаются нулем.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int64(d.Round(time.Second) / time.Second)
	s, _ := FormatTime(total/3600, total%3600/60, total%60)
	return s
}

func digits(n int64) string {
	if n < 10 {
		return "0" + strconv.FormatInt(n, 10)
	}
	return strconv.FormatInt(n, 10)
}
