package neo

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout формат дат NeoWs
const DateLayout = "2006-01-02"

// ErrBadDate дата не в формате YYYY-MM-DD
var ErrBadDate = errors.New("date must be YYYY-MM-DD")

// NormalizeDate проверяет дату запроса. Пустая строка означает сегодня
// по локальному времени сервера.
func NormalizeDate(raw string, now time.Time) (string, error) {
	if raw == "" {
		return now.Format(DateLayout), nil
	}
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrBadDate, raw)
	}
	return t.Format(DateLayout), nil
}
