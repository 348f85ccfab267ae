package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jobAgent/internal/browser"
)

var (
	// ErrStopped - флаг активности снят, проход прерывается.
	ErrStopped = errors.New("агент остановлен")
	// ErrRescan - элемент выдачи отсоединился, страницу нужно пересканировать.
	ErrRescan = errors.New("выдача перерисована, нужен повторный скан")
	// ErrNoListings - выдача пуста после всех попыток.
	ErrNoListings = errors.New("вакансии не найдены")
	// ErrCapReached - достигнут дневной лимит откликов.
	ErrCapReached = errors.New("достигнут лимит откликов")
)

type ErrorType int

const (
	ErrorTypeTemporary ErrorType = iota
	ErrorTypeCritical
	ErrorTypeRetryable
)

func (e ErrorType) String() string {
	switch e {
	case ErrorTypeTemporary:
		return "temporary"
	case ErrorTypeCritical:
		return "critical"
	case ErrorTypeRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

type ActionError struct {
	Type   ErrorType
	Action string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Action, e.Type, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// classifyError решает, имеет ли смысл повторять действие.
// Остановка агента и отмена контекста повторять нельзя.
func classifyError(action string, err error) *ActionError {
	if err == nil {
		return nil
	}

	t := ErrorTypeCritical
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, ErrStopped), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		t = ErrorTypeCritical
	case errors.Is(err, browser.ErrDetached):
		t = ErrorTypeTemporary
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "network"),
		strings.Contains(msg, "connection"),
		strings.Contains(msg, "ns_error"),
		strings.Contains(msg, "net::"):
		t = ErrorTypeRetryable
	case strings.Contains(msg, "not found"),
		strings.Contains(msg, "element"):
		t = ErrorTypeTemporary
	}

	return &ActionError{Type: t, Action: action, Err: err}
}

// retryAction повторяет fn до maxRetries раз, прекращая на критической ошибке.
func retryAction(ctx context.Context, action string, maxRetries int, delay time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err
		if classifyError(action, err).Type == ErrorTypeCritical {
			return err
		}
	}

	return fmt.Errorf("%s: после %d попыток: %w", action, maxRetries, lastErr)
}
