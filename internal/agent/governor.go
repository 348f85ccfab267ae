package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobAgent/internal/state"
)

// Governor хранит флаг активности и дневной счетчик откликов.
// Флаг читается из хранилища перед каждым ожиданием и никогда не кешируется.
type Governor struct {
	kv   state.KV
	poll time.Duration
	now  func() time.Time
}

type counterRecord struct {
	Day   string `json:"day"`
	Count int    `json:"count"`
}

func NewGovernor(kv state.KV, poll time.Duration) *Governor {
	if poll <= 0 {
		poll = time.Second
	}
	return &Governor{kv: kv, poll: poll, now: time.Now}
}

func (g *Governor) Active(ctx context.Context) (bool, error) {
	active, err := state.GetBool(ctx, g.kv, state.KeyBotActive)
	if err != nil {
		return false, fmt.Errorf("ошибка чтения флага активности: %w", err)
	}
	return active, nil
}

func (g *Governor) SetActive(ctx context.Context, active bool) error {
	if err := state.SetBool(ctx, g.kv, state.KeyBotActive, active); err != nil {
		return fmt.Errorf("ошибка записи флага активности: %w", err)
	}
	return nil
}

// Check возвращает ErrStopped, если флаг активности снят.
func (g *Governor) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	active, err := g.Active(ctx)
	if err != nil {
		return err
	}
	if !active {
		return ErrStopped
	}
	return nil
}

// Wait ждет d, разбивая ожидание на опросы. Флаг проверяется до и после
// каждого опроса, так что остановка замечается не позже чем через poll.
func (g *Governor) Wait(ctx context.Context, d time.Duration) error {
	for {
		if err := g.Check(ctx); err != nil {
			return err
		}
		if d <= 0 {
			return nil
		}

		step := min(d, g.poll)
		t := time.NewTimer(step)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		d -= step
	}
}

func (g *Governor) today() string {
	return g.now().Format(time.DateOnly)
}

// Count возвращает число откликов за сегодня. Запись за прошлый день считается нулем.
func (g *Governor) Count(ctx context.Context) (int, error) {
	raw, ok, err := g.kv.Get(ctx, state.KeyApplicationCount)
	if err != nil {
		return 0, fmt.Errorf("ошибка чтения счетчика откликов: %w", err)
	}
	if !ok {
		return 0, nil
	}

	var rec counterRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		// старый формат - просто число
		n, convErr := strconv.Atoi(strings.TrimSpace(raw))
		if convErr != nil {
			return 0, fmt.Errorf("ошибка разбора счетчика откликов %q: %w", raw, err)
		}
		return n, nil
	}
	if rec.Day != g.today() {
		return 0, nil
	}
	return rec.Count, nil
}

// Increment увеличивает счетчик и сразу сохраняет его.
func (g *Governor) Increment(ctx context.Context) (int, error) {
	n, err := g.Count(ctx)
	if err != nil {
		return 0, err
	}
	n++
	if err := state.SetJSON(ctx, g.kv, state.KeyApplicationCount, counterRecord{Day: g.today(), Count: n}); err != nil {
		return 0, fmt.Errorf("ошибка сохранения счетчика откликов: %w", err)
	}
	return n, nil
}

// CapReached проверяет лимит и при его достижении снимает флаг активности.
func (g *Governor) CapReached(ctx context.Context, max int) (bool, int, error) {
	n, err := g.Count(ctx)
	if err != nil {
		return false, 0, err
	}
	if n < max {
		return false, n, nil
	}
	if err := g.SetActive(ctx, false); err != nil {
		return true, n, err
	}
	return true, n, nil
}
