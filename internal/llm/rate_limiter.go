package llm

import (
	"fmt"
	"sync"
	"time"
)

// RateLimiter - два token bucket: запросы в минуту и токены в час.
type RateLimiter struct {
	mu  sync.Mutex
	now func() time.Time

	requestsPerMinute int
	requests          float64
	tokensPerHour     int
	tokens            float64
	last              time.Time
}

func NewRateLimiter(requestsPerMinute, tokensPerHour int) *RateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if tokensPerHour <= 0 {
		tokensPerHour = 90000
	}

	return &RateLimiter{
		now:               time.Now,
		requestsPerMinute: requestsPerMinute,
		requests:          float64(requestsPerMinute),
		tokensPerHour:     tokensPerHour,
		tokens:            float64(tokensPerHour),
		last:              time.Now(),
	}
}

// refill пополняет оба бюджета пропорционально прошедшему времени.
// Вызывается под mu.
func (rl *RateLimiter) refill() {
	now := rl.now()
	elapsed := now.Sub(rl.last)
	if elapsed <= 0 {
		return
	}
	rl.last = now

	rl.requests = min(rl.requests+elapsed.Minutes()*float64(rl.requestsPerMinute), float64(rl.requestsPerMinute))
	rl.tokens = min(rl.tokens+elapsed.Hours()*float64(rl.tokensPerHour), float64(rl.tokensPerHour))
}

func (rl *RateLimiter) AllowRequest() error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.requests < 1 {
		wait := time.Minute / time.Duration(rl.requestsPerMinute)
		return fmt.Errorf("превышен лимит запросов (%d RPM), повторите через %v", rl.requestsPerMinute, wait)
	}
	rl.requests--
	return nil
}

func (rl *RateLimiter) AllowTokens(tokens int) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	if rl.tokens < float64(tokens) {
		return fmt.Errorf("превышен лимит токенов (%d TPH): требуется %d, доступно %d",
			rl.tokensPerHour, tokens, int(rl.tokens))
	}
	rl.tokens -= float64(tokens)
	return nil
}

// ConsumeTokens списывает разницу между оценкой и фактическим расходом.
func (rl *RateLimiter) ConsumeTokens(tokens int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = max(rl.tokens-float64(tokens), 0)
}

func (rl *RateLimiter) Stats() (requests int, tokens int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()
	return int(rl.requests), int(rl.tokens)
}
