// Package state описывает key-value хранилище, в котором агент держит
// флаг активности, счетчики, профиль и выученные ответы.
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
)

// Ключи хранилища.
const (
	KeyCandidateProfile    = "candidate_profile"
	KeyBotActive           = "bot_active"
	KeyApplicationCount    = "daily_application_count"
	KeyLearnedQuestions    = "learned_questions"
	KeyUnansweredQuestions = "unanswered_questions"
)

// KV - минимальный контракт хранилища. Реализации: Memory (тесты, dry-run)
// и database.KVRepository (PostgreSQL).
type KV interface {
	// Get возвращает значение и признак его наличия.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// GetJSON читает значение и декодирует его в dst. Отсутствие ключа - не ошибка,
// в этом случае возвращается false и dst не изменяется.
func GetJSON(ctx context.Context, kv KV, key string, dst any) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("ошибка декодирования ключа %s: %w", key, err)
	}
	return true, nil
}

func SetJSON(ctx context.Context, kv KV, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ошибка кодирования ключа %s: %w", key, err)
	}
	return kv.Set(ctx, key, string(data))
}

func GetBool(ctx context.Context, kv KV, key string) (bool, error) {
	raw, ok, err := kv.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("ключ %s не является bool: %w", key, err)
	}
	return b, nil
}

func SetBool(ctx context.Context, kv KV, key string, v bool) error {
	return kv.Set(ctx, key, strconv.FormatBool(v))
}

// Memory - потокобезопасная реализация KV в памяти.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
