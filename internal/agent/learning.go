package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"jobAgent/internal/state"
)

// NormalizeLabel приводит подпись поля к ключу выученных ответов:
// нижний регистр, схлопнутые пробелы.
func NormalizeLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), " ")
}

// LearningStore - плоская карта "подпись -> последний ответ человека".
// Последняя запись побеждает. Запись сериализуется mu: ответы пишут и
// драйвер, и пульт оператора.
type LearningStore struct {
	mu sync.Mutex
	kv state.KV
}

func NewLearningStore(kv state.KV) *LearningStore {
	return &LearningStore{kv: kv}
}

func (l *LearningStore) All(ctx context.Context) (map[string]string, error) {
	m := map[string]string{}
	if _, err := state.GetJSON(ctx, l.kv, state.KeyLearnedQuestions, &m); err != nil {
		return nil, fmt.Errorf("ошибка чтения выученных ответов: %w", err)
	}
	return m, nil
}

func (l *LearningStore) Lookup(ctx context.Context, label string) (string, bool, error) {
	m, err := l.All(ctx)
	if err != nil {
		return "", false, err
	}
	v, ok := m[NormalizeLabel(label)]
	return v, ok, nil
}

// SaveAll сливает ответы в хранилище.
func (l *LearningStore) SaveAll(ctx context.Context, answers map[string]string) error {
	if len(answers) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.All(ctx)
	if err != nil {
		return err
	}
	for label, v := range answers {
		if key := NormalizeLabel(label); key != "" {
			m[key] = v
		}
	}
	if err := state.SetJSON(ctx, l.kv, state.KeyLearnedQuestions, m); err != nil {
		return fmt.Errorf("ошибка сохранения выученных ответов: %w", err)
	}
	return nil
}

func (l *LearningStore) Set(ctx context.Context, label, value string) error {
	return l.SaveAll(ctx, map[string]string{label: value})
}

// Forget удаляет ответ. false - такого ответа не было.
func (l *LearningStore) Forget(ctx context.Context, label string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	m, err := l.All(ctx)
	if err != nil {
		return false, err
	}
	key := NormalizeLabel(label)
	if _, ok := m[key]; !ok {
		return false, nil
	}
	delete(m, key)
	if err := state.SetJSON(ctx, l.kv, state.KeyLearnedQuestions, m); err != nil {
		return false, fmt.Errorf("ошибка сохранения выученных ответов: %w", err)
	}
	return true, nil
}

// Question - вопрос анкеты, на который не нашлось ответа.
type Question struct {
	Label     string    `json:"label"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp"`
}

// QuestionLog копит вопросы без ответа для последующего разбора.
// Дубликаты по подписи не добавляются.
type QuestionLog struct {
	mu sync.Mutex
	kv state.KV
}

func NewQuestionLog(kv state.KV) *QuestionLog {
	return &QuestionLog{kv: kv}
}

func (q *QuestionLog) List(ctx context.Context) ([]Question, error) {
	var out []Question
	if _, err := state.GetJSON(ctx, q.kv, state.KeyUnansweredQuestions, &out); err != nil {
		return nil, fmt.Errorf("ошибка чтения вопросов без ответа: %w", err)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// Record добавляет новые вопросы и возвращает, сколько из них действительно новые.
func (q *QuestionLog) Record(ctx context.Context, questions []Question) (int, error) {
	if len(questions) == 0 {
		return 0, nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.List(ctx)
	if err != nil {
		return 0, err
	}

	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[e.Label] = struct{}{}
	}
	added := 0
	for _, nq := range questions {
		if _, ok := seen[nq.Label]; ok {
			continue
		}
		seen[nq.Label] = struct{}{}
		existing = append(existing, nq)
		added++
	}
	if added == 0 {
		return 0, nil
	}
	if err := state.SetJSON(ctx, q.kv, state.KeyUnansweredQuestions, existing); err != nil {
		return 0, fmt.Errorf("ошибка сохранения вопросов без ответа: %w", err)
	}
	return added, nil
}

// Resolve убирает вопрос из списка, когда оператор дал на него ответ.
func (q *QuestionLog) Resolve(ctx context.Context, label string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	existing, err := q.List(ctx)
	if err != nil {
		return err
	}
	key := NormalizeLabel(label)
	kept := existing[:0]
	for _, e := range existing {
		if NormalizeLabel(e.Label) != key {
			kept = append(kept, e)
		}
	}
	if len(kept) == len(existing) {
		return nil
	}
	if err := state.SetJSON(ctx, q.kv, state.KeyUnansweredQuestions, kept); err != nil {
		return fmt.Errorf("ошибка сохранения вопросов без ответа: %w", err)
	}
	return nil
}
