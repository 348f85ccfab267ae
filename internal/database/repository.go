package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KVRepository реализует state.KV поверх таблицы kv_entries.
type KVRepository struct {
	db *gorm.DB
}

func NewKVRepository(db *gorm.DB) *KVRepository {
	return &KVRepository{db: db}
}

func (r *KVRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var e KVEntry
	err := r.db.WithContext(ctx).Where("key = ?", key).Take(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("ошибка чтения ключа %s: %w", key, err)
	}
	return e.Value, true, nil
}

func (r *KVRepository) Set(ctx context.Context, key, value string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&KVEntry{Key: key, Value: value}).Error
	if err != nil {
		return fmt.Errorf("ошибка записи ключа %s: %w", key, err)
	}
	return nil
}

func (r *KVRepository) Delete(ctx context.Context, key string) error {
	if err := r.db.WithContext(ctx).Where("key = ?", key).Delete(&KVEntry{}).Error; err != nil {
		return fmt.Errorf("ошибка удаления ключа %s: %w", key, err)
	}
	return nil
}

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Record(ctx context.Context, a *Application) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *ApplicationRepository) Recent(ctx context.Context, limit int) ([]Application, error) {
	var apps []Application
	if err := r.db.WithContext(ctx).Order("id DESC").Limit(limit).Find(&apps).Error; err != nil {
		return nil, err
	}
	return apps, nil
}

// OutcomeCounts считает исходы с момента since.
func (r *ApplicationRepository) OutcomeCounts(ctx context.Context, since time.Time) (map[string]int64, error) {
	var rows []struct {
		Outcome string
		Total   int64
	}
	err := r.db.WithContext(ctx).Model(&Application{}).
		Select("outcome, count(*) AS total").
		Where("created_at >= ?", since).
		Group("outcome").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Outcome] = row.Total
	}
	return out, nil
}

type LLMLogRepository struct {
	db *gorm.DB
}

func NewLLMLogRepository(db *gorm.DB) *LLMLogRepository {
	return &LLMLogRepository{db: db}
}

func (r *LLMLogRepository) LogLLMRequest(ctx context.Context, runID, role, promptText, responseText, model string, tokensUsed int) error {
	return r.db.WithContext(ctx).Create(&LlmLog{
		RunID:        runID,
		Role:         role,
		PromptText:   promptText,
		ResponseText: responseText,
		Model:        model,
		TokensUsed:   tokensUsed,
	}).Error
}

// Recent возвращает последние запросы, новые первыми. Пустой runID - без фильтра.
func (r *LLMLogRepository) Recent(ctx context.Context, runID string, limit int) ([]LlmLog, error) {
	q := r.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if runID != "" {
		q = q.Where("run_id = ?", runID)
	}
	var logs []LlmLog
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
