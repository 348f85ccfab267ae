// Package database хранит состояние агента в PostgreSQL через GORM:
// key-value записи, журнал откликов и журнал запросов к LLM.
package database

import "time"

// KVEntry - одна запись key-value хранилища (флаг активности, счетчик,
// профиль, выученные ответы).
type KVEntry struct {
	Key       string    `gorm:"primaryKey;column:key;type:varchar(128)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (KVEntry) TableName() string { return "kv_entries" }

// Application - исход обработки одной вакансии.
// Outcome: submitted, abandoned, timed_out, skipped.
type Application struct {
	ID        uint      `gorm:"primaryKey"`
	RunID     string    `gorm:"type:varchar(36);index"`
	SessionID string    `gorm:"type:varchar(36)"`
	JobID     string    `gorm:"type:varchar(32);index"`
	Title     string    `gorm:"type:text"`
	Company   string    `gorm:"type:text"`
	Outcome   string    `gorm:"type:varchar(16);not null"`
	Reason    string    `gorm:"type:text"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// LlmLog - запрос к LLM с уже замаскированными промптом и ответом.
type LlmLog struct {
	ID           uint   `gorm:"primaryKey"`
	RunID        string `gorm:"type:varchar(36);index"`
	Role         string `gorm:"type:varchar(32);not null"`
	PromptText   string `gorm:"type:text;not null"`
	ResponseText string `gorm:"type:text"`
	Model        string `gorm:"type:varchar(64)"`
	TokensUsed   int
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}
