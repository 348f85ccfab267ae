// Package commands содержит подкоманды job-agent.
package commands

import (
	"fmt"
	"io"

	"jobAgent/internal/agent"
	"jobAgent/internal/config"
	"jobAgent/internal/database"
	"jobAgent/internal/logger"
	"jobAgent/internal/migrations"
	"jobAgent/internal/profile"
	"jobAgent/internal/server"
	"jobAgent/internal/state"

	"go.uber.org/zap"
)

// Env - общее окружение команд. Поля, заданные заранее, не перезаписываются:
// так тесты подставляют SQLite вместо PostgreSQL.
type Env struct {
	Out io.Writer
	Cfg *config.Cfg
	Log *logger.Zap

	KV      state.KV
	Apps    *database.ApplicationRepository
	LLMLogs *database.LLMLogRepository

	db *database.Database
}

// Init читает конфигурацию и создает логгер.
func (e *Env) Init() error {
	if e.Cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
		}
		e.Cfg = cfg
	}
	if e.Log == nil {
		log, err := logger.New(e.Cfg.Logger.Env, e.Cfg.Logger.Level)
		if err != nil {
			return fmt.Errorf("ошибка создания логгера: %w", err)
		}
		e.Log = log
	}
	return nil
}

// Open применяет миграции и подключает репозитории.
func (e *Env) Open() error {
	if e.KV != nil {
		return nil
	}
	if err := migrations.Run(e.Cfg, e.Log); err != nil {
		return err
	}
	db, err := database.New(e.Cfg, e.Log)
	if err != nil {
		return err
	}
	e.db = db
	e.KV = database.NewKVRepository(db.DB)
	e.Apps = database.NewApplicationRepository(db.DB)
	e.LLMLogs = database.NewLLMLogRepository(db.DB)
	return nil
}

func (e *Env) Close() {
	if e.db != nil {
		e.db.Close(e.Log)
		e.db = nil
	}
	if e.Log != nil {
		if err := e.Log.Sync(); err != nil {
			e.Log.Debug("Ошибка сброса логгера", zap.Error(err))
		}
	}
}

func (e *Env) governor() *agent.Governor {
	return agent.NewGovernor(e.KV, e.Cfg.Agent.PollInterval)
}

func (e *Env) deps() server.Deps {
	return server.Deps{
		Governor:     e.governor(),
		Learning:     agent.NewLearningStore(e.KV),
		Questions:    agent.NewQuestionLog(e.KV),
		Profiles:     profile.NewStore(e.KV),
		Applications: e.Apps,
	}
}
