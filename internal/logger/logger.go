// Package logger настраивает zap для всего приложения.
package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Zap оборачивает *zap.Logger, чтобы компоненты зависели от одного типа.
type Zap struct {
	*zap.Logger
}

// New создает логгер: dev - человекочитаемый консольный вывод, иначе JSON.
func New(env, level string) (*Zap, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", level, err)
	}

	var cfg zap.Config
	if env == "dev" || env == "development" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации zap: %w", err)
	}

	return &Zap{Logger: l}, nil
}

// NewNop возвращает логгер, который ничего не пишет (для тестов).
func NewNop() *Zap {
	return &Zap{Logger: zap.NewNop()}
}

// With возвращает дочерний логгер с постоянными полями.
func (z *Zap) With(fields ...zap.Field) *Zap {
	return &Zap{Logger: z.Logger.With(fields...)}
}
