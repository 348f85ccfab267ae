package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	log, err := New("dev", "debug")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zap.DebugLevel))

	prod, err := New("prod", "warn")
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zap.InfoLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New("dev", "chatty")
	assert.Error(t, err)
}

func TestWithKeepsType(t *testing.T) {
	child := NewNop().With(zap.String("run_id", "r1"))
	require.NotNil(t, child.Logger)
}
