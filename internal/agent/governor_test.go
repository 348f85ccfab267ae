package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"jobAgent/internal/state"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounterRollsOverAtMidnight(t *testing.T) {
	ctx := context.Background()
	g := NewGovernor(state.NewMemory(), time.Millisecond)

	day := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	g.now = func() time.Time { return day }

	for i := 0; i < 3; i++ {
		_, err := g.Increment(ctx)
		require.NoError(t, err)
	}
	n, err := g.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	day = day.Add(2 * time.Minute)
	n, err = g.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = g.Increment(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCounterAcceptsPlainNumber(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemory()
	require.NoError(t, kv.Set(ctx, state.KeyApplicationCount, "7"))

	g := NewGovernor(kv, time.Millisecond)
	n, err := g.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	require.NoError(t, kv.Set(ctx, state.KeyApplicationCount, "seven"))
	_, err = g.Count(ctx)
	assert.Error(t, err)
}

func TestCapReachedClearsActive(t *testing.T) {
	ctx := context.Background()
	g := NewGovernor(state.NewMemory(), time.Millisecond)
	require.NoError(t, g.SetActive(ctx, true))

	capped, n, err := g.CapReached(ctx, 2)
	require.NoError(t, err)
	assert.False(t, capped)
	assert.Zero(t, n)

	for i := 0; i < 2; i++ {
		_, err := g.Increment(ctx)
		require.NoError(t, err)
	}

	capped, n, err = g.CapReached(ctx, 2)
	require.NoError(t, err)
	assert.True(t, capped)
	assert.Equal(t, 2, n)

	active, err := g.Active(ctx)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestWaitObservesStop(t *testing.T) {
	ctx := context.Background()
	kv := state.NewMemory()
	g := NewGovernor(kv, time.Millisecond)

	assert.ErrorIs(t, g.Wait(ctx, time.Second), ErrStopped, "неактивный агент не ждет")

	require.NoError(t, g.SetActive(ctx, true))
	require.NoError(t, g.Wait(ctx, 3*time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		_ = g.SetActive(ctx, false)
	}()
	start := time.Now()
	err := g.Wait(ctx, time.Minute)
	assert.True(t, errors.Is(err, ErrStopped))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestWaitObservesCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	g := NewGovernor(state.NewMemory(), time.Hour)
	require.NoError(t, g.SetActive(ctx, true))

	time.AfterFunc(10*time.Millisecond, cancel)
	err := g.Wait(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}
