package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryJSON(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	var got map[string]string
	ok, err := GetJSON(ctx, kv, KeyLearnedQuestions, &got)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, SetJSON(ctx, kv, KeyLearnedQuestions, map[string]string{"city?": "Berlin"}))
	ok, err = GetJSON(ctx, kv, KeyLearnedQuestions, &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Berlin", got["city?"])
}

func TestMemoryBool(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()

	active, err := GetBool(ctx, kv, KeyBotActive)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, SetBool(ctx, kv, KeyBotActive, true))
	active, err = GetBool(ctx, kv, KeyBotActive)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, kv.Set(ctx, KeyBotActive, "maybe"))
	_, err = GetBool(ctx, kv, KeyBotActive)
	assert.Error(t, err)

	require.NoError(t, kv.Delete(ctx, KeyBotActive))
	_, ok, _ := kv.Get(ctx, KeyBotActive)
	assert.False(t, ok)
}

func TestGetJSONRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	kv := NewMemory()
	require.NoError(t, kv.Set(ctx, KeyCandidateProfile, "{broken"))

	var v map[string]any
	_, err := GetJSON(ctx, kv, KeyCandidateProfile, &v)
	assert.Error(t, err)
}
