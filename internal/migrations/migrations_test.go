package migrations

import (
	"io"
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(FS, "sql")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	up, _, err := src.ReadUp(first)
	require.NoError(t, err)
	body, err := io.ReadAll(up)
	require.NoError(t, err)
	_ = up.Close()
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS kv_entries")
	assert.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS applications")

	down, _, err := src.ReadDown(first)
	require.NoError(t, err)
	_ = down.Close()
}
