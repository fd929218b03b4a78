package cache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nested", "cache.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestStore_PutGet(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)

	_, ok, err := s.Get(ctx, "Acme.Core", "1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Put(ctx, "Acme.Core", "1.0.0", []byte("v1")))
	require.NoError(t, s.Put(ctx, "acme.core", "1.0.0", []byte("v1-again")))

	data, ok, err := s.Get(ctx, "ACME.CORE", "1.0.0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v1-again", string(data))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Reopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)
	require.NoError(t, s.Put(ctx, "Acme.Core", "2.0.0", []byte("v2")))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	data, ok, err := reopened.Get(ctx, "Acme.Core", "2.0.0")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(data))
}

func TestStore_CorruptEntryIsEvicted(t *testing.T) {
	ctx := context.Background()
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "Acme.Core", "1.0.0", []byte("good")))
	_, err = s.db.ExecContext(ctx, `UPDATE packages SET data = ? WHERE id = ?`, []byte("tampered"), "acme.core")
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, "Acme.Core", "1.0.0")
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	s, _ := openTemp(t)
	require.NoError(t, s.Migrate(context.Background()))
	require.NoError(t, s.Migrate(context.Background()))
}
