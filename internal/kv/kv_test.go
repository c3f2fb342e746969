package kv

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "favorites", []byte(`["loc-a"]`)))
	v, err := s.Get(ctx, "favorites")
	require.NoError(t, err)
	assert.Equal(t, `["loc-a"]`, string(v))

	// Overwrite in full
	require.NoError(t, s.Put(ctx, "favorites", []byte(`["loc-a","loc-b"]`)))
	v, err = s.Get(ctx, "favorites")
	require.NoError(t, err)
	assert.Equal(t, `["loc-a","loc-b"]`, string(v))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	exerciseStore(t, s)
	require.NoError(t, s.Close())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	exerciseStore(t, s)

	// Values survive reopening
	reopened, err := NewFileStore(dir)
	require.NoError(t, err)
	v, err := reopened.Get(context.Background(), "favorites")
	require.NoError(t, err)
	assert.Equal(t, `["loc-a","loc-b"]`, string(v))
}

func TestFileStore_KeysStayInsideDirectory(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Put(context.Background(), "../../escape", []byte("x")))

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestDuckDBStore(t *testing.T) {
	if testing.Short() {
		t.Skip("duckdb requires cgo")
	}
	s, err := NewDuckDBStore(t.TempDir())
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("FILMLOC_TEST_REDIS")
	if addr == "" {
		t.Skip("FILMLOC_TEST_REDIS not set")
	}
	s, err := NewRedisStore(RedisConfig{Addr: addr, KeyPrefix: "filmloc-test:"})
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestScope(t *testing.T) {
	ctx := context.Background()
	base := NewMemoryStore()
	a := Scope(base, "session:a")
	b := Scope(base, "session:b")

	require.NoError(t, a.Put(ctx, "favorites", []byte("A")))
	_, err := b.Get(ctx, "favorites")
	assert.ErrorIs(t, err, ErrNotFound)

	raw, err := base.Get(ctx, "session:a:favorites")
	require.NoError(t, err)
	assert.Equal(t, "A", string(raw))
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = Open(Config{Backend: "etcd"})
	assert.Error(t, err)
}
