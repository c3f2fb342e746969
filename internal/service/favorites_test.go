package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-filmloc/internal/kv"
)

func newFavorites(t *testing.T, store kv.Store) *FavoritesStore {
	t.Helper()
	f := NewFavoritesStore(context.Background(), store, zerolog.Nop())
	t.Cleanup(func() { f.Close() })
	return f
}

func flush(t *testing.T, f *FavoritesStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.Flush(ctx))
}

func stored(t *testing.T, store kv.Store) []string {
	t.Helper()
	data, err := store.Get(context.Background(), FavoritesKey)
	require.NoError(t, err)
	var slugs []string
	require.NoError(t, json.Unmarshal(data, &slugs))
	return slugs
}

func TestFavorites_StartsEmpty(t *testing.T) {
	f := newFavorites(t, kv.NewMemoryStore())
	assert.Empty(t, f.List())
	assert.False(t, f.IsFavorited("loc-a"))
}

func TestFavorites_ToggleFromStorage(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), FavoritesKey, []byte(`["loc-a","loc-b"]`)))

	f := newFavorites(t, store)
	assert.True(t, f.IsFavorited("loc-a"))

	assert.False(t, f.Toggle("loc-a"))
	assert.False(t, f.IsFavorited("loc-a"))
	assert.Equal(t, []string{"loc-b"}, f.List())

	flush(t, f)
	assert.Equal(t, []string{"loc-b"}, stored(t, store))
}

func TestFavorites_ToggleTwiceRestores(t *testing.T) {
	f := newFavorites(t, kv.NewMemoryStore())
	f.Toggle("present")

	for _, slug := range []string{"absent", "present"} {
		before := f.IsFavorited(slug)
		f.Toggle(slug)
		assert.NotEqual(t, before, f.IsFavorited(slug))
		f.Toggle(slug)
		assert.Equal(t, before, f.IsFavorited(slug), slug)
	}
}

func TestFavorites_RoundTrip(t *testing.T) {
	store := kv.NewMemoryStore()
	f := newFavorites(t, store)
	for _, s := range []string{"c", "a", "b", "d"} {
		f.Toggle(s)
	}
	f.Toggle("d")
	flush(t, f)
	want := f.List()

	again := newFavorites(t, store)
	got := again.List()
	sort.Strings(want)
	sort.Strings(got)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestFavorites_CorruptStorageIsEmpty(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), FavoritesKey, []byte(`{not json`)))

	f := newFavorites(t, store)
	assert.Empty(t, f.List())

	f.Toggle("loc-a")
	flush(t, f)
	assert.Equal(t, []string{"loc-a"}, stored(t, store))
}

type brokenStore struct{ kv.MemoryStore }

func (*brokenStore) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("storage disabled")
}

func (*brokenStore) Put(ctx context.Context, key string, value []byte) error {
	return errors.New("storage disabled")
}

func TestFavorites_UnavailableStorage(t *testing.T) {
	f := newFavorites(t, &brokenStore{})
	assert.Empty(t, f.List())
	assert.True(t, f.Toggle("loc-a"))
	assert.True(t, f.IsFavorited("loc-a"))
	flush(t, f)
}

func TestFavorites_DuplicatesInStorageCollapse(t *testing.T) {
	store := kv.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), FavoritesKey, []byte(`["a","a","","b"]`)))
	f := newFavorites(t, store)
	assert.Equal(t, []string{"a", "b"}, f.List())
}

func TestFavorites_ManyTogglesPersistLastState(t *testing.T) {
	store := kv.NewMemoryStore()
	f := newFavorites(t, store)
	for i := 0; i < 101; i++ {
		f.Toggle("flip")
	}
	flush(t, f)
	assert.Equal(t, []string{"flip"}, stored(t, store))
}
