package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/kv"
	"github.com/joeblew999/plat-filmloc/internal/mapview"
	"github.com/joeblew999/plat-filmloc/internal/service"
)

type fakeFetcher struct {
	locs  []service.Location
	err   error
	calls int
}

func (f *fakeFetcher) FetchAll(ctx context.Context, fields content.FieldSet) ([]service.Location, error) {
	f.calls++
	return f.locs, f.err
}

func (f *fakeFetcher) FetchOne(ctx context.Context, slug string) (service.Location, error) {
	for _, l := range f.locs {
		if l.Slug == slug {
			return l, nil
		}
	}
	return service.Location{}, content.ErrNotFound
}

var sample = []service.Location{
	{Slug: "a", Longitude: 1, Latitude: 1, Genre: "drama"},
	{Slug: "b", Longitude: 2, Latitude: 2, Genre: "comedy"},
	{Slug: "c", Longitude: 3, Latitude: 3, Genre: "Drama, Action"},
}

func newManager(t *testing.T, store kv.Store, bus *service.EventBus) *Manager {
	t.Helper()
	m := NewManager(store, bus, Options{FullReplace: true, NotifyWindow: 50 * time.Millisecond}, zerolog.Nop())
	t.Cleanup(m.Close)
	return m
}

func TestEnsure(t *testing.T) {
	m := newManager(t, kv.NewMemoryStore(), nil)

	s, created := m.Ensure("")
	assert.True(t, created)
	_, err := uuid.Parse(s.ID)
	assert.NoError(t, err)

	again, created := m.Ensure(s.ID)
	assert.False(t, created)
	assert.Same(t, s, again)

	_, created = m.Ensure("not-a-uuid")
	assert.True(t, created)
	assert.Equal(t, 2, m.Len())

	known := uuid.NewString()
	s2, created := m.Ensure(known)
	assert.False(t, created, "well-formed ids from a previous run are reused")
	assert.Equal(t, known, s2.ID)

	got, ok := m.Get(known)
	assert.True(t, ok)
	assert.Same(t, s2, got)
}

func TestMount_LoadsAndSyncs(t *testing.T) {
	m := newManager(t, kv.NewMemoryStore(), nil)
	s, _ := m.Ensure("")
	f := &fakeFetcher{locs: sample}

	require.NoError(t, s.Mount(context.Background(), f))
	state, msg := s.LoadState()
	assert.Equal(t, Loaded, state)
	assert.Empty(t, msg)
	assert.Equal(t, 1, f.calls)

	ctrl, _ := s.Map()
	assert.Equal(t, mapview.Ready, ctrl.State())
	assert.Equal(t, 3, ctrl.MarkerCount())

	require.NoError(t, s.SetGenre("DRAMA"))
	assert.Equal(t, "drama", s.Genre())
	assert.Equal(t, 2, ctrl.MarkerCount())
	assert.Len(t, s.Filtered(), 2)

	require.NoError(t, s.SetGenre("unknown"))
	assert.Equal(t, service.AllGenres, s.Genre())
	assert.Equal(t, 3, ctrl.MarkerCount())
}

func TestMount_FailureLeavesEmptyMap(t *testing.T) {
	m := newManager(t, kv.NewMemoryStore(), nil)
	s, _ := m.Ensure("")
	f := &fakeFetcher{err: &content.FetchError{Op: "list", Err: errors.New("unexpected status 500")}}

	err := s.Mount(context.Background(), f)
	require.Error(t, err)

	state, msg := s.LoadState()
	assert.Equal(t, Failed, state)
	assert.Contains(t, msg, "unexpected status 500")

	ctrl, buf := s.Map()
	assert.Zero(t, ctrl.MarkerCount())
	assert.Equal(t, mapview.Uninitialized, ctrl.State(), "no map for an empty list")
	assert.Empty(t, buf.Drain())
}

func TestMount_RemountStartsFresh(t *testing.T) {
	m := newManager(t, kv.NewMemoryStore(), nil)
	s, _ := m.Ensure("")
	f := &fakeFetcher{locs: sample}

	require.NoError(t, s.Mount(context.Background(), f))
	first, _ := s.Map()

	require.NoError(t, s.Mount(context.Background(), f))
	second, buf := s.Map()
	assert.NotSame(t, first, second)
	assert.Equal(t, mapview.Closed, first.State())
	assert.Equal(t, 2, f.calls, "each mount fetches once")

	cmds := buf.Drain()
	require.NotEmpty(t, cmds)
	assert.Equal(t, mapview.OpCreateMap, cmds[0].Op)
}

func TestToggleFavorite_NotifiesThroughBus(t *testing.T) {
	bus := service.NewEventBus()
	m := newManager(t, kv.NewMemoryStore(), bus)
	s, _ := m.Ensure("")

	ch := bus.Subscribe(s.ID)
	defer bus.Unsubscribe(ch)

	assert.True(t, s.ToggleFavorite("a"))
	ev := <-ch
	assert.Equal(t, service.Event{Session: s.ID, Kind: "notice", Message: service.MsgFavoriteAdded, Visible: true}, ev)

	select {
	case ev = <-ch:
		assert.False(t, ev.Visible)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not dismissed")
	}

	assert.False(t, s.ToggleFavorite("a"))
	ev = <-ch
	assert.Equal(t, service.MsgFavoriteRemoved, ev.Message)
}

func TestFavoritesSurviveSweep(t *testing.T) {
	store := kv.NewMemoryStore()
	m := newManager(t, store, nil)
	s, _ := m.Ensure("")
	id := s.ID
	s.ToggleFavorite("b")

	assert.Equal(t, 0, m.Sweep(time.Hour))
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, m.Sweep(time.Millisecond))
	_, ok := m.Get(id)
	assert.False(t, ok)

	s2, _ := m.Ensure(id)
	assert.True(t, s2.Favorites.IsFavorited("b"))
}

func TestFavoritesAreScopedPerSession(t *testing.T) {
	m := newManager(t, kv.NewMemoryStore(), nil)
	a, _ := m.Ensure("")
	b, _ := m.Ensure("")
	a.ToggleFavorite("x")
	assert.True(t, a.Favorites.IsFavorited("x"))
	assert.False(t, b.Favorites.IsFavorited("x"))
}

func TestDo_Serialises(t *testing.T) {
	m := newManager(t, kv.NewMemoryStore(), nil)
	s, _ := m.Ensure("")

	done := make(chan int, 2)
	started := make(chan struct{})
	go s.Do(func() {
		close(started)
		time.Sleep(30 * time.Millisecond)
		done <- 1
	})
	<-started
	s.Do(func() { done <- 2 })

	assert.Equal(t, 1, <-done)
	assert.Equal(t, 2, <-done)
}

func TestSweep_KeepsAttachedSessions(t *testing.T) {
	m := newManager(t, kv.NewMemoryStore(), nil)
	s, _ := m.Ensure("")
	require.NoError(t, s.Mount(context.Background(), &fakeFetcher{locs: sample}))
	ctrl, buf := s.Map()
	buf.Drain()

	release := s.Attach()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 0, m.Sweep(time.Millisecond))
	_, ok := m.Get(s.ID)
	assert.True(t, ok)
	assert.Equal(t, mapview.Ready, ctrl.State())
	assert.Empty(t, buf.Drain(), "live map keeps its markers")

	release()
	release()
	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, m.Sweep(time.Millisecond))
	assert.Equal(t, mapview.Closed, ctrl.State())
}
