package ui

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/kv"
	"github.com/joeblew999/plat-filmloc/internal/mapview"
	"github.com/joeblew999/plat-filmloc/internal/service"
	"github.com/joeblew999/plat-filmloc/internal/session"
	"github.com/joeblew999/plat-filmloc/internal/templates"
	"github.com/joeblew999/plat-filmloc/web"
)

type fakeFetcher struct {
	locs []service.Location
	err  error
}

func (f *fakeFetcher) FetchAll(ctx context.Context, fields content.FieldSet) ([]service.Location, error) {
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
	{Slug: "central-perk", Title: "Central Perk", Longitude: -73.99, Latitude: 40.73, Genre: "comedy"},
	{Slug: "hogwarts", Title: "Alnwick Castle", Longitude: -1.70, Latitude: 55.41, Genre: "fantasy, drama"},
}

type testEnv struct {
	handler  http.Handler
	sessions *session.Manager
	session  *session.Session
	fetcher  *fakeFetcher
}

func newEnv(t *testing.T, f *fakeFetcher) *testEnv {
	t.Helper()
	renderer, err := templates.New(web.Templates())
	require.NoError(t, err)

	bus := service.NewEventBus()
	sessions := session.NewManager(kv.NewMemoryStore(), bus, session.Options{FullReplace: true, NotifyWindow: time.Second}, zerolog.Nop())
	t.Cleanup(sessions.Close)

	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("test", "1.0.0"))
	New(renderer, f, bus, nil, zerolog.Nop()).RegisterRoutes(api)

	s, _ := sessions.Ensure(uuid.NewString())
	return &testEnv{
		handler:  sessions.Middleware(false)(mux),
		sessions: sessions,
		session:  s,
		fetcher:  f,
	}
}

func (e *testEnv) do(ctx context.Context, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body)).WithContext(ctx)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: e.session.ID})
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

// stream runs a long-lived SSE request for d and returns what it wrote.
func (e *testEnv) stream(t *testing.T, target string, d time.Duration) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	rec := e.do(ctx, http.MethodGet, target, "")
	return rec.Body.String()
}

func TestMapStream_MountsAndStreamsCommands(t *testing.T) {
	env := newEnv(t, &fakeFetcher{locs: sample})

	body := env.stream(t, "/api/v1/ui/map/stream", 100*time.Millisecond)

	assert.Contains(t, body, "Carregando mapa...")
	assert.Contains(t, body, CommandEvent)
	assert.Equal(t, 1, strings.Count(body, string(mapview.OpCreateMap)))
	assert.Equal(t, 2, strings.Count(body, string(mapview.OpAddMarker)))

	ctrl, _ := env.session.Map()
	assert.Equal(t, mapview.Ready, ctrl.State())
	assert.Equal(t, 2, ctrl.MarkerCount())
}

func TestMapStream_FetchFailure(t *testing.T) {
	env := newEnv(t, &fakeFetcher{err: errors.New("boom")})

	body := env.stream(t, "/api/v1/ui/map/stream", 100*time.Millisecond)

	assert.Contains(t, body, "Erro ao carregar locais: boom")
	assert.Contains(t, body, `"error":"boom"`)
	assert.NotContains(t, body, string(mapview.OpCreateMap))
	state, msg := env.session.LoadState()
	assert.Equal(t, session.Failed, state)
	assert.Equal(t, "boom", msg)
}

func TestFilter(t *testing.T) {
	env := newEnv(t, &fakeFetcher{locs: sample})
	require.NoError(t, env.session.Mount(context.Background(), env.fetcher))

	rec := env.do(context.Background(), http.MethodPost, "/api/v1/ui/map/filter", `{"genre":"DRAMA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `class="genre active"`)
	assert.Contains(t, rec.Body.String(), `<nav id="genre-filter"`)
	assert.NotContains(t, rec.Body.String(), `"error"`)
	assert.Equal(t, "drama", env.session.Genre())

	ctrl, _ := env.session.Map()
	require.Len(t, ctrl.Bindings(), 1)
	assert.Equal(t, "hogwarts", ctrl.Bindings()[0].Location.Slug)

	rec = env.do(context.Background(), http.MethodPost, "/api/v1/ui/map/filter", `{"genre":"unknown"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.AllGenres, env.session.Genre())
	assert.Equal(t, 2, ctrl.MarkerCount())
}

func TestStyle_AppliesTheme(t *testing.T) {
	env := newEnv(t, &fakeFetcher{locs: sample})
	require.NoError(t, env.session.Mount(context.Background(), env.fetcher))

	rec := env.do(context.Background(), http.MethodPost, "/api/v1/ui/map/style",
		`{"layers":[{"id":"background","type":"background"},{"id":"place_city","type":"symbol","textField":true}]}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, buf := env.session.Map()
	v, ok := buf.PaintProperty("background", "background-color")
	require.True(t, ok)
	assert.Equal(t, mapview.BackgroundColor, v)
	v, ok = buf.PaintProperty("place_city", "text-color")
	require.True(t, ok)
	assert.Equal(t, mapview.LabelColor, v)
}

func TestStyle_RequiresLayersSignal(t *testing.T) {
	env := newEnv(t, &fakeFetcher{locs: sample})

	rec := env.do(context.Background(), http.MethodPost, "/api/v1/ui/map/style", `{"genre":"all"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(context.Background(), http.MethodPost, "/api/v1/ui/map/style", `{"layers":"water"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkerClickAndMoveEnd(t *testing.T) {
	env := newEnv(t, &fakeFetcher{locs: sample})
	require.NoError(t, env.session.Mount(context.Background(), env.fetcher))
	ctrl, buf := env.session.Map()
	buf.Drain()

	rec := env.do(context.Background(), http.MethodPost, "/api/v1/ui/map/markers/central-perk/click", `{}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, mapview.Transitioning, ctrl.State())

	cmds := buf.Drain()
	require.Len(t, cmds, 2)
	assert.Equal(t, mapview.OpFlyTo, cmds[0].Op)
	assert.Equal(t, mapview.OpNavigate, cmds[1].Op)
	assert.Equal(t, "/locations/central-perk", cmds[1].URL)

	rec = env.do(context.Background(), http.MethodPost, "/api/v1/ui/map/moveend", `{}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, mapview.Ready, ctrl.State())

	rec = env.do(context.Background(), http.MethodPost, "/api/v1/ui/map/markers/nowhere/click", `{}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggleFavorite(t *testing.T) {
	env := newEnv(t, &fakeFetcher{locs: sample})

	rec := env.do(context.Background(), http.MethodPost, "/api/v1/ui/favorites/central-perk/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Remover dos favoritos")
	assert.Contains(t, rec.Body.String(), service.MsgFavoriteAdded)
	assert.True(t, env.session.Favorites.IsFavorited("central-perk"))

	rec = env.do(context.Background(), http.MethodPost, "/api/v1/ui/favorites/central-perk/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Adicionar aos favoritos")
	assert.Contains(t, rec.Body.String(), service.MsgFavoriteRemoved)
	assert.False(t, env.session.Favorites.IsFavorited("central-perk"))
}

func TestEvents_ForwardsNotices(t *testing.T) {
	env := newEnv(t, &fakeFetcher{locs: sample})

	go func() {
		time.Sleep(30 * time.Millisecond)
		env.session.ToggleFavorite("hogwarts")
	}()
	body := env.stream(t, "/api/v1/ui/events?slug=hogwarts", 150*time.Millisecond)

	assert.Contains(t, body, service.MsgFavoriteAdded)
}

func TestNoSessionWithoutMiddleware(t *testing.T) {
	renderer, err := templates.New(web.Templates())
	require.NoError(t, err)
	mux := http.NewServeMux()
	api := humago.New(mux, huma.DefaultConfig("test", "1.0.0"))
	New(renderer, &fakeFetcher{}, service.NewEventBus(), nil, zerolog.Nop()).RegisterRoutes(api)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/ui/map/moveend", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
