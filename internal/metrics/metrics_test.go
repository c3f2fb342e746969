package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/service"
)

type stubFetcher struct{ err error }

func (s stubFetcher) FetchAll(ctx context.Context, fields content.FieldSet) ([]service.Location, error) {
	return []service.Location{{Slug: "a"}}, s.err
}

func (s stubFetcher) FetchOne(ctx context.Context, slug string) (service.Location, error) {
	if slug == "missing" {
		return service.Location{}, content.ErrNotFound
	}
	return service.Location{Slug: slug}, s.err
}

func TestFetcherRecordsResults(t *testing.T) {
	c := New(nil)
	f := c.Fetcher(stubFetcher{})

	_, err := f.FetchAll(context.Background(), content.FieldsFull)
	require.NoError(t, err)
	_, err = f.FetchOne(context.Background(), "missing")
	assert.ErrorIs(t, err, content.ErrNotFound)

	failing := c.Fetcher(stubFetcher{err: &content.FetchError{Op: "get", Err: errors.New("boom")}})
	_, err = failing.FetchOne(context.Background(), "x")
	assert.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ContentFetchesTotal.WithLabelValues("list", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ContentFetchesTotal.WithLabelValues("get", "not_found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ContentFetchesTotal.WithLabelValues("get", "error")))
}

func TestToggleAndSessions(t *testing.T) {
	live := 3
	c := New(func() int { return live })
	c.RecordToggle(true)
	c.RecordToggle(true)
	c.RecordToggle(false)
	c.RecordMarkers(42)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.FavoriteTogglesTotal.WithLabelValues("added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.FavoriteTogglesTotal.WithLabelValues("removed")))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "filmloc_active_sessions 3")
	assert.Contains(t, string(body), "filmloc_markers_rendered_count 1")
}

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordFetch("list", nil, 0)
		c.RecordMarkers(1)
		c.RecordToggle(true)
	})
}
