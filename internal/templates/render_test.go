package templates

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joeblew999/plat-filmloc/web"
)

func TestEmbeddedTemplates(t *testing.T) {
	r, err := New(web.Templates())
	require.NoError(t, err)

	for _, name := range []string{
		"head", "footer", "toast", "events",
		"map-page", "genre-filter", "map-status",
		"location-page", "favorite-button",
		"not-found-page", "error-page",
	} {
		assert.True(t, r.Has(name), name)
	}
	assert.False(t, r.Has("missing"))
}

func TestFavoriteButton(t *testing.T) {
	r, err := New(web.Templates())
	require.NoError(t, err)

	out, err := r.Render("favorite-button", map[string]any{"Slug": "central-perk", "Favorited": true})
	require.NoError(t, err)
	assert.Contains(t, out, "Remover dos favoritos")
	assert.Contains(t, out, "/api/v1/ui/favorites/central-perk/toggle")

	out, err = r.Render("favorite-button", map[string]any{"Slug": "central-perk", "Favorited": false})
	require.NoError(t, err)
	assert.Contains(t, out, "Adicionar aos favoritos")
}

func TestMarkdown(t *testing.T) {
	out := string(Markdown("**bold**\n<script>alert(1)</script>"))
	assert.Contains(t, out, "<strong>bold</strong>")
	assert.NotContains(t, out, "<script>")
}

func TestFuncs(t *testing.T) {
	fsys := fstest.MapFS{
		"t.html": {Data: []byte(`{{define "t"}}{{with dict "a" 1 "b" "x"}}{{.a}}{{.b}}{{end}}|{{genreLabel "comedy, drama"}}|{{validImage "javascript:x"}}|{{path "a b"}}{{end}}`)},
	}
	r, err := New(fsys)
	require.NoError(t, err)

	out, err := r.Render("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "1x|Drama|false|/locations/a%20b", out)
}

func TestRender_Failure(t *testing.T) {
	fsys := fstest.MapFS{
		"t.html": {Data: []byte(`{{define "t"}}before{{.Missing.Field}}{{end}}`)},
	}
	r, err := New(fsys)
	require.NoError(t, err)

	out, err := r.Render("t", struct{ Missing *struct{ Field string } }{})
	assert.Error(t, err)
	assert.Empty(t, out)

	var buf bytes.Buffer
	assert.Error(t, r.RenderToBuffer(&buf, "missing", nil))
}

func TestReload_KeepsPreviousOnError(t *testing.T) {
	fsys := fstest.MapFS{"t.html": {Data: []byte(`{{define "t"}}one{{end}}`)}}
	r, err := New(fsys)
	require.NoError(t, err)

	fsys["t.html"] = &fstest.MapFile{Data: []byte(`{{define "t"}}broken{{`)}
	assert.Error(t, r.Reload())
	out, err := r.Render("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "one", out)

	fsys["t.html"] = &fstest.MapFile{Data: []byte(`{{define "t"}}two{{end}}`)}
	require.NoError(t, r.Reload())
	out, err = r.Render("t", nil)
	require.NoError(t, err)
	assert.Equal(t, "two", out)
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "t.html")
	require.NoError(t, os.WriteFile(file, []byte(`{{define "t"}}one{{end}}`), 0o644))

	r, err := New(os.DirFS(dir))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, r.Watch(ctx, dir, zerolog.Nop()))

	require.NoError(t, os.WriteFile(file, []byte(`{{define "t"}}two{{end}}`), 0o644))
	assert.Eventually(t, func() bool {
		out, err := r.Render("t", nil)
		return err == nil && out == "two"
	}, 5*time.Second, 20*time.Millisecond)
}
