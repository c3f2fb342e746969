package server

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/joeblew999/plat-filmloc/internal/api/ui"
	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/session"
)

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "no session", http.StatusBadRequest)
		return
	}
	s.render(w, r, http.StatusOK, ui.TmplMapPage, ui.NewMapPage(sess))
}

func (s *Server) handleLocation(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	loc, err := s.fetcher.FetchOne(r.Context(), slug)
	switch {
	case errors.Is(err, content.ErrNotFound):
		s.render(w, r, http.StatusNotFound, ui.TmplNotFoundPage, ui.NotFoundPage{Slug: slug})
		return
	case err != nil:
		hlog.FromRequest(r).Warn().Err(err).Str("slug", slug).Msg("location fetch failed")
		s.render(w, r, http.StatusBadGateway, ui.TmplErrorPage, ui.ErrorPage{Error: err.Error()})
		return
	}

	page := ui.LocationPage{Location: loc}
	if sess, ok := session.FromContext(r.Context()); ok {
		page.Favorited = sess.Favorites.IsFavorited(loc.Slug)
		page.Toast = ui.ToastView(sess)
	}
	s.render(w, r, http.StatusOK, ui.TmplLocationPage, page)
}

// render buffers the page so a template error produces a clean 500.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.renderer.RenderToBuffer(&buf, name, data); err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
