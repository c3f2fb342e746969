// Package ui contains the Datastar SSE handlers behind the map and detail
// pages. The map stream is the only reader of a session's command buffer;
// the other handlers mutate the session and let the stream flush.
package ui

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/humastar"
	"github.com/joeblew999/plat-filmloc/internal/mapview"
	"github.com/joeblew999/plat-filmloc/internal/metrics"
	"github.com/joeblew999/plat-filmloc/internal/service"
	"github.com/joeblew999/plat-filmloc/internal/session"
)

// Tag marks UI operations; hypermedia link generation skips it.
const Tag = "ui"

// CommandEvent is the browser event carrying one map command.
const CommandEvent = "map-command"

// Handler serves the UI endpoints.
type Handler struct {
	humastar.Handler
	fetcher content.Fetcher
	bus     *service.EventBus
	metrics *metrics.Collector
	log     zerolog.Logger
}

// New creates a UI handler. m may be nil.
func New(renderer *humastar.Renderer, fetcher content.Fetcher, bus *service.EventBus, m *metrics.Collector, log zerolog.Logger) *Handler {
	return &Handler{
		Handler: humastar.Handler{Renderer: renderer},
		fetcher: fetcher,
		bus:     bus,
		metrics: m,
		log:     log,
	}
}

func (h *Handler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/ui/map/stream", h.MapStream,
		huma.OperationTags(Tag),
	)
	huma.Post(api, "/api/v1/ui/map/filter", h.Filter,
		huma.OperationTags(Tag),
	)
	huma.Post(api, "/api/v1/ui/map/style", h.Style,
		huma.OperationTags(Tag),
	)
	huma.Post(api, "/api/v1/ui/map/markers/{slug}/click", h.MarkerClick,
		huma.OperationTags(Tag),
	)
	huma.Post(api, "/api/v1/ui/map/moveend", h.MoveEnd,
		huma.OperationTags(Tag),
	)
	huma.Post(api, "/api/v1/ui/favorites/{slug}/toggle", h.ToggleFavorite,
		huma.OperationTags(Tag),
	)
	huma.Get(api, "/api/v1/ui/events", h.Events,
		huma.OperationTags(Tag),
	)
}

func current(ctx context.Context) (*session.Session, error) {
	s, ok := session.FromContext(ctx)
	if !ok {
		return nil, huma.Error400BadRequest("no session")
	}
	return s, nil
}

// SlugInput carries a location slug path parameter.
type SlugInput struct {
	Slug string `path:"slug" doc:"Location slug"`
}

// EventsInput selects the location whose favorite button the page shows.
type EventsInput struct {
	Slug string `query:"slug" doc:"Location slug shown by the page"`
}

// MapStream mounts a fresh map for the session, reports the load state and
// then forwards every recorded map command as a map-command event until
// the client disconnects or a newer stream takes over the map.
func (h *Handler) MapStream(ctx context.Context, input *humastar.EmptyInput) (*huma.StreamResponse, error) {
	s, err := current(ctx)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		defer s.Attach()()
		rctx := sse.Request.Context()
		sse.Patch(h.Fragment(TmplMapStatus, MapStatus{State: session.Loading.String()}), "#map-status")

		// Failures are reported through the load state.
		_ = s.Mount(rctx, h.fetcher)
		status := StatusView(s)
		sse.Patch(h.Fragment(TmplMapStatus, status), "#map-status")
		if status.Error != "" {
			sse.Error(status.Error)
		}

		ctrl, buf := s.Map()
		h.metrics.RecordMarkers(ctrl.MarkerCount())
		for {
			for _, cmd := range buf.Drain() {
				if err := sse.Dispatch(CommandEvent, cmd); err != nil {
					return
				}
			}
			select {
			case <-rctx.Done():
				return
			case <-buf.Wake():
			}
			if latest, _ := s.Map(); latest != ctrl {
				h.log.Debug().Str("session", s.ID).Msg("map stream superseded")
				return
			}
		}
	}), nil
}

// Filter applies the genre signal and re-renders the filter bar.
func (h *Handler) Filter(ctx context.Context, input *humastar.SignalsInput) (*huma.StreamResponse, error) {
	s, err := current(ctx)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	var syncErr error
	s.Do(func() {
		syncErr = s.SetGenre(signals.String("genre"))
	})
	if syncErr != nil {
		h.log.Warn().Err(syncErr).Str("session", s.ID).Msg("marker sync failed")
	}
	ctrl, _ := s.Map()
	h.metrics.RecordMarkers(ctrl.MarkerCount())

	return h.Stream(func(sse humastar.SSE) {
		view := FilterView(s)
		sse.Replace(h.Fragment(TmplGenreFilter, view), "#genre-filter")
		sse.Signals(map[string]any{"genre": view.Selected})
		if syncErr != nil {
			sse.Error(syncErr.Error())
		}
	}), nil
}

// Style records the style layers reported in the layers signal and
// applies the theme.
func (h *Handler) Style(ctx context.Context, input *humastar.SignalsInput) (*struct{}, error) {
	s, err := current(ctx)
	if err != nil {
		return nil, err
	}
	signals, err := input.MustParse()
	if err != nil {
		return nil, err
	}
	if !signals.Has("layers") {
		return nil, huma.Error400BadRequest("missing layers signal")
	}
	var layers []mapview.StyleLayer
	if err := signals.Decode("layers", &layers); err != nil {
		return nil, huma.Error400BadRequest("invalid layers signal: " + err.Error())
	}
	s.Do(func() {
		ctrl, buf := s.Map()
		buf.LoadStyle(layers)
		ctrl.OnStyleLoaded()
	})
	return &struct{}{}, nil
}

// MarkerClick flies to the clicked location and navigates to its page.
func (h *Handler) MarkerClick(ctx context.Context, input *SlugInput) (*struct{}, error) {
	s, err := current(ctx)
	if err != nil {
		return nil, err
	}
	var ok bool
	s.Do(func() {
		ctrl, _ := s.Map()
		ok = ctrl.MarkerClicked(input.Slug)
	})
	if !ok {
		return nil, huma.Error404NotFound("no marker for " + input.Slug)
	}
	return &struct{}{}, nil
}

// MoveEnd reports that the camera settled.
func (h *Handler) MoveEnd(ctx context.Context, input *humastar.EmptyInput) (*struct{}, error) {
	s, err := current(ctx)
	if err != nil {
		return nil, err
	}
	s.Do(func() {
		ctrl, _ := s.Map()
		ctrl.MoveEnded()
	})
	return &struct{}{}, nil
}

// ToggleFavorite flips the favorite, re-renders the button and shows the
// toast.
func (h *Handler) ToggleFavorite(ctx context.Context, input *SlugInput) (*huma.StreamResponse, error) {
	s, err := current(ctx)
	if err != nil {
		return nil, err
	}
	var on bool
	s.Do(func() {
		on = s.ToggleFavorite(input.Slug)
	})
	h.metrics.RecordToggle(on)
	if h.bus != nil {
		h.bus.Publish(service.Event{Session: s.ID, Kind: service.EventFavorite, Slug: input.Slug, Visible: on})
	}

	return h.Stream(func(sse humastar.SSE) {
		sse.Patch(h.Fragment(TmplFavoriteButton, FavoriteButton{Slug: input.Slug, Favorited: on}), "#favorite-button")
		sse.Patch(h.Fragment(TmplToast, ToastView(s)), "#toast")
	}), nil
}

// Events streams the session's notifications, and favorite changes for the
// page's location, until the client disconnects.
func (h *Handler) Events(ctx context.Context, input *EventsInput) (*huma.StreamResponse, error) {
	s, err := current(ctx)
	if err != nil {
		return nil, err
	}
	return h.Stream(func(sse humastar.SSE) {
		defer s.Attach()()
		rctx := sse.Request.Context()
		ch := h.bus.Subscribe(s.ID)
		defer h.bus.Unsubscribe(ch)

		for {
			select {
			case <-rctx.Done():
				return
			case ev := <-ch:
				switch ev.Kind {
				case service.EventNotice:
					sse.Patch(h.Fragment(TmplToast, Toast{Message: ev.Message, Visible: ev.Visible}), "#toast")
				case service.EventFavorite:
					if input.Slug != "" && ev.Slug == input.Slug {
						sse.Patch(h.Fragment(TmplFavoriteButton, FavoriteButton{Slug: ev.Slug, Favorited: ev.Visible}), "#favorite-button")
					}
				}
			}
		}
	}), nil
}
