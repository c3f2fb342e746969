// Package api defines the Huma REST routes and handlers.
package api

import (
	"context"
	"errors"
	"net/url"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-filmloc/internal/content"
	"github.com/joeblew999/plat-filmloc/internal/geoindex"
	"github.com/joeblew999/plat-filmloc/internal/humastar"
	"github.com/joeblew999/plat-filmloc/internal/metrics"
	"github.com/joeblew999/plat-filmloc/internal/service"
	"github.com/joeblew999/plat-filmloc/internal/session"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the dependencies of the API handlers.
type Services struct {
	Content content.Fetcher
	Metrics *metrics.Collector
	Log     zerolog.Logger
}

// Types

type SlugInput struct {
	Slug string `path:"slug" doc:"Location slug" example:"central-perk"`
}

type LocationsInput struct {
	Genre  string `query:"genre" default:"all" doc:"Genre tag, or all" example:"drama"`
	BBox   string `query:"bbox" doc:"Bounding box minLon,minLat,maxLon,maxLat" example:"-10,35,5,45"`
	Offset int    `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit  int    `query:"limit" minimum:"1" maximum:"1000" default:"100" doc:"Page size"`
}

type LocationsOutput struct {
	Body humastar.PageBody[service.Location]
}

// LocationBody is a location plus the caller's favorite state.
type LocationBody struct {
	service.Location
	Favorited bool `json:"favorited" doc:"Whether the location is in the caller's favorites"`
}

var locationActions = []humastar.ActionDef{
	{Rel: "alternate", Pattern: "/locations/%s", Method: "GET", Title: "Detalhes do local"},
}

// Actions implements humastar.Actor.
func (b LocationBody) Actions() []humastar.Action {
	title := "Adicionar aos favoritos"
	if b.Favorited {
		title = "Remover dos favoritos"
	}
	defs := append([]humastar.ActionDef{
		{Rel: "favorite", Pattern: "/api/v1/favorites/%s", Method: "PUT", Title: title},
	}, locationActions...)
	return humastar.ActionsFor(b.Slug, defs)
}

type LocationOutput struct {
	Body LocationBody
}

type GeoJSONInput struct {
	Genre string `query:"genre" default:"all" doc:"Genre tag, or all"`
}

type GeoJSONOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

type FavoritesBody struct {
	Slugs []string `json:"slugs" doc:"Favorited slugs in insertion order"`
}

type PutFavoriteInput struct {
	SlugInput
	Body struct {
		Favorited bool `json:"favorited" doc:"Desired favorite state"`
	}
}

type FavoriteBody struct {
	Slug      string `json:"slug"`
	Favorited bool   `json:"favorited"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
}

// APIHandler holds all REST API handlers. Methods named Register* are
// auto-discovered by huma.AutoRegister.
type APIHandler struct {
	svc *Services
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST operation on api.
func RegisterRoutes(api huma.API, svc *Services) {
	huma.AutoRegister(api, NewAPIHandler(svc))
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Get(api, "/health", h.GetHealth, huma.OperationTags("health"))
}

// RegisterLocations registers location read routes.
func (h *APIHandler) RegisterLocations(api huma.API) {
	huma.Get(api, "/api/v1/locations", h.GetLocations, huma.OperationTags("locations"))
	huma.Get(api, "/api/v1/locations/{slug}", h.GetLocation, huma.OperationTags("locations"))
	huma.Get(api, "/api/v1/locations.geojson", h.GetGeoJSON, huma.OperationTags("locations"))
}

// RegisterGenres registers the genre list route.
func (h *APIHandler) RegisterGenres(api huma.API) {
	huma.Get(api, "/api/v1/genres", h.GetGenres, huma.OperationTags("genres"))
}

// RegisterFavorites registers the session favorites routes.
func (h *APIHandler) RegisterFavorites(api huma.API) {
	huma.Get(api, "/api/v1/favorites", h.GetFavorites, huma.OperationTags("favorites"))
	huma.Put(api, "/api/v1/favorites/{slug}", h.PutFavorite, huma.OperationTags("favorites"))
}

// contentError maps content failures onto HTTP errors.
func contentError(err error) error {
	var fe *content.FetchError
	switch {
	case errors.Is(err, content.ErrNotFound):
		return huma.Error404NotFound("location not found")
	case errors.As(err, &fe):
		return huma.Error502BadGateway(fe.Error())
	default:
		return huma.Error500InternalServerError(err.Error())
	}
}

func currentSession(ctx context.Context) (*session.Session, error) {
	s, ok := session.FromContext(ctx)
	if !ok {
		return nil, huma.Error400BadRequest("no session")
	}
	return s, nil
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version}}, nil
}

func (h *APIHandler) GetLocations(ctx context.Context, input *LocationsInput) (*LocationsOutput, error) {
	locs, err := h.svc.Content.FetchAll(ctx, content.FieldsFull)
	if err != nil {
		return nil, contentError(err)
	}
	genre := service.ParseGenre(input.Genre)
	locs = service.FilterByGenre(locs, genre)

	q := url.Values{}
	if genre != service.AllGenres {
		q.Set("genre", genre)
	}
	if input.BBox != "" {
		b, err := geoindex.ParseBBox(input.BBox)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity(err.Error())
		}
		locs = geoindex.New(locs).SearchBox(b)
		q.Set("bbox", input.BBox)
	}

	page := humastar.Paginate(locs, input.Offset, input.Limit)
	page.Query = q
	return &LocationsOutput{Body: page}, nil
}

func (h *APIHandler) GetLocation(ctx context.Context, input *SlugInput) (*LocationOutput, error) {
	loc, err := h.svc.Content.FetchOne(ctx, input.Slug)
	if err != nil {
		return nil, contentError(err)
	}
	body := LocationBody{Location: loc}
	if s, ok := session.FromContext(ctx); ok {
		body.Favorited = s.Favorites.IsFavorited(loc.Slug)
	}
	return &LocationOutput{Body: body}, nil
}

func (h *APIHandler) GetGeoJSON(ctx context.Context, input *GeoJSONInput) (*GeoJSONOutput, error) {
	locs, err := h.svc.Content.FetchAll(ctx, content.FieldsFull)
	if err != nil {
		return nil, contentError(err)
	}
	raw, err := service.FeatureCollection(service.FilterByGenre(locs, service.ParseGenre(input.Genre))).MarshalJSON()
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to encode GeoJSON", err)
	}
	return &GeoJSONOutput{ContentType: "application/geo+json", Body: raw}, nil
}

func (h *APIHandler) GetGenres(ctx context.Context, input *struct{}) (*struct{ Body []service.Genre }, error) {
	return &struct{ Body []service.Genre }{Body: service.GenreOptions()}, nil
}

func (h *APIHandler) GetFavorites(ctx context.Context, input *struct{}) (*struct{ Body FavoritesBody }, error) {
	s, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	slugs := s.Favorites.List()
	if slugs == nil {
		slugs = []string{}
	}
	return &struct{ Body FavoritesBody }{Body: FavoritesBody{Slugs: slugs}}, nil
}

// PutFavorite sets the favorite state of a slug. A change toggles the
// favorite and shows the notification; an unchanged state is a no-op.
func (h *APIHandler) PutFavorite(ctx context.Context, input *PutFavoriteInput) (*struct{ Body FavoriteBody }, error) {
	s, err := currentSession(ctx)
	if err != nil {
		return nil, err
	}
	var on, changed bool
	s.Do(func() {
		on = s.Favorites.IsFavorited(input.Slug)
		if on != input.Body.Favorited {
			on = s.ToggleFavorite(input.Slug)
			changed = true
		}
	})
	if changed {
		h.svc.Metrics.RecordToggle(on)
		h.svc.Log.Debug().Str("session", s.ID).Str("slug", input.Slug).Bool("favorited", on).Msg("favorite set")
	}
	return &struct{ Body FavoriteBody }{Body: FavoriteBody{Slug: input.Slug, Favorited: on}}, nil
}
