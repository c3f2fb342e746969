package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// InfoHandler reports the running configuration.
type InfoHandler struct {
	storage     string
	listFields  string
	fullReplace bool
}

func NewInfoHandler(storage, listFields string, fullReplace bool) *InfoHandler {
	return &InfoHandler{storage: storage, listFields: listFields, fullReplace: fullReplace}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name        string   `json:"name" doc:"Service name"`
	Version     string   `json:"version" doc:"Service version"`
	Storage     string   `json:"storage" doc:"Favorites storage backend" example:"file"`
	ListFields  string   `json:"list_fields" doc:"Field set requested by the map list query" example:"full"`
	FullReplace bool     `json:"full_replace" doc:"Whether a filter change rebuilds every marker"`
	Features    []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:        "plat-filmloc",
		Version:     Version,
		Storage:     h.storage,
		ListFields:  h.listFields,
		FullReplace: h.fullReplace,
		Features:    []string{"map", "genres", "favorites", "bbox", "geojson"},
	}}, nil
}
