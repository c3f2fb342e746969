// Package content fetches film location records from the Hygraph GraphQL
// content API.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-filmloc/internal/service"
)

// MaxLocations bounds the list query.
const MaxLocations = 1000

// ErrNotFound is returned by FetchOne when no record has the slug.
// It is a normal outcome, not a FetchError.
var ErrNotFound = errors.New("location not found")

// FetchError is a network, HTTP or decode failure talking to the content API.
type FetchError struct {
	Op  string // "list" or "get"
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("content %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher is the read contract consumed by the map and detail views.
type Fetcher interface {
	FetchAll(ctx context.Context, fields FieldSet) ([]service.Location, error)
	FetchOne(ctx context.Context, slug string) (service.Location, error)
}

// FieldSet selects which location fields the list query requests.
type FieldSet string

const (
	// FieldsFull requests every field of the record.
	FieldsFull FieldSet = "full"
	// FieldsMarkers requests only what marker placement and filtering need.
	FieldsMarkers FieldSet = "markers"
)

// ParseFieldSet maps a config value onto a FieldSet, defaulting to full.
func ParseFieldSet(s string) FieldSet {
	if strings.EqualFold(s, string(FieldsMarkers)) {
		return FieldsMarkers
	}
	return FieldsFull
}

// selection returns the GraphQL selection set for the field set.
func (f FieldSet) selection() string {
	if f == FieldsMarkers {
		return "slug latitude longitude genre"
	}
	return "filmTitle title slug latitude longitude genre sceneUrl image { url } content"
}

// Config holds the content API connection settings.
type Config struct {
	Endpoint string        `mapstructure:"endpoint"`
	Token    string        `mapstructure:"token"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// Client talks to the GraphQL endpoint. It does not cache, retry or
// deduplicate calls.
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
	log        zerolog.Logger
}

// New creates a content API client.
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		endpoint:   cfg.Endpoint,
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        log.With().Str("component", "content").Logger(),
	}
}

// record is the wire shape of a location; image is nested.
type record struct {
	Slug      string  `json:"slug"`
	Title     string  `json:"title"`
	FilmTitle string  `json:"filmTitle"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Genre     string  `json:"genre"`
	SceneURL  string  `json:"sceneUrl"`
	Image     *struct {
		URL string `json:"url"`
	} `json:"image"`
	Content string `json:"content"`
}

func (r record) normalize() service.Location {
	loc := service.Location{
		Slug:      r.Slug,
		Title:     r.Title,
		FilmTitle: r.FilmTitle,
		Latitude:  r.Latitude,
		Longitude: r.Longitude,
		Genre:     r.Genre,
		SceneURL:  r.SceneURL,
		Content:   r.Content,
	}
	if r.Image != nil {
		loc.Image = r.Image.URL
	}
	return loc
}

type gqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type gqlError struct {
	Message string `json:"message"`
}

type gqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []gqlError      `json:"errors"`
}

// FetchAll returns up to MaxLocations locations using the given field set.
// Records failing validation are dropped.
func (c *Client) FetchAll(ctx context.Context, fields FieldSet) ([]service.Location, error) {
	query := fmt.Sprintf(`query FilmLocations($first: Int!) { filmLocations(first: $first) { %s } }`, fields.selection())

	var data struct {
		FilmLocations []record `json:"filmLocations"`
	}
	if err := c.do(ctx, "list", gqlRequest{Query: query, Variables: map[string]any{"first": MaxLocations}}, &data); err != nil {
		return nil, err
	}

	locations := make([]service.Location, 0, len(data.FilmLocations))
	for _, r := range data.FilmLocations {
		loc := r.normalize()
		if err := loc.Validate(); err != nil {
			c.log.Warn().Err(err).Msg("dropping invalid location")
			continue
		}
		locations = append(locations, loc)
	}
	c.log.Debug().Int("count", len(locations)).Str("fields", string(fields)).Msg("fetched locations")
	return locations, nil
}

// FetchOne returns the full record for slug, or ErrNotFound.
func (c *Client) FetchOne(ctx context.Context, slug string) (service.Location, error) {
	query := fmt.Sprintf(`query GetLocationBySlug($slug: String!) { filmLocation(where: { slug: $slug }) { %s } }`, FieldsFull.selection())

	var data struct {
		FilmLocation *record `json:"filmLocation"`
	}
	if err := c.do(ctx, "get", gqlRequest{Query: query, Variables: map[string]any{"slug": slug}}, &data); err != nil {
		return service.Location{}, err
	}
	if data.FilmLocation == nil {
		return service.Location{}, ErrNotFound
	}
	return data.FilmLocation.normalize(), nil
}

// do posts one GraphQL request and decodes its data into out.
func (c *Client) do(ctx context.Context, op string, req gqlRequest, out any) error {
	if c.endpoint == "" {
		return &FetchError{Op: op, Err: errors.New("content endpoint not configured")}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return &FetchError{Op: op, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &FetchError{Op: op, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var gr gqlResponse
	if err := json.Unmarshal(raw, &gr); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(gr.Errors) > 0 {
		msgs := make([]string, len(gr.Errors))
		for i, e := range gr.Errors {
			msgs[i] = e.Message
		}
		return &FetchError{Op: op, Err: errors.New(strings.Join(msgs, "; "))}
	}
	if len(gr.Data) == 0 || string(gr.Data) == "null" {
		return &FetchError{Op: op, Err: errors.New("response has no data")}
	}
	if err := json.Unmarshal(gr.Data, out); err != nil {
		return &FetchError{Op: op, Err: fmt.Errorf("failed to decode data: %w", err)}
	}
	return nil
}
