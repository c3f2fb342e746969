// Package service contains the domain types and business logic for the
// film location map: genre filtering, favorites and notifications.
package service

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/paulmach/orb"
)

// Location is one filming location record from the content API.
// The JSON tags double as the Huma schema for the REST API.
type Location struct {
	Slug      string  `json:"slug" required:"true" minLength:"1" doc:"Unique location identifier, also the routing key" example:"central-perk"`
	Title     string  `json:"title,omitempty" doc:"Display title" example:"Central Perk"`
	FilmTitle string  `json:"filmTitle,omitempty" doc:"Associated film or series" example:"Friends"`
	Latitude  float64 `json:"latitude" minimum:"-90" maximum:"90" doc:"WGS84 latitude in degrees" example:"40.7295"`
	Longitude float64 `json:"longitude" minimum:"-180" maximum:"180" doc:"WGS84 longitude in degrees" example:"-74.0028"`
	Genre     string  `json:"genre,omitempty" doc:"Comma-separated genre tags" example:"comedy, romance"`
	SceneURL  string  `json:"sceneUrl,omitempty" doc:"External reference to the scene"`
	Image     string  `json:"image,omitempty" doc:"Remote image URL"`
	Content   string  `json:"content,omitempty" doc:"Free-text description (Markdown)"`
}

// ErrInvalidLocation is returned by Validate for records that can not be shown.
var ErrInvalidLocation = errors.New("invalid location")

var slugPattern = regexp.MustCompile(`^[A-Za-z0-9._~-]+$`)

// Validate checks the slug is non-empty and URL-safe and the coordinates are
// within WGS84 bounds.
func (l Location) Validate() error {
	if l.Slug == "" {
		return fmt.Errorf("%w: empty slug", ErrInvalidLocation)
	}
	if !slugPattern.MatchString(l.Slug) {
		return fmt.Errorf("%w: slug %q is not URL-safe", ErrInvalidLocation, l.Slug)
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range for %q", ErrInvalidLocation, l.Latitude, l.Slug)
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range for %q", ErrInvalidLocation, l.Longitude, l.Slug)
	}
	return nil
}

// Point returns the location as an orb point (longitude, latitude).
func (l Location) Point() orb.Point {
	return orb.Point{l.Longitude, l.Latitude}
}

// Path returns the detail page route for the location.
func (l Location) Path() string {
	return LocationPath(l.Slug)
}

// LocationPath returns the detail page route for a slug.
func LocationPath(slug string) string {
	return "/locations/" + url.PathEscape(slug)
}

// ValidImageURL reports whether ref is a well-formed absolute http(s) URL.
// Anything else is treated as "no image".
func ValidImageURL(ref string) bool {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return false
	}
	u, err := url.Parse(ref)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
