package ui

import (
	"github.com/joeblew999/plat-filmloc/internal/service"
	"github.com/joeblew999/plat-filmloc/internal/session"
)

// Template names shared by pages and fragment patches.
const (
	TmplMapPage        = "map-page"
	TmplLocationPage   = "location-page"
	TmplNotFoundPage   = "not-found-page"
	TmplErrorPage      = "error-page"
	TmplGenreFilter    = "genre-filter"
	TmplMapStatus      = "map-status"
	TmplToast          = "toast"
	TmplFavoriteButton = "favorite-button"
)

// GenreFilter is the data for the genre filter bar.
type GenreFilter struct {
	Genres   []service.Genre
	Selected string
}

// MapStatus is the data for the loading / error line above the map.
type MapStatus struct {
	State string
	Error string
}

// Toast is the data for the notification area.
type Toast struct {
	Message string
	Visible bool
}

// FavoriteButton is the data for a location's favorite toggle.
type FavoriteButton struct {
	Slug      string
	Favorited bool
}

// MapPage is the data for GET /.
type MapPage struct {
	GenreFilter
	Status MapStatus
	Toast  Toast
}

// LocationPage is the data for GET /locations/{slug}.
type LocationPage struct {
	Location  service.Location
	Favorited bool
	Toast     Toast
}

// NotFoundPage is the data for the not-found page.
type NotFoundPage struct{ Slug string }

// ErrorPage is the data for the fetch failure page.
type ErrorPage struct{ Error string }

// FilterView builds the filter bar for s.
func FilterView(s *session.Session) GenreFilter {
	return GenreFilter{Genres: service.GenreOptions(), Selected: s.Genre()}
}

// StatusView reports the session's load state.
func StatusView(s *session.Session) MapStatus {
	state, msg := s.LoadState()
	return MapStatus{State: state.String(), Error: msg}
}

// ToastView reports the session's current notification.
func ToastView(s *session.Session) Toast {
	msg, ok := s.Notifier.Current()
	return Toast{Message: msg, Visible: ok}
}

// NewMapPage assembles the map page for s. The status always starts as
// loading because the page's stream mounts a fresh map.
func NewMapPage(s *session.Session) MapPage {
	return MapPage{
		GenreFilter: FilterView(s),
		Status:      MapStatus{State: session.Loading.String()},
		Toast:       ToastView(s),
	}
}
