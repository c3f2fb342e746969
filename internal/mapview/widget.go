// Package mapview owns the map widget lifecycle for one browser session:
// creation, theming, marker reconciliation and fly-to navigation.
package mapview

import (
	"errors"

	"github.com/paulmach/orb"
)

// ErrLayerMissing is returned when restyling a layer absent from the style.
var ErrLayerMissing = errors.New("style layer missing")

// MapOptions configures CreateMap.
type MapOptions struct {
	Container          string    `json:"container"`
	Style              string    `json:"style"`
	Center             orb.Point `json:"center"`
	Zoom               float64   `json:"zoom"`
	Pitch              float64   `json:"pitch"`
	Bearing            float64   `json:"bearing"`
	AttributionControl bool      `json:"attributionControl"`
}

// Camera is a fly-to target.
type Camera struct {
	Center  orb.Point `json:"center"`
	Zoom    float64   `json:"zoom"`
	Pitch   float64   `json:"pitch"`
	Bearing float64   `json:"bearing"`
	Speed   float64   `json:"speed"`
	Curve   float64   `json:"curve"`
}

// StyleLayer describes one layer of the loaded base style.
type StyleLayer struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	TextField bool   `json:"textField,omitempty"`
}

// MarkerHandle identifies a rendered marker.
type MarkerHandle int

// Widget is the map rendering capability the controller drives.
type Widget interface {
	CreateMap(opts MapOptions) error
	AddControl(control, position string)
	AddMarker(id string, at orb.Point) (MarkerHandle, error)
	RemoveMarker(h MarkerHandle)
	FlyTo(cam Camera)
	Navigate(url string)
	StyleLayers() []StyleLayer
	PaintProperty(layer, property string) (any, bool)
	SetPaintProperty(layer, property string, value any) error
}
