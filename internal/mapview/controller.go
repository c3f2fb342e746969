package mapview

import (
	"errors"
	"regexp"
	"sort"
	"sync"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/joeblew999/plat-filmloc/internal/service"
)

// State is the controller lifecycle state.
type State int

const (
	Uninitialized State = iota
	Ready
	Transitioning
	Closed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Transitioning:
		return "transitioning"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Map defaults.
const (
	StyleURL         = "https://basemaps.cartocdn.com/gl/positron-gl-style/style.json"
	ContainerID      = "map"
	ControlNav       = "navigation"
	PositionTopRight = "top-right"
)

// DefaultMapOptions is the initial camera and style of a new map.
func DefaultMapOptions() MapOptions {
	return MapOptions{
		Container: ContainerID,
		Style:     StyleURL,
		Center:    orb.Point{0, 20},
		Zoom:      2,
	}
}

// FlyToCamera is the camera a marker click flies to.
func FlyToCamera(at orb.Point) Camera {
	return Camera{Center: at, Zoom: 15, Pitch: 45, Bearing: 20, Speed: 1.2, Curve: 1.4}
}

// Theme colors applied once the base style has loaded.
const (
	BackgroundColor = "#061016"
	WaterColor      = "rgba(38, 70, 83, 0.7)"
	LanduseColor    = "#576f7c"
	LabelColor      = "#334e5e"
	LabelHaloColor  = "rgba(0, 0, 0, 0.3)"
	LabelHaloWidth  = 0.5
	BorderColor     = "#334e5e"
)

var borderLayer = regexp.MustCompile(`(?i)boundary|border|line`)

// Controller drives one map widget. All methods are safe for concurrent use.
type Controller struct {
	mu          sync.Mutex
	w           Widget
	log         zerolog.Logger
	fullReplace bool
	state       State
	mounted     bool
	arena       Arena
}

// NewController creates a controller over w. fullReplace selects the
// marker reconciliation mode.
func NewController(w Widget, fullReplace bool, log zerolog.Logger) *Controller {
	return &Controller{
		w:           w,
		log:         log.With().Str("component", "mapview").Logger(),
		fullReplace: fullReplace,
		arena:       Arena{},
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Mount records that the map container exists in the page.
func (c *Controller) Mount() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mounted = true
}

// Sync reconciles the map with the filtered list. The map is created on the
// first call that sees a mounted container and a non-empty list; before
// that Sync does nothing.
func (c *Controller) Sync(filtered []service.Location) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Closed:
		return nil
	case Uninitialized:
		if !c.mounted || len(filtered) == 0 {
			return nil
		}
		if err := c.w.CreateMap(DefaultMapOptions()); err != nil {
			return err
		}
		c.w.AddControl(ControlNav, PositionTopRight)
		c.state = Ready
		c.log.Debug().Msg("map created")
	}

	plan := Diff(c.arena, filtered, c.fullReplace)
	if plan.Empty() {
		return nil
	}
	err := Apply(c.w, c.arena, plan)
	c.log.Debug().
		Int("removed", len(plan.Remove)).
		Int("added", len(plan.Add)).
		Int("live", len(c.arena)).
		Msg("markers reconciled")
	return err
}

// OnStyleLoaded applies the theme to the widget's current style layers.
// Failures on individual layers are logged and skipped.
func (c *Controller) OnStyleLoaded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Uninitialized || c.state == Closed {
		return
	}

	c.paint("background", "background-color", BackgroundColor)
	c.paint("water", "fill-color", WaterColor)
	c.paint("landuse", "fill-color", LanduseColor)

	for _, l := range c.w.StyleLayers() {
		if l.Type == "symbol" && l.TextField {
			c.paint(l.ID, "text-color", LabelColor)
			c.paint(l.ID, "text-halo-width", LabelHaloWidth)
			c.paint(l.ID, "text-halo-color", LabelHaloColor)
		}
		if l.Type == "line" && borderLayer.MatchString(l.ID) {
			c.paint(l.ID, "line-color", BorderColor)
		}
	}
}

func (c *Controller) paint(layer, property string, value any) {
	if err := c.w.SetPaintProperty(layer, property, value); err != nil {
		ev := c.log.Debug()
		if !errors.Is(err, ErrLayerMissing) {
			ev = c.log.Warn()
		}
		ev.Err(err).Str("layer", layer).Str("property", property).Msg("restyle skipped")
	}
}

// MarkerClicked flies to the marker bound to slug and navigates to its
// detail page. It reports false when no live marker has that slug.
func (c *Controller) MarkerClicked(slug string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.arena[slug]
	if !ok || c.state == Uninitialized || c.state == Closed {
		return false
	}
	c.w.FlyTo(FlyToCamera(b.Location.Point()))
	c.w.Navigate(service.LocationPath(slug))
	c.state = Transitioning
	return true
}

// MoveEnded marks the end of a camera animation.
func (c *Controller) MoveEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Transitioning {
		c.state = Ready
	}
}

// Close removes every marker and stops the controller. Later calls to
// Sync are ignored.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Closed {
		return
	}
	for slug, b := range c.arena {
		c.w.RemoveMarker(b.Handle)
		delete(c.arena, slug)
	}
	c.state = Closed
}

// Bindings returns a snapshot of the live markers sorted by slug.
func (c *Controller) Bindings() []MarkerBinding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]MarkerBinding, 0, len(c.arena))
	for _, b := range c.arena {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location.Slug < out[j].Location.Slug })
	return out
}

// MarkerCount returns the number of live markers.
func (c *Controller) MarkerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.arena)
}
