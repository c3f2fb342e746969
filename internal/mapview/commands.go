package mapview

import (
	"errors"
	"sync"

	"github.com/paulmach/orb"
)

// ErrNoMap is returned by marker operations before CreateMap.
var ErrNoMap = errors.New("map not created")

// Op names a browser-side map operation.
type Op string

const (
	OpCreateMap    Op = "createMap"
	OpAddControl   Op = "addControl"
	OpAddMarker    Op = "addMarker"
	OpRemoveMarker Op = "removeMarker"
	OpFlyTo        Op = "flyTo"
	OpNavigate     Op = "navigate"
	OpSetPaint     Op = "setPaint"
)

// Command is one recorded widget call, serialised as the detail of a
// map-command event.
type Command struct {
	Op       Op           `json:"op"`
	Map      *MapOptions  `json:"map,omitempty"`
	Control  string       `json:"control,omitempty"`
	Position string       `json:"position,omitempty"`
	Marker   MarkerHandle `json:"marker,omitempty"`
	ID       string       `json:"id,omitempty"`
	LngLat   *orb.Point   `json:"lngLat,omitempty"`
	Camera   *Camera      `json:"camera,omitempty"`
	URL      string       `json:"url,omitempty"`
	Layer    string       `json:"layer,omitempty"`
	Property string       `json:"property,omitempty"`
	Value    any          `json:"value,omitempty"`
}

type paintKey struct{ layer, property string }

// CommandBuffer is a Widget that records calls for a remote map. The
// browser reports its style layers through LoadStyle.
type CommandBuffer struct {
	mu      sync.Mutex
	cmds    []Command
	created bool
	next    MarkerHandle
	layers  []StyleLayer
	known   map[string]bool
	paint   map[paintKey]any
	wake    chan struct{}
}

// NewCommandBuffer returns an empty buffer.
func NewCommandBuffer() *CommandBuffer {
	return &CommandBuffer{
		known: map[string]bool{},
		paint: map[paintKey]any{},
		wake:  make(chan struct{}, 1),
	}
}

func (b *CommandBuffer) push(c Command) {
	b.cmds = append(b.cmds, c)
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Wake is signalled whenever a command is recorded.
func (b *CommandBuffer) Wake() <-chan struct{} { return b.wake }

// Drain returns and clears the pending commands.
func (b *CommandBuffer) Drain() []Command {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.cmds
	b.cmds = nil
	return out
}

// LoadStyle replaces the known style layers.
func (b *CommandBuffer) LoadStyle(layers []StyleLayer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.layers = append([]StyleLayer(nil), layers...)
	b.known = make(map[string]bool, len(layers))
	for _, l := range layers {
		b.known[l.ID] = true
	}
}

// Reset forgets the map so the next CreateMap is accepted again. Used when
// the browser reloads the page and loses its map instance.
func (b *CommandBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cmds = nil
	b.created = false
	b.layers = nil
	b.known = map[string]bool{}
	b.paint = map[paintKey]any{}
}

func (b *CommandBuffer) CreateMap(opts MapOptions) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.created {
		return errors.New("map already created")
	}
	b.created = true
	b.push(Command{Op: OpCreateMap, Map: &opts})
	return nil
}

func (b *CommandBuffer) AddControl(control, position string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.push(Command{Op: OpAddControl, Control: control, Position: position})
}

func (b *CommandBuffer) AddMarker(id string, at orb.Point) (MarkerHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.created {
		return 0, ErrNoMap
	}
	b.next++
	b.push(Command{Op: OpAddMarker, Marker: b.next, ID: id, LngLat: &at})
	return b.next, nil
}

func (b *CommandBuffer) RemoveMarker(h MarkerHandle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.push(Command{Op: OpRemoveMarker, Marker: h})
}

func (b *CommandBuffer) FlyTo(cam Camera) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.push(Command{Op: OpFlyTo, Camera: &cam})
}

func (b *CommandBuffer) Navigate(url string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.push(Command{Op: OpNavigate, URL: url})
}

func (b *CommandBuffer) StyleLayers() []StyleLayer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]StyleLayer(nil), b.layers...)
}

func (b *CommandBuffer) PaintProperty(layer, property string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.paint[paintKey{layer, property}]
	return v, ok
}

func (b *CommandBuffer) SetPaintProperty(layer, property string, value any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.known[layer] {
		return ErrLayerMissing
	}
	b.paint[paintKey{layer, property}] = value
	b.push(Command{Op: OpSetPaint, Layer: layer, Property: property, Value: value})
	return nil
}
