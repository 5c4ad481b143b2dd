// Package surface is the rendering-surface boundary. The controller builds
// layers (polylines, markers, circle markers, cluster groups) and hands them to
// a Surface; Map is the in-memory implementation drawn by the terminal UI and
// the snapshot exporters.
package surface

import (
	"sync/atomic"

	"github.com/vanderheijden86/routelens/pkg/geo"
)

// LayerID identifies a layer for its lifetime.
type LayerID uint64

var nextLayerID atomic.Uint64

func newID() LayerID {
	return LayerID(nextLayerID.Add(1))
}

// Kind distinguishes layer types.
type Kind int

const (
	KindPolyline Kind = iota
	KindCircleMarker
	KindCluster
	KindMarker
)

func (k Kind) String() string {
	switch k {
	case KindPolyline:
		return "polyline"
	case KindCircleMarker:
		return "circle"
	case KindCluster:
		return "cluster"
	case KindMarker:
		return "marker"
	default:
		return "unknown"
	}
}

// Layer is anything a Surface can draw.
type Layer interface {
	ID() LayerID
	Kind() Kind
	Bounds() geo.Bounds
}

// PathStyle holds vector styling. Zero values mean "unset" for Color and
// DashArray; a solid line has an empty DashArray.
type PathStyle struct {
	Color       string  `json:"color"`
	Weight      float64 `json:"weight"`
	Opacity     float64 `json:"opacity"`
	DashArray   string  `json:"dash_array,omitempty"`
	LineCap     string  `json:"line_cap,omitempty"`
	LineJoin    string  `json:"line_join,omitempty"`
	FillColor   string  `json:"fill_color,omitempty"`
	FillOpacity float64 `json:"fill_opacity,omitempty"`
	Radius      float64 `json:"radius,omitempty"`
}

// Handlers are the pointer callbacks a layer may carry. Any may be nil.
type Handlers struct {
	OnEnter    func(at geo.Point)
	OnLeave    func()
	OnActivate func(at geo.Point)
}

// Interactive reports whether any handler is set.
func (h Handlers) Interactive() bool {
	return h.OnEnter != nil || h.OnLeave != nil || h.OnActivate != nil
}

// Polyline is an ordered line through Points.
type Polyline struct {
	Handlers
	id     LayerID
	points []geo.Point
	style  PathStyle
	popup  string
}

// NewPolyline builds a line. Points are copied.
func NewPolyline(points []geo.Point, style PathStyle) *Polyline {
	pts := make([]geo.Point, len(points))
	copy(pts, points)
	return &Polyline{id: newID(), points: pts, style: style}
}

func (p *Polyline) ID() LayerID          { return p.id }
func (p *Polyline) Kind() Kind           { return KindPolyline }
func (p *Polyline) Bounds() geo.Bounds   { return geo.BoundsOf(p.points) }
func (p *Polyline) Points() []geo.Point  { return p.points }
func (p *Polyline) Style() PathStyle     { return p.style }
func (p *Polyline) SetStyle(s PathStyle) { p.style = s }
func (p *Polyline) Popup() string        { return p.popup }

// BindPopup sets the callout content opened by the owner on hover or click.
func (p *Polyline) BindPopup(content string) *Polyline {
	p.popup = content
	return p
}

// MarkerRole distinguishes the start and destination markers.
type MarkerRole int

const (
	RoleStart MarkerRole = iota
	RoleEnd
)

// Marker is a pinned icon at a position.
type Marker struct {
	Handlers
	id       LayerID
	position geo.Point
	role     MarkerRole
	title    string
	icon     string
	color    string
	label    string
	popup    string
}

// MarkerOptions configures NewMarker.
type MarkerOptions struct {
	Role  MarkerRole
	Title string
	Icon  string
	Color string
	Label string
	Popup string
}

// NewMarker builds a marker at pos.
func NewMarker(pos geo.Point, opts MarkerOptions) *Marker {
	return &Marker{
		id:       newID(),
		position: pos,
		role:     opts.Role,
		title:    opts.Title,
		icon:     opts.Icon,
		color:    opts.Color,
		label:    opts.Label,
		popup:    opts.Popup,
	}
}

func (m *Marker) ID() LayerID         { return m.id }
func (m *Marker) Kind() Kind          { return KindMarker }
func (m *Marker) Bounds() geo.Bounds  { return geo.NewBounds(m.position, m.position) }
func (m *Marker) Position() geo.Point { return m.position }
func (m *Marker) Role() MarkerRole    { return m.role }
func (m *Marker) Title() string       { return m.title }
func (m *Marker) Icon() string        { return m.icon }
func (m *Marker) Color() string       { return m.color }
func (m *Marker) Label() string       { return m.label }
func (m *Marker) Popup() string       { return m.popup }

// CircleMarker is a fixed-pixel-radius circle at a position.
type CircleMarker struct {
	Handlers
	id     LayerID
	center geo.Point
	style  PathStyle
	popup  string
}

// NewCircleMarker builds a circle marker. style.Radius is in pixels.
func NewCircleMarker(center geo.Point, style PathStyle) *CircleMarker {
	return &CircleMarker{id: newID(), center: center, style: style}
}

func (c *CircleMarker) ID() LayerID          { return c.id }
func (c *CircleMarker) Kind() Kind           { return KindCircleMarker }
func (c *CircleMarker) Bounds() geo.Bounds   { return geo.NewBounds(c.center, c.center) }
func (c *CircleMarker) Center() geo.Point    { return c.center }
func (c *CircleMarker) Style() PathStyle     { return c.style }
func (c *CircleMarker) SetStyle(s PathStyle) { c.style = s }
func (c *CircleMarker) Popup() string        { return c.popup }

// BindPopup sets the callout content.
func (c *CircleMarker) BindPopup(content string) *CircleMarker {
	c.popup = content
	return c
}
