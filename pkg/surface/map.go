package surface

import (
	"math"
	"slices"

	"github.com/vanderheijden86/routelens/pkg/debug"
	"github.com/vanderheijden86/routelens/pkg/geo"
)

// HitTolerance is the extra pixel slack around shapes when hit testing.
const HitTolerance = 4.0

// markerHalfSize is half the pixel size of a start/end marker icon.
const markerHalfSize = 20.0

// View is the visible window onto the map. Width and Height are in pixels.
type View struct {
	Center    geo.Point  `json:"center" yaml:"center"`
	Zoom      float64    `json:"zoom" yaml:"zoom"`
	MinZoom   float64    `json:"min_zoom" yaml:"min_zoom"`
	MaxZoom   float64    `json:"max_zoom" yaml:"max_zoom"`
	MaxBounds geo.Bounds `json:"-" yaml:"-"`
	Width     float64    `json:"width" yaml:"-"`
	Height    float64    `json:"height" yaml:"-"`
}

// Map is the in-memory Surface. It is not safe for concurrent use; the UI
// drives it from a single goroutine.
type Map struct {
	view   View
	layers []Layer

	listeners    []listener
	nextListener ListenerID

	popup      *Popup
	popupOwner LayerID

	hovered      LayerID
	hoveredLeave func()
	dispatching  LayerID
}

type listener struct {
	id ListenerID
	h  ClickHandler
}

var _ Surface = (*Map)(nil)

// NewMap returns a map showing v.
func NewMap(v View) *Map {
	if v.MaxZoom == 0 {
		v.MaxZoom = 19
	}
	m := &Map{}
	m.view = v
	m.SetView(v.Center, v.Zoom)
	return m
}

// View returns the current view.
func (m *Map) View() View { return m.view }

// SetSize resizes the viewport in pixels.
func (m *Map) SetSize(width, height float64) {
	m.view.Width, m.view.Height = width, height
}

// SetView recenters and zooms, clamped to the zoom range and max bounds.
func (m *Map) SetView(center geo.Point, zoom float64) {
	zoom = math.Max(m.view.MinZoom, math.Min(m.view.MaxZoom, zoom))
	if zoom != m.view.Zoom {
		m.unspiderfy()
	}
	m.view.Zoom = zoom
	m.view.Center = m.view.MaxBounds.Clamp(center)
}

// ZoomBy changes the zoom around the current center.
func (m *Map) ZoomBy(delta float64) {
	m.SetView(m.view.Center, m.view.Zoom+delta)
}

// PanBy moves the center by a screen-pixel offset.
func (m *Map) PanBy(dx, dy float64) {
	cx, cy := geo.Project(m.view.Center, m.view.Zoom)
	m.SetView(geo.Unproject(cx+dx, cy+dy, m.view.Zoom), m.view.Zoom)
}

// ScreenPoint returns p in viewport pixels, origin top-left.
func (m *Map) ScreenPoint(p geo.Point) (x, y float64) {
	cx, cy := geo.Project(m.view.Center, m.view.Zoom)
	px, py := geo.Project(p, m.view.Zoom)
	return px - cx + m.view.Width/2, py - cy + m.view.Height/2
}

// LatLngAt returns the coordinate under a viewport pixel.
func (m *Map) LatLngAt(x, y float64) geo.Point {
	cx, cy := geo.Project(m.view.Center, m.view.Zoom)
	return geo.Unproject(cx+x-m.view.Width/2, cy+y-m.view.Height/2, m.view.Zoom)
}

// VisibleBounds returns the coordinate box covered by the viewport.
func (m *Map) VisibleBounds() geo.Bounds {
	return geo.NewBounds(m.LatLngAt(0, m.view.Height), m.LatLngAt(m.view.Width, 0))
}

func (m *Map) index(id LayerID) int {
	return slices.IndexFunc(m.layers, func(l Layer) bool { return l.ID() == id })
}

// AddLayer adds l on top of its pane. Adding a present layer is a no-op.
func (m *Map) AddLayer(l Layer) {
	if l == nil || m.index(l.ID()) >= 0 {
		return
	}
	m.layers = append(m.layers, l)
}

// RemoveLayer removes l. A popup opened by l closes with it.
func (m *Map) RemoveLayer(l Layer) {
	if l == nil {
		return
	}
	i := m.index(l.ID())
	if i < 0 {
		return
	}
	m.layers = slices.Delete(m.layers, i, i+1)
	if m.popup != nil && m.owns(l, m.popupOwner) {
		m.ClosePopup()
	}
	if m.owns(l, m.hovered) {
		m.hovered, m.hoveredLeave = 0, nil
	}
}

// owns reports whether id is l or one of its cluster members.
func (m *Map) owns(l Layer, id LayerID) bool {
	if id == 0 {
		return false
	}
	if l.ID() == id {
		return true
	}
	if g, ok := l.(*ClusterGroup); ok {
		for _, mem := range g.members {
			if mem.id == id {
				return true
			}
		}
	}
	return false
}

// HasLayer reports whether l is on the map.
func (m *Map) HasLayer(l Layer) bool {
	return l != nil && m.index(l.ID()) >= 0
}

// BringToFront moves l to the top of its pane.
func (m *Map) BringToFront(l Layer) {
	i := m.index(l.ID())
	if i < 0 || i == len(m.layers)-1 {
		return
	}
	m.layers = append(slices.Delete(m.layers, i, i+1), l)
}

func pane(k Kind) int {
	switch k {
	case KindCluster:
		return 1
	case KindMarker:
		return 2
	default:
		return 0
	}
}

// Layers returns the layers in draw order: vectors, then clusters, then
// markers, each in insertion order adjusted by BringToFront.
func (m *Map) Layers() []Layer {
	out := slices.Clone(m.layers)
	slices.SortStableFunc(out, func(a, b Layer) int { return pane(a.Kind()) - pane(b.Kind()) })
	return out
}

// OnClick attaches a click listener.
func (m *Map) OnClick(h ClickHandler) ListenerID {
	m.nextListener++
	m.listeners = append(m.listeners, listener{id: m.nextListener, h: h})
	return m.nextListener
}

// OffClick detaches a listener. Unknown ids are ignored.
func (m *Map) OffClick(id ListenerID) {
	m.listeners = slices.DeleteFunc(m.listeners, func(l listener) bool { return l.id == id })
}

// ListenerCount returns the number of attached click listeners.
func (m *Map) ListenerCount() int { return len(m.listeners) }

// OpenPopup shows content at a position, replacing any open popup. When called
// from a layer handler the popup belongs to that layer.
func (m *Map) OpenPopup(at geo.Point, content string) {
	m.popup = &Popup{Anchor: at, Content: content}
	m.popupOwner = m.dispatching
}

// ClosePopup hides the open popup, if any.
func (m *Map) ClosePopup() {
	m.popup = nil
	m.popupOwner = 0
}

// Popup returns the open popup.
func (m *Map) Popup() (Popup, bool) {
	if m.popup == nil {
		return Popup{}, false
	}
	return *m.popup, true
}

// Distance implements Surface.
func (m *Map) Distance(a, b geo.Point) float64 {
	return geo.Distance(a, b)
}

// FitBounds picks the largest whole zoom at which b fits inside the viewport
// minus padding, capped by opts.MaxZoom, and centers on b.
func (m *Map) FitBounds(b geo.Bounds, opts FitOptions) {
	if b.Empty() {
		return
	}
	maxZoom := m.view.MaxZoom
	if opts.MaxZoom > 0 {
		maxZoom = math.Min(maxZoom, opts.MaxZoom)
	}
	w := m.view.Width - 2*opts.Padding
	h := m.view.Height - 2*opts.Padding

	x0, y0 := geo.Project(b.SouthWest, 0)
	x1, y1 := geo.Project(b.NorthEast, 0)
	dx, dy := math.Abs(x1-x0), math.Abs(y1-y0)

	zoom := maxZoom
	if (dx > 0 || dy > 0) && w > 0 && h > 0 {
		scale := math.Inf(1)
		if dx > 0 {
			scale = w / dx
		}
		if dy > 0 {
			scale = math.Min(scale, h/dy)
		}
		zoom = math.Min(maxZoom, math.Floor(math.Log2(scale)))
	}
	zoom = math.Max(m.view.MinZoom, zoom)
	center := geo.Unproject((x0+x1)/2, (y0+y1)/2, 0)
	debug.Log("surface: fit %+v -> zoom %.0f", b, zoom)
	m.SetView(center, zoom)
}

// target is what a screen position hits.
type target struct {
	id       LayerID
	handlers Handlers
	cluster  *Cluster
	group    *ClusterGroup
}

// HitTest returns the top-most layer under a viewport pixel, or nil.
func (m *Map) HitTest(x, y float64) Layer {
	l, _ := m.hit(x, y)
	return l
}

func (m *Map) hit(x, y float64) (Layer, target) {
	layers := m.Layers()
	for i := len(layers) - 1; i >= 0; i-- {
		switch l := layers[i].(type) {
		case *Marker:
			mx, my := m.ScreenPoint(l.position)
			if math.Abs(x-mx) <= markerHalfSize && math.Abs(y-my) <= markerHalfSize {
				return l, target{id: l.id, handlers: l.Handlers}
			}
		case *ClusterGroup:
			for _, c := range l.Clusters(m.view.Zoom) {
				cx, cy := m.ScreenPoint(c.Center)
				if c.Single() {
					mem := c.Members[0]
					if math.Hypot(x-cx, y-cy) <= mem.style.Radius+HitTolerance {
						return l, target{id: mem.id, handlers: mem.Handlers}
					}
					continue
				}
				if math.Hypot(x-cx, y-cy) <= float64(c.IconSize)/2+HitTolerance {
					cl := c
					return l, target{id: l.id, cluster: &cl, group: l}
				}
			}
		case *CircleMarker:
			cx, cy := m.ScreenPoint(l.center)
			if math.Hypot(x-cx, y-cy) <= l.style.Radius+HitTolerance {
				return l, target{id: l.id, handlers: l.Handlers}
			}
		case *Polyline:
			if m.nearLine(l, x, y) {
				return l, target{id: l.id, handlers: l.Handlers}
			}
		}
	}
	return nil, target{}
}

func (m *Map) nearLine(l *Polyline, x, y float64) bool {
	tol := l.style.Weight/2 + HitTolerance
	if len(l.points) == 1 {
		px, py := m.ScreenPoint(l.points[0])
		return math.Hypot(x-px, y-py) <= tol
	}
	for i := 1; i < len(l.points); i++ {
		ax, ay := m.ScreenPoint(l.points[i-1])
		bx, by := m.ScreenPoint(l.points[i])
		if segmentDistance(x, y, ax, ay, bx, by) <= tol {
			return true
		}
	}
	return false
}

func segmentDistance(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	if dx == 0 && dy == 0 {
		return math.Hypot(px-ax, py-ay)
	}
	t := ((px-ax)*dx + (py-ay)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(px-(ax+t*dx), py-(ay+t*dy))
}

// Click dispatches a click at a viewport pixel. An interactive layer with an
// activate handler consumes it; a multi-member cluster zooms to its bounds, or
// spreads its members when the zoom cannot go further; otherwise the click
// goes to every attached listener.
func (m *Map) Click(x, y float64) {
	at := m.LatLngAt(x, y)
	_, t := m.hit(x, y)
	switch {
	case t.cluster != nil:
		zoom := m.view.Zoom
		if zoom < m.view.MaxZoom {
			m.FitBounds(t.cluster.Bounds, FitOptions{Padding: 20})
		}
		if m.view.Zoom <= zoom && t.group.opts.SpiderfyOnMaxZoom {
			t.group.spiderfy(*t.cluster, m.view.Zoom)
		}
		return
	case t.handlers.OnActivate != nil:
		m.dispatch(t.id, func() { t.handlers.OnActivate(at) })
		return
	}
	for _, l := range slices.Clone(m.listeners) {
		l.h(at)
	}
}

// Hover moves the pointer to a viewport pixel, firing leave and enter
// handlers as the layer under it changes.
func (m *Map) Hover(x, y float64) {
	at := m.LatLngAt(x, y)
	_, t := m.hit(x, y)
	if t.id == m.hovered {
		return
	}
	m.Leave()
	if t.id == 0 || t.cluster != nil {
		return
	}
	m.hovered = t.id
	m.hoveredLeave = t.handlers.OnLeave
	if t.handlers.OnEnter != nil {
		m.dispatch(t.id, func() { t.handlers.OnEnter(at) })
	}
}

// Leave ends any hover.
func (m *Map) Leave() {
	id, leave := m.hovered, m.hoveredLeave
	m.hovered, m.hoveredLeave = 0, nil
	if id != 0 && leave != nil {
		m.dispatch(id, leave)
	}
}

// Hovered returns the id of the hovered layer or cluster member, zero if none.
func (m *Map) Hovered() LayerID { return m.hovered }

func (m *Map) dispatch(id LayerID, fn func()) {
	prev := m.dispatching
	m.dispatching = id
	defer func() { m.dispatching = prev }()
	fn()
}

func (m *Map) unspiderfy() {
	for _, l := range m.layers {
		if g, ok := l.(*ClusterGroup); ok {
			g.Unspiderfy()
		}
	}
}

// Reset removes every layer, listener and popup. The view is kept.
func (m *Map) Reset() {
	m.layers = nil
	m.listeners = nil
	m.ClosePopup()
	m.hovered, m.hoveredLeave = 0, nil
}
