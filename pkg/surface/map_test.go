package surface

import (
	"math"
	"testing"

	"github.com/vanderheijden86/routelens/pkg/geo"
)

func testMap() *Map {
	m := NewMap(View{
		Center:    geo.Pt(30.3165, 78.0322),
		Zoom:      13,
		MinZoom:   13,
		MaxZoom:   19,
		MaxBounds: geo.NewBounds(geo.Pt(30.26, 77.95), geo.Pt(30.38, 78.10)),
	})
	m.SetSize(800, 600)
	return m
}

func TestMap_LayerLifecycle(t *testing.T) {
	m := testMap()
	line := NewPolyline([]geo.Point{geo.Pt(30.31, 78.02), geo.Pt(30.32, 78.03)}, PathStyle{Weight: 5})
	marker := NewMarker(geo.Pt(30.31, 78.02), MarkerOptions{Role: RoleStart})

	m.AddLayer(marker)
	m.AddLayer(line)
	m.AddLayer(line)
	if got := len(m.Layers()); got != 2 {
		t.Fatalf("expected 2 layers, got %d", got)
	}
	if m.Layers()[0] != Layer(line) {
		t.Error("vectors should draw below markers")
	}
	if !m.HasLayer(line) {
		t.Error("line should be present")
	}
	m.RemoveLayer(line)
	m.RemoveLayer(line)
	if m.HasLayer(line) || len(m.Layers()) != 1 {
		t.Error("line should be gone")
	}
}

func TestMap_BringToFront(t *testing.T) {
	m := testMap()
	a := NewPolyline([]geo.Point{geo.Pt(30.31, 78.02)}, PathStyle{})
	b := NewPolyline([]geo.Point{geo.Pt(30.31, 78.02)}, PathStyle{})
	m.AddLayer(a)
	m.AddLayer(b)
	m.BringToFront(a)
	if layers := m.Layers(); layers[1] != Layer(a) {
		t.Error("a should be drawn last")
	}
}

func TestMap_ClickRouting(t *testing.T) {
	m := testMap()
	var clicks []geo.Point
	id := m.OnClick(func(at geo.Point) { clicks = append(clicks, at) })

	m.Click(100, 100)
	if len(clicks) != 1 {
		t.Fatalf("expected listener to fire, got %d", len(clicks))
	}
	want := m.LatLngAt(100, 100)
	if clicks[0] != want {
		t.Errorf("click at %v, want %v", clicks[0], want)
	}

	activated := 0
	line := NewPolyline([]geo.Point{m.LatLngAt(0, 300), m.LatLngAt(800, 300)}, PathStyle{Weight: 6})
	line.OnActivate = func(geo.Point) { activated++ }
	m.AddLayer(line)
	m.Click(400, 302)
	if activated != 1 || len(clicks) != 1 {
		t.Errorf("layer should consume click: activated=%d clicks=%d", activated, len(clicks))
	}

	m.OffClick(id)
	m.Click(100, 100)
	if len(clicks) != 1 || m.ListenerCount() != 0 {
		t.Error("detached listener should not fire")
	}
}

func TestMap_HoverAndPopupOwnership(t *testing.T) {
	m := testMap()
	line := NewPolyline([]geo.Point{m.LatLngAt(0, 300), m.LatLngAt(800, 300)}, PathStyle{Weight: 6})
	var entered, left int
	line.OnEnter = func(at geo.Point) {
		entered++
		m.OpenPopup(at, "route")
	}
	line.OnLeave = func() {
		left++
		m.ClosePopup()
	}
	m.AddLayer(line)

	m.Hover(400, 300)
	m.Hover(410, 300)
	if entered != 1 || m.Hovered() != line.ID() {
		t.Fatalf("expected one enter, got %d", entered)
	}
	if p, ok := m.Popup(); !ok || p.Content != "route" {
		t.Fatal("popup should be open")
	}
	m.Hover(400, 50)
	if left != 1 {
		t.Errorf("expected one leave, got %d", left)
	}
	if _, ok := m.Popup(); ok {
		t.Error("popup should be closed on leave")
	}

	m.Hover(400, 300)
	m.RemoveLayer(line)
	if _, ok := m.Popup(); ok {
		t.Error("removing the owner should close its popup")
	}
	if m.Hovered() != 0 {
		t.Error("removing the hovered layer should clear hover")
	}
}

func TestMap_FitBounds(t *testing.T) {
	m := testMap()
	b := geo.NewBounds(geo.Pt(30.30, 78.00), geo.Pt(30.34, 78.05))
	m.FitBounds(b, FitOptions{Padding: 30, MaxZoom: 16})
	v := m.View()
	if v.Zoom < 13 || v.Zoom > 16 {
		t.Fatalf("zoom %v out of range", v.Zoom)
	}
	for _, corner := range []geo.Point{b.SouthWest, b.NorthEast} {
		x, y := m.ScreenPoint(corner)
		if x < 30-1e-6 || x > 770+1e-6 || y < 30-1e-6 || y > 570+1e-6 {
			t.Errorf("corner %v at (%f, %f) outside padded viewport", corner, x, y)
		}
	}

	tiny := geo.NewBounds(geo.Pt(30.3100, 78.0200), geo.Pt(30.3101, 78.0201))
	m.FitBounds(tiny, FitOptions{Padding: 30, MaxZoom: 16})
	if m.View().Zoom != 16 {
		t.Errorf("expected max zoom cap 16, got %v", m.View().Zoom)
	}

	m.FitBounds(geo.Bounds{}, FitOptions{})
	if m.View().Zoom != 16 {
		t.Error("empty bounds should not move the view")
	}
}

func TestMap_ViewClamps(t *testing.T) {
	m := testMap()
	m.ZoomBy(-5)
	if m.View().Zoom != 13 {
		t.Errorf("zoom below min: %v", m.View().Zoom)
	}
	m.SetView(geo.Pt(40, 90), 25)
	v := m.View()
	if v.Zoom != 19 || v.Center != geo.Pt(30.38, 78.10) {
		t.Errorf("view not clamped: %+v", v)
	}
}

func TestClusterGroup_Clusters(t *testing.T) {
	g := NewClusterGroup(ClusterGroupOptions{
		DisableClusteringAtZoom: 19,
		IconSize:                func(n int) int { return n },
		IconColor:               func(int) string { return "#FF1744" },
	})
	for i := 0; i < 3; i++ {
		g.AddLayer(NewCircleMarker(geo.Pt(30.3100+float64(i)*0.00001, 78.02), PathStyle{Radius: 8}))
	}
	far := NewCircleMarker(geo.Pt(30.36, 78.08), PathStyle{Radius: 8})
	g.AddLayer(far)

	cl := g.Clusters(13)
	if len(cl) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(cl))
	}
	if len(cl[0].Members) != 3 || cl[0].IconSize != 3 || cl[0].Color != "#FF1744" {
		t.Errorf("unexpected first cluster %+v", cl[0])
	}
	if !cl[1].Single() || cl[1].Members[0] != far || cl[1].Color != "" {
		t.Errorf("far marker should be alone: %+v", cl[1])
	}

	if got := len(g.Clusters(19)); got != 4 {
		t.Errorf("clustering should be disabled at max zoom, got %d", got)
	}
}

func TestMap_ClusterMemberHoverAndRemoval(t *testing.T) {
	m := testMap()
	g := NewClusterGroup(ClusterGroupOptions{})
	c := NewCircleMarker(m.LatLngAt(400, 300), PathStyle{Radius: 8})
	entered := false
	c.OnEnter = func(geo.Point) { entered = true }
	c.OnActivate = func(at geo.Point) { m.OpenPopup(at, "critical") }
	g.AddLayer(c)
	m.AddLayer(g)

	m.Hover(401, 301)
	if !entered || m.Hovered() != c.ID() {
		t.Fatal("member should receive hover")
	}
	m.Click(400, 300)
	if _, ok := m.Popup(); !ok {
		t.Fatal("member click should open popup")
	}
	m.RemoveLayer(g)
	if _, ok := m.Popup(); ok || m.Hovered() != 0 {
		t.Error("removing the group should drop member popup and hover")
	}
}

// sameCellPair returns two points 20px apart inside one clustering cell at
// zoom 19.
func sameCellPair() (geo.Point, geo.Point) {
	px, py := geo.Project(geo.Pt(30.3165, 78.0322), 19)
	ox := math.Floor(px/DefaultClusterRadius) * DefaultClusterRadius
	oy := math.Floor(py/DefaultClusterRadius) * DefaultClusterRadius
	return geo.Unproject(ox+30, oy+40, 19), geo.Unproject(ox+50, oy+40, 19)
}

func TestMap_SpiderfyAtMaxZoom(t *testing.T) {
	for _, spiderfy := range []bool{false, true} {
		m := testMap()
		g := NewClusterGroup(ClusterGroupOptions{SpiderfyOnMaxZoom: spiderfy, IconSize: func(int) int { return 35 }})
		a, b := sameCellPair()
		opened := map[LayerID]bool{}
		for _, p := range []geo.Point{a, b} {
			c := NewCircleMarker(p, PathStyle{Radius: 8})
			c.OnActivate = func(geo.Point) { opened[c.ID()] = true }
			g.AddLayer(c)
		}
		m.AddLayer(g)
		m.SetView(a, 19)

		cl := g.Clusters(19)
		if len(cl) != 1 {
			t.Fatalf("expected one cluster at max zoom, got %d", len(cl))
		}
		m.Click(m.ScreenPoint(cl[0].Center))
		if g.Spiderfied() != spiderfy {
			t.Fatalf("spiderfy=%v: Spiderfied() = %v", spiderfy, g.Spiderfied())
		}
		if !spiderfy {
			continue
		}

		legs := g.Clusters(19)
		if len(legs) != 2 {
			t.Fatalf("expected 2 spread members, got %d", len(legs))
		}
		for _, leg := range legs {
			if !leg.Single() || !leg.Leg || leg.Origin != leg.Members[0].Center() {
				t.Errorf("unexpected leg %+v", leg)
			}
			m.Click(m.ScreenPoint(leg.Center))
		}
		if len(opened) != 2 {
			t.Errorf("expected both members activated, got %d", len(opened))
		}

		m.ZoomBy(-1)
		if g.Spiderfied() {
			t.Error("zooming out should collapse the spread cluster")
		}
	}
}
