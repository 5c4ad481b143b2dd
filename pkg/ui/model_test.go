package ui

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/places"
	"github.com/vanderheijden86/routelens/pkg/roadnet"
	"github.com/vanderheijden86/routelens/pkg/surface"
	"github.com/vanderheijden86/routelens/pkg/testutil"
)

type harness struct {
	m      Model
	gen    *testutil.Generator
}

func newHarness(t *testing.T, roads testutil.RoadFixture, mutate ...func(*Options)) *harness {
	t.Helper()
	gen := testutil.NewDefault()
	path := testutil.WriteGraphFile(t, t.TempDir(), "city.geojson", roads)
	net := roadnet.New()
	b := engine.NewBridge(net)
	if err := b.Initialize(context.Background(), path); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	opts := Options{
		Engine: b,
		Places: places.New(map[string]geo.Point{
			"Clock Tower": gen.At(0, 0),
			"Rajpur Road": gen.At(2, 3),
		}),
		View: surface.View{
			Center:  geo.Pt(30.305, 78.0075),
			Zoom:    14,
			MinZoom: 13,
			MaxZoom: 19,
		},
		Roads:       net.Segments,
		SnapshotDir: t.TempDir(),
		Rand:        rand.New(rand.NewPCG(1, 2)),
		Timeout:     5 * time.Second,
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	h := &harness{m: NewModel(opts), gen: gen}
	h.m.startInput.Cursor.SetMode(cursor.CursorStatic)
	h.m.endInput.Cursor.SetMode(cursor.CursorStatic)
	h.send(t, tea.WindowSizeMsg{Width: 120, Height: 40})
	return h
}

// send delivers msg and then every message its commands produce, skipping
// timers.
func (h *harness) send(t *testing.T, msg tea.Msg) {
	t.Helper()
	queue := []tea.Msg{msg}
	for len(queue) > 0 {
		next, cmd := h.m.Update(queue[0])
		h.m = next.(Model)
		queue = append(queue[1:], collect(t, cmd)...)
	}
}

// sendOnly delivers msg and returns the messages its commands produce
// without delivering them.
func (h *harness) sendOnly(t *testing.T, msg tea.Msg) []tea.Msg {
	t.Helper()
	next, cmd := h.m.Update(msg)
	h.m = next.(Model)
	return collect(t, cmd)
}

func collect(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		switch msg := msg.(type) {
		case nil:
			return nil
		case tea.BatchMsg:
			var out []tea.Msg
			for _, c := range msg {
				out = append(out, collect(t, c)...)
			}
			return out
		default:
			if isTick(msg) {
				return nil
			}
			return []tea.Msg{msg}
		}
	case <-time.After(300 * time.Millisecond):
		return nil
	}
}

// isTick filters spinner frames so animation does not loop forever.
func isTick(msg tea.Msg) bool {
	_, ok := msg.(spinner.TickMsg)
	return ok
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func (h *harness) typeText(t *testing.T, s string) {
	t.Helper()
	for _, r := range s {
		h.send(t, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
}

func (h *harness) clickAt(t *testing.T, p geo.Point) {
	t.Helper()
	x, y := h.m.Surface().ScreenPoint(p)
	h.send(t, tea.MouseMsg{
		X:      int(x / CellWidth),
		Y:      int(y/CellHeight) + mapTop,
		Action: tea.MouseActionPress,
		Button: tea.MouseButtonLeft,
	})
}

func TestTypedRouteQuery(t *testing.T) {
	h := newHarness(t, testutil.NewDefault().Grid(3, 4))

	h.send(t, key("tab"))
	h.typeText(t, "Clock Tower")
	h.send(t, key("tab"))
	h.typeText(t, "Rajpur")
	h.send(t, key("tab")) // completes the place name
	if got := h.m.Session().Controls().EndInput; got != "Rajpur Road" {
		t.Fatalf("end input = %q, want completion", got)
	}
	h.send(t, key("enter"))

	sum := h.m.Session().Panels().RouteSummary
	if sum == nil {
		t.Fatalf("no route summary; route panel: %+v", h.m.Session().Panels().Route)
	}
	if sum.Displayed != roadnet.DefaultK {
		t.Errorf("displayed = %d, want %d", sum.Displayed, roadnet.DefaultK)
	}
	if h.m.Session().Busy() {
		t.Error("controls should be re-enabled")
	}
	if h.m.Canvas().Count('●') == 0 {
		t.Error("optimal route should be drawn")
	}
	if h.m.Canvas().Count('A') != 1 || h.m.Canvas().Count('B') != 1 {
		t.Error("expected one start and one end marker")
	}
	view := h.m.View()
	for _, want := range []string{"Optimal Route", "Route analysis complete - 4 paths found."} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestManualSelectionByMouse(t *testing.T) {
	h := newHarness(t, testutil.NewDefault().Grid(3, 4))

	h.send(t, key("m"))
	if got := h.m.Session().Selection().Phase; got != controller.PhaseAwaitingStart {
		t.Fatalf("phase = %v", got)
	}
	h.clickAt(t, h.gen.At(0, 0))
	if got := h.m.Session().Selection().Phase; got != controller.PhaseAwaitingEnd {
		t.Fatalf("phase after first click = %v", got)
	}
	h.clickAt(t, h.gen.At(2, 3))
	if got := h.m.Session().Selection().Phase; got != controller.PhaseComplete {
		t.Fatalf("phase after second click = %v", got)
	}
	if h.m.Session().Panels().RouteSummary != nil {
		t.Fatal("selection alone must not compute routes")
	}

	h.send(t, key("f"))
	if h.m.Session().Panels().RouteSummary == nil {
		t.Fatalf("routes not computed: %+v", h.m.Session().Panels().Route)
	}

	h.send(t, key("2"))
	if rank, ok := h.m.Session().Highlighted(); !ok || rank != 1 {
		t.Errorf("highlighted = %d, %v", rank, ok)
	}
	h.send(t, key("9"))
	h.send(t, key("4"))
	if rank, _ := h.m.Session().Highlighted(); rank != 3 {
		t.Errorf("highlighted = %d, want 3", rank)
	}
}

func TestStaleResultIsDropped(t *testing.T) {
	h := newHarness(t, testutil.NewDefault().Grid(3, 4))
	h.send(t, key("tab"))
	h.typeText(t, "Clock Tower")
	h.send(t, key("tab"))
	h.typeText(t, "Rajpur Road")
	h.send(t, key("esc"))

	pending := h.sendOnly(t, key("f"))
	if !h.m.Session().Busy() {
		t.Fatal("controls should be disabled while the query runs")
	}

	h.send(t, key("c"))
	if msg, isErr := h.m.StatusMessage(); !isErr || !strings.Contains(msg, "Busy") {
		t.Errorf("status while busy = %q", msg)
	}

	h.send(t, key("r"))
	for _, msg := range pending {
		h.send(t, msg)
	}
	if h.m.Session().Panels().RouteSummary != nil || len(h.m.Session().RouteLines()) != 0 {
		t.Error("result from before the reset should be ignored")
	}
	if got := h.m.Session().Panels().Route.Lines; len(got) != 1 || got[0] != controller.DefaultRouteText {
		t.Errorf("route panel = %v", got)
	}
}

func TestCriticalPoints(t *testing.T) {
	h := newHarness(t, testutil.NewDefault().Chain(6))
	h.send(t, key("c"))

	layer := h.m.Session().CriticalLayer()
	if layer == nil || layer.Len() != 4 {
		t.Fatalf("critical layer = %v", layer)
	}
	if !strings.Contains(h.m.View(), "Critical points detected!") {
		t.Error("critical panel not shown")
	}

	// An unknown typed place is an invalid selection that leaves the layer.
	h.send(t, key("tab"))
	h.typeText(t, "Nowhere")
	if !strings.Contains(h.m.View(), "unknown") {
		t.Error("unknown place should be flagged")
	}
	h.send(t, key("enter"))
	if h.m.Session().CriticalLayer() == nil {
		t.Error("invalid selection must not clear the critical layer")
	}
	if msg, isErr := h.m.StatusMessage(); !isErr || !strings.Contains(msg, "valid start and end") {
		t.Errorf("status = %q", msg)
	}
}

func TestEngineFailureReported(t *testing.T) {
	fake := testutil.NewFakeEngine(nil, nil)
	failing := engine.NewBridge(fake)
	if err := failing.Initialize(context.Background(), "fake"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	fake.FailWith(errors.New("engine offline"))
	h := newHarness(t, testutil.NewDefault().Grid(3, 4), func(o *Options) { o.Engine = failing })

	h.send(t, key("c"))
	if h.m.Session().Busy() {
		t.Error("controls should be re-enabled after a failure")
	}
	crit := h.m.Session().Panels().Critical
	if crit.Tone != controller.ToneError || !strings.Contains(strings.Join(crit.Lines, " "), "engine offline") {
		t.Errorf("critical panel = %+v", crit)
	}
	if _, isErr := h.m.StatusMessage(); !isErr {
		t.Error("failure should be reported in the footer")
	}
}

func TestReloadOnFileChange(t *testing.T) {
	var reloads atomic.Int32
	h := newHarness(t, testutil.NewDefault().Grid(3, 4), func(o *Options) {
		o.Reload = func(context.Context) error {
			reloads.Add(1)
			return nil
		}
	})
	h.send(t, key("c"))

	h.send(t, FileChangedMsg{})
	if reloads.Load() != 1 {
		t.Fatalf("reloads = %d", reloads.Load())
	}
	if h.m.Session().CriticalLayer() != nil {
		t.Error("a reload resets the session")
	}
	if msg, _ := h.m.StatusMessage(); msg != "Road network reloaded" {
		t.Errorf("status = %q", msg)
	}
}

func TestFileChangeDuringReloadIsQueued(t *testing.T) {
	var reloads atomic.Int32
	h := newHarness(t, testutil.NewDefault().Grid(3, 4), func(o *Options) {
		o.Reload = func(context.Context) error {
			reloads.Add(1)
			return nil
		}
	})

	h.sendOnly(t, FileChangedMsg{})
	if reloads.Load() != 1 {
		t.Fatalf("reloads = %d", reloads.Load())
	}
	// Saved again while the first reload is still running.
	h.sendOnly(t, FileChangedMsg{})
	if reloads.Load() != 1 {
		t.Fatalf("a second reload must wait for the first, reloads = %d", reloads.Load())
	}

	h.send(t, GraphReloadedMsg{})
	if reloads.Load() != 2 {
		t.Fatalf("the queued change should reload again, reloads = %d", reloads.Load())
	}
	if msg, _ := h.m.StatusMessage(); msg != "Road network reloaded" {
		t.Errorf("status = %q", msg)
	}
	if h.m.reloading || h.m.reloadPending {
		t.Error("reload state should be idle")
	}
}

func TestSnapshotAndHelp(t *testing.T) {
	h := newHarness(t, testutil.NewDefault().Grid(3, 4))
	dir := h.m.opts.SnapshotDir

	h.send(t, key("s"))
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 || filepath.Ext(entries[0].Name()) != ".svg" {
		t.Fatalf("snapshot dir = %v, %v", entries, err)
	}
	if msg, isErr := h.m.StatusMessage(); isErr || !strings.HasPrefix(msg, "Saved ") {
		t.Errorf("status = %q", msg)
	}

	h.send(t, key("?"))
	if !strings.Contains(h.m.View(), "routelens keys") {
		t.Error("help overlay not shown")
	}
	h.send(t, key("x"))
	if strings.Contains(h.m.View(), "routelens keys") {
		t.Error("any key should close help")
	}
}

func TestCanvasDrawsStyles(t *testing.T) {
	m := surface.NewMap(surface.View{Center: geo.Pt(30.305, 78.0075), Zoom: 14, MaxZoom: 19})
	c := NewCanvas(60, 20)
	m.SetSize(c.PixelSize())

	solid := surface.NewPolyline([]geo.Point{geo.Pt(30.300, 78.000), geo.Pt(30.300, 78.015)},
		surface.PathStyle{Color: "#007FFF", Weight: 8, Opacity: 0.95})
	dashed := surface.NewPolyline([]geo.Point{geo.Pt(30.310, 78.000), geo.Pt(30.310, 78.015)},
		surface.PathStyle{Color: "#fd7e14", Weight: 6, Opacity: 0.85, DashArray: "12, 8"})
	shadow := surface.NewPolyline([]geo.Point{geo.Pt(30.305, 78.000), geo.Pt(30.305, 78.015)},
		surface.PathStyle{Color: "#000", Weight: 11, Opacity: 0.2})
	m.AddLayer(shadow)
	m.AddLayer(solid)
	m.AddLayer(dashed)
	m.AddLayer(surface.NewMarker(geo.Pt(30.300, 78.000), surface.MarkerOptions{Role: surface.RoleStart, Color: "#28a745"}))

	c.Draw(m, nil)

	solidCells, dashedCells := c.Count('●'), c.Count('•')
	if solidCells == 0 || dashedCells == 0 {
		t.Fatalf("solid=%d dashed=%d", solidCells, dashedCells)
	}
	if dashedCells >= solidCells {
		t.Errorf("dashed line should leave gaps: solid=%d dashed=%d", solidCells, dashedCells)
	}
	x, y := m.ScreenPoint(geo.Pt(30.300, 78.000))
	if ch, color := c.At(int(x/CellWidth), int(y/CellHeight)); ch != 'A' || color != "#28a745" {
		t.Errorf("start marker cell = %q %s", ch, color)
	}

	out := c.Render(0, 0, true, DefaultTheme(nil).Cursor)
	if lines := strings.Count(out, "\n") + 1; lines != 20 {
		t.Errorf("rendered %d lines", lines)
	}
}

func TestDashPattern(t *testing.T) {
	dash := parseDash("12, 8")
	tests := []struct {
		at   float64
		want bool
	}{
		{0, true}, {11.9, true}, {12, false}, {19.9, false}, {20, true}, {33, false},
	}
	for _, tt := range tests {
		if got := dashOn(dash, tt.at); got != tt.want {
			t.Errorf("dashOn(%v) = %v, want %v", tt.at, got, tt.want)
		}
	}
	if !dashOn(nil, 5) {
		t.Error("solid lines are always on")
	}
	if got := parseDash("5"); len(got) != 2 {
		t.Errorf("odd dash arrays repeat: %v", got)
	}
}

func TestNearestANSI(t *testing.T) {
	tests := map[string]uint{"#000": 0, "#FF1744": 1, "#28a745": 2, "#00BCD4": 6, "#FFFFFF": 7, "white": 7}
	for hex, want := range tests {
		if got := nearestANSI(hex); got != want {
			t.Errorf("nearestANSI(%s) = %d, want %d", hex, got, want)
		}
	}
}
