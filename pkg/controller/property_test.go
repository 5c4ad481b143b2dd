package controller

import (
	"context"
	"errors"
	"math/rand/v2"
	"sort"
	"testing"

	"pgregory.net/rapid"

	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/places"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

func drawRoutes(t *rapid.T) *engine.RouteResult {
	dists := rapid.SliceOfN(rapid.Float64Range(1, 50000), 1, 8).Draw(t, "distances")
	sort.Float64s(dists)
	res := &engine.RouteResult{}
	for _, d := range dists {
		res.Routes = append(res.Routes, route(d, placeA, geo.Pt(30.33, 78.05), placeB))
	}
	return res
}

// measuredSurface reports a fixed start/end distance.
type measuredSurface struct {
	*surface.Map
	meters float64
}

func (m measuredSurface) Distance(geo.Point, geo.Point) float64 { return m.meters }

func displayedFor(t interface{ Fatalf(string, ...any) }, meters float64, res *engine.RouteResult) int {
	s := New(measuredSurface{Map: testMap(), meters: meters}, testDirectory(), WithRand(rand.New(rand.NewPCG(5, 6))))
	if err := s.SetStartInput("Clock Tower"); err != nil {
		t.Fatalf("SetStartInput: %v", err)
	}
	if err := s.SetEndInput("Rajpur Road"); err != nil {
		t.Fatalf("SetEndInput: %v", err)
	}
	if err := s.FindRoutes(context.Background(), &fakeEngine{routes: res}); err != nil {
		t.Fatalf("FindRoutes: %v", err)
	}
	return len(s.RouteLines())
}

func TestProperty_OverlapShowsOneRoute(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		meters := rapid.Float64Range(0, 2*OverlapThreshold).Draw(t, "meters")
		res := drawRoutes(t)
		want := min(len(res.Routes), MaxStyledRoutes)
		if meters < OverlapThreshold {
			want = 1
		}
		if got := displayedFor(t, meters, res); got != want {
			t.Fatalf("%.3fm apart: displayed %d routes, want %d", meters, got, want)
		}
	})
}

func TestOverlapThresholdBoundary(t *testing.T) {
	res := twoRoutes()
	tests := []struct {
		meters float64
		want   int
	}{
		{0, 1},
		{499.9, 1},
		{500.0, 2},
		{500.1, 2},
	}
	for _, tt := range tests {
		if got := displayedFor(t, tt.meters, res); got != tt.want {
			t.Errorf("%.1fm apart: displayed %d routes, want %d", tt.meters, got, tt.want)
		}
	}
}

func TestProperty_SummaryCards(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		res := drawRoutes(t)
		overlap := rapid.Bool().Draw(t, "overlap")
		displayed := min(len(res.Routes), MaxStyledRoutes)
		if overlap {
			displayed = 1
		}

		sum := Summarize(res.Routes, displayed, Endpoints{}, "dijkstra", 1, overlap)
		if len(sum.Cards) != displayed {
			t.Fatalf("cards = %d, want %d", len(sum.Cards), displayed)
		}
		if sum.Cards[0].ExcessKm != 0 || sum.Cards[0].ExcessPct != 0 {
			t.Fatalf("best card has excess: %+v", sum.Cards[0])
		}
		for _, c := range sum.Cards {
			if c.ExcessKm < 0 || c.ExcessPct < 0 {
				t.Fatalf("negative excess: %+v", c)
			}
			if c.Bar < 25 || c.Bar > 100 {
				t.Fatalf("bar out of range: %+v", c)
			}
		}
		if sum.Comparison.ShortestKm > sum.Comparison.LongestKm || sum.Comparison.VariationPct < 0 {
			t.Fatalf("comparison = %+v", sum.Comparison)
		}
	})
}

func TestProperty_HighlightIsExclusive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := New(testMap(), testDirectory(), WithRand(rand.New(rand.NewPCG(3, 4))))
		_ = s.SetStartInput("Clock Tower")
		_ = s.SetEndInput("Rajpur Road")
		if err := s.FindRoutes(context.Background(), &fakeEngine{routes: drawRoutes(t)}); err != nil {
			t.Fatalf("FindRoutes: %v", err)
		}
		lines := s.RouteLines()
		ranks := rapid.SliceOfN(rapid.IntRange(-1, len(lines)), 1, 6).Draw(t, "ranks")

		last := -1
		for _, r := range ranks {
			err := s.Highlight(r)
			if r < 0 || r >= len(lines) {
				if !errors.Is(err, ErrInvalidRank) {
					t.Fatalf("Highlight(%d) = %v", r, err)
				}
				continue
			}
			if err != nil {
				t.Fatalf("Highlight(%d) = %v", r, err)
			}
			last = r
		}
		if last < 0 {
			return
		}
		for rank, line := range lines {
			if rank == last {
				if line.Style() != RouteStyles[rank].Highlighted() {
					t.Fatalf("rank %d should be highlighted", rank)
				}
			} else if line.Style() != RouteStyles[rank].Faded() {
				t.Fatalf("rank %d should be faded", rank)
			}
		}
	})
}

// Any sequence of operations followed by a reset leaves the session
// indistinguishable from a fresh one.
func TestProperty_ResetEquivalence(t *testing.T) {
	names := []string{"", "Clock Tower", "Rajpur Road", "Paltan Bazaar", "nowhere", "30.32, 78.04"}
	rapid.Check(t, func(t *rapid.T) {
		m := testMap()
		dir := testDirectory()
		s := New(m, dir, WithRand(rand.New(rand.NewPCG(5, 6))))
		eng := &fakeEngine{
			routes:   drawRoutes(t),
			critical: &engine.CriticalResult{Points: []geo.Point{placeA, placeB}},
		}

		ops := rapid.SliceOfN(rapid.IntRange(0, 7), 0, 12).Draw(t, "ops")
		var pending *RouteRequest
		for i, op := range ops {
			switch op {
			case 0:
				_ = s.SetStartInput(rapid.SampledFrom(names).Draw(t, "start"))
				_ = s.SetEndInput(rapid.SampledFrom(names).Draw(t, "end"))
			case 1:
				_ = s.FindRoutes(context.Background(), eng)
			case 2:
				_ = s.DetectCritical(context.Background(), eng)
			case 3:
				_ = s.StartManualSelection()
			case 4:
				m.Click(float64(50+i*40), float64(80+i*30))
			case 5:
				_ = s.Highlight(rapid.IntRange(0, 3).Draw(t, "rank"))
			case 6:
				if req, err := s.BeginRoutes(); err == nil {
					pending = &req
				}
			case 7:
				s.ResetAll()
			}
		}
		s.ResetAll()
		if pending != nil {
			if err := s.ApplyRoutes(*pending, eng.routes, nil); !errors.Is(err, ErrStale) {
				t.Fatalf("pending result after reset = %v", err)
			}
		}

		if n := len(m.Layers()); n != 0 {
			t.Fatalf("%d layers left after reset", n)
		}
		if m.ListenerCount() != 0 {
			t.Fatal("click listener left after reset")
		}
		if _, ok := m.Popup(); ok {
			t.Fatal("popup left open after reset")
		}
		fresh := New(testMap(), places.New(nil))
		if s.Controls() != fresh.Controls() || s.Selection() != fresh.Selection() || s.Busy() {
			t.Fatalf("controls = %+v, selection = %+v", s.Controls(), s.Selection())
		}
		if _, ok := s.Highlighted(); ok {
			t.Fatal("highlight survived reset")
		}
		p := s.Panels()
		if p.RouteSummary != nil || p.CriticalReport != nil || p.Visible {
			t.Fatalf("panels = %+v", p)
		}
		if p.Status.Lines[0] != DefaultStatusText || p.Route.Lines[0] != DefaultRouteText {
			t.Fatalf("panels = %+v", p)
		}
	})
}

func TestProperty_SelectionClicks(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := testMap()
		s := New(m, testDirectory())
		if err := s.StartManualSelection(); err != nil {
			t.Fatal(err)
		}
		n := rapid.IntRange(0, 5).Draw(t, "clicks")
		for i := 0; i < n; i++ {
			// Spread clicks so none lands on an earlier marker.
			m.Click(float64(60+i*140), float64(60+i*100))
		}
		want := PhaseAwaitingStart
		switch {
		case n == 1:
			want = PhaseAwaitingEnd
		case n >= 2:
			want = PhaseComplete
		}
		if got := s.Selection().Phase; got != want {
			t.Fatalf("after %d clicks phase = %s, want %s", n, got, want)
		}
		if listening := m.ListenerCount() == 1; listening != (want != PhaseComplete) {
			t.Fatalf("listener count = %d in %s", m.ListenerCount(), want)
		}
		if got := countKind(m, surface.KindMarker); n >= 2 && got != 2 {
			t.Fatalf("markers = %d", got)
		}
	})
}
