package testutil

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/roadnet"
)

func load(t *testing.T, f RoadFixture) *roadnet.Network {
	t.Helper()
	n := roadnet.New()
	if err := n.Load(bytes.NewReader(f.GeoJSON())); err != nil {
		t.Fatalf("Load(%s): %v", f.Description, err)
	}
	return n
}

func TestFixtures_MatchLoadedNetwork(t *testing.T) {
	gen := NewDefault()
	tests := []struct {
		name string
		f    RoadFixture
	}{
		{"chain_2", gen.Chain(2)},
		{"chain_6", gen.Chain(6)},
		{"star_1", gen.Star(1)},
		{"star_5", gen.Star(5)},
		{"grid_1x4", gen.Grid(1, 4)},
		{"grid_3x3", gen.Grid(3, 3)},
		{"ladder_4", gen.Ladder(4)},
		{"disconnected_3_4", gen.Disconnected(3, 4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := load(t, tt.f)
			nodes, edges := n.Stats()
			if nodes != tt.f.Properties.Nodes || edges != tt.f.Properties.Edges {
				t.Errorf("got %d nodes / %d edges, want %d / %d", nodes, edges, tt.f.Properties.Nodes, tt.f.Properties.Edges)
			}
			crit, err := n.Critical(context.Background())
			if err != nil {
				t.Fatalf("Critical: %v", err)
			}
			if len(crit.Points) != tt.f.Properties.Articulations {
				t.Errorf("got %d articulation points, want %d", len(crit.Points), tt.f.Properties.Articulations)
			}
		})
	}
}

func TestFixtures_Connectivity(t *testing.T) {
	gen := NewDefault()
	ctx := context.Background()

	grid := gen.Grid(3, 4)
	start, end := grid.Endpoints()
	if end != gen.At(2, 3) {
		t.Fatalf("grid endpoints = %s -> %s", start, end)
	}
	res, err := load(t, grid).Routes(ctx, start, end, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Routes) != roadnet.DefaultK {
		t.Errorf("grid should offer %d routes, got %d", roadnet.DefaultK, len(res.Routes))
	}
	AssertRoutesRanked(t, res.Routes)
	AssertRouteJoins(t, res.Routes[0], start, end)

	split := gen.Disconnected(3, 3)
	start, end = split.Endpoints()
	res, err = load(t, split).Routes(ctx, start, end, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Routes) != 0 {
		t.Errorf("disconnected roads should yield no route, got %d", len(res.Routes))
	}
}

func TestRandomTree_DeterministicAndConnected(t *testing.T) {
	a := New(GeneratorConfig{Seed: 7}).RandomTree(30, 10)
	b := New(GeneratorConfig{Seed: 7}).RandomTree(30, 10)
	if !bytes.Equal(a.GeoJSON(), b.GeoJSON()) {
		t.Error("same seed should produce the same fixture")
	}

	n := load(t, a)
	if nodes, _ := n.Stats(); nodes != 30 {
		t.Errorf("expected 30 nodes, got %d", nodes)
	}
	gen := New(GeneratorConfig{Seed: 7})
	res, err := n.Routes(context.Background(), gen.At(0, 0), gen.At(4, 5), false)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Routes) == 0 {
		t.Error("a spanning tree joins every pair of nodes")
	}
}

func TestGeoJSON_LonLatOrder(t *testing.T) {
	f := NewDefault().Chain(2)
	var doc struct {
		Features []struct {
			Geometry struct {
				Type        string       `json:"type"`
				Coordinates [][2]float64 `json:"coordinates"`
			} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(f.GeoJSON(), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Features) != 1 || doc.Features[0].Geometry.Type != "LineString" {
		t.Fatalf("unexpected document %+v", doc)
	}
	if got := doc.Features[0].Geometry.Coordinates[0]; got != [2]float64{78.00, 30.30} {
		t.Errorf("first position = %v, want [lon, lat]", got)
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	path := WriteGraphFile(t, dir, "city.geojson", NewDefault().Ladder(3))
	n := roadnet.New()
	if err := n.Initialize(context.Background(), path); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	placesPath := WritePlacesFile(t, dir, map[string]geo.Point{"Clock Tower": geo.Pt(30.3165, 78.0322)})
	data, err := os.ReadFile(placesPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"Clock Tower":[78.0322,30.3165]}` {
		t.Errorf("places file = %s", data)
	}
}

func TestFakeEngine_ThroughBridge(t *testing.T) {
	ctx := context.Background()
	routes := &engine.RouteResult{Routes: []engine.Route{
		{Coordinates: []geo.Point{geo.Pt(30.30, 78.00), geo.Pt(30.31, 78.01)}, Distance: 1400},
	}, ExecutionTimeMs: 3}
	fake := NewFakeEngine(routes, &engine.CriticalResult{Points: []geo.Point{geo.Pt(30.30, 78.00)}})

	b := engine.NewBridge(fake)
	if err := b.Initialize(ctx, "city.geojson"); err != nil {
		t.Fatal(err)
	}
	q := engine.Query{Start: geo.Pt(30.30, 78.00), End: geo.Pt(30.31, 78.01), UseAStar: true}
	got, err := b.FindKShortestRoutes(ctx, q)
	if err != nil {
		t.Fatalf("FindKShortestRoutes: %v", err)
	}
	AssertJSONEqual(t, routes, got)

	if _, err := b.CriticalPoints(ctx); err != nil {
		t.Fatalf("CriticalPoints: %v", err)
	}

	fake.ReportError("graph not loaded")
	_, err = b.CriticalPoints(ctx)
	var ee *engine.EngineError
	if !errors.As(err, &ee) || ee.Message != "graph not loaded" {
		t.Errorf("expected engine error, got %v", err)
	}

	if fake.Issued() != 3 {
		t.Errorf("expected 3 payloads, got %d", fake.Issued())
	}
	AssertReleasedOnce(t, fake)
	if qs := fake.Queries(); len(qs) != 1 || qs[0] != q {
		t.Errorf("queries = %+v", qs)
	}
	if loads := fake.Loads(); len(loads) != 1 || loads[0] != "city.geojson" {
		t.Errorf("loads = %v", loads)
	}
}

func TestGoldenFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("GENERATE_GOLDEN", "1")
	NewGoldenFile(t, dir, "summary.golden").AssertJSON(map[string]int{"routes": 2})

	t.Setenv("GENERATE_GOLDEN", "")
	NewGoldenFile(t, dir, "summary.golden").Assert("{\n  \"routes\": 2\n}")
}
