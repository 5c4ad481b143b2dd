// Package testutil provides road-network fixture generators and shared test
// doubles. All generators produce deterministic output for reproducible tests.
package testutil

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/routelens/pkg/geo"
)

// RoadFixture is a set of polylines that load as a road network. Each line
// becomes one GeoJSON LineString feature.
type RoadFixture struct {
	Description string
	Lines       [][]geo.Point
	Properties  Properties
}

// Properties holds what a test may assert about the network a fixture builds.
type Properties struct {
	Connected bool
	Nodes     int
	Edges     int
	// Articulations is the number of nodes whose removal splits the network.
	Articulations int
}

// GeneratorConfig controls fixture generation.
type GeneratorConfig struct {
	Seed    uint64    // Random seed for determinism
	Origin  geo.Point // South-west corner of the generated network
	Spacing float64   // Degrees between neighbouring nodes
}

// DefaultConfig returns a config that places fixtures inside the default map
// bounds.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Seed:    42,
		Origin:  geo.Pt(30.30, 78.00),
		Spacing: 0.005,
	}
}

// Generator creates road fixtures with various topologies.
type Generator struct {
	cfg GeneratorConfig
	rng *rand.Rand
}

// New creates a Generator with the given config.
func New(cfg GeneratorConfig) *Generator {
	def := DefaultConfig()
	if cfg.Spacing <= 0 {
		cfg.Spacing = def.Spacing
	}
	if cfg.Origin == (geo.Point{}) {
		cfg.Origin = def.Origin
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)),
	}
}

// NewDefault creates a Generator with default config.
func NewDefault() *Generator {
	return New(DefaultConfig())
}

// At returns the lattice node in row r, column c. Fixtures only ever place
// nodes through At so shared nodes compare equal.
func (g *Generator) At(r, c int) geo.Point {
	return geo.Pt(g.cfg.Origin.Lat+float64(r)*g.cfg.Spacing, g.cfg.Origin.Lon+float64(c)*g.cfg.Spacing)
}

// Chain is a single road through size nodes along row 0.
// Every interior node is an articulation point.
func (g *Generator) Chain(size int) RoadFixture {
	if size < 2 {
		size = 2
	}
	line := make([]geo.Point, size)
	for i := range line {
		line[i] = g.At(0, i)
	}
	return RoadFixture{
		Description: fmt.Sprintf("Straight road through %d nodes", size),
		Lines:       [][]geo.Point{line},
		Properties: Properties{
			Connected:     true,
			Nodes:         size,
			Edges:         size - 1,
			Articulations: size - 2,
		},
	}
}

// Star is a hub at (0,0) with up to eight spokes radiating one step out. With
// two or more spokes the hub is the only articulation point.
func (g *Generator) Star(spokes int) RoadFixture {
	ends := []geo.Point{g.At(1, 0), g.At(0, 1), g.At(-1, 0), g.At(0, -1), g.At(1, 1), g.At(-1, -1), g.At(1, -1), g.At(-1, 1)}
	spokes = max(1, min(spokes, len(ends)))
	hub := g.At(0, 0)
	lines := make([][]geo.Point, spokes)
	for i := range lines {
		lines[i] = []geo.Point{hub, ends[i]}
	}
	art := 0
	if spokes >= 2 {
		art = 1
	}
	return RoadFixture{
		Description: fmt.Sprintf("Hub with %d spokes", spokes),
		Lines:       lines,
		Properties: Properties{
			Connected:     true,
			Nodes:         spokes + 1,
			Edges:         spokes,
			Articulations: art,
		},
	}
}

// Grid is a rows x cols street grid. Every row and every column is one road.
// A grid at least 2x2 has no articulation points and many equal-length routes
// between opposite corners.
func (g *Generator) Grid(rows, cols int) RoadFixture {
	if rows < 1 {
		rows = 1
	}
	if cols < 1 {
		cols = 1
	}
	var lines [][]geo.Point
	for r := 0; r < rows && cols > 1; r++ {
		line := make([]geo.Point, cols)
		for c := range line {
			line[c] = g.At(r, c)
		}
		lines = append(lines, line)
	}
	for c := 0; c < cols && rows > 1; c++ {
		line := make([]geo.Point, rows)
		for r := range line {
			line[r] = g.At(r, c)
		}
		lines = append(lines, line)
	}
	art := 0
	switch {
	case rows == 1 && cols > 2:
		art = cols - 2
	case cols == 1 && rows > 2:
		art = rows - 2
	}
	return RoadFixture{
		Description: fmt.Sprintf("%dx%d street grid", rows, cols),
		Lines:       lines,
		Properties: Properties{
			Connected:     true,
			Nodes:         rows * cols,
			Edges:         rows*(cols-1) + cols*(rows-1),
			Articulations: art,
		},
	}
}

// Ladder is two parallel roads joined by a rung at every node: a 2 x length
// grid.
func (g *Generator) Ladder(length int) RoadFixture {
	f := g.Grid(2, length)
	f.Description = fmt.Sprintf("Ladder with %d rungs", length)
	return f
}

// Disconnected is two chains far enough apart that no route joins them. The
// second chain starts 10 rows north of the first.
func (g *Generator) Disconnected(left, right int) RoadFixture {
	a := g.Chain(left)
	b := g.Chain(right)
	for i := range b.Lines[0] {
		b.Lines[0][i] = g.At(10, i)
	}
	return RoadFixture{
		Description: fmt.Sprintf("Two separate roads of %d and %d nodes", a.Properties.Nodes, b.Properties.Nodes),
		Lines:       append(a.Lines, b.Lines...),
		Properties: Properties{
			Connected:     false,
			Nodes:         a.Properties.Nodes + b.Properties.Nodes,
			Edges:         a.Properties.Edges + b.Properties.Edges,
			Articulations: a.Properties.Articulations + b.Properties.Articulations,
		},
	}
}

// RandomTree joins size nodes of a lattice into a random spanning tree, then
// adds extra random cross streets. Only Nodes and Connected are reported since
// the rest depends on the draw.
func (g *Generator) RandomTree(size, extra int) RoadFixture {
	if size < 2 {
		size = 2
	}
	side := 1
	for side*side < size {
		side++
	}
	nodes := make([]geo.Point, size)
	for i := range nodes {
		nodes[i] = g.At(i/side, i%side)
	}
	var lines [][]geo.Point
	for i := 1; i < size; i++ {
		parent := g.rng.IntN(i)
		lines = append(lines, []geo.Point{nodes[parent], nodes[i]})
	}
	for i := 0; i < extra; i++ {
		a, b := g.rng.IntN(size), g.rng.IntN(size)
		if a != b {
			lines = append(lines, []geo.Point{nodes[a], nodes[b]})
		}
	}
	return RoadFixture{
		Description: fmt.Sprintf("Random tree of %d nodes with %d extra streets", size, extra),
		Lines:       lines,
		Properties:  Properties{Connected: true, Nodes: size},
	}
}

type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   geometry       `json:"geometry"`
}

type geometry struct {
	Type        string       `json:"type"`
	Coordinates [][2]float64 `json:"coordinates"`
}

// GeoJSON encodes the fixture as a FeatureCollection of LineStrings with
// [lon, lat] positions.
func (f RoadFixture) GeoJSON() []byte {
	fc := featureCollection{Type: "FeatureCollection", Features: make([]feature, 0, len(f.Lines))}
	for i, line := range f.Lines {
		coords := make([][2]float64, len(line))
		for j, p := range line {
			coords[j] = [2]float64{p.Lon, p.Lat}
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Properties: map[string]any{"name": fmt.Sprintf("road-%d", i)},
			Geometry:   geometry{Type: "LineString", Coordinates: coords},
		})
	}
	data, err := json.Marshal(fc)
	if err != nil {
		panic(fmt.Sprintf("testutil: encoding fixture: %v", err))
	}
	return data
}

// Endpoints returns the first and last node of the first line, a convenient
// route query for chains and grids.
func (f RoadFixture) Endpoints() (geo.Point, geo.Point) {
	first := f.Lines[0]
	if len(f.Lines) > 1 {
		last := f.Lines[len(f.Lines)-1]
		return first[0], last[len(last)-1]
	}
	return first[0], first[len(first)-1]
}

// WriteGraphFile writes the fixture to dir/name and returns the path.
func WriteGraphFile(t testing.TB, dir, name string, f RoadFixture) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, f.GeoJSON(), 0o644); err != nil {
		t.Fatalf("failed to write graph file: %v", err)
	}
	return path
}

// WritePlacesFile writes a named-places directory in {"name": [lon, lat]}
// form and returns the path.
func WritePlacesFile(t testing.TB, dir string, places map[string]geo.Point) string {
	t.Helper()
	doc := make(map[string][2]float64, len(places))
	for name, p := range places {
		doc[name] = [2]float64{p.Lon, p.Lat}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("failed to marshal places: %v", err)
	}
	path := filepath.Join(dir, "places.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write places file: %v", err)
	}
	return path
}
