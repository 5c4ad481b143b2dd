// Package roadnet is the in-process reference graph engine. It loads a road
// network from GeoJSON LineStrings into a weighted undirected gonum graph and
// answers K-shortest-route and articulation-point queries in the engine wire
// format.
package roadnet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	json "github.com/goccy/go-json"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/vanderheijden86/routelens/pkg/debug"
	"github.com/vanderheijden86/routelens/pkg/geo"
)

// DefaultK is the number of ranked routes returned per query.
const DefaultK = 4

// ErrEmptyGraph is returned when a query runs before any road was loaded.
var ErrEmptyGraph = errors.New("graph is empty")

// Option configures a Network.
type Option func(*Network)

// WithK overrides the number of ranked routes.
func WithK(k int) Option {
	return func(n *Network) {
		if k > 0 {
			n.k = k
		}
	}
}

// Network is a road graph. Node IDs are dense and assigned in load order.
// It is safe for concurrent queries; Initialize swaps the graph atomically.
type Network struct {
	k int

	mu     sync.RWMutex
	g      *simple.WeightedUndirectedGraph
	coords []geo.Point
	edges  int
	bounds geo.Bounds
}

// New returns an empty network.
func New(opts ...Option) *Network {
	n := &Network{k: DefaultK, g: simple.NewWeightedUndirectedGraph(0, math.Inf(1))}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Initialize loads the network from a GeoJSON file path.
func (n *Network) Initialize(ctx context.Context, graphSource string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(graphSource)
	if err != nil {
		return fmt.Errorf("opening road network: %w", err)
	}
	defer f.Close()
	return n.Load(f)
}

type featureCollection struct {
	Features *[]struct {
		Geometry *struct {
			Type        string          `json:"type"`
			Coordinates json.RawMessage `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// Load replaces the graph with the LineString and MultiLineString features in r.
// Features of other geometry types are skipped.
func (n *Network) Load(r io.Reader) error {
	var doc featureCollection
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("parsing GeoJSON: %w", err)
	}
	if doc.Features == nil {
		return errors.New("invalid GeoJSON: missing features array")
	}

	b := newBuilder()
	for i, f := range *doc.Features {
		if f.Geometry == nil {
			continue
		}
		switch f.Geometry.Type {
		case "LineString":
			var line [][]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &line); err != nil {
				return fmt.Errorf("feature %d: %w", i, err)
			}
			if err := b.addLine(line); err != nil {
				return fmt.Errorf("feature %d: %w", i, err)
			}
		case "MultiLineString":
			var lines [][][]float64
			if err := json.Unmarshal(f.Geometry.Coordinates, &lines); err != nil {
				return fmt.Errorf("feature %d: %w", i, err)
			}
			for _, line := range lines {
				if err := b.addLine(line); err != nil {
					return fmt.Errorf("feature %d: %w", i, err)
				}
			}
		}
	}

	n.mu.Lock()
	n.g, n.coords, n.edges, n.bounds = b.g, b.coords, b.edges, b.bounds
	n.mu.Unlock()
	debug.Log("roadnet: loaded %d nodes, %d edges", len(b.coords), b.edges)
	return nil
}

type builder struct {
	g      *simple.WeightedUndirectedGraph
	coords []geo.Point
	index  map[geo.Point]int64
	edges  int
	bounds geo.Bounds
}

func newBuilder() *builder {
	return &builder{
		g:     simple.NewWeightedUndirectedGraph(0, math.Inf(1)),
		index: make(map[geo.Point]int64),
	}
}

func (b *builder) node(p geo.Point) int64 {
	if id, ok := b.index[p]; ok {
		return id
	}
	id := int64(len(b.coords))
	b.coords = append(b.coords, p)
	b.index[p] = id
	b.g.AddNode(simple.Node(id))
	b.bounds = b.bounds.Extend(p)
	return id
}

// addLine adds one edge per consecutive coordinate pair, weighted by haversine
// length. Lines with fewer than two positions are ignored. When two segments
// join the same nodes the shorter weight wins.
func (b *builder) addLine(line [][]float64) error {
	if len(line) < 2 {
		return nil
	}
	prev := int64(-1)
	for j, c := range line {
		if len(c) < 2 {
			return fmt.Errorf("position %d: want [lon, lat], got %d values", j, len(c))
		}
		p := geo.Pt(c[1], c[0])
		if !p.Valid() {
			return fmt.Errorf("position %d: invalid coordinate %v", j, c)
		}
		cur := b.node(p)
		if prev >= 0 && prev != cur {
			w := geo.Distance(b.coords[prev], b.coords[cur])
			if old, ok := b.g.Weight(prev, cur); !ok || w < old {
				if !ok {
					b.edges++
				}
				b.g.SetWeightedEdge(b.g.NewWeightedEdge(simple.Node(prev), simple.Node(cur), w))
			}
		}
		prev = cur
	}
	return nil
}

// Stats returns node and edge counts.
func (n *Network) Stats() (nodes, edges int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.coords), n.edges
}

// Bounds returns the bounding box of all nodes.
func (n *Network) Bounds() geo.Bounds {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.bounds
}

// Segments returns every edge as a coordinate pair, for drawing the network
// underneath routes.
func (n *Network) Segments() [][2]geo.Point {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([][2]geo.Point, 0, n.edges)
	edges := n.g.Edges()
	for edges.Next() {
		e := edges.Edge()
		out = append(out, [2]geo.Point{n.coords[e.From().ID()], n.coords[e.To().ID()]})
	}
	return out
}

// Nearest returns the node closest to p by great-circle distance.
func (n *Network) Nearest(p geo.Point) (int64, geo.Point, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return nearest(n.coords, p)
}

func nearest(coords []geo.Point, p geo.Point) (int64, geo.Point, bool) {
	best := int64(-1)
	bestDist := math.Inf(1)
	for i, c := range coords {
		if d := geo.Distance(p, c); d < bestDist {
			best, bestDist = int64(i), d
		}
	}
	if best < 0 {
		return -1, geo.Point{}, false
	}
	return best, coords[best], true
}
