package roadnet

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"

	"github.com/vanderheijden86/routelens/pkg/debug"
	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/geo"
)

// Routes snaps start and end to their nearest nodes and returns up to K
// loopless routes, shortest first. The first route comes from A* when useAStar
// is set and from Dijkstra otherwise; the remainder are Yen's deviations.
// Unconnected endpoints yield an empty result, not an error.
func (n *Network) Routes(ctx context.Context, start, end geo.Point, useAStar bool) (*engine.RouteResult, error) {
	defer debug.LogEnterExit("roadnet.Routes")()
	t0 := time.Now()

	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.coords) == 0 {
		return nil, ErrEmptyGraph
	}
	s, _, _ := nearest(n.coords, start)
	t, _, _ := nearest(n.coords, end)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	res := &engine.RouteResult{}
	if s == t {
		res.Routes = append(res.Routes, engine.Route{Coordinates: []geo.Point{n.coords[s]}})
		res.ExecutionTimeMs = ms(time.Since(t0))
		return res, nil
	}

	first, dist := n.shortest(s, t, useAStar)
	if len(first) == 0 {
		res.ExecutionTimeMs = ms(time.Since(t0))
		return res, nil
	}
	res.Routes = append(res.Routes, engine.Route{Coordinates: n.points(first), Distance: dist})

	if n.k > 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, p := range path.YenKShortestPaths(n.g, n.k, math.Inf(1), simple.Node(s), simple.Node(t)) {
			if len(res.Routes) == n.k {
				break
			}
			if sameNodes(p, first) {
				continue
			}
			res.Routes = append(res.Routes, engine.Route{Coordinates: n.points(p), Distance: n.length(p)})
		}
	}
	res.ExecutionTimeMs = ms(time.Since(t0))
	return res, nil
}

func (n *Network) shortest(s, t int64, useAStar bool) ([]graph.Node, float64) {
	if useAStar {
		goal := n.coords[t]
		h := func(x, _ graph.Node) float64 {
			return geo.Distance(n.coords[x.ID()], goal)
		}
		sp, _ := path.AStar(simple.Node(s), simple.Node(t), n.g, h)
		return sp.To(t)
	}
	return path.DijkstraFrom(simple.Node(s), n.g).To(t)
}

func (n *Network) points(nodes []graph.Node) []geo.Point {
	out := make([]geo.Point, len(nodes))
	for i, nd := range nodes {
		out[i] = n.coords[nd.ID()]
	}
	return out
}

func (n *Network) length(nodes []graph.Node) float64 {
	total := 0.0
	for i := 1; i < len(nodes); i++ {
		w, _ := n.g.Weight(nodes[i-1].ID(), nodes[i].ID())
		total += w
	}
	return total
}

func sameNodes(a, b []graph.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID() != b[i].ID() {
			return false
		}
	}
	return true
}

// Critical returns the articulation points of the network: nodes whose removal
// disconnects some part of it. Points are ordered by node ID.
func (n *Network) Critical(ctx context.Context) (*engine.CriticalResult, error) {
	defer debug.LogEnterExit("roadnet.Critical")()
	t0 := time.Now()

	n.mu.RLock()
	defer n.mu.RUnlock()
	if len(n.coords) == 0 {
		return nil, ErrEmptyGraph
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ap := articulationPoints(n.g, len(n.coords))
	res := &engine.CriticalResult{Points: make([]geo.Point, 0)}
	for id, is := range ap {
		if is {
			res.Points = append(res.Points, n.coords[id])
		}
	}
	res.ExecutionTimeMs = ms(time.Since(t0))
	return res, nil
}

// articulationPoints runs Tarjan's low-link DFS over every component. IDs are
// dense in [0, size).
func articulationPoints(g *simple.WeightedUndirectedGraph, size int) []bool {
	const noParent int64 = -1
	disc := make([]int, size)
	low := make([]int, size)
	parent := make([]int64, size)
	ap := make([]bool, size)
	clock := 0

	var dfs func(v int64)
	dfs = func(v int64) {
		clock++
		disc[v] = clock
		low[v] = clock
		children := 0

		it := g.From(v)
		for it.Next() {
			u := it.Node().ID()
			if disc[u] == 0 {
				parent[u] = v
				children++
				dfs(u)
				low[v] = min(low[v], low[u])
				if parent[v] == noParent && children > 1 {
					ap[v] = true
				}
				if parent[v] != noParent && low[u] >= disc[v] {
					ap[v] = true
				}
			} else if u != parent[v] {
				low[v] = min(low[v], disc[u])
			}
		}
	}

	for id := 0; id < size; id++ {
		if disc[id] == 0 {
			parent[id] = noParent
			dfs(int64(id))
		}
	}
	return ap
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
