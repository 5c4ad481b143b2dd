// Package engine defines the call/response boundary to the external graph engine
// and the Bridge that marshals queries across it.
//
// The engine hands back raw JSON payloads in transient buffers. Whoever receives
// a Payload owns it until Release is called; the Bridge guarantees that every
// payload it receives is released exactly once, after decoding, whether decoding
// succeeded, failed, or surfaced an engine-reported error.
package engine

import (
	"context"

	"github.com/vanderheijden86/routelens/pkg/geo"
)

// Engine is the narrow boundary the graph engine exposes. Implementations must be
// safe for concurrent use once Initialize has returned.
type Engine interface {
	// Initialize loads the graph from graphSource. It may be called again to
	// reload; calls issued meanwhile wait for it to finish.
	Initialize(ctx context.Context, graphSource string) error

	// FindKShortestRoutes returns a routes payload. useAStar is 1 for A* and 0
	// for the default search. A nil payload with a nil error means the engine
	// produced nothing.
	FindKShortestRoutes(ctx context.Context, startLat, startLon, endLat, endLon float64, useAStar int) (Payload, error)

	// CriticalPoints returns a critical-points payload.
	CriticalPoints(ctx context.Context) (Payload, error)
}

// Payload is a transient engine result buffer. Bytes must not be used after
// Release.
type Payload interface {
	Bytes() []byte
	Release()
}

// Query is one path-finding request. It is built fresh per request and never
// mutated after submission.
type Query struct {
	Start    geo.Point `json:"start"`
	End      geo.Point `json:"end"`
	UseAStar bool      `json:"use_astar"`
}

// Algorithm returns the engine's search-mode name for the query.
func (q Query) Algorithm() string {
	if q.UseAStar {
		return "astar"
	}
	return "dijkstra"
}

// Route is one ranked path. Distance is in meters.
type Route struct {
	Coordinates []geo.Point `json:"coordinates"`
	Distance    float64     `json:"distance"`
}

// RouteResult is the decoded answer to FindKShortestRoutes. Routes are ordered
// best first; slice index is the rank.
type RouteResult struct {
	Routes          []Route `json:"routes"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

// CriticalResult is the decoded answer to CriticalPoints.
type CriticalResult struct {
	Points          []geo.Point `json:"points"`
	ExecutionTimeMs float64     `json:"execution_time_ms"`
}
