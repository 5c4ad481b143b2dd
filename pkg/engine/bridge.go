package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/routelens/pkg/debug"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/metrics"
)

// Observer receives one notification per completed bridge call.
type Observer interface {
	ObserveEngine(op, outcome string, d time.Duration)
}

// BridgeOption configures a Bridge.
type BridgeOption func(*Bridge)

// WithObserver attaches a call observer, typically a *metrics.Collector.
func WithObserver(o Observer) BridgeOption {
	return func(b *Bridge) { b.observer = o }
}

// readiness tracks one initialization attempt. err is written before done is
// closed and only read after.
type readiness struct {
	done chan struct{}
	err  error
}

func (r *readiness) finished() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// Bridge submits queries to an Engine, waits for initialization, decodes the
// returned payloads and releases each one exactly once.
type Bridge struct {
	eng      Engine
	observer Observer

	// initMu serializes Initialize; each attempt owns its readiness.
	initMu sync.Mutex

	mu    sync.Mutex
	state *readiness
}

// NewBridge wraps eng. Calls block until Initialize completes.
func NewBridge(eng Engine, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		eng:   eng,
		state: &readiness{done: make(chan struct{})},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Initialize loads the graph. Calling it again reloads; queries issued during a
// reload wait for the new graph. Overlapping calls run one after the other.
func (b *Bridge) Initialize(ctx context.Context, graphSource string) error {
	defer debug.LogEnterExit("Bridge.Initialize")()
	defer metrics.Timer(metrics.GraphLoad)()

	b.initMu.Lock()
	defer b.initMu.Unlock()

	b.mu.Lock()
	st := b.state
	if st.finished() {
		st = &readiness{done: make(chan struct{})}
		b.state = st
	}
	b.mu.Unlock()

	err := b.eng.Initialize(ctx, graphSource)
	if err != nil {
		err = fmt.Errorf("initializing engine from %s: %w", graphSource, err)
	}
	st.err = err
	close(st.done)
	return err
}

// Ready returns a channel closed once the current initialization finishes.
func (b *Bridge) Ready() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state.done
}

func (b *Bridge) await(ctx context.Context) error {
	b.mu.Lock()
	st := b.state
	b.mu.Unlock()

	select {
	case <-st.done:
		return st.err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrNotReady, ctx.Err())
	}
}

// FindKShortestRoutes submits q and decodes the ranked routes.
func (b *Bridge) FindKShortestRoutes(ctx context.Context, q Query) (res *RouteResult, err error) {
	const op = "routes"
	start := time.Now()
	defer func() { b.observe(op, err, time.Since(start)) }()
	defer metrics.Timer(metrics.RouteQuery)()

	if !q.Start.Valid() || !q.End.Valid() {
		return nil, fmt.Errorf("%s: %w: start %v end %v", op, ErrInvalidCoordinate, q.Start, q.End)
	}
	if err := b.await(ctx); err != nil {
		return nil, err
	}

	useAStar := 0
	if q.UseAStar {
		useAStar = 1
	}
	debug.Log("bridge: routes %v -> %v (%s)", q.Start, q.End, q.Algorithm())
	p, err := b.eng.FindKShortestRoutes(ctx, q.Start.Lat, q.Start.Lon, q.End.Lat, q.End.Lon, useAStar)
	if p != nil {
		defer p.Release()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoPayload)
	}
	return DecodeRoutes(p.Bytes())
}

// CriticalPoints asks the engine for the network's articulation points.
func (b *Bridge) CriticalPoints(ctx context.Context) (res *CriticalResult, err error) {
	const op = "critical"
	start := time.Now()
	defer func() { b.observe(op, err, time.Since(start)) }()
	defer metrics.Timer(metrics.CriticalQuery)()

	if err := b.await(ctx); err != nil {
		return nil, err
	}
	p, err := b.eng.CriticalPoints(ctx)
	if p != nil {
		defer p.Release()
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if p == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNoPayload)
	}
	return DecodeCritical(p.Bytes())
}

func (b *Bridge) observe(op string, err error, d time.Duration) {
	debug.LogIf(err != nil, "bridge: %s failed: %v", op, err)
	if b.observer != nil {
		b.observer.ObserveEngine(op, outcome(err), d)
	}
}

type routesDoc struct {
	Error         *string      `json:"error"`
	Routes        *[]wireRoute `json:"yenKShortestPaths"`
	ExecutionTime float64      `json:"executionTime"`
}

type wireRoute struct {
	Coordinates [][]float64 `json:"coordinates"`
	Distance    float64     `json:"distance"`
}

type criticalDoc struct {
	Error    *string `json:"error"`
	Critical *struct {
		Coordinates   [][]float64 `json:"coordinates"`
		ExecutionTime float64     `json:"executionTime"`
	} `json:"criticalPoints"`
}

// DecodeRoutes parses a routes payload. The returned value does not alias data.
func DecodeRoutes(data []byte) (*RouteResult, error) {
	defer metrics.Timer(metrics.PayloadDecode)()

	var doc routesDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("routes: %w: %v", ErrMalformedPayload, err)
	}
	if doc.Error != nil && *doc.Error != "" {
		return nil, &EngineError{Op: "routes", Message: *doc.Error}
	}
	if doc.Routes == nil {
		return nil, fmt.Errorf("routes: %w: missing yenKShortestPaths", ErrMalformedPayload)
	}

	res := &RouteResult{
		Routes:          make([]Route, 0, len(*doc.Routes)),
		ExecutionTimeMs: doc.ExecutionTime,
	}
	for i, wr := range *doc.Routes {
		pts, err := toPoints(wr.Coordinates)
		if err != nil {
			return nil, fmt.Errorf("routes: route %d: %w", i, err)
		}
		res.Routes = append(res.Routes, Route{Coordinates: pts, Distance: wr.Distance})
	}
	return res, nil
}

// DecodeCritical parses a critical-points payload.
func DecodeCritical(data []byte) (*CriticalResult, error) {
	defer metrics.Timer(metrics.PayloadDecode)()

	var doc criticalDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("critical: %w: %v", ErrMalformedPayload, err)
	}
	if doc.Error != nil && *doc.Error != "" {
		return nil, &EngineError{Op: "critical", Message: *doc.Error}
	}
	if doc.Critical == nil {
		return nil, fmt.Errorf("critical: %w: missing criticalPoints", ErrMalformedPayload)
	}
	pts, err := toPoints(doc.Critical.Coordinates)
	if err != nil {
		return nil, fmt.Errorf("critical: %w", err)
	}
	return &CriticalResult{Points: pts, ExecutionTimeMs: doc.Critical.ExecutionTime}, nil
}

func toPoints(coords [][]float64) ([]geo.Point, error) {
	pts := make([]geo.Point, 0, len(coords))
	for j, c := range coords {
		if len(c) != 2 {
			return nil, fmt.Errorf("%w: coordinate %d has %d values", ErrMalformedPayload, j, len(c))
		}
		pts = append(pts, geo.Pt(c[0], c[1]))
	}
	return pts, nil
}

// EncodeRoutes writes res in the engine wire format.
func EncodeRoutes(w *Buffer, res *RouteResult) error {
	doc := struct {
		Routes        []wireRoute `json:"yenKShortestPaths"`
		ExecutionTime float64     `json:"executionTime"`
	}{Routes: make([]wireRoute, 0, len(res.Routes)), ExecutionTime: res.ExecutionTimeMs}
	for _, r := range res.Routes {
		doc.Routes = append(doc.Routes, wireRoute{Coordinates: fromPoints(r.Coordinates), Distance: r.Distance})
	}
	return json.NewEncoder(w).Encode(doc)
}

// EncodeCritical writes res in the engine wire format.
func EncodeCritical(w *Buffer, res *CriticalResult) error {
	type inner struct {
		Coordinates   [][]float64 `json:"coordinates"`
		ExecutionTime float64     `json:"executionTime"`
	}
	doc := struct {
		Critical inner `json:"criticalPoints"`
	}{Critical: inner{Coordinates: fromPoints(res.Points), ExecutionTime: res.ExecutionTimeMs}}
	return json.NewEncoder(w).Encode(doc)
}

// EncodeError writes an engine-reported failure.
func EncodeError(w *Buffer, msg string) error {
	return json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func fromPoints(pts []geo.Point) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		out[i] = []float64{p.Lat, p.Lon}
	}
	return out
}
