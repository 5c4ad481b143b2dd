package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/geo"
)

// FakeEngine is a scripted engine.Engine. It encodes the configured results in
// the engine wire format and counts every payload it hands out and every
// release it receives.
type FakeEngine struct {
	mu       sync.Mutex
	routes   *engine.RouteResult
	critical *engine.CriticalResult
	err      error
	engErr   string
	delay    time.Duration
	loads    []string
	queries  []engine.Query

	issued   atomic.Int32
	released atomic.Int32
}

// NewFakeEngine returns an engine that answers every query with routes and
// critical.
func NewFakeEngine(routes *engine.RouteResult, critical *engine.CriticalResult) *FakeEngine {
	return &FakeEngine{routes: routes, critical: critical}
}

// FailWith makes subsequent calls return err with no payload.
func (f *FakeEngine) FailWith(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// ReportError makes subsequent calls return a payload carrying an engine-side
// error message.
func (f *FakeEngine) ReportError(msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.engErr = msg
}

// SetDelay makes each query wait d, or until its context ends.
func (f *FakeEngine) SetDelay(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
}

// SetRoutes replaces the routes answer.
func (f *FakeEngine) SetRoutes(res *engine.RouteResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routes = res
}

func (f *FakeEngine) Initialize(ctx context.Context, graphSource string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads = append(f.loads, graphSource)
	return ctx.Err()
}

func (f *FakeEngine) wait(ctx context.Context) error {
	f.mu.Lock()
	d := f.delay
	f.mu.Unlock()
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FakeEngine) FindKShortestRoutes(ctx context.Context, startLat, startLon, endLat, endLon float64, useAStar int) (engine.Payload, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.queries = append(f.queries, engine.Query{Start: geo.Pt(startLat, startLon), End: geo.Pt(endLat, endLon), UseAStar: useAStar == 1})
	res, err, msg := f.routes, f.err, f.engErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if res == nil && msg == "" {
		return nil, nil
	}
	return f.payload(func(b *engine.Buffer) error {
		if msg != "" {
			return engine.EncodeError(b, msg)
		}
		return engine.EncodeRoutes(b, res)
	})
}

func (f *FakeEngine) CriticalPoints(ctx context.Context) (engine.Payload, error) {
	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	f.mu.Lock()
	res, err, msg := f.critical, f.err, f.engErr
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if res == nil && msg == "" {
		return nil, nil
	}
	return f.payload(func(b *engine.Buffer) error {
		if msg != "" {
			return engine.EncodeError(b, msg)
		}
		return engine.EncodeCritical(b, res)
	})
}

func (f *FakeEngine) payload(write func(*engine.Buffer) error) (engine.Payload, error) {
	buf := engine.NewBuffer()
	if err := write(buf); err != nil {
		buf.Release()
		return nil, err
	}
	f.issued.Add(1)
	return &countedPayload{Buffer: buf, released: &f.released}, nil
}

// Issued returns how many payloads the engine has handed out.
func (f *FakeEngine) Issued() int { return int(f.issued.Load()) }

// Released returns how many Release calls the engine has seen.
func (f *FakeEngine) Released() int { return int(f.released.Load()) }

// Loads returns the graph sources passed to Initialize.
func (f *FakeEngine) Loads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

// Queries returns the route queries received so far.
func (f *FakeEngine) Queries() []engine.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Query(nil), f.queries...)
}

type countedPayload struct {
	*engine.Buffer
	released *atomic.Int32
}

func (p *countedPayload) Release() {
	p.released.Add(1)
	p.Buffer.Release()
}

// AssertReleasedOnce checks that every payload the engine issued was released
// exactly once.
func AssertReleasedOnce(t *testing.T, f *FakeEngine) {
	t.Helper()
	if issued, released := f.Issued(), f.Released(); issued != released {
		t.Errorf("payload releases: issued %d, released %d", issued, released)
	}
}

// AssertRoutesRanked checks routes are non-empty polylines ordered shortest
// first, within a millimetre.
func AssertRoutesRanked(t *testing.T, routes []engine.Route) {
	t.Helper()
	for i, r := range routes {
		if len(r.Coordinates) == 0 {
			t.Errorf("route %d has no coordinates", i)
		}
		if i > 0 && r.Distance < routes[i-1].Distance-1e-3 {
			t.Errorf("route %d (%.1fm) is shorter than route %d (%.1fm)", i, r.Distance, i-1, routes[i-1].Distance)
		}
	}
}

// AssertRouteJoins checks the route starts at start and ends at end.
func AssertRouteJoins(t *testing.T, r engine.Route, start, end geo.Point) {
	t.Helper()
	if len(r.Coordinates) == 0 {
		t.Fatal("route has no coordinates")
	}
	if got := r.Coordinates[0]; got != start {
		t.Errorf("route starts at %s, want %s", got, start)
	}
	if got := r.Coordinates[len(r.Coordinates)-1]; got != end {
		t.Errorf("route ends at %s, want %s", got, end)
	}
}

// AssertJSONEqual compares two values after JSON round-tripping.
// Useful for comparing structs that may have different Go representations
// but equivalent JSON forms.
func AssertJSONEqual(t *testing.T, expected, actual any) {
	t.Helper()

	expectedJSON, err := json.Marshal(expected)
	if err != nil {
		t.Fatalf("failed to marshal expected: %v", err)
	}
	actualJSON, err := json.Marshal(actual)
	if err != nil {
		t.Fatalf("failed to marshal actual: %v", err)
	}
	if string(expectedJSON) != string(actualJSON) {
		t.Errorf("JSON mismatch:\nexpected: %s\nactual:   %s", expectedJSON, actualJSON)
	}
}

// GoldenFile handles golden file comparisons.
type GoldenFile struct {
	t      *testing.T
	dir    string
	name   string
	update bool
}

// NewGoldenFile creates a golden file helper.
// If GENERATE_GOLDEN env var is set, golden files will be updated.
func NewGoldenFile(t *testing.T, dir, name string) *GoldenFile {
	t.Helper()
	return &GoldenFile{
		t:      t,
		dir:    dir,
		name:   name,
		update: os.Getenv("GENERATE_GOLDEN") != "",
	}
}

// Path returns the full path to the golden file.
func (g *GoldenFile) Path() string {
	return filepath.Join(g.dir, g.name)
}

// Assert compares actual content against the golden file, or rewrites it when
// GENERATE_GOLDEN is set.
func (g *GoldenFile) Assert(actual string) {
	g.t.Helper()
	path := g.Path()

	if g.update {
		if err := os.MkdirAll(g.dir, 0o755); err != nil {
			g.t.Fatalf("failed to create golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0o644); err != nil {
			g.t.Fatalf("failed to write golden file: %v", err)
		}
		g.t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			g.t.Fatalf("golden file does not exist: %s\nRun with GENERATE_GOLDEN=1 to create it", path)
		}
		g.t.Fatalf("failed to read golden file: %v", err)
	}
	if string(expected) == actual {
		return
	}

	expectedLines := strings.Split(string(expected), "\n")
	actualLines := strings.Split(actual, "\n")
	for i := 0; i < len(expectedLines) || i < len(actualLines); i++ {
		var expLine, actLine string
		if i < len(expectedLines) {
			expLine = expectedLines[i]
		}
		if i < len(actualLines) {
			actLine = actualLines[i]
		}
		if expLine != actLine {
			g.t.Errorf("golden file mismatch at line %d:\nexpected: %s\nactual:   %s", i+1, expLine, actLine)
			return
		}
	}
	g.t.Errorf("golden file mismatch (length differs)")
}

// AssertJSON compares actual value as indented JSON against the golden file.
func (g *GoldenFile) AssertJSON(actual any) {
	g.t.Helper()
	data, err := json.MarshalIndent(actual, "", "  ")
	if err != nil {
		g.t.Fatalf("failed to marshal actual value: %v", err)
	}
	g.Assert(string(data))
}
