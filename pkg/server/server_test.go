package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/metrics"
	"github.com/vanderheijden86/routelens/pkg/places"
	"github.com/vanderheijden86/routelens/pkg/roadnet"
	"github.com/vanderheijden86/routelens/pkg/testutil"
)

type fixture struct {
	srv    *Server
	ts     *httptest.Server
	gen    *testutil.Generator
	net    *roadnet.Network
	bridge *engine.Bridge
}

func newFixture(t *testing.T, roads testutil.RoadFixture, opts ...Option) fixture {
	t.Helper()
	gen := testutil.NewDefault()
	path := testutil.WriteGraphFile(t, t.TempDir(), "city.geojson", roads)

	net := roadnet.New()
	b := engine.NewBridge(net)
	if err := b.Initialize(context.Background(), path); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	dir := places.New(map[string]geo.Point{
		"Clock Tower": gen.At(0, 0),
		"Rajpur Road": gen.At(2, 3),
		"Far Side":    gen.At(10, 2),
	})
	opts = append([]Option{WithRoads(net.Segments)}, opts...)
	srv := New(b, dir, opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return fixture{srv: srv, ts: ts, gen: gen, net: net, bridge: b}
}

func (f fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(body, &v); err != nil {
		t.Fatalf("decoding %s: %v", body, err)
	}
	return v
}

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func TestHealth(t *testing.T) {
	f := newFixture(t, testutil.NewDefault().Grid(3, 4))
	resp, body := f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[map[string]any](t, body)
	if got["ready"] != true || got["places"] != float64(3) {
		t.Errorf("health = %v", got)
	}
}

func TestHealth_NotReady(t *testing.T) {
	b := engine.NewBridge(roadnet.New())
	srv := New(b, places.New(nil))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503 before the graph loads", rec.Code)
	}
}

func TestPlaces(t *testing.T) {
	f := newFixture(t, testutil.NewDefault().Grid(3, 4))

	_, body := f.get(t, "/api/places")
	all := decode[struct {
		Places []placeJSON `json:"places"`
		Count  int         `json:"count"`
	}](t, body)
	if all.Count != 3 || all.Places[0].Name != "Clock Tower" {
		t.Errorf("places = %+v", all)
	}

	_, body = f.get(t, "/api/places?q=raj")
	some := decode[struct {
		Places []placeJSON `json:"places"`
	}](t, body)
	if len(some.Places) != 1 || some.Places[0].Name != "Rajpur Road" {
		t.Fatalf("suggestions = %+v", some.Places)
	}
	if want := f.gen.At(2, 3); some.Places[0].Lat != want.Lat || some.Places[0].Lon != want.Lon {
		t.Errorf("coordinates = %+v, want %s", some.Places[0], want)
	}
}

func TestRoutes_Get(t *testing.T) {
	f := newFixture(t, testutil.NewDefault().Grid(3, 4))
	resp, body := f.get(t, "/api/routes?start=Clock+Tower&end=Rajpur+Road&algorithm=astar")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	got := decode[routesResponse](t, body)

	if got.Summary == nil || got.Summary.Algorithm != "astar" {
		t.Fatalf("summary = %+v", got.Summary)
	}
	if len(got.Routes) != roadnet.DefaultK {
		t.Fatalf("routes = %d, want %d", len(got.Routes), roadnet.DefaultK)
	}
	first := got.Routes[0]
	if first.Rank != 1 || first.Color != "#007FFF" || first.Label != "Optimal Route" {
		t.Errorf("first route = %+v", first)
	}
	start := f.gen.At(0, 0)
	if c := first.Coordinates[0]; c[0] != start.Lat || c[1] != start.Lon {
		t.Errorf("route starts at %v, want %s", c, start)
	}
	for i := 1; i < len(got.Routes); i++ {
		if got.Routes[i].DistanceM < got.Routes[i-1].DistanceM-1 {
			t.Errorf("route %d shorter than route %d", i+1, i)
		}
	}
	if !strings.Contains(got.Status, "4 paths found") {
		t.Errorf("status = %q", got.Status)
	}
}

func TestRoutes_PostDefaultsToDijkstra(t *testing.T) {
	f := newFixture(t, testutil.NewDefault().Grid(3, 4))
	resp, err := http.Post(f.ts.URL+"/api/routes", "application/json",
		strings.NewReader(`{"start":"Clock Tower","end":"30.31, 78.015"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	got := decode[routesResponse](t, body)
	if got.Summary.Algorithm != "dijkstra" {
		t.Errorf("algorithm = %q", got.Summary.Algorithm)
	}
}

func TestRoutes_Errors(t *testing.T) {
	f := newFixture(t, testutil.NewDefault().Disconnected(3, 3))

	tests := []struct {
		name   string
		query  string
		status int
		code   string
	}{
		{"unknown algorithm", "start=Clock+Tower&end=Far+Side&algorithm=bfs", http.StatusBadRequest, "bad_request"},
		{"unknown place", "start=Nowhere&end=Far+Side", http.StatusBadRequest, "invalid_selection"},
		{"missing end", "start=Clock+Tower", http.StatusBadRequest, "invalid_selection"},
		{"no path", "start=Clock+Tower&end=Far+Side", http.StatusNotFound, "no_results"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.get(t, "/api/routes?"+tt.query)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.status, body)
			}
			got := decode[errorBody](t, body)
			if got.Code != tt.code || got.Error == "" {
				t.Errorf("error body = %+v", got)
			}
		})
	}

	resp, err := http.Post(f.ts.URL+"/api/routes", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", resp.StatusCode)
	}
}

func TestRoutes_EngineFailure(t *testing.T) {
	fake := testutil.NewFakeEngine(nil, nil)
	fake.ReportError("graph exploded")
	b := engine.NewBridge(fake)
	if err := b.Initialize(context.Background(), "fake"); err != nil {
		t.Fatal(err)
	}
	dir := places.New(map[string]geo.Point{"A": geo.Pt(30.30, 78.00), "B": geo.Pt(30.31, 78.01)})
	srv := New(b, dir)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/routes?start=A&end=B", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	got := decode[errorBody](t, rec.Body.Bytes())
	if got.Code != "engine_failure" || !strings.Contains(got.Error, "graph exploded") {
		t.Errorf("error body = %+v", got)
	}
	testutil.AssertReleasedOnce(t, fake)
}

func TestCritical(t *testing.T) {
	f := newFixture(t, testutil.NewDefault().Chain(6))
	resp, body := f.get(t, "/api/critical?zoom=19")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	got := decode[criticalResponse](t, body)
	if len(got.Points) == 0 {
		t.Fatal("expected critical points on a chain")
	}
	if got.Report == nil || got.Report.Count != len(got.Points) {
		t.Errorf("report = %+v, points = %d", got.Report, len(got.Points))
	}
	total := 0
	for _, c := range got.Clusters {
		total += c.Count
	}
	if total != len(got.Points) {
		t.Errorf("clusters cover %d of %d points", total, len(got.Points))
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, testutil.NewDefault().Grid(3, 4))
	resp, body := f.get(t, "/api/snapshot.svg?start=Clock+Tower&end=Rajpur+Road&width=400&height=300")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("content type = %q", ct)
	}
	out := string(body)
	if !strings.Contains(out, `width="400"`) || !strings.Contains(out, "<polyline") {
		t.Errorf("unexpected snapshot: %.200s", out)
	}

	resp, _ = f.get(t, "/api/snapshot.svg")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("empty map snapshot status = %d", resp.StatusCode)
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, testutil.NewDefault().Grid(3, 4), WithRateLimit(0.001, 1))

	resp, _ := f.get(t, "/api/routes?start=Clock+Tower&end=Rajpur+Road")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first request status = %d", resp.StatusCode)
	}
	resp, body := f.get(t, "/api/routes?start=Clock+Tower&end=Rajpur+Road")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}
	if got := decode[errorBody](t, body); got.Code != "rate_limited" {
		t.Errorf("code = %q", got.Code)
	}

	// Directory lookups are not limited.
	if resp, _ := f.get(t, "/api/places"); resp.StatusCode != http.StatusOK {
		t.Errorf("places status = %d", resp.StatusCode)
	}
}

func TestMetricsAndRequestID(t *testing.T) {
	collector, err := metrics.NewCollector(prometheus.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}
	f := newFixture(t, testutil.NewDefault().Grid(3, 4), WithCollector(collector))

	req, _ := http.NewRequest(http.MethodGet, f.ts.URL+"/api/places", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("X-Request-ID"); got != "req-123" {
		t.Errorf("X-Request-ID = %q", got)
	}

	resp, _ = f.get(t, "/healthz")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("a request id should be generated when none is sent")
	}

	_, body := f.get(t, "/metrics")
	out := string(body)
	if !strings.Contains(out, "rl_http_requests_total") || !strings.Contains(out, `route="/api/places"`) {
		t.Errorf("metrics missing api request counter:\n%s", out)
	}
}
