package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Graph.K != 4 {
		t.Errorf("expected k 4, got %d", cfg.Graph.K)
	}
	if cfg.Algorithm != "dijkstra" || cfg.UseAStar() {
		t.Errorf("expected dijkstra, got %q", cfg.Algorithm)
	}
	if cfg.Map.Zoom != 13 || cfg.Map.MinZoom != 13 || cfg.Map.MaxZoom != 19 {
		t.Errorf("unexpected zoom levels: %+v", cfg.Map)
	}
	if !cfg.Map.Bounds().Contains(cfg.Map.CenterPoint()) {
		t.Error("default center should be inside the default bounds")
	}
	if !cfg.Journal.IsEnabled() {
		t.Error("journal should be enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFrom_NonExistent(t *testing.T) {
	cfg, err := LoadFrom("/nonexistent/path/config.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	if cfg.Graph.K != 4 {
		t.Errorf("expected default config, got k %d", cfg.Graph.K)
	}
}

func TestLoadFrom_ValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
graph:
  source: ~/maps/city.geojson
  k: 6
  watch: true
places: /srv/places.json
algorithm: astar
map:
  center: [30.30, 78.00]
  zoom: 14
  min_zoom: 12
  max_zoom: 18
journal:
  enabled: false
server:
  addr: ":9090"
  rate_limit: 2.5
  burst: 5
log:
  level: debug
  format: json
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	home, _ := os.UserHomeDir()
	if want := filepath.Join(home, "maps/city.geojson"); cfg.Graph.Source != want {
		t.Errorf("expected expanded source %q, got %q", want, cfg.Graph.Source)
	}
	if cfg.Graph.K != 6 || !cfg.Graph.Watch {
		t.Errorf("unexpected graph config: %+v", cfg.Graph)
	}
	if !cfg.UseAStar() {
		t.Error("expected astar")
	}
	if cfg.Map.CenterPoint().Lat != 30.30 || cfg.Map.Zoom != 14 {
		t.Errorf("unexpected map config: %+v", cfg.Map)
	}
	// Bounds were not in the file, so defaults remain.
	if cfg.Map.Bounds().Empty() {
		t.Error("expected default bounds to survive a partial map section")
	}
	if cfg.Journal.IsEnabled() {
		t.Error("journal should be disabled")
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.RateLimit != 2.5 || cfg.Server.Burst != 5 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	// Untouched sections keep their defaults.
	if cfg.Snapshot.Width != 1024 {
		t.Errorf("expected default snapshot width, got %d", cfg.Snapshot.Width)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("{{invalid yaml"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := `
algorithm: bellman-ford
graph:
  k: -1
map:
  min_zoom: 15
  max_zoom: 10
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFrom(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"bellman-ford", "graph.k", "min_zoom"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestLoadFrom_EnvOverrides(t *testing.T) {
	t.Setenv("RL_GRAPH", "/env/graph.geojson")
	t.Setenv("RL_PLACES", "/env/places.json")
	t.Setenv("RL_ALGORITHM", "astar")

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Graph.Source != "/env/graph.geojson" || cfg.Places != "/env/places.json" {
		t.Errorf("env overrides not applied: %+v", cfg)
	}
	if !cfg.UseAStar() {
		t.Error("expected astar from env")
	}
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")

	cfg := DefaultConfig()
	cfg.Graph.Source = "/data/roads.geojson"
	cfg.Algorithm = "astar"
	cfg.Server.Burst = 7

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	if loaded.Graph.Source != "/data/roads.geojson" || !loaded.UseAStar() || loaded.Server.Burst != 7 {
		t.Errorf("round trip lost values: %+v", loaded)
	}
	if loaded.Map.Bounds() != cfg.Map.Bounds() {
		t.Errorf("bounds changed: %+v vs %+v", loaded.Map.Bounds(), cfg.Map.Bounds())
	}
}

func TestXDGPaths(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg-config")
	t.Setenv("XDG_DATA_HOME", "/tmp/xdg-data")
	t.Setenv("XDG_STATE_HOME", "/tmp/xdg-state")

	if got := ConfigDir(); got != "/tmp/xdg-config/routelens" {
		t.Errorf("ConfigDir = %q", got)
	}
	if got := DataDir(); got != "/tmp/xdg-data/routelens" {
		t.Errorf("DataDir = %q", got)
	}
	if got := StateDir(); got != "/tmp/xdg-state/routelens" {
		t.Errorf("StateDir = %q", got)
	}
	if got := ConfigPath(); got != "/tmp/xdg-config/routelens/config.yaml" {
		t.Errorf("ConfigPath = %q", got)
	}
	if got := DefaultConfig().Journal.Path; got != "/tmp/xdg-state/routelens/journal.db" {
		t.Errorf("journal path = %q", got)
	}
}
