// Package config handles loading and saving routelens configuration.
//
// Configuration follows the XDG Base Directory specification:
//   - Config:  ~/.config/routelens/config.yaml
//   - Data:    ~/.local/share/routelens/ (road network, places)
//   - State:   ~/.local/state/routelens/ (query journal, logs)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/routelens/pkg/geo"
)

const appName = "routelens"

// GraphConfig points at the road network.
type GraphConfig struct {
	Source string `yaml:"source,omitempty"` // GeoJSON road network
	K      int    `yaml:"k,omitempty"`      // Routes requested per query
	Watch  bool   `yaml:"watch,omitempty"`  // Reload when Source changes
}

// MapConfig is the initial map view and its limits.
type MapConfig struct {
	// Center is lat, lon.
	Center  [2]float64 `yaml:"center,flow"`
	Zoom    float64    `yaml:"zoom,omitempty"`
	MinZoom float64    `yaml:"min_zoom,omitempty"`
	MaxZoom float64    `yaml:"max_zoom,omitempty"`
	// MaxBounds is south, west, north, east.
	MaxBounds [4]float64 `yaml:"max_bounds,flow,omitempty"`
}

// CenterPoint returns the configured center.
func (m MapConfig) CenterPoint() geo.Point {
	return geo.Pt(m.Center[0], m.Center[1])
}

// Bounds returns the configured max bounds, empty when unset.
func (m MapConfig) Bounds() geo.Bounds {
	if m.MaxBounds == [4]float64{} {
		return geo.Bounds{}
	}
	return geo.NewBounds(geo.Pt(m.MaxBounds[0], m.MaxBounds[1]), geo.Pt(m.MaxBounds[2], m.MaxBounds[3]))
}

// JournalConfig controls the query history database.
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// IsEnabled defaults to true.
func (j JournalConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// ServerConfig controls `rl serve`.
type ServerConfig struct {
	Addr      string  `yaml:"addr,omitempty"`
	RateLimit float64 `yaml:"rate_limit,omitempty"` // Engine-backed requests per second
	Burst     int     `yaml:"burst,omitempty"`
}

// SnapshotConfig controls map image export.
type SnapshotConfig struct {
	Dir    string `yaml:"dir,omitempty"`
	Width  int    `yaml:"width,omitempty"`
	Height int    `yaml:"height,omitempty"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text, json
	File   string `yaml:"file,omitempty"`   // TUI mode logs here instead of stderr
}

// Config is the top-level configuration for rl.
type Config struct {
	Graph     GraphConfig    `yaml:"graph,omitempty"`
	Places    string         `yaml:"places,omitempty"`
	Algorithm string         `yaml:"algorithm,omitempty"` // dijkstra, astar
	Map       MapConfig      `yaml:"map,omitempty"`
	Journal   JournalConfig  `yaml:"journal,omitempty"`
	Server    ServerConfig   `yaml:"server,omitempty"`
	Snapshot  SnapshotConfig `yaml:"snapshot,omitempty"`
	Log       LogConfig      `yaml:"log,omitempty"`
}

// DefaultConfig returns a Config centered on Dehradun with the data files in
// ./data.
func DefaultConfig() Config {
	return Config{
		Graph: GraphConfig{
			Source: filepath.Join("data", "dehradun.geojson"),
			K:      4,
		},
		Places:    filepath.Join("data", "places.json"),
		Algorithm: "dijkstra",
		Map: MapConfig{
			Center:    [2]float64{30.3165, 78.0322},
			Zoom:      13,
			MinZoom:   13,
			MaxZoom:   19,
			MaxBounds: [4]float64{30.26, 77.95, 30.38, 78.10},
		},
		Journal: JournalConfig{
			Path: filepath.Join(StateDir(), "journal.db"),
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8080",
			RateLimit: 10,
			Burst:     20,
		},
		Snapshot: SnapshotConfig{
			Dir:    ".",
			Width:  1024,
			Height: 768,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   filepath.Join(StateDir(), "rl.log"),
		},
	}
}

// ConfigDir returns the XDG config directory for routelens.
func ConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the XDG data directory for routelens.
func DataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", appName)
}

// StateDir returns the XDG state directory for routelens.
func StateDir() string {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "state", appName)
}

// ConfigPath returns the full path to config.yaml.
func ConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads the config file from the XDG config directory.
// Returns DefaultConfig if the file doesn't exist.
func Load() (Config, error) {
	path := ConfigPath()
	if path == "" {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads config from a specific path, then applies RL_* environment
// overrides. Returns DefaultConfig if the file doesn't exist.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Graph.Source = expandHome(cfg.Graph.Source)
	cfg.Places = expandHome(cfg.Places)
	cfg.Journal.Path = expandHome(cfg.Journal.Path)
	cfg.Snapshot.Dir = expandHome(cfg.Snapshot.Dir)
	cfg.Log.File = expandHome(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv lets RL_GRAPH, RL_PLACES, RL_JOURNAL and RL_ALGORITHM override the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("RL_GRAPH"); v != "" {
		c.Graph.Source = v
	}
	if v := os.Getenv("RL_PLACES"); v != "" {
		c.Places = v
	}
	if v := os.Getenv("RL_JOURNAL"); v != "" {
		c.Journal.Path = v
	}
	if v := os.Getenv("RL_ALGORITHM"); v != "" {
		c.Algorithm = v
	}
}

// Validate checks values that would otherwise fail far from the config file.
func (c Config) Validate() error {
	var errs []error
	switch c.Algorithm {
	case "dijkstra", "astar":
	default:
		errs = append(errs, fmt.Errorf("algorithm %q: want dijkstra or astar", c.Algorithm))
	}
	if c.Graph.K < 1 {
		errs = append(errs, fmt.Errorf("graph.k must be at least 1, got %d", c.Graph.K))
	}
	if c.Map.MinZoom > c.Map.MaxZoom {
		errs = append(errs, fmt.Errorf("map.min_zoom %v exceeds map.max_zoom %v", c.Map.MinZoom, c.Map.MaxZoom))
	}
	if !c.Map.CenterPoint().Valid() {
		errs = append(errs, fmt.Errorf("map.center %v is not a coordinate", c.Map.Center))
	}
	if c.Server.RateLimit < 0 || c.Server.Burst < 0 {
		errs = append(errs, errors.New("server.rate_limit and server.burst must not be negative"))
	}
	return errors.Join(errs...)
}

// UseAStar reports whether the configured algorithm is A*.
func (c Config) UseAStar() bool {
	return strings.EqualFold(c.Algorithm, "astar")
}

// Save writes the config to the XDG config directory.
func Save(cfg Config) error {
	path := ConfigPath()
	if path == "" {
		return fmt.Errorf("cannot determine config directory")
	}
	return SaveTo(cfg, path)
}

// SaveTo writes the config to a specific path.
func SaveTo(cfg Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}
