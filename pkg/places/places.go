// Package places loads the static place-name directory used to resolve typed
// start and destination names into coordinates.
//
// On disk the directory is a JSON object mapping a name to a [longitude, latitude]
// pair, matching GeoJSON axis order:
//
//	{"Clock Tower": [78.041863, 30.324323], "ISBT": [77.997087, 30.289248]}
package places

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/routelens/pkg/geo"
)

// Directory is an immutable name → coordinate lookup.
type Directory struct {
	points map[string]geo.Point
	names  []string
}

// New builds a directory from already-resolved points.
func New(points map[string]geo.Point) *Directory {
	d := &Directory{points: make(map[string]geo.Point, len(points))}
	for name, p := range points {
		d.points[name] = p
		d.names = append(d.names, name)
	}
	sort.Strings(d.names)
	return d
}

// Load reads a directory file from disk.
func Load(path string) (*Directory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening places: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a directory from r.
func Read(r io.Reader) (*Directory, error) {
	var raw map[string][]float64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parsing places: %w", err)
	}

	points := make(map[string]geo.Point, len(raw))
	for name, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("place %q: want [lon, lat], got %d values", name, len(pair))
		}
		p := geo.Pt(pair[1], pair[0])
		if !p.Valid() {
			return nil, fmt.Errorf("place %q: invalid coordinate %v", name, pair)
		}
		points[name] = p
	}
	return New(points), nil
}

// Lookup returns the coordinate for an exact name.
func (d *Directory) Lookup(name string) (geo.Point, bool) {
	if d == nil {
		return geo.Point{}, false
	}
	p, ok := d.points[name]
	return p, ok
}

// Has reports whether name is a known place.
func (d *Directory) Has(name string) bool {
	_, ok := d.Lookup(name)
	return ok
}

// Names returns all place names sorted alphabetically.
func (d *Directory) Names() []string {
	if d == nil {
		return nil
	}
	out := make([]string, len(d.names))
	copy(out, d.names)
	return out
}

// Len returns the number of places.
func (d *Directory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}

// Suggest returns up to limit names containing query, case-insensitively,
// with prefix matches first.
func (d *Directory) Suggest(query string, limit int) []string {
	if d == nil || limit <= 0 {
		return nil
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	var prefix, contains []string
	for _, name := range d.names {
		lower := strings.ToLower(name)
		switch {
		case strings.HasPrefix(lower, q):
			prefix = append(prefix, name)
		case strings.Contains(lower, q):
			contains = append(contains, name)
		}
	}
	out := append(prefix, contains...)
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// MarshalJSON writes the directory back in its on-disk [lon, lat] form.
func (d *Directory) MarshalJSON() ([]byte, error) {
	raw := make(map[string][2]float64, d.Len())
	if d != nil {
		for name, p := range d.points {
			raw[name] = [2]float64{p.Lon, p.Lat}
		}
	}
	return json.Marshal(raw)
}
