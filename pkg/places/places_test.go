package places

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vanderheijden86/routelens/pkg/geo"
)

func TestRead_SwapsAxisOrder(t *testing.T) {
	d, err := Read(strings.NewReader(`{"A": [78.03, 30.32], "B": [78.05, 30.34]}`))
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	p, ok := d.Lookup("A")
	if !ok {
		t.Fatal("expected A to be present")
	}
	if p != geo.Pt(30.32, 78.03) {
		t.Errorf("expected lat/lon swap, got %v", p)
	}
	if d.Len() != 2 {
		t.Errorf("expected 2 places, got %d", d.Len())
	}
	if names := d.Names(); names[0] != "A" || names[1] != "B" {
		t.Errorf("names not sorted: %v", names)
	}
}

func TestRead_Rejects(t *testing.T) {
	tests := map[string]string{
		"not json":     `nope`,
		"short pair":   `{"A": [78.03]}`,
		"out of range": `{"A": [200, 30]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Read(strings.NewReader(body)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "places.json")
	if err := os.WriteFile(path, []byte(`{"Clock Tower": [78.041863, 30.324323]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !d.Has("Clock Tower") || d.Has("clock tower") {
		t.Error("lookup should be exact")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSuggest(t *testing.T) {
	d := New(map[string]geo.Point{
		"Clock Tower":   geo.Pt(30.32, 78.04),
		"ISBT":          geo.Pt(30.28, 77.99),
		"Tower Road":    geo.Pt(30.33, 78.05),
		"Paltan Bazaar": geo.Pt(30.32, 78.03),
	})
	got := d.Suggest("tow", 5)
	if len(got) != 2 || got[0] != "Tower Road" || got[1] != "Clock Tower" {
		t.Errorf("expected prefix match first, got %v", got)
	}
	if got := d.Suggest("", 5); got != nil {
		t.Errorf("empty query should suggest nothing, got %v", got)
	}
	if got := d.Suggest("a", 1); len(got) != 1 {
		t.Errorf("limit not applied: %v", got)
	}
}

func TestNilDirectory(t *testing.T) {
	var d *Directory
	if d.Has("A") || d.Len() != 0 || d.Names() != nil {
		t.Error("nil directory should behave as empty")
	}
}
