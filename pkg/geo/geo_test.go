package geo

import (
	"math"
	"testing"
)

func TestDistance_KnownPair(t *testing.T) {
	// ISBT Dehradun to Clock Tower is roughly 5.8 km as the crow flies.
	isbt := Pt(30.289248, 77.997087)
	tower := Pt(30.324323, 78.041863)

	d := Distance(isbt, tower)
	if d < 5600 || d > 6000 {
		t.Errorf("expected ~5.8km, got %.1fm", d)
	}
	if back := Distance(tower, isbt); math.Abs(back-d) > 1e-6 {
		t.Errorf("distance not symmetric: %f vs %f", d, back)
	}
	if self := Distance(isbt, isbt); self != 0 {
		t.Errorf("expected zero self distance, got %f", self)
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Pt(30.3, 78.0), true},
		{Pt(-90, 180), true},
		{Pt(91, 0), false},
		{Pt(0, -181), false},
		{Pt(math.NaN(), 0), false},
		{Pt(0, math.Inf(1)), false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("Valid(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}

func TestFormatCoord(t *testing.T) {
	if got := Pt(30.32, 78.03).String(); got != "30.320000, 78.030000" {
		t.Errorf("unexpected format %q", got)
	}
}

func TestBounds_ExtendUnion(t *testing.T) {
	var b Bounds
	if !b.Empty() {
		t.Fatal("zero bounds should be empty")
	}
	b = b.Extend(Pt(30.30, 78.00)).Extend(Pt(30.35, 78.05))
	if b.SouthWest != Pt(30.30, 78.00) || b.NorthEast != Pt(30.35, 78.05) {
		t.Errorf("unexpected bounds %+v", b)
	}

	other := NewBounds(Pt(30.20, 78.10), Pt(30.25, 78.12))
	u := b.Union(other)
	if u.SouthWest != Pt(30.20, 78.00) || u.NorthEast != Pt(30.35, 78.12) {
		t.Errorf("unexpected union %+v", u)
	}
	if got := b.Union(Bounds{}); got != b {
		t.Errorf("union with empty should be identity, got %+v", got)
	}
	if !u.Contains(Pt(30.22, 78.11)) || u.Contains(Pt(31, 78)) {
		t.Error("Contains mismatch")
	}
}

func TestBounds_Clamp(t *testing.T) {
	b := NewBounds(Pt(30.26, 77.95), Pt(30.38, 78.10))
	got := b.Clamp(Pt(31, 77))
	if got != Pt(30.38, 77.95) {
		t.Errorf("clamp = %v", got)
	}
	if p := (Bounds{}).Clamp(Pt(1, 2)); p != Pt(1, 2) {
		t.Errorf("empty clamp changed point: %v", p)
	}
}

func TestProjectRoundTrip(t *testing.T) {
	for _, p := range []Point{Pt(30.3165, 78.0322), Pt(-33.86, 151.2), Pt(0, 0)} {
		x, y := Project(p, 13)
		back := Unproject(x, y, 13)
		if math.Abs(back.Lat-p.Lat) > 1e-9 || math.Abs(back.Lon-p.Lon) > 1e-9 {
			t.Errorf("round trip %v -> %v", p, back)
		}
	}
}

func TestPathLength(t *testing.T) {
	pts := []Point{Pt(30.30, 78.00), Pt(30.31, 78.00), Pt(30.31, 78.01)}
	want := Distance(pts[0], pts[1]) + Distance(pts[1], pts[2])
	if got := PathLength(pts); math.Abs(got-want) > 1e-9 {
		t.Errorf("PathLength = %f, want %f", got, want)
	}
	if PathLength(pts[:1]) != 0 {
		t.Error("single point path should be zero length")
	}
}
