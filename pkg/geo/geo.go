// Package geo holds the coordinate primitives shared by the engine bridge, the
// rendering surface and the presentation pipelines.
package geo

import (
	"fmt"
	"math"
)

// EarthRadius is the mean earth radius in meters used for great-circle distances.
const EarthRadius = 6371000.0

// TileSize is the pixel size of one web-mercator tile at zoom 0.
const TileSize = 256.0

// maxMercatorLat keeps projections finite near the poles.
const maxMercatorLat = 85.0511287798

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Pt is shorthand for Point{Lat: lat, Lon: lon}.
func Pt(lat, lon float64) Point {
	return Point{Lat: lat, Lon: lon}
}

// Valid reports whether p is a finite coordinate inside the WGS84 ranges.
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// String renders the point the way the selection panels display it.
func (p Point) String() string {
	return FormatCoord(p.Lat, p.Lon)
}

// FormatCoord formats a coordinate pair with six decimals.
func FormatCoord(lat, lon float64) string {
	return fmt.Sprintf("%.6f, %.6f", lat, lon)
}

// Distance returns the haversine great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	const rad = math.Pi / 180
	lat1 := a.Lat * rad
	lat2 := b.Lat * rad
	dLat := (b.Lat - a.Lat) * rad
	dLon := (b.Lon - a.Lon) * rad

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(h)))
}

// PathLength sums the segment distances of an ordered coordinate sequence.
func PathLength(pts []Point) float64 {
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += Distance(pts[i-1], pts[i])
	}
	return total
}

// Bounds is a lat/lon bounding box. The zero value is empty.
type Bounds struct {
	SouthWest Point `json:"south_west"`
	NorthEast Point `json:"north_east"`
	set       bool
}

// NewBounds returns the smallest bounds containing both corners.
func NewBounds(a, b Point) Bounds {
	var bb Bounds
	bb = bb.Extend(a)
	return bb.Extend(b)
}

// BoundsOf returns the bounds of all points, empty when pts is empty.
func BoundsOf(pts []Point) Bounds {
	var b Bounds
	for _, p := range pts {
		b = b.Extend(p)
	}
	return b
}

// Empty reports whether no point has been added.
func (b Bounds) Empty() bool {
	return !b.set
}

// Extend returns b grown to include p.
func (b Bounds) Extend(p Point) Bounds {
	if !b.set {
		return Bounds{SouthWest: p, NorthEast: p, set: true}
	}
	b.SouthWest.Lat = math.Min(b.SouthWest.Lat, p.Lat)
	b.SouthWest.Lon = math.Min(b.SouthWest.Lon, p.Lon)
	b.NorthEast.Lat = math.Max(b.NorthEast.Lat, p.Lat)
	b.NorthEast.Lon = math.Max(b.NorthEast.Lon, p.Lon)
	return b
}

// Union returns the smallest bounds containing b and o.
func (b Bounds) Union(o Bounds) Bounds {
	if o.Empty() {
		return b
	}
	return b.Extend(o.SouthWest).Extend(o.NorthEast)
}

// Contains reports whether p lies inside b (edges inclusive).
func (b Bounds) Contains(p Point) bool {
	if !b.set {
		return false
	}
	return p.Lat >= b.SouthWest.Lat && p.Lat <= b.NorthEast.Lat &&
		p.Lon >= b.SouthWest.Lon && p.Lon <= b.NorthEast.Lon
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Point {
	return Point{
		Lat: (b.SouthWest.Lat + b.NorthEast.Lat) / 2,
		Lon: (b.SouthWest.Lon + b.NorthEast.Lon) / 2,
	}
}

// Clamp moves p to the nearest point inside b. Empty bounds return p unchanged.
func (b Bounds) Clamp(p Point) Point {
	if !b.set {
		return p
	}
	p.Lat = math.Max(b.SouthWest.Lat, math.Min(b.NorthEast.Lat, p.Lat))
	p.Lon = math.Max(b.SouthWest.Lon, math.Min(b.NorthEast.Lon, p.Lon))
	return p
}

// Project converts p to web-mercator world pixels at the given zoom.
func Project(p Point, zoom float64) (x, y float64) {
	scale := TileSize * math.Exp2(zoom)
	lat := math.Max(-maxMercatorLat, math.Min(maxMercatorLat, p.Lat))
	sin := math.Sin(lat * math.Pi / 180)
	x = (p.Lon + 180) / 360 * scale
	y = (0.5 - math.Log((1+sin)/(1-sin))/(4*math.Pi)) * scale
	return x, y
}

// Unproject is the inverse of Project.
func Unproject(x, y, zoom float64) Point {
	scale := TileSize * math.Exp2(zoom)
	lon := x/scale*360 - 180
	n := math.Pi - 2*math.Pi*y/scale
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return Point{Lat: lat, Lon: lon}
}
