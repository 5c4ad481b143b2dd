package controller

import (
	"github.com/vanderheijden86/routelens/pkg/surface"
)

// RouteStyle is the presentation of one route rank.
type RouteStyle struct {
	Color       string
	Weight      float64
	Opacity     float64
	DashArray   string
	Label       string
	Icon        string
	Priority    string
	ShadowColor string
}

// RouteStyles is indexed by rank. Ranks beyond the table are not drawn and get
// no card, but still count toward the comparison aggregates.
var RouteStyles = [...]RouteStyle{
	{Color: "#007FFF", Weight: 8, Opacity: 0.95, Label: "Optimal Route", Icon: "🏆", Priority: "Best", ShadowColor: "#6f42c140"},
	{Color: "#fd7e14", Weight: 6, Opacity: 0.85, DashArray: "12, 8", Label: "Alternative 1", Icon: "🥈", Priority: "Good", ShadowColor: "#fd7e1440"},
	{Color: "#28a745", Weight: 5, Opacity: 0.8, DashArray: "18, 12", Label: "Alternative 2", Icon: "🥉", Priority: "Fair", ShadowColor: "#28a74540"},
	{Color: "#dc3545", Weight: 4, Opacity: 0.75, DashArray: "8, 20", Label: "Alternative 3", Icon: "⚠️", Priority: "Backup", ShadowColor: "#dc354540"},
}

// MaxStyledRoutes is the number of ranks that can be displayed.
const MaxStyledRoutes = len(RouteStyles)

const (
	// OverlapThreshold is the start/end distance in meters below which only
	// the best route is shown.
	OverlapThreshold = 500.0

	FitPadding = 30.0
	FitMaxZoom = 16.0

	shadowColor   = "#000"
	shadowExtra   = 3.0
	shadowOpacity = 0.2

	emphasisBonus = 2.0

	// MutedColor is shared by every route line that is not highlighted.
	MutedColor   = "#9E9E9E"
	FadedOpacity = 0.3
	FadedDash    = "5, 10"
)

// Base returns the resting line style for the rank.
func (s RouteStyle) Base() surface.PathStyle {
	return surface.PathStyle{
		Color:     s.Color,
		Weight:    s.Weight,
		Opacity:   s.Opacity,
		DashArray: s.DashArray,
		LineCap:   "round",
		LineJoin:  "round",
	}
}

// Shadow returns the wide translucent line drawn under the route.
func (s RouteStyle) Shadow() surface.PathStyle {
	return surface.PathStyle{Color: shadowColor, Weight: s.Weight + shadowExtra, Opacity: shadowOpacity}
}

// Highlighted returns the style of the selected route: full color, heavier,
// opaque and solid.
func (s RouteStyle) Highlighted() surface.PathStyle {
	p := s.Base()
	p.Weight += emphasisBonus
	p.Opacity = 1
	p.DashArray = ""
	return p
}

// Faded returns the shared appearance of routes that are not selected.
func (s RouteStyle) Faded() surface.PathStyle {
	p := s.Base()
	p.Color = MutedColor
	p.Opacity = FadedOpacity
	p.DashArray = FadedDash
	return p
}

// emphasized is a resting style under the pointer.
func emphasized(p surface.PathStyle) surface.PathStyle {
	p.Weight += emphasisBonus
	p.Opacity = 1
	return p
}

// CriticalPalette colors critical points by index.
var CriticalPalette = [...]string{
	"#FF1744",
	"#FF6D00",
	"#9C27B0",
	"#3F51B5",
	"#00BCD4",
	"#4CAF50",
	"#FFC107",
	"#E91E63",
}

// CriticalColor returns the palette color for the i-th point.
func CriticalColor(i int) string {
	return CriticalPalette[i%len(CriticalPalette)]
}

// ClusterIconSize returns the badge size in pixels for a cluster of count.
func ClusterIconSize(count int) int {
	switch {
	case count < 10:
		return 35
	case count < 100:
		return 45
	default:
		return 55
	}
}

func criticalStyle(i int) surface.PathStyle {
	return surface.PathStyle{
		Color:       "white",
		Weight:      3,
		Radius:      8,
		FillColor:   CriticalColor(i),
		FillOpacity: 0.9,
	}
}

func criticalHoverStyle(i int) surface.PathStyle {
	p := criticalStyle(i)
	p.Radius = 12
	p.Weight = 4
	return p
}

type markerStyle struct {
	color    string
	icon     string
	title    string
	footnote string
}

var (
	startMarkerStyle = markerStyle{color: "#28a745", icon: "🚀", title: "Start Point", footnote: "Journey Begins Here"}
	endMarkerStyle   = markerStyle{color: "#dc3545", icon: "🎯", title: "Destination", footnote: "Final Destination"}
)

// LegendEntry is one line of the critical-point legend.
type LegendEntry struct {
	Color string
	Label string
	Note  string
}

// CriticalLegend describes the critical-point layer.
func CriticalLegend() []LegendEntry {
	return []LegendEntry{{
		Color: CriticalPalette[0],
		Label: "Network Vulnerability Points",
		Note:  "Points where network disruption would significantly impact connectivity",
	}}
}
