package controller

import (
	"fmt"
	"math"
	"strings"

	"github.com/vanderheijden86/routelens/pkg/engine"
)

// RouteCard is the per-rank comparison entry.
type RouteCard struct {
	Rank       int        `json:"rank"`
	Style      RouteStyle `json:"-"`
	Label      string     `json:"label"`
	Priority   string     `json:"priority"`
	DistanceKm float64    `json:"distance_km"`
	Waypoints  int        `json:"waypoints"`
	ExcessKm   float64    `json:"excess_km"`
	ExcessPct  float64    `json:"excess_pct"`
	// Bar is the relative length of the card's comparison bar, 25 to 100.
	Bar float64 `json:"bar"`
}

// Distance formats the route length.
func (c RouteCard) Distance() string {
	return formatKm(c.DistanceKm)
}

// Excess formats the extra distance over the best route.
func (c RouteCard) Excess() string {
	return fmt.Sprintf("+%.2f km (+%.1f%%)", c.ExcessKm, c.ExcessPct)
}

// Comparison aggregates every usable route, displayed or not.
type Comparison struct {
	ShortestKm   float64 `json:"shortest_km"`
	LongestKm    float64 `json:"longest_km"`
	VariationPct float64 `json:"variation_pct"`
}

func (c Comparison) Shortest() string  { return formatKm(c.ShortestKm) }
func (c Comparison) Longest() string   { return formatKm(c.LongestKm) }
func (c Comparison) Variation() string { return fmt.Sprintf("%.1f%%", c.VariationPct) }

// RouteSummary is the route panel report.
type RouteSummary struct {
	StartLabel      string      `json:"start"`
	EndLabel        string      `json:"end"`
	Algorithm       string      `json:"algorithm"`
	RoutesFound     int         `json:"routes_found"`
	Displayed       int         `json:"displayed"`
	ExecutionTimeMs float64     `json:"execution_time_ms"`
	Overlap         bool        `json:"overlap"`
	Cards           []RouteCard `json:"cards"`
	Comparison      Comparison  `json:"comparison"`
}

func formatKm(km float64) string {
	return fmt.Sprintf("%.2f km", km)
}

// usableRoutes drops routes without coordinates, keeping rank order.
func usableRoutes(routes []engine.Route) []engine.Route {
	out := make([]engine.Route, 0, len(routes))
	for _, r := range routes {
		if len(r.Coordinates) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// Summarize builds the report for a filtered, ranked route list. Cards are
// produced for the first displayed ranks only; the comparison covers all.
func Summarize(routes []engine.Route, displayed int, ep Endpoints, algorithm string, execMs float64, overlap bool) RouteSummary {
	s := RouteSummary{
		StartLabel:      ep.StartLabel,
		EndLabel:        ep.EndLabel,
		Algorithm:       algorithm,
		RoutesFound:     len(routes),
		Displayed:       displayed,
		ExecutionTimeMs: execMs,
		Overlap:         overlap,
	}
	if len(routes) == 0 {
		return s
	}

	best := routes[0].Distance
	for rank := 0; rank < displayed && rank < len(routes) && rank < MaxStyledRoutes; rank++ {
		r := routes[rank]
		card := RouteCard{
			Rank:       rank,
			Style:      RouteStyles[rank],
			Label:      RouteStyles[rank].Label,
			Priority:   RouteStyles[rank].Priority,
			DistanceKm: r.Distance / 1000,
			Waypoints:  len(r.Coordinates),
			Bar:        100,
		}
		if rank > 0 {
			card.ExcessKm = math.Max(0, (r.Distance-best)/1000)
			if best > 0 {
				card.ExcessPct = math.Max(0, (r.Distance-best)/best*100)
			}
			card.Bar = math.Max(25, 100-card.ExcessPct*1.5)
		}
		s.Cards = append(s.Cards, card)
	}

	shortest, longest := math.Inf(1), math.Inf(-1)
	for _, r := range routes {
		shortest = math.Min(shortest, r.Distance)
		longest = math.Max(longest, r.Distance)
	}
	s.Comparison = Comparison{ShortestKm: shortest / 1000, LongestKm: longest / 1000}
	if shortest > 0 {
		s.Comparison.VariationPct = (longest - shortest) / shortest * 100
	}
	return s
}

// StatusLine is the footer text after a successful route analysis.
func (s RouteSummary) StatusLine() string {
	noun := "path"
	if s.Displayed > 1 {
		noun = "paths"
	}
	return fmt.Sprintf("Route analysis complete - %d %s found.", s.Displayed, noun)
}

// Markdown renders the report for the terminal renderer and `rl route`.
func (s RouteSummary) Markdown() string {
	var b strings.Builder
	b.WriteString("## K-Shortest Paths Analysis\n\n")
	fmt.Fprintf(&b, "**From:** %s  \n**To:** %s  \n", s.StartLabel, s.EndLabel)
	fmt.Fprintf(&b, "**Routes Found:** %d  \n**Execution Time:** %gms", s.RoutesFound, s.ExecutionTimeMs)
	if s.Algorithm != "" {
		fmt.Fprintf(&b, "  \n**Algorithm:** %s", s.Algorithm)
	}
	b.WriteString("\n\n")
	if s.Overlap {
		b.WriteString("> Showing optimal route only due to overlapping coordinates\n\n")
	}

	for _, c := range s.Cards {
		fmt.Fprintf(&b, "### %s %s · %s\n\n", c.Style.Icon, c.Label, c.Priority)
		fmt.Fprintf(&b, "- **Distance:** %s\n- **Waypoints:** %d\n", c.Distance(), c.Waypoints)
		if c.Rank == 0 {
			b.WriteString("- **Status:** Shortest Path ⭐ Recommended\n\n")
		} else {
			fmt.Fprintf(&b, "- **Extra Distance:** %s longer\n\n", c.Excess())
		}
	}

	b.WriteString("### 📊 Route Comparison Summary\n\n")
	b.WriteString("| Shortest | Longest | Variation |\n|---|---|---|\n")
	fmt.Fprintf(&b, "| %s | %s | %s |\n", s.Comparison.Shortest(), s.Comparison.Longest(), s.Comparison.Variation())
	return b.String()
}

// CriticalReport is the critical-point panel report.
type CriticalReport struct {
	Count           int     `json:"count"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

// Markdown renders the critical-point report.
func (r CriticalReport) Markdown() string {
	return fmt.Sprintf("## ⚠️ Critical Points\n\n**Found:** %d critical points  \n**Execution time:** %gms\n\n_Critical points are clustered for better visualization._\n",
		r.Count, r.ExecutionTimeMs)
}
