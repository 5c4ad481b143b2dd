package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	json "github.com/goccy/go-json"
	"golang.org/x/term"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/snapshot"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

// Output formats accepted by --format.
const (
	formatAuto     = "auto"
	formatMarkdown = "markdown"
	formatJSON     = "json"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func checkFormat(format string) error {
	switch format {
	case formatAuto, formatMarkdown, formatJSON:
		return nil
	}
	return fmt.Errorf("invalid --format %q (expected auto|markdown|json)", format)
}

// routeLine is one displayed route with its coordinates as [lat, lon].
type routeLine struct {
	Rank        int          `json:"rank"`
	Label       string       `json:"label"`
	Color       string       `json:"color"`
	Coordinates [][2]float64 `json:"coordinates"`
}

type routeOutput struct {
	Summary *controller.RouteSummary `json:"summary"`
	Routes  []routeLine              `json:"routes"`
	Status  string                   `json:"status"`
}

type criticalOutput struct {
	Report *controller.CriticalReport `json:"report"`
	Points [][2]float64               `json:"points"`
	Status string                     `json:"status"`
}

func newRouteOutput(s *controller.Session) routeOutput {
	p := s.Panels()
	out := routeOutput{Summary: p.RouteSummary, Status: strings.Join(p.Status.Lines, " ")}
	for i, l := range s.RouteLines() {
		label := ""
		if i < len(controller.RouteStyles) {
			label = controller.RouteStyles[i].Label
		}
		out.Routes = append(out.Routes, routeLine{
			Rank:        i,
			Label:       label,
			Color:       l.Style().Color,
			Coordinates: latLon(l.Points()),
		})
	}
	return out
}

func newCriticalOutput(s *controller.Session) criticalOutput {
	p := s.Panels()
	out := criticalOutput{Report: p.CriticalReport, Status: strings.Join(p.Status.Lines, " ")}
	if layer := s.CriticalLayer(); layer != nil {
		for _, m := range layer.Members() {
			c := m.Center()
			out.Points = append(out.Points, [2]float64{c.Lat, c.Lon})
		}
	}
	return out
}

func latLon(pts []geo.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.Lat, p.Lon}
	}
	return out
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// writeMarkdown prints md, rendered with glamour when w is a terminal.
func writeMarkdown(w io.Writer, md string, format string) error {
	f, ok := w.(*os.File)
	if format == formatAuto && ok && isTerminal(f) {
		width := 80
		if cols, _, err := term.GetSize(int(f.Fd())); err == nil && cols > 0 {
			width = cols
		}
		r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
		if err == nil {
			if out, err := r.Render(md); err == nil {
				_, err = io.WriteString(w, out)
				return err
			}
		}
	}
	_, err := io.WriteString(w, md)
	return err
}

// saveSnapshot writes the session's map over the road network to path.
func saveSnapshot(path, format string, m *surface.Map, s *controller.Session, roads [][2]geo.Point, width, height int) error {
	format, err := snapshot.Format(path, format)
	if err != nil {
		return err
	}
	scene := snapshot.FromMap(m, width, height)
	scene.Roads = roads
	scene.Describe(s.Panels())
	return snapshot.Save(path, format, scene)
}
