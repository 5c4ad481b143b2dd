// Package snapshot renders the current map (road network, route lines,
// markers, critical-point clusters and the open popup) to a static SVG or PNG.
package snapshot

import (
	"bufio"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"git.sr.ht/~sbinet/gg"
	svg "github.com/ajstarks/svgo"
	"golang.org/x/image/font/basicfont"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/debug"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 768

	headerHeight = 64
	markerRadius = 9
)

var (
	colorBackdrop = color.NRGBA{R: 0xf5, G: 0xf3, B: 0xee, A: 0xff}
	colorRoad     = color.NRGBA{R: 0xc8, G: 0xc4, B: 0xba, A: 0xff}
	colorHeaderBG = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xe6}
	colorText     = color.NRGBA{R: 0x21, G: 0x25, B: 0x29, A: 0xff}
	colorSubtle   = color.NRGBA{R: 0x6c, G: 0x75, B: 0x7d, A: 0xff}
	colorStroke   = color.NRGBA{R: 0x34, G: 0x3a, B: 0x40, A: 0xff}
	colorWhite    = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Scene is everything a snapshot draws. View.Width and View.Height are the
// image size in pixels.
type Scene struct {
	Title  string
	Lines  []string
	View   surface.View
	Roads  [][2]geo.Point
	Layers []surface.Layer
	Popup  *surface.Popup
	Legend []LegendEntry
}

// LegendEntry is one swatch in the legend box.
type LegendEntry struct {
	Color string
	Label string
}

// FromMap captures m's layers and popup at the given image size. The view is
// copied so the live map is left alone.
func FromMap(m *surface.Map, width, height int) Scene {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	v := m.View()
	v.Width, v.Height = float64(width), float64(height)
	s := Scene{View: v, Layers: m.Layers()}
	if p, ok := m.Popup(); ok {
		s.Popup = &p
	}
	return s
}

// Describe fills the header and legend from the session panels: the route
// comparison when routes are shown, the critical-point legend when critical
// points are.
func (s *Scene) Describe(p controller.Panels) {
	if sum := p.RouteSummary; sum != nil {
		s.Title = fmt.Sprintf("%s -> %s", sum.StartLabel, sum.EndLabel)
		s.Lines = []string{
			fmt.Sprintf("%s  shortest %s  longest %s  variation %s",
				sum.StatusLine(), sum.Comparison.Shortest(), sum.Comparison.Longest(), sum.Comparison.Variation()),
		}
		for _, c := range sum.Cards {
			s.Legend = append(s.Legend, LegendEntry{Color: c.Style.Color, Label: fmt.Sprintf("%s %s", c.Label, c.Distance())})
		}
	}
	if rep := p.CriticalReport; rep != nil {
		if s.Title == "" {
			s.Title = "Critical Points"
		}
		s.Lines = append(s.Lines, fmt.Sprintf("Found: %d critical points", rep.Count))
		for _, e := range controller.CriticalLegend() {
			s.Legend = append(s.Legend, LegendEntry{Color: e.Color, Label: e.Label})
		}
	}
}

// Format picks the encoder from an explicit format or the path extension.
// Unknown or missing extensions default to SVG.
func Format(path, format string) (string, error) {
	format = strings.ToLower(strings.TrimPrefix(format, "."))
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".png":
			format = "png"
		default:
			format = "svg"
		}
	}
	if format != "svg" && format != "png" {
		return "", fmt.Errorf("unsupported format %q (want svg or png)", format)
	}
	return format, nil
}

// Save writes s to path, creating parent directories.
func Save(path, format string, s Scene) error {
	defer debug.LogEnterExit("snapshot.Save")()
	if path == "" {
		return fmt.Errorf("output path is required")
	}
	format, err := Format(path, format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	if format == "png" {
		err = WritePNG(w, s)
	} else {
		err = WriteSVG(w, s)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// projector maps coordinates to image pixels using the scene's view.
type projector struct {
	m *surface.Map
}

func newProjector(v surface.View) projector {
	if v.Width <= 0 {
		v.Width = DefaultWidth
	}
	if v.Height <= 0 {
		v.Height = DefaultHeight
	}
	return projector{m: surface.NewMap(v)}
}

func (p projector) xy(pt geo.Point) (float64, float64) {
	return p.m.ScreenPoint(pt)
}

func (p projector) size() (int, int) {
	v := p.m.View()
	return int(v.Width), int(v.Height)
}

// WriteSVG encodes s as SVG.
func WriteSVG(w io.Writer, s Scene) error {
	p := newProjector(s.View)
	width, height := p.size()
	zoom := p.m.View().Zoom

	canvas := svg.New(w)
	canvas.Start(width, height)
	canvas.Rect(0, 0, width, height, "fill:"+css(colorBackdrop))

	for _, seg := range s.Roads {
		x1, y1 := p.xy(seg[0])
		x2, y2 := p.xy(seg[1])
		canvas.Line(int(x1), int(y1), int(x2), int(y2), "stroke:"+css(colorRoad)+";stroke-width:2")
	}

	for _, l := range s.Layers {
		switch l := l.(type) {
		case *surface.Polyline:
			xs, ys := polylineXY(p, l.Points())
			canvas.Polyline(xs, ys, lineStyle(l.Style()))
		case *surface.CircleMarker:
			x, y := p.xy(l.Center())
			canvas.Circle(int(x), int(y), int(l.Style().Radius), circleStyle(l.Style()))
		case *surface.ClusterGroup:
			for _, c := range l.Clusters(zoom) {
				x, y := p.xy(c.Center)
				if c.Single() {
					st := c.Members[0].Style()
					canvas.Circle(int(x), int(y), int(st.Radius), circleStyle(st))
					continue
				}
				r := c.IconSize / 2
				canvas.Circle(int(x), int(y), r, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:2", c.Color, css(colorWhite)))
				canvas.Text(int(x), int(y)+4, strconv.Itoa(len(c.Members)),
					"fill:#fff;font-size:12px;font-family:monospace;font-weight:bold;text-anchor:middle")
			}
		case *surface.Marker:
			x, y := p.xy(l.Position())
			canvas.Circle(int(x), int(y), markerRadius, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:2", l.Color(), css(colorWhite)))
			canvas.Text(int(x), int(y)+4, markerGlyph(l), "fill:#fff;font-size:11px;font-family:monospace;font-weight:bold;text-anchor:middle")
		}
	}

	if s.Popup != nil {
		x, y := p.xy(s.Popup.Anchor)
		lines := strings.Split(s.Popup.Content, "\n")
		bw, bh := popupSize(lines)
		bx, by := int(x)-bw/2, int(y)-bh-12
		canvas.Roundrect(bx, by, bw, bh, 6, 6, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorWhite), css(colorStroke)))
		for i, line := range lines {
			canvas.Text(bx+8, by+16+i*15, line, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorText)))
		}
	}

	if s.Title != "" || len(s.Lines) > 0 {
		canvas.Rect(0, 0, width, headerHeight, "fill:"+css(colorHeaderBG))
		canvas.Text(16, 24, s.Title, fmt.Sprintf("fill:%s;font-size:16px;font-family:monospace;font-weight:bold", css(colorText)))
		for i, line := range s.Lines {
			canvas.Text(16, 44+i*14, line, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
		}
	}

	if len(s.Legend) > 0 {
		bw, bh := legendWidth(s.Legend), 28+len(s.Legend)*16
		x, y := width-bw-16, height-bh-16
		canvas.Roundrect(x, y, bw, bh, 8, 8, fmt.Sprintf("fill:%s;stroke:%s;stroke-width:1", css(colorWhite), css(colorStroke)))
		canvas.Text(x+12, y+18, "Legend", fmt.Sprintf("fill:%s;font-size:13px;font-family:monospace;font-weight:bold", css(colorText)))
		for i, e := range s.Legend {
			ry := y + 34 + i*16
			canvas.Rect(x+12, ry-10, 12, 12, "fill:"+e.Color)
			canvas.Text(x+30, ry, e.Label, fmt.Sprintf("fill:%s;font-size:12px;font-family:monospace", css(colorSubtle)))
		}
	}

	canvas.End()
	return nil
}

// WritePNG encodes s as PNG.
func WritePNG(w io.Writer, s Scene) error {
	p := newProjector(s.View)
	width, height := p.size()
	zoom := p.m.View().Zoom

	dc := gg.NewContext(width, height)
	dc.SetColor(colorBackdrop)
	dc.Clear()
	dc.SetFontFace(basicfont.Face7x13)

	dc.SetColor(colorRoad)
	dc.SetLineWidth(2)
	for _, seg := range s.Roads {
		x1, y1 := p.xy(seg[0])
		x2, y2 := p.xy(seg[1])
		dc.DrawLine(x1, y1, x2, y2)
		dc.Stroke()
	}

	for _, l := range s.Layers {
		switch l := l.(type) {
		case *surface.Polyline:
			drawPolyline(dc, p, l)
		case *surface.CircleMarker:
			x, y := p.xy(l.Center())
			drawCircle(dc, x, y, l.Style())
		case *surface.ClusterGroup:
			for _, c := range l.Clusters(zoom) {
				x, y := p.xy(c.Center)
				if c.Single() {
					drawCircle(dc, x, y, c.Members[0].Style())
					continue
				}
				dc.SetColor(parseColor(c.Color, 1))
				dc.DrawCircle(x, y, float64(c.IconSize)/2)
				dc.Fill()
				dc.SetColor(colorWhite)
				dc.SetLineWidth(2)
				dc.DrawCircle(x, y, float64(c.IconSize)/2)
				dc.Stroke()
				dc.DrawStringAnchored(strconv.Itoa(len(c.Members)), x, y, 0.5, 0.5)
			}
		case *surface.Marker:
			x, y := p.xy(l.Position())
			dc.SetColor(parseColor(l.Color(), 1))
			dc.DrawCircle(x, y, markerRadius)
			dc.Fill()
			dc.SetColor(colorWhite)
			dc.SetLineWidth(2)
			dc.DrawCircle(x, y, markerRadius)
			dc.Stroke()
			dc.DrawStringAnchored(markerGlyph(l), x, y, 0.5, 0.5)
		}
	}

	if s.Popup != nil {
		x, y := p.xy(s.Popup.Anchor)
		lines := strings.Split(s.Popup.Content, "\n")
		bw, bh := popupSize(lines)
		bx, by := x-float64(bw)/2, y-float64(bh)-12
		dc.SetColor(colorWhite)
		dc.DrawRoundedRectangle(bx, by, float64(bw), float64(bh), 6)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1)
		dc.DrawRoundedRectangle(bx, by, float64(bw), float64(bh), 6)
		dc.Stroke()
		dc.SetColor(colorText)
		for i, line := range lines {
			dc.DrawStringAnchored(line, bx+8, by+12+float64(i*15), 0, 0.5)
		}
	}

	if s.Title != "" || len(s.Lines) > 0 {
		dc.SetColor(colorHeaderBG)
		dc.DrawRectangle(0, 0, float64(width), headerHeight)
		dc.Fill()
		dc.SetColor(colorText)
		dc.DrawStringAnchored(s.Title, 16, 20, 0, 0.5)
		dc.SetColor(colorSubtle)
		for i, line := range s.Lines {
			dc.DrawStringAnchored(line, 16, float64(40+i*14), 0, 0.5)
		}
	}

	if len(s.Legend) > 0 {
		bw, bh := float64(legendWidth(s.Legend)), float64(28+len(s.Legend)*16)
		x, y := float64(width)-bw-16, float64(height)-bh-16
		dc.SetColor(colorWhite)
		dc.DrawRoundedRectangle(x, y, bw, bh, 8)
		dc.Fill()
		dc.SetColor(colorStroke)
		dc.SetLineWidth(1)
		dc.DrawRoundedRectangle(x, y, bw, bh, 8)
		dc.Stroke()
		dc.SetColor(colorText)
		dc.DrawStringAnchored("Legend", x+12, y+14, 0, 0.5)
		for i, e := range s.Legend {
			ry := y + 30 + float64(i*16)
			dc.SetColor(parseColor(e.Color, 1))
			dc.DrawRectangle(x+12, ry-6, 12, 12)
			dc.Fill()
			dc.SetColor(colorSubtle)
			dc.DrawStringAnchored(e.Label, x+30, ry, 0, 0.5)
		}
	}

	return png.Encode(w, dc.Image())
}

func drawPolyline(dc *gg.Context, p projector, l *surface.Polyline) {
	pts := l.Points()
	if len(pts) < 2 {
		return
	}
	st := l.Style()
	dc.SetColor(parseColor(st.Color, st.Opacity))
	dc.SetLineWidth(st.Weight)
	dc.SetDash(parseDash(st.DashArray)...)
	x, y := p.xy(pts[0])
	dc.MoveTo(x, y)
	for _, pt := range pts[1:] {
		x, y = p.xy(pt)
		dc.LineTo(x, y)
	}
	dc.Stroke()
	dc.SetDash()
}

func drawCircle(dc *gg.Context, x, y float64, st surface.PathStyle) {
	fill := st.FillColor
	if fill == "" {
		fill = st.Color
	}
	dc.SetColor(parseColor(fill, st.FillOpacity))
	dc.DrawCircle(x, y, st.Radius)
	dc.Fill()
	if st.Weight > 0 {
		dc.SetColor(parseColor(st.Color, st.Opacity))
		dc.SetLineWidth(st.Weight)
		dc.DrawCircle(x, y, st.Radius)
		dc.Stroke()
	}
}

func polylineXY(p projector, pts []geo.Point) ([]int, []int) {
	xs := make([]int, len(pts))
	ys := make([]int, len(pts))
	for i, pt := range pts {
		x, y := p.xy(pt)
		xs[i], ys[i] = int(x), int(y)
	}
	return xs, ys
}

func lineStyle(st surface.PathStyle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "fill:none;stroke:%s;stroke-width:%g;stroke-opacity:%g", st.Color, st.Weight, st.Opacity)
	if st.DashArray != "" {
		fmt.Fprintf(&b, ";stroke-dasharray:%s", st.DashArray)
	}
	if st.LineCap != "" {
		fmt.Fprintf(&b, ";stroke-linecap:%s", st.LineCap)
	}
	if st.LineJoin != "" {
		fmt.Fprintf(&b, ";stroke-linejoin:%s", st.LineJoin)
	}
	return b.String()
}

func circleStyle(st surface.PathStyle) string {
	fill := st.FillColor
	if fill == "" {
		fill = st.Color
	}
	out := fmt.Sprintf("fill:%s;stroke:%s;stroke-width:%g", fill, st.Color, st.Weight)
	if st.FillOpacity > 0 {
		out += fmt.Sprintf(";fill-opacity:%g", st.FillOpacity)
	}
	if st.Opacity > 0 {
		out += fmt.Sprintf(";stroke-opacity:%g", st.Opacity)
	}
	return out
}

func markerGlyph(m *surface.Marker) string {
	if m.Role() == surface.RoleEnd {
		return "B"
	}
	return "A"
}

func legendWidth(entries []LegendEntry) int {
	longest := 0
	for _, e := range entries {
		longest = max(longest, len([]rune(e.Label)))
	}
	return max(200, 42+longest*7)
}

func popupSize(lines []string) (int, int) {
	longest := 0
	for _, l := range lines {
		longest = max(longest, len([]rune(l)))
	}
	return 16 + longest*7, 10 + len(lines)*15
}

// parseColor reads #rgb, #rrggbb, #rrggbbaa, white or black and scales alpha
// by opacity. Anything unparseable is drawn in the stroke color.
func parseColor(s string, opacity float64) color.NRGBA {
	c := colorStroke
	switch strings.ToLower(s) {
	case "white":
		s = "#fff"
	case "black":
		s = "#000"
	}
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if v, err := strconv.ParseUint(hex, 16, 32); err == nil && len(hex) == 8 {
		c = color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
	}
	if opacity > 0 && opacity < 1 {
		c.A = uint8(float64(c.A) * opacity)
	}
	return c
}

// parseDash reads an SVG dash array such as "12, 8".
func parseDash(s string) []float64 {
	var out []float64
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if v, err := strconv.ParseFloat(f, 64); err == nil && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func css(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
