package ui

import (
	"math"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

// Pixel size of one terminal cell in map coordinates. Cells are roughly twice
// as tall as they are wide.
const (
	CellWidth  = 8.0
	CellHeight = 16.0
)

// Layer depth on the canvas. A cell keeps the deepest glyph drawn into it.
const (
	zRoad = iota
	zFaded
	zRoute
	zHighlight
	zCritical
	zMarker
)

// minVisibleOpacity hides translucent underlays such as route shadows, which
// have no useful terminal rendition.
const minVisibleOpacity = 0.25

type cell struct {
	ch    rune
	color string
	bold  bool
	z     int
}

// Canvas rasterizes a surface.Map into terminal cells.
type Canvas struct {
	cols, rows int
	cells      []cell
}

// NewCanvas returns an empty canvas of cols x rows cells.
func NewCanvas(cols, rows int) *Canvas {
	c := &Canvas{}
	c.Resize(cols, rows)
	return c
}

// Resize changes the canvas size and clears it.
func (c *Canvas) Resize(cols, rows int) {
	c.cols, c.rows = max(cols, 1), max(rows, 1)
	c.cells = make([]cell, c.cols*c.rows)
	c.Clear()
}

// Size returns the canvas size in cells.
func (c *Canvas) Size() (cols, rows int) { return c.cols, c.rows }

// PixelSize is the map viewport size the canvas covers.
func (c *Canvas) PixelSize() (w, h float64) {
	return float64(c.cols) * CellWidth, float64(c.rows) * CellHeight
}

// CellCenter returns the map pixel at the middle of a cell.
func CellCenter(col, row int) (x, y float64) {
	return (float64(col) + 0.5) * CellWidth, (float64(row) + 0.5) * CellHeight
}

// Clear blanks every cell.
func (c *Canvas) Clear() {
	for i := range c.cells {
		c.cells[i] = cell{ch: ' ', z: -1}
	}
}

// At returns the glyph and color of a cell.
func (c *Canvas) At(col, row int) (rune, string) {
	if col < 0 || row < 0 || col >= c.cols || row >= c.rows {
		return 0, ""
	}
	cl := c.cells[row*c.cols+col]
	return cl.ch, cl.color
}

// Count returns how many cells show ch.
func (c *Canvas) Count(ch rune) int {
	n := 0
	for _, cl := range c.cells {
		if cl.ch == ch {
			n++
		}
	}
	return n
}

func (c *Canvas) set(col, row int, ch rune, color string, bold bool, z int) {
	if col < 0 || row < 0 || col >= c.cols || row >= c.rows {
		return
	}
	i := row*c.cols + col
	if z < c.cells[i].z {
		return
	}
	c.cells[i] = cell{ch: ch, color: color, bold: bold, z: z}
}

func (c *Canvas) text(col, row int, s, color string, z int) {
	for i, r := range s {
		c.set(col+i, row, r, color, true, z)
	}
}

// Draw renders roads and every layer on m. The map viewport should match
// PixelSize.
func (c *Canvas) Draw(m *surface.Map, roads [][2]geo.Point) {
	c.Clear()
	for _, seg := range roads {
		x0, y0 := m.ScreenPoint(seg[0])
		x1, y1 := m.ScreenPoint(seg[1])
		c.line(x0, y0, x1, y1, 0, nil, '·', RoadColor, zRoad)
	}

	zoom := m.View().Zoom
	for _, l := range m.Layers() {
		switch l := l.(type) {
		case *surface.Polyline:
			c.drawPolyline(m, l)
		case *surface.CircleMarker:
			c.drawCircle(m, l)
		case *surface.ClusterGroup:
			for _, cl := range l.Clusters(zoom) {
				if cl.Single() {
					if cl.Leg {
						x0, y0 := m.ScreenPoint(cl.Origin)
						x1, y1 := m.ScreenPoint(cl.Center)
						c.line(x0, y0, x1, y1, 0, nil, '·', RoadColor, zRoad)
					}
					c.drawCircleAt(m, cl.Members[0], cl.Center)
					continue
				}
				x, y := m.ScreenPoint(cl.Center)
				col, row := int(x/CellWidth), int(y/CellHeight)
				label := "(" + strconv.Itoa(len(cl.Members)) + ")"
				c.text(col-len(label)/2, row, label, cl.Color, zCritical)
			}
		case *surface.Marker:
			x, y := m.ScreenPoint(l.Position())
			glyph := 'A'
			if l.Role() == surface.RoleEnd {
				glyph = 'B'
			}
			c.set(int(x/CellWidth), int(y/CellHeight), glyph, l.Color(), true, zMarker)
		}
	}
}

func (c *Canvas) drawPolyline(m *surface.Map, l *surface.Polyline) {
	st := l.Style()
	if st.Opacity > 0 && st.Opacity < minVisibleOpacity {
		return
	}
	glyph, z := '•', zRoute
	switch {
	case st.Color == controller.MutedColor:
		glyph, z = '∙', zFaded
	case st.Weight >= 8:
		glyph, z = '●', zHighlight
	}
	dash := parseDash(st.DashArray)
	pts := l.Points()
	var travelled float64
	for i := 1; i < len(pts); i++ {
		x0, y0 := m.ScreenPoint(pts[i-1])
		x1, y1 := m.ScreenPoint(pts[i])
		travelled = c.line(x0, y0, x1, y1, travelled, dash, glyph, st.Color, z)
	}
	if len(pts) == 1 {
		x, y := m.ScreenPoint(pts[0])
		c.set(int(x/CellWidth), int(y/CellHeight), glyph, st.Color, false, z)
	}
}

func (c *Canvas) drawCircle(m *surface.Map, cm *surface.CircleMarker) {
	c.drawCircleAt(m, cm, cm.Center())
}

func (c *Canvas) drawCircleAt(m *surface.Map, cm *surface.CircleMarker, at geo.Point) {
	st := cm.Style()
	x, y := m.ScreenPoint(at)
	glyph := '◉'
	if st.Radius > 8 {
		glyph = '⬤'
	}
	color := st.FillColor
	if color == "" {
		color = st.Color
	}
	c.set(int(x/CellWidth), int(y/CellHeight), glyph, color, true, zCritical)
}

// line samples the segment at sub-cell steps and marks every cell whose
// sample falls in an "on" run of dash. It returns the path length drawn so
// far so dash phase carries across the joints of a polyline.
func (c *Canvas) line(x0, y0, x1, y1, travelled float64, dash []float64, glyph rune, color string, z int) float64 {
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	steps := int(math.Max(math.Abs(dx)/CellWidth, math.Abs(dy)/CellHeight)*2) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		if !dashOn(dash, travelled+t*length) {
			continue
		}
		px, py := x0+t*dx, y0+t*dy
		if px < 0 || py < 0 {
			continue
		}
		c.set(int(px/CellWidth), int(py/CellHeight), glyph, color, false, z)
	}
	return travelled + length
}

func dashOn(dash []float64, at float64) bool {
	if len(dash) == 0 {
		return true
	}
	var period float64
	for _, d := range dash {
		period += d
	}
	if period <= 0 {
		return true
	}
	pos := math.Mod(at, period)
	for i, d := range dash {
		if pos < d {
			return i%2 == 0
		}
		pos -= d
	}
	return true
}

func parseDash(s string) []float64 {
	var out []float64
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' }) {
		if v, err := strconv.ParseFloat(f, 64); err == nil && v >= 0 {
			out = append(out, v)
		}
	}
	if len(out)%2 == 1 {
		out = append(out, out...)
	}
	return out
}

// Render returns the canvas as styled lines. The cell under the cursor is
// drawn in reverse video when showCursor is set.
func (c *Canvas) Render(cursorCol, cursorRow int, showCursor bool, cursor lipgloss.Style) string {
	var b strings.Builder
	for row := 0; row < c.rows; row++ {
		if row > 0 {
			b.WriteByte('\n')
		}
		var run strings.Builder
		var runColor string
		var runBold bool
		flush := func() {
			if run.Len() == 0 {
				return
			}
			st := lipgloss.NewStyle().Foreground(LayerFg(runColor)).Bold(runBold)
			b.WriteString(st.Render(run.String()))
			run.Reset()
		}
		for col := 0; col < c.cols; col++ {
			cl := c.cells[row*c.cols+col]
			if showCursor && col == cursorCol && row == cursorRow {
				flush()
				ch := cl.ch
				if ch == ' ' {
					ch = '+'
				}
				b.WriteString(cursor.Foreground(LayerFg(cl.color)).Render(string(ch)))
				continue
			}
			if cl.color != runColor || cl.bold != runBold {
				flush()
				runColor, runBold = cl.color, cl.bold
			}
			run.WriteRune(cl.ch)
		}
		flush()
	}
	return b.String()
}
