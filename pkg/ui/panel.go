package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/routelens/pkg/controller"
)

// panelMode selects what the side panel shows.
type panelMode int

const (
	panelCards panelMode = iota
	panelReport
)

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(width, 20)),
	)
	if err != nil {
		return nil
	}
	return r
}

// renderPanel builds the side panel body at the given inner width.
func (m *Model) renderPanel(width int) string {
	if m.panelMode == panelReport {
		return m.renderReport(width)
	}

	p := m.session.Panels()
	var sections []string

	if pop, ok := m.surf.Popup(); ok {
		box := lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorPrimary).
			Width(max(width-2, 10))
		var lines []string
		for _, l := range strings.Split(pop.Content, "\n") {
			lines = append(lines, truncate(l, width-4))
		}
		sections = append(sections, box.Render(strings.Join(lines, "\n")))
	}

	sections = append(sections, m.sectionTitle("Routes"))
	if n := p.Route; n.Title != "" || len(n.Lines) > 0 {
		sections = append(sections, renderNotice(n, width))
	}
	if sum := p.RouteSummary; sum != nil {
		sections = append(sections, m.renderCards(*sum, width))
	}

	sections = append(sections, "", m.sectionTitle("Critical Points"))
	sections = append(sections, renderNotice(p.Critical, width))
	if p.CriticalReport != nil {
		for _, e := range controller.CriticalLegend() {
			swatch := lipgloss.NewStyle().Foreground(LayerFg(e.Color)).Render("◉")
			sections = append(sections, swatch+" "+truncate(e.Label, width-2))
			sections = append(sections, m.theme.MutedText.Render(truncate(e.Note, width)))
		}
	}
	return strings.Join(sections, "\n")
}

func (m *Model) sectionTitle(s string) string {
	return m.theme.Focused.Render(s)
}

func renderNotice(n controller.Notice, width int) string {
	st := lipgloss.NewStyle().Foreground(toneColor(n.Tone)).Width(width)
	var b strings.Builder
	if n.Title != "" {
		b.WriteString(st.Bold(true).Render(toneIcon(n.Tone) + " " + n.Title))
	}
	for i, l := range n.Lines {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		prefix := "  "
		if i == 0 && n.Title == "" {
			prefix = toneIcon(n.Tone) + " "
		}
		b.WriteString(st.Render(prefix + l))
	}
	return b.String()
}

// renderCards draws one card per displayed route with its comparison bar,
// then the aggregate line.
func (m *Model) renderCards(sum controller.RouteSummary, width int) string {
	hl, hasHL := m.session.Highlighted()
	barWidth := max(width-4, 8)

	var out []string
	header := fmt.Sprintf("%s → %s", sum.StartLabel, sum.EndLabel)
	out = append(out, truncate(header, width))
	out = append(out, m.theme.MutedText.Render(fmt.Sprintf("%d routes · %gms · %s", sum.RoutesFound, sum.ExecutionTimeMs, algorithmName(sum.Algorithm))))
	for _, c := range sum.Cards {
		fg := LayerFg(c.Style.Color)
		marker := " "
		if hasHL && hl == c.Rank {
			marker = "▶"
		}
		title := fmt.Sprintf("%s %d %s %s", marker, c.Rank+1, c.Style.Icon, c.Label)
		dist := c.Distance()
		gap := max(width-lipgloss.Width(title)-lipgloss.Width(dist), 1)
		out = append(out, "", lipgloss.NewStyle().Foreground(fg).Bold(true).Render(title)+strings.Repeat(" ", gap)+dist)

		filled := clamp(int(float64(barWidth)*c.Bar/100+0.5), 1, barWidth)
		bar := lipgloss.NewStyle().Foreground(fg).Render(strings.Repeat("█", filled)) +
			m.theme.MutedText.Render(strings.Repeat("░", barWidth-filled))
		out = append(out, "  "+bar)

		detail := fmt.Sprintf("%d waypoints · %s", c.Waypoints, c.Priority)
		if c.Rank == 0 {
			detail += " · Shortest Path ⭐"
		} else {
			detail += " · " + c.Excess()
		}
		out = append(out, "  "+m.theme.MutedText.Render(truncate(detail, width-2)))
	}
	out = append(out, "", truncate(fmt.Sprintf("Shortest %s · Longest %s · Variation %s",
		sum.Comparison.Shortest(), sum.Comparison.Longest(), sum.Comparison.Variation()), width))
	return strings.Join(out, "\n")
}

// reportMarkdown is the full text report of the current results.
func (m *Model) reportMarkdown() string {
	p := m.session.Panels()
	var parts []string
	if p.RouteSummary != nil {
		parts = append(parts, p.RouteSummary.Markdown())
	}
	if p.CriticalReport != nil {
		parts = append(parts, p.CriticalReport.Markdown())
	}
	if len(parts) == 0 {
		return "_No results yet. Find routes with `f` or critical points with `c`._\n"
	}
	return strings.Join(parts, "\n")
}

func (m *Model) renderReport(width int) string {
	md := m.reportMarkdown()
	if m.md == nil || m.mdWidth != width {
		m.md = newMarkdownRenderer(width)
		m.mdWidth = width
	}
	if m.md == nil {
		return md
	}
	out, err := m.md.Render(md)
	if err != nil {
		return fmt.Sprintf("Error rendering markdown: %v", err)
	}
	return strings.TrimRight(out, "\n")
}

func algorithmName(a string) string {
	if a == "astar" {
		return "A*"
	}
	return "Dijkstra"
}
