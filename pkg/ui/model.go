package ui

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/debug"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/places"
	"github.com/vanderheijden86/routelens/pkg/snapshot"
	"github.com/vanderheijden86/routelens/pkg/surface"
	"github.com/vanderheijden86/routelens/pkg/watcher"
)

// Layout constants
const (
	defaultWidth  = 120
	defaultHeight = 40

	minPanelWidth = 30
	maxPanelWidth = 56

	// Rows above the map: header and inputs.
	mapTop = 2

	defaultEngineTimeout = 30 * time.Second
	statusTTL            = 4 * time.Second
	panStep              = 4
)

// focus represents which UI element has keyboard focus
type focus int

const (
	focusMap focus = iota
	focusStart
	focusEnd
)

// Engine is what the UI queries.
type Engine interface {
	controller.RouteFinder
	controller.CriticalFinder
}

// Options configures NewModel. Engine and Places are required.
type Options struct {
	Engine Engine
	Places *places.Directory
	View   surface.View

	// Roads returns the road segments drawn under the layers.
	Roads func() [][2]geo.Point
	// Reload re-reads the road network after Watcher reports a change.
	Reload  func(ctx context.Context) error
	Watcher *watcher.Watcher

	SnapshotDir string
	AStar       bool
	Observer    controller.Observer
	Rand        *rand.Rand
	Timeout     time.Duration
}

// Model is the Bubble Tea model for the routelens workbench.
type Model struct {
	opts    Options
	theme   Theme
	surf    *surface.Map
	session *controller.Session
	canvas  *Canvas
	roads   [][2]geo.Point

	startInput textinput.Model
	endInput   textinput.Model
	panel      viewport.Model
	panelMode  panelMode
	spinner    spinner.Model
	md         *glamour.TermRenderer
	mdWidth    int

	focus     focus
	showHelp  bool
	cursorCol int
	cursorRow int

	width      int
	height     int
	panelWidth int

	reloading     bool
	reloadPending bool
	statusMsg     string
	statusIsError bool
	statusSeq     int
	snapshots     int
}

// NewModel builds the workbench over opts.
func NewModel(opts Options) Model {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultEngineTimeout
	}
	if opts.SnapshotDir == "" {
		opts.SnapshotDir = "."
	}
	surf := surface.NewMap(opts.View)

	sessOpts := []controller.Option{controller.WithAStar(opts.AStar)}
	if opts.Observer != nil {
		sessOpts = append(sessOpts, controller.WithObserver(opts.Observer))
	}
	if opts.Rand != nil {
		sessOpts = append(sessOpts, controller.WithRand(opts.Rand))
	}

	newInput := func(placeholder string) textinput.Model {
		ti := textinput.New()
		ti.Placeholder = placeholder
		ti.Prompt = ""
		ti.CharLimit = 80
		ti.Width = 24
		return ti
	}

	m := Model{
		opts:       opts,
		theme:      DefaultTheme(lipgloss.DefaultRenderer()),
		surf:       surf,
		session:    controller.New(surf, opts.Places, sessOpts...),
		canvas:     NewCanvas(1, 1),
		startInput: newInput("place or lat, lon"),
		endInput:   newInput("place or lat, lon"),
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.loadRoads()
	m.resize(defaultWidth, defaultHeight)
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	if m.opts.Watcher != nil && m.opts.Reload != nil {
		return WatchFileCmd(m.opts.Watcher)
	}
	return nil
}

// Session exposes the controller session (for tests and the CLI).
func (m Model) Session() *controller.Session { return m.session }

// Surface exposes the map the session draws on.
func (m Model) Surface() *surface.Map { return m.surf }

// Canvas exposes the last rendered canvas.
func (m Model) Canvas() *Canvas { return m.canvas }

// Cursor returns the map cursor cell.
func (m Model) Cursor() (col, row int) { return m.cursorCol, m.cursorRow }

// StatusMessage returns the transient footer message.
func (m Model) StatusMessage() (string, bool) { return m.statusMsg, m.statusIsError }

func (m *Model) loadRoads() {
	if m.opts.Roads != nil {
		m.roads = m.opts.Roads()
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.panelWidth = clamp(width/3, minPanelWidth, maxPanelWidth)
	cols := max(width-m.panelWidth, 10)
	rows := max(height-mapTop-1, 3)

	m.canvas.Resize(cols, rows)
	m.surf.SetSize(m.canvas.PixelSize())
	m.cursorCol = clamp(m.cursorCol, 0, cols-1)
	m.cursorRow = clamp(m.cursorRow, 0, rows-1)
	if m.cursorCol == 0 && m.cursorRow == 0 {
		m.cursorCol, m.cursorRow = cols/2, rows/2
	}

	inner := m.panelWidth - 2
	m.panel = viewport.New(inner, rows)
	inputWidth := max((width-30)/2, 10)
	m.startInput.Width = inputWidth
	m.endInput.Width = inputWidth
}

// refresh redraws the canvas and panel from session state.
func (m *Model) refresh() {
	m.canvas.Draw(m.surf, m.roads)
	offset := m.panel.YOffset
	m.panel.SetContent(m.renderPanel(m.panel.Width))
	m.panel.SetYOffset(offset)

	c := m.session.Controls()
	if !m.startInput.Focused() && m.startInput.Value() != c.StartInput {
		m.startInput.SetValue(c.StartInput)
	}
	if !m.endInput.Focused() && m.endInput.Value() != c.EndInput {
		m.endInput.SetValue(c.EndInput)
	}
}

func (m *Model) setStatus(msg string, isErr bool) tea.Cmd {
	m.statusSeq++
	m.statusMsg = msg
	m.statusIsError = isErr
	return statusClearCmd(m.statusSeq, statusTTL)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.session.Dispose()
			return m, tea.Quit
		}
		var cmd tea.Cmd
		var quit bool
		switch {
		case m.showHelp:
			m.showHelp = false
		case m.focus != focusMap:
			cmd = m.handleInputKeys(msg)
		default:
			cmd, quit = m.handleMapKeys(msg)
		}
		if quit {
			m.session.Dispose()
			return m, tea.Quit
		}
		cmds = append(cmds, cmd)

	case tea.MouseMsg:
		cmds = append(cmds, m.handleMouse(msg))

	case RoutesResultMsg:
		err := m.session.ApplyRoutes(msg.Req, msg.Result, msg.Err)
		cmds = append(cmds, m.afterApply("routes", err))

	case CriticalResultMsg:
		err := m.session.ApplyCritical(msg.Req, msg.Result, msg.Err)
		cmds = append(cmds, m.afterApply("critical", err))

	case FileChangedMsg:
		debug.Log("ui: road network changed on disk")
		if m.opts.Watcher != nil {
			cmds = append(cmds, WatchFileCmd(m.opts.Watcher))
		}
		if m.opts.Reload != nil {
			if m.reloading {
				m.reloadPending = true
			} else {
				cmds = append(cmds, m.startReload())
			}
		}

	case GraphReloadedMsg:
		m.reloading = false
		if m.reloadPending {
			// The file changed again mid-reload; load the newer version.
			m.reloadPending = false
			cmds = append(cmds, m.startReload())
			break
		}
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus("Reload failed: "+msg.Err.Error(), true))
		} else {
			m.loadRoads()
			cmds = append(cmds, m.setStatus("Road network reloaded", false))
		}

	case SnapshotSavedMsg:
		if msg.Err != nil {
			cmds = append(cmds, m.setStatus("Snapshot failed: "+msg.Err.Error(), true))
		} else {
			cmds = append(cmds, m.setStatus("Saved "+msg.Path, false))
		}

	case statusClearMsg:
		if msg.seq == m.statusSeq {
			m.statusMsg, m.statusIsError = "", false
		}

	case spinner.TickMsg:
		if m.session.Busy() || m.reloading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.refresh()
	return m, tea.Batch(cmds...)
}

func (m *Model) startReload() tea.Cmd {
	m.session.ResetAll()
	m.reloading = true
	return tea.Batch(reloadCmd(m.opts.Reload, m.opts.Timeout), m.spinner.Tick,
		m.setStatus("Road network changed, reloading...", false))
}

// afterApply reports the outcome of a finished engine call. Stale results
// change nothing.
func (m *Model) afterApply(op string, err error) tea.Cmd {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, controller.ErrStale):
		debug.Log("ui: dropped stale %s result", op)
		return nil
	case controller.IsKind(err, controller.KindNoResults):
		return nil
	default:
		msg := err.Error()
		if lines := m.session.Panels().Status.Lines; len(lines) > 0 {
			msg = lines[0]
		}
		return m.setStatus(msg, true)
	}
}

// handleMapKeys handles keyboard input when the map has focus. quit reports
// whether the program should exit.
func (m *Model) handleMapKeys(msg tea.KeyMsg) (cmd tea.Cmd, quit bool) {
	cols, rows := m.canvas.Size()
	switch key := msg.String(); key {
	case "q":
		return nil, true
	case "?":
		m.showHelp = true
	case "tab":
		return m.setFocus(focusStart), false
	case "shift+tab":
		return m.setFocus(focusEnd), false

	case "up", "k":
		m.moveCursor(0, -1, cols, rows)
	case "down", "j":
		m.moveCursor(0, 1, cols, rows)
	case "left", "h":
		m.moveCursor(-1, 0, cols, rows)
	case "right", "l":
		m.moveCursor(1, 0, cols, rows)
	case "H":
		m.pan(-panStep, 0)
	case "L":
		m.pan(panStep, 0)
	case "K":
		m.pan(0, -panStep)
	case "J":
		m.pan(0, panStep)
	case "+", "=":
		m.surf.ZoomBy(1)
	case "-", "_":
		m.surf.ZoomBy(-1)
	case "enter", " ", "space":
		m.surf.Click(CellCenter(m.cursorCol, m.cursorRow))
	case "esc":
		m.surf.ClosePopup()

	case "f":
		return m.findRoutes(), false
	case "c":
		return m.detectCritical(), false
	case "m":
		if err := m.session.StartManualSelection(); err != nil {
			return m.busyStatus(err), false
		}
		return m.setStatus("Click two points on the map: move with arrows, select with enter", false), false
	case "a":
		if err := m.session.SetAStar(!m.session.Controls().UseAStar); err != nil {
			return m.busyStatus(err), false
		}
		return m.setStatus("Algorithm: "+algorithmName(m.session.Controls().Algorithm()), false), false
	case "r":
		m.session.ResetAll()
		m.startInput.SetValue("")
		m.endInput.SetValue("")
		return m.setStatus("Reset", false), false
	case "1", "2", "3", "4":
		rank := int(key[0] - '1')
		if err := m.session.Highlight(rank); err != nil {
			return m.setStatus(err.Error(), true), false
		}
	case "v":
		if m.panelMode == panelCards {
			m.panelMode = panelReport
		} else {
			m.panelMode = panelCards
		}
		m.panel.GotoTop()
	case "y":
		return m.copyReport(), false
	case "s":
		return m.saveSnapshot(), false
	case "pgup", "pgdown", "ctrl+u", "ctrl+d":
		var c tea.Cmd
		m.panel, c = m.panel.Update(msg)
		return c, false
	}
	return nil, false
}

// handleInputKeys handles typing into the start and end inputs.
func (m *Model) handleInputKeys(msg tea.KeyMsg) tea.Cmd {
	input := &m.startInput
	if m.focus == focusEnd {
		input = &m.endInput
	}
	switch msg.String() {
	case "esc":
		return m.setFocus(focusMap)
	case "tab":
		if s := m.completion(input.Value()); s != "" {
			input.SetValue(s)
			input.CursorEnd()
			return m.syncInput()
		}
		if m.focus == focusStart {
			return m.setFocus(focusEnd)
		}
		return m.setFocus(focusMap)
	case "shift+tab":
		if m.focus == focusEnd {
			return m.setFocus(focusStart)
		}
		return m.setFocus(focusMap)
	case "enter":
		if cmd := m.syncInput(); cmd != nil {
			return cmd
		}
		m.setFocus(focusMap)
		return m.findRoutes()
	}
	if m.session.Busy() {
		return nil
	}
	var cmd tea.Cmd
	*input, cmd = input.Update(msg)
	return tea.Batch(cmd, m.syncInput())
}

// syncInput pushes the focused input into the session.
func (m *Model) syncInput() tea.Cmd {
	var err error
	if m.focus == focusStart {
		err = m.session.SetStartInput(m.startInput.Value())
	} else if m.focus == focusEnd {
		err = m.session.SetEndInput(m.endInput.Value())
	}
	if err != nil {
		return m.busyStatus(err)
	}
	return nil
}

// completion returns the first place name extending typed, if any.
func (m *Model) completion(typed string) string {
	if strings.TrimSpace(typed) == "" || m.opts.Places.Has(typed) {
		return ""
	}
	s := m.opts.Places.Suggest(typed, 1)
	if len(s) == 0 {
		return ""
	}
	return s[0]
}

func (m *Model) setFocus(f focus) tea.Cmd {
	m.focus = f
	m.startInput.Blur()
	m.endInput.Blur()
	switch f {
	case focusStart:
		return m.startInput.Focus()
	case focusEnd:
		return m.endInput.Focus()
	}
	return nil
}

func (m *Model) moveCursor(dc, dr, cols, rows int) {
	m.cursorCol = clamp(m.cursorCol+dc, 0, cols-1)
	m.cursorRow = clamp(m.cursorRow+dr, 0, rows-1)
	m.surf.Hover(CellCenter(m.cursorCol, m.cursorRow))
}

func (m *Model) pan(dc, dr int) {
	m.surf.PanBy(float64(dc)*CellWidth, float64(dr)*CellHeight)
}

func (m *Model) handleMouse(msg tea.MouseMsg) tea.Cmd {
	cols, rows := m.canvas.Size()
	col, row := msg.X, msg.Y-mapTop
	if col < 0 || row < 0 || col >= cols || row >= rows {
		return nil
	}
	switch {
	case msg.Button == tea.MouseButtonWheelUp:
		m.surf.ZoomBy(1)
	case msg.Button == tea.MouseButtonWheelDown:
		m.surf.ZoomBy(-1)
	case msg.Action == tea.MouseActionMotion:
		m.cursorCol, m.cursorRow = col, row
		m.surf.Hover(CellCenter(col, row))
	case msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft:
		m.cursorCol, m.cursorRow = col, row
		m.surf.Click(CellCenter(col, row))
	}
	return nil
}

func (m *Model) findRoutes() tea.Cmd {
	req, err := m.session.BeginRoutes()
	if err != nil {
		if controller.IsKind(err, controller.KindInvalidSelection) {
			return m.setStatus("Please select valid start and end locations.", true)
		}
		return m.busyStatus(err)
	}
	m.surf.ClosePopup()
	return tea.Batch(findRoutesCmd(m.opts.Engine, req, m.opts.Timeout), m.spinner.Tick)
}

func (m *Model) detectCritical() tea.Cmd {
	req, err := m.session.BeginCritical()
	if err != nil {
		return m.busyStatus(err)
	}
	return tea.Batch(criticalCmd(m.opts.Engine, req, m.opts.Timeout), m.spinner.Tick)
}

func (m *Model) busyStatus(err error) tea.Cmd {
	if errors.Is(err, controller.ErrBusy) {
		return m.setStatus("Busy, wait for the current analysis to finish", true)
	}
	return m.setStatus(err.Error(), true)
}

func (m *Model) copyReport() tea.Cmd {
	p := m.session.Panels()
	if p.RouteSummary == nil && p.CriticalReport == nil {
		return m.setStatus("Nothing to copy yet", true)
	}
	if err := clipboard.WriteAll(m.reportMarkdown()); err != nil {
		return m.setStatus(fmt.Sprintf("Clipboard error: %v", err), true)
	}
	return m.setStatus("Copied report to clipboard", false)
}

func (m *Model) saveSnapshot() tea.Cmd {
	m.snapshots++
	name := fmt.Sprintf("routelens-%s-%d.svg", time.Now().Format("20060102-150405"), m.snapshots)
	path := filepath.Join(m.opts.SnapshotDir, name)
	scene := snapshot.FromMap(m.surf, 0, 0)
	scene.Roads = m.roads
	scene.Describe(m.session.Panels())
	return saveSnapshot(path, scene)
}

func (m Model) View() string {
	if m.showHelp {
		return m.renderHelp()
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		m.canvas.Render(m.cursorCol, m.cursorRow, true, m.theme.Cursor),
		m.theme.Panel.Width(m.panelWidth-1).Render(m.panel.View()),
	)
	return strings.Join([]string{m.renderHeader(), m.renderInputs(), body, m.renderFooter()}, "\n")
}

func (m Model) renderHeader() string {
	c := m.session.Controls()
	parts := []string{"routelens", algorithmName(c.Algorithm())}
	if sel := m.session.Selection(); sel.Phase != controller.PhaseNone {
		parts = append(parts, "select: "+sel.Phase.String())
	}
	v := m.surf.View()
	parts = append(parts, fmt.Sprintf("zoom %.0f", v.Zoom))
	if m.session.Busy() || m.reloading {
		parts = append(parts, m.spinner.View()+" working")
	}
	return m.theme.Header.Width(m.width).Render(truncate(strings.Join(parts, " │ "), m.width-2))
}

func (m Model) renderInputs() string {
	field := func(label string, ti textinput.Model, focused bool) string {
		lbl := m.theme.KeyLabel.Render(label + ": ")
		if focused {
			lbl = m.theme.Focused.Render(label + ": ")
		}
		hint := ""
		if v := strings.TrimSpace(ti.Value()); v != "" {
			if controller.InputKnown(m.opts.Places, v) {
				hint = m.theme.InputOK.Render(" ✓")
			} else {
				hint = m.theme.InputBad.Render(" ✗ unknown")
				if s := m.completion(v); s != "" && focused {
					hint = m.theme.MutedText.Render(" tab: " + s)
				}
			}
		}
		return lbl + ti.View() + hint
	}
	line := field("Start", m.startInput, m.focus == focusStart) + "   " + field("End", m.endInput, m.focus == focusEnd)
	return truncateANSI(line, m.width)
}

func (m Model) renderFooter() string {
	if m.statusMsg != "" {
		style := lipgloss.NewStyle().Bold(true).Padding(0, 1)
		prefix := "✓ "
		if m.statusIsError {
			style = style.Background(ColorDangerBg).Foreground(ColorDanger)
			prefix = "✗ "
		} else {
			style = style.Background(ColorSuccessBg).Foreground(ColorSuccess)
		}
		return style.Render(truncate(prefix+m.statusMsg, m.width-2))
	}

	status := m.session.Panels().Status
	left := ""
	if len(status.Lines) > 0 {
		left = lipgloss.NewStyle().Foreground(toneColor(status.Tone)).Render(status.Lines[0])
	}
	type hint struct{ key, label string }
	hints := []hint{{"f", "routes"}, {"c", "critical"}, {"m", "pick"}, {"a", "algo"}, {"1-4", "highlight"}, {"r", "reset"}, {"?", "help"}}
	if m.focus != focusMap {
		hints = []hint{{"enter", "find"}, {"tab", "complete/next"}, {"esc", "map"}}
	}
	var hs []string
	for _, h := range hints {
		hs = append(hs, m.theme.Key.Render(h.key)+" "+m.theme.KeyLabel.Render(h.label))
	}
	right := strings.Join(hs, "  ")
	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return truncateANSI(left+" "+right, m.width)
	}
	return left + strings.Repeat(" ", gap) + right
}

func (m Model) renderHelp() string {
	rows := [][2]string{
		{"arrows / hjkl", "move the map cursor (hover)"},
		{"enter / space", "click at the cursor"},
		{"H J K L", "pan the map"},
		{"+ / -", "zoom in / out"},
		{"tab", "edit start, then end (tab completes a place)"},
		{"f", "find K shortest routes"},
		{"m", "pick start and end on the map"},
		{"a", "toggle Dijkstra / A*"},
		{"1-4", "highlight a route"},
		{"c", "detect critical points"},
		{"v", "toggle cards / full report"},
		{"y", "copy report to clipboard"},
		{"s", "save an SVG snapshot"},
		{"esc", "close popup"},
		{"r", "reset everything"},
		{"q", "quit"},
	}
	var b strings.Builder
	b.WriteString(m.theme.Focused.Render("routelens keys") + "\n\n")
	for _, r := range rows {
		b.WriteString(m.theme.Key.Render(padRight(r[0], 16)) + m.theme.KeyLabel.Render(r[1]) + "\n")
	}
	b.WriteString("\n" + m.theme.MutedText.Render("press any key to close"))
	box := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(ColorPrimary).Padding(1, 2).Render(b.String())
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// truncateANSI cuts a styled line to width cells.
func truncateANSI(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}
