// Package controller is the interactive selection-and-visualization core. A
// Session owns the selection state machine, every layer it puts on the
// surface, the panel texts and the control state. It is driven from a single
// goroutine: engine calls happen outside it and come back through
// ApplyRoutes and ApplyCritical, which drop results from a reset session.
package controller

import (
	"math/rand/v2"
	"time"

	"github.com/vanderheijden86/routelens/pkg/debug"
	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/places"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

// Default panel texts.
const (
	DefaultRouteText    = "Select start and end points to see route analysis."
	DefaultCriticalText = "Click on Critical Points button to analyze network vulnerabilities."
	DefaultStatusText   = "Ready to analyze routes..."
)

// Tone is the severity of a panel notice.
type Tone int

const (
	ToneInfo Tone = iota
	ToneSuccess
	ToneWarning
	ToneError
	ToneLoading
)

// Notice is a panel message.
type Notice struct {
	Tone  Tone     `json:"tone"`
	Title string   `json:"title,omitempty"`
	Lines []string `json:"lines,omitempty"`
}

func notice(tone Tone, title string, lines ...string) Notice {
	return Notice{Tone: tone, Title: title, Lines: lines}
}

// Panels is everything the side panel and footer show.
type Panels struct {
	Visible        bool
	Route          Notice
	RouteSummary   *RouteSummary
	Critical       Notice
	CriticalReport *CriticalReport
	Status         Notice
}

// Controls mirrors the user-facing inputs. They are enabled or disabled as a
// unit.
type Controls struct {
	StartInput string
	EndInput   string
	UseAStar   bool
	Enabled    bool
}

// Algorithm names the selected search mode.
func (c Controls) Algorithm() string {
	if c.UseAStar {
		return "astar"
	}
	return "dijkstra"
}

// EventKind identifies a session event.
type EventKind int

const (
	EventRoutes EventKind = iota
	EventCritical
	EventReset
)

// Event describes a completed operation, for journaling and metrics.
type Event struct {
	Kind     EventKind
	Query    *engine.Query
	Summary  *RouteSummary
	Critical *CriticalReport
	Err      error
	At       time.Time
}

// Observer receives session events. It runs inside the session's goroutine.
type Observer func(Event)

// Option configures a Session.
type Option func(*Session)

// WithRand sets the random source used for cluster badge colors.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// WithObserver attaches an event observer.
func WithObserver(o Observer) Option {
	return func(s *Session) { s.observer = o }
}

// WithAStar sets the initial algorithm choice.
func WithAStar(on bool) Option {
	return func(s *Session) { s.controls.UseAStar = on }
}

// routeLine is one displayed rank: its shadow, its styled line, and the style
// it returns to when the pointer leaves.
type routeLine struct {
	rank    int
	shadow  *surface.Polyline
	line    *surface.Polyline
	resting surface.PathStyle
}

// Session is one interactive controller instance.
type Session struct {
	surf     surface.Surface
	dir      *places.Directory
	rng      *rand.Rand
	observer Observer

	controls   Controls
	panels     Panels
	generation uint64
	disposed   bool

	selection Selection
	listener  surface.ListenerID

	// Markers placed by manual selection.
	selStart *surface.Marker
	selEnd   *surface.Marker

	// Layers placed by the route pipeline.
	routes      []*routeLine
	routeStart  *surface.Marker
	routeEnd    *surface.Marker
	highlighted int

	critical *surface.ClusterGroup
}

// New returns a session in its initial state drawing on surf.
func New(surf surface.Surface, dir *places.Directory, opts ...Option) *Session {
	s := &Session{
		surf:        surf,
		dir:         dir,
		highlighted: -1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	s.restoreDefaults()
	return s
}

func (s *Session) restoreDefaults() {
	s.panels = Panels{
		Route:    notice(ToneInfo, "", DefaultRouteText),
		Critical: notice(ToneInfo, "", DefaultCriticalText),
		Status:   notice(ToneInfo, "", DefaultStatusText),
	}
	s.controls.StartInput = ""
	s.controls.EndInput = ""
	s.controls.Enabled = true
}

// ResetAll tears down every layer, detaches the click listener, clears the
// selection and inputs, restores default texts and re-enables controls. It is
// safe in any state. Results for requests issued before the reset are dropped.
func (s *Session) ResetAll() {
	defer debug.LogEnterExit("Session.ResetAll")()
	s.clearRoutes()
	s.clearSelection()
	s.clearCritical()
	s.surf.ClosePopup()
	s.restoreDefaults()
	s.generation++
	s.emit(Event{Kind: EventReset})
}

// Dispose resets the session and refuses further operations.
func (s *Session) Dispose() {
	if s.disposed {
		return
	}
	s.ResetAll()
	s.disposed = true
	s.observer = nil
}

// Generation identifies the current session lifetime. It changes on reset.
func (s *Session) Generation() uint64 { return s.generation }

// Controls returns the control state.
func (s *Session) Controls() Controls { return s.controls }

// Panels returns the panel state.
func (s *Session) Panels() Panels { return s.panels }

// Selection returns the manual selection state.
func (s *Session) Selection() Selection { return s.selection }

// Busy reports whether controls are disabled by a pending operation.
func (s *Session) Busy() bool { return !s.controls.Enabled }

// Directory returns the place directory.
func (s *Session) Directory() *places.Directory { return s.dir }

func (s *Session) ready() error {
	if s.disposed {
		return ErrDisposed
	}
	if !s.controls.Enabled {
		return ErrBusy
	}
	return nil
}

// SetStartInput updates the typed start input.
func (s *Session) SetStartInput(v string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.controls.StartInput = v
	return nil
}

// SetEndInput updates the typed destination input.
func (s *Session) SetEndInput(v string) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.controls.EndInput = v
	return nil
}

// SetAStar changes the algorithm choice.
func (s *Session) SetAStar(on bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.controls.UseAStar = on
	return nil
}

// InputSource returns where the next route query reads its endpoints from.
func (s *Session) InputSource() InputSource {
	switch s.selection.Phase {
	case PhaseComplete:
		return ManualSource{Start: s.selection.Start, End: s.selection.End}
	case PhaseAwaitingStart, PhaseAwaitingEnd:
		return incompleteSource{}
	default:
		return NamedSource{Start: s.controls.StartInput, End: s.controls.EndInput}
	}
}

func (s *Session) begin(loading string) {
	s.controls.Enabled = false
	s.panels.Visible = true
	s.panels.Status = notice(ToneLoading, "", loading)
}

func (s *Session) finish() {
	s.controls.Enabled = true
}

func (s *Session) emit(e Event) {
	if s.observer == nil {
		return
	}
	e.At = time.Now()
	s.observer(e)
}

func (s *Session) removeLayer(l surface.Layer) {
	if isNil(l) || !s.surf.HasLayer(l) {
		return
	}
	s.surf.RemoveLayer(l)
}

// isNil catches typed nil layers held in the Layer interface.
func isNil(l surface.Layer) bool {
	switch v := l.(type) {
	case nil:
		return true
	case *surface.Marker:
		return v == nil
	case *surface.Polyline:
		return v == nil
	case *surface.CircleMarker:
		return v == nil
	case *surface.ClusterGroup:
		return v == nil
	}
	return false
}

// Layers returns every layer the session currently has registered, in
// registration order.
func (s *Session) Layers() []surface.Layer {
	var out []surface.Layer
	if s.selStart != nil {
		out = append(out, s.selStart)
	}
	if s.selEnd != nil {
		out = append(out, s.selEnd)
	}
	for _, r := range s.routes {
		out = append(out, r.shadow, r.line)
	}
	if s.routeStart != nil {
		out = append(out, s.routeStart)
	}
	if s.routeEnd != nil {
		out = append(out, s.routeEnd)
	}
	if s.critical != nil {
		out = append(out, s.critical)
	}
	return out
}
