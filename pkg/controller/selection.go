package controller

import (
	"fmt"

	"github.com/vanderheijden86/routelens/pkg/debug"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

// Phase is the manual selection state.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseAwaitingStart
	PhaseAwaitingEnd
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseAwaitingStart:
		return "awaiting start"
	case PhaseAwaitingEnd:
		return "awaiting end"
	case PhaseComplete:
		return "complete"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

// Selection is the two-click selection. Start is set from PhaseAwaitingEnd on
// and End once PhaseComplete.
type Selection struct {
	Phase Phase
	Start geo.Point
	End   geo.Point
}

// StartManualSelection resets the session and waits for two map clicks. It
// never computes routes on its own.
func (s *Session) StartManualSelection() error {
	if err := s.ready(); err != nil {
		return err
	}
	s.ResetAll()
	s.panels.Visible = true
	s.selection = Selection{Phase: PhaseAwaitingStart}
	s.listener = s.surf.OnClick(s.handleSelectionClick)
	s.panels.Route = notice(ToneInfo, "Step 1:", "Click on the map to select your starting point")
	debug.Log("selection: awaiting start (listener %d)", s.listener)
	return nil
}

func (s *Session) handleSelectionClick(p geo.Point) {
	display := p.String()
	switch s.selection.Phase {
	case PhaseAwaitingStart:
		s.removeLayer(s.selStart)
		s.selStart = s.endpointMarker(p, surface.RoleStart, display)
		s.surf.AddLayer(s.selStart)
		s.selection.Start = p
		s.selection.Phase = PhaseAwaitingEnd
		s.controls.StartInput = display
		s.panels.Route = notice(ToneSuccess, "Start point selected!",
			display,
			"Step 2: Now click to select your destination")

	case PhaseAwaitingEnd:
		s.removeLayer(s.selEnd)
		s.selEnd = s.endpointMarker(p, surface.RoleEnd, display)
		s.surf.AddLayer(s.selEnd)
		s.selection.End = p
		s.selection.Phase = PhaseComplete
		s.controls.EndInput = display
		s.detachListener()
		s.panels.Route = notice(ToneSuccess, "Both points selected successfully!",
			"🚀 Start: "+s.selection.Start.String(),
			"🎯 End: "+s.selection.End.String(),
			`Press "Find Shortest Path" to calculate optimal routes`)
	}
	debug.Log("selection: click %s -> %s", display, s.selection.Phase)
}

func (s *Session) detachListener() {
	if s.listener != 0 {
		s.surf.OffClick(s.listener)
		s.listener = 0
	}
}

// clearSelection removes selection markers and the listener and returns to
// PhaseNone.
func (s *Session) clearSelection() {
	s.detachListener()
	s.removeLayer(s.selStart)
	s.removeLayer(s.selEnd)
	s.selStart, s.selEnd = nil, nil
	s.selection = Selection{}
}

// endpointMarker builds a start or destination marker whose popup opens on
// click.
func (s *Session) endpointMarker(p geo.Point, role surface.MarkerRole, label string) *surface.Marker {
	st := startMarkerStyle
	if role == surface.RoleEnd {
		st = endMarkerStyle
	}
	if label == "" {
		label = p.String()
	}
	m := surface.NewMarker(p, surface.MarkerOptions{
		Role:  role,
		Title: st.title,
		Icon:  st.icon,
		Color: st.color,
		Label: label,
		Popup: fmt.Sprintf("%s %s\n%s\n%s", st.icon, st.title, label, st.footnote),
	})
	m.OnActivate = func(geo.Point) { s.surf.OpenPopup(p, m.Popup()) }
	return m
}
