package controller

import (
	"context"
	"fmt"

	"github.com/vanderheijden86/routelens/pkg/debug"
	"github.com/vanderheijden86/routelens/pkg/engine"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/metrics"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

// RouteFinder is the engine call the route pipeline needs.
type RouteFinder interface {
	FindKShortestRoutes(ctx context.Context, q engine.Query) (*engine.RouteResult, error)
}

// RouteRequest is an outstanding route query.
type RouteRequest struct {
	Generation uint64
	Query      engine.Query
	Endpoints  Endpoints
}

// BeginRoutes resolves the current input source and prepares the session for
// a route query: the critical layer and previous routes are removed and the
// controls are disabled until ApplyRoutes. An invalid selection leaves every
// layer in place.
func (s *Session) BeginRoutes() (RouteRequest, error) {
	if err := s.ready(); err != nil {
		return RouteRequest{}, err
	}
	ep, err := s.InputSource().Resolve(s.dir)
	if err != nil {
		s.panels.Visible = true
		s.panels.Route = notice(ToneError, "", userMessage(err))
		s.panels.RouteSummary = nil
		s.panels.Status = notice(ToneError, "", "Error calculating paths.")
		return RouteRequest{}, err
	}

	s.clearCritical()
	s.begin("Calculating K-shortest paths with advanced algorithms...")
	s.clearRoutes()

	req := RouteRequest{
		Generation: s.generation,
		Query:      engine.Query{Start: ep.Start, End: ep.End, UseAStar: s.controls.UseAStar},
		Endpoints:  ep,
	}
	debug.Log("routes: begin gen=%d %s -> %s (%s)", req.Generation, ep.StartLabel, ep.EndLabel, req.Query.Algorithm())
	return req, nil
}

// ApplyRoutes consumes the engine's answer to req. It returns ErrStale without
// touching anything when the session was reset since BeginRoutes. Failures
// and empty results are reported as *Error; controls are re-enabled on every
// non-stale path.
func (s *Session) ApplyRoutes(req RouteRequest, res *engine.RouteResult, callErr error) (err error) {
	if req.Generation != s.generation || s.disposed {
		debug.Log("routes: dropping stale result gen=%d (now %d)", req.Generation, s.generation)
		return ErrStale
	}
	defer s.finish()
	defer func() {
		ev := Event{Kind: EventRoutes, Query: &req.Query, Summary: s.panels.RouteSummary, Err: err}
		s.emit(ev)
	}()

	if callErr != nil {
		s.panels.Route = notice(ToneError, "", "Error calculating K-shortest paths: "+callErr.Error())
		s.panels.RouteSummary = nil
		s.panels.Status = notice(ToneError, "", "Error calculating paths.")
		return &Error{Kind: KindEngineFailure, Op: "routes", Err: callErr}
	}
	if res == nil {
		s.panels.Route = notice(ToneError, "", "Error calculating K-shortest paths.")
		s.panels.Status = notice(ToneError, "", "Error calculating paths.")
		return &Error{Kind: KindEngineFailure, Op: "routes", Err: engine.ErrNoPayload}
	}

	valid := usableRoutes(res.Routes)
	if len(valid) == 0 {
		s.panels.Route = notice(ToneWarning, "", "No K-shortest paths found between the selected points.")
		s.panels.RouteSummary = nil
		s.panels.Status = notice(ToneInfo, "", "No paths found.")
		return &Error{Kind: KindNoResults, Op: "routes"}
	}

	s.renderRoutes(req, valid, res.ExecutionTimeMs)
	return nil
}

// FindRoutes runs a whole route query synchronously.
func (s *Session) FindRoutes(ctx context.Context, f RouteFinder) error {
	req, err := s.BeginRoutes()
	if err != nil {
		return err
	}
	res, callErr := f.FindKShortestRoutes(ctx, req.Query)
	return s.ApplyRoutes(req, res, callErr)
}

func (s *Session) renderRoutes(req RouteRequest, valid []engine.Route, execMs float64) {
	defer metrics.Timer(metrics.RouteRender)()
	ep := req.Endpoints

	overlap := s.surf.Distance(ep.Start, ep.End) < OverlapThreshold
	shown := valid
	if overlap {
		shown = valid[:1]
	}
	if len(shown) > MaxStyledRoutes {
		shown = shown[:MaxStyledRoutes]
	}

	for rank, r := range shown {
		s.addRouteLine(rank, r)
	}

	if s.selStart == nil || s.selEnd == nil {
		s.removeLayer(s.selStart)
		s.removeLayer(s.selEnd)
		s.selStart, s.selEnd = nil, nil
		s.routeStart = s.endpointMarker(ep.Start, surface.RoleStart, ep.StartLabel)
		s.routeEnd = s.endpointMarker(ep.End, surface.RoleEnd, ep.EndLabel)
		s.surf.AddLayer(s.routeStart)
		s.surf.AddLayer(s.routeEnd)
	}

	var bounds geo.Bounds
	for _, rl := range s.routes {
		bounds = bounds.Union(rl.line.Bounds())
	}
	s.surf.FitBounds(bounds, surface.FitOptions{Padding: FitPadding, MaxZoom: FitMaxZoom})

	summary := Summarize(valid, len(shown), ep, req.Query.Algorithm(), execMs, overlap)
	s.panels.RouteSummary = &summary
	s.panels.Route = Notice{Tone: ToneSuccess}
	if overlap {
		s.panels.Route = notice(ToneWarning, "", "Showing optimal route only due to overlapping coordinates")
	}
	s.panels.Status = notice(ToneSuccess, "", summary.StatusLine())
	debug.Log("routes: rendered %d of %d (overlap=%v)", len(shown), len(valid), overlap)
}

func (s *Session) addRouteLine(rank int, r engine.Route) {
	st := RouteStyles[rank]
	rl := &routeLine{
		rank:    rank,
		shadow:  surface.NewPolyline(r.Coordinates, st.Shadow()),
		line:    surface.NewPolyline(r.Coordinates, st.Base()),
		resting: st.Base(),
	}
	rl.line.BindPopup(fmt.Sprintf("%s %s\nDistance: %s\nWaypoints: %d\nPriority: %s",
		st.Icon, st.Label, formatKm(r.Distance/1000), len(r.Coordinates), st.Priority))

	line := rl.line
	line.OnEnter = func(at geo.Point) {
		line.SetStyle(emphasized(rl.resting))
		s.surf.OpenPopup(at, line.Popup())
	}
	line.OnLeave = func() {
		line.SetStyle(rl.resting)
		s.surf.ClosePopup()
	}
	line.OnActivate = func(geo.Point) {
		_ = s.Highlight(rank)
	}

	s.surf.AddLayer(rl.shadow)
	s.surf.AddLayer(rl.line)
	s.routes = append(s.routes, rl)
}

// Highlight selects one displayed rank: it gets its full style with extra
// weight, solid and in front; every other route line is faded. Shadows are
// untouched. Repeating the call with the same rank changes nothing.
func (s *Session) Highlight(rank int) error {
	if len(s.routes) == 0 {
		return ErrNoRoutesDisplayed
	}
	if rank < 0 || rank >= len(s.routes) {
		return fmt.Errorf("%w: %d", ErrInvalidRank, rank)
	}
	for _, rl := range s.routes {
		st := RouteStyles[rl.rank]
		if rl.rank == rank {
			rl.resting = st.Highlighted()
			rl.line.SetStyle(rl.resting)
			s.surf.BringToFront(rl.line)
		} else {
			rl.resting = st.Faded()
			rl.line.SetStyle(rl.resting)
		}
	}
	s.highlighted = rank
	return nil
}

// Highlighted returns the highlighted rank, if any.
func (s *Session) Highlighted() (int, bool) {
	return s.highlighted, s.highlighted >= 0
}

// RouteLines returns the styled route lines in rank order, without shadows.
func (s *Session) RouteLines() []*surface.Polyline {
	out := make([]*surface.Polyline, len(s.routes))
	for i, r := range s.routes {
		out[i] = r.line
	}
	return out
}

// ShadowLines returns the shadow lines in rank order.
func (s *Session) ShadowLines() []*surface.Polyline {
	out := make([]*surface.Polyline, len(s.routes))
	for i, r := range s.routes {
		out[i] = r.shadow
	}
	return out
}

// clearRoutes removes every route line and route-created marker and forgets
// them, so the next query creates fresh markers.
func (s *Session) clearRoutes() {
	for _, r := range s.routes {
		s.removeLayer(r.shadow)
		s.removeLayer(r.line)
	}
	s.routes = nil
	s.highlighted = -1
	s.removeLayer(s.routeStart)
	s.removeLayer(s.routeEnd)
	s.routeStart, s.routeEnd = nil, nil
	s.panels.RouteSummary = nil
}
