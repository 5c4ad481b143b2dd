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

// CriticalFinder is the engine call the critical-point pipeline needs.
type CriticalFinder interface {
	CriticalPoints(ctx context.Context) (*engine.CriticalResult, error)
}

// CriticalRequest is an outstanding critical-point query.
type CriticalRequest struct {
	Generation uint64
}

// BeginCritical disables the controls for a critical-point query. The current
// critical layer stays until a non-empty result replaces it.
func (s *Session) BeginCritical() (CriticalRequest, error) {
	if err := s.ready(); err != nil {
		return CriticalRequest{}, err
	}
	s.begin("Detecting critical points...")
	s.panels.Critical = notice(ToneLoading, "", "Analyzing network vulnerabilities...")
	return CriticalRequest{Generation: s.generation}, nil
}

// ApplyCritical consumes the engine's answer to req. Like ApplyRoutes it
// returns ErrStale for a reset session and re-enables controls otherwise.
func (s *Session) ApplyCritical(req CriticalRequest, res *engine.CriticalResult, callErr error) (err error) {
	if req.Generation != s.generation || s.disposed {
		debug.Log("critical: dropping stale result gen=%d (now %d)", req.Generation, s.generation)
		return ErrStale
	}
	defer s.finish()
	defer func() {
		s.emit(Event{Kind: EventCritical, Critical: s.panels.CriticalReport, Err: err})
	}()

	switch {
	case callErr != nil:
		s.panels.Critical = notice(ToneError, "", "Error detecting critical points: "+callErr.Error())
		s.panels.Status = notice(ToneError, "", "Error detecting critical points.")
		return &Error{Kind: KindEngineFailure, Op: "critical", Err: callErr}
	case res == nil:
		s.panels.Critical = notice(ToneError, "", "Error detecting critical points.")
		s.panels.Status = notice(ToneError, "", "Error detecting critical points.")
		return &Error{Kind: KindEngineFailure, Op: "critical", Err: engine.ErrNoPayload}
	case len(res.Points) == 0:
		s.panels.Critical = notice(ToneWarning, "", "No critical points found.")
		s.panels.Status = notice(ToneInfo, "", "No critical points found.")
		return &Error{Kind: KindNoResults, Op: "critical"}
	}

	s.renderCritical(res)
	return nil
}

// DetectCritical runs a whole critical-point query synchronously.
func (s *Session) DetectCritical(ctx context.Context, f CriticalFinder) error {
	req, err := s.BeginCritical()
	if err != nil {
		return err
	}
	res, callErr := f.CriticalPoints(ctx)
	return s.ApplyCritical(req, res, callErr)
}

func (s *Session) renderCritical(res *engine.CriticalResult) {
	defer metrics.Timer(metrics.CriticalRender)()
	s.clearCritical()

	group := surface.NewClusterGroup(surface.ClusterGroupOptions{
		MaxClusterRadius:  surface.DefaultClusterRadius,
		SpiderfyOnMaxZoom: true,
		IconSize:          ClusterIconSize,
		IconColor: func(int) string {
			return CriticalPalette[s.rng.IntN(len(CriticalPalette))]
		},
	})
	for i, p := range res.Points {
		group.AddLayer(s.criticalMarker(i, p))
	}
	s.surf.AddLayer(group)
	s.critical = group

	report := CriticalReport{Count: len(res.Points), ExecutionTimeMs: res.ExecutionTimeMs}
	s.panels.CriticalReport = &report
	s.panels.Critical = notice(ToneSuccess, "Critical points detected!",
		fmt.Sprintf("Found: %d critical points", report.Count),
		fmt.Sprintf("Execution time: %gms", report.ExecutionTimeMs),
		"Critical points are clustered for better visualization")
	s.panels.Status = notice(ToneSuccess, "", "Critical points detection complete.")
	debug.Log("critical: rendered %d points", report.Count)
}

func (s *Session) criticalMarker(i int, p geo.Point) *surface.CircleMarker {
	m := surface.NewCircleMarker(p, criticalStyle(i))
	m.BindPopup(fmt.Sprintf("⚠️ Critical Point\nLat: %.6f\nLon: %.6f\nNetwork Vulnerability Point", p.Lat, p.Lon))
	m.OnEnter = func(geo.Point) { m.SetStyle(criticalHoverStyle(i)) }
	m.OnLeave = func() { m.SetStyle(criticalStyle(i)) }
	m.OnActivate = func(geo.Point) { s.surf.OpenPopup(p, m.Popup()) }
	return m
}

// CriticalLayer returns the active critical-point group, or nil.
func (s *Session) CriticalLayer() *surface.ClusterGroup {
	return s.critical
}

func (s *Session) clearCritical() {
	s.removeLayer(s.critical)
	s.critical = nil
	s.panels.CriticalReport = nil
}
