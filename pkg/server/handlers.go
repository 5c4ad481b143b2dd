package server

import (
	"bytes"
	"errors"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/logging"
	"github.com/vanderheijden86/routelens/pkg/snapshot"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ready := false
	select {
	case <-s.eng.Ready():
		ready = true
	default:
	}
	status := http.StatusOK
	body := map[string]any{"status": "ok", "ready": ready, "places": s.dir.Len()}
	if !ready {
		status = http.StatusServiceUnavailable
		body["status"] = "loading"
	}
	writeJSON(w, status, body)
}

type placeJSON struct {
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
}

// handlePlaces lists the directory, or suggestions for ?q=.
func (s *Server) handlePlaces(w http.ResponseWriter, r *http.Request) {
	names := s.dir.Names()
	if q := r.URL.Query().Get("q"); q != "" {
		limit := 10
		if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
			limit = v
		}
		names = s.dir.Suggest(q, limit)
	}
	out := make([]placeJSON, 0, len(names))
	for _, name := range names {
		p, _ := s.dir.Lookup(name)
		out = append(out, placeJSON{Name: name, Lat: p.Lat, Lon: p.Lon})
	}
	writeJSON(w, http.StatusOK, map[string]any{"places": out, "count": len(out)})
}

// routeQuery is the body of POST /api/routes; GET takes the same fields as
// query parameters.
type routeQuery struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Algorithm string `json:"algorithm"`
}

func (s *Server) parseRouteQuery(r *http.Request) (routeQuery, error) {
	var q routeQuery
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			return q, errors.New("invalid request body")
		}
	} else {
		v := r.URL.Query()
		q = routeQuery{Start: v.Get("start"), End: v.Get("end"), Algorithm: v.Get("algorithm")}
	}
	return q, nil
}

// useAStar maps an algorithm name to the engine flag.
func (s *Server) useAStar(name string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return s.astar, nil
	case "astar", "a*", "a-star":
		return true, nil
	case "dijkstra":
		return false, nil
	default:
		return false, errors.New("algorithm must be astar or dijkstra")
	}
}

type routeJSON struct {
	Rank        int          `json:"rank"`
	Label       string       `json:"label"`
	Priority    string       `json:"priority"`
	Color       string       `json:"color"`
	DistanceM   float64      `json:"distance_m"`
	Coordinates [][2]float64 `json:"coordinates"`
}

type viewJSON struct {
	Center [2]float64 `json:"center"`
	Zoom   float64    `json:"zoom"`
}

type routesResponse struct {
	Summary *controller.RouteSummary `json:"summary"`
	Routes  []routeJSON              `json:"routes"`
	Status  string                   `json:"status"`
	View    viewJSON                 `json:"view"`
}

// runRoutes drives a fresh session through one route query. On failure it
// has already written the error response.
func (s *Server) runRoutes(w http.ResponseWriter, r *http.Request, q routeQuery) (*controller.Session, *surface.Map, bool) {
	astar, err := s.useAStar(q.Algorithm)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return nil, nil, false
	}
	sess, m := s.newSession()
	_ = sess.SetStartInput(q.Start)
	_ = sess.SetEndInput(q.End)
	_ = sess.SetAStar(astar)

	if err := sess.FindRoutes(r.Context(), s.eng); err != nil {
		s.writeSessionError(w, r, err, sess.Panels().Route)
		return nil, nil, false
	}
	return sess, m, true
}

func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	q, err := s.parseRouteQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	sess, m, ok := s.runRoutes(w, r, q)
	if !ok {
		return
	}

	panels := sess.Panels()
	resp := routesResponse{Summary: panels.RouteSummary, Status: noticeText(panels.Status)}
	lines := sess.RouteLines()
	for i, c := range panels.RouteSummary.Cards {
		rj := routeJSON{
			Rank:      c.Rank,
			Label:     c.Label,
			Priority:  c.Priority,
			Color:     c.Style.Color,
			DistanceM: c.DistanceKm * 1000,
		}
		if i < len(lines) {
			rj.Coordinates = latLon(lines[i].Points())
		}
		resp.Routes = append(resp.Routes, rj)
	}
	v := m.View()
	resp.View = viewJSON{Center: [2]float64{v.Center.Lat, v.Center.Lon}, Zoom: v.Zoom}
	writeJSON(w, http.StatusOK, resp)
}

type clusterJSON struct {
	Center [2]float64 `json:"center"`
	Count  int        `json:"count"`
}

type criticalResponse struct {
	Report   *controller.CriticalReport `json:"report"`
	Points   [][2]float64               `json:"points"`
	Clusters []clusterJSON              `json:"clusters"`
	Zoom     float64                    `json:"zoom"`
}

func (s *Server) handleCritical(w http.ResponseWriter, r *http.Request) {
	sess, m := s.newSession()
	if err := sess.DetectCritical(r.Context(), s.eng); err != nil {
		s.writeSessionError(w, r, err, sess.Panels().Critical)
		return
	}

	zoom := m.View().Zoom
	if v, err := strconv.ParseFloat(r.URL.Query().Get("zoom"), 64); err == nil {
		zoom = v
	}
	group := sess.CriticalLayer()
	resp := criticalResponse{Report: sess.Panels().CriticalReport, Zoom: zoom}
	for _, mk := range group.Members() {
		c := mk.Center()
		resp.Points = append(resp.Points, [2]float64{c.Lat, c.Lon})
	}
	for _, c := range group.Clusters(zoom) {
		resp.Clusters = append(resp.Clusters, clusterJSON{Center: [2]float64{c.Center.Lat, c.Center.Lon}, Count: len(c.Members)})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleSnapshot renders the map for an optional route query plus, with
// critical=1, the critical points.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query()
	width, _ := strconv.Atoi(v.Get("width"))
	height, _ := strconv.Atoi(v.Get("height"))

	var (
		sess *controller.Session
		m    *surface.Map
	)
	if v.Get("start") != "" || v.Get("end") != "" {
		var ok bool
		sess, m, ok = s.runRoutes(w, r, routeQuery{Start: v.Get("start"), End: v.Get("end"), Algorithm: v.Get("algorithm")})
		if !ok {
			return
		}
	} else {
		sess, m = s.newSession()
	}
	if on, _ := strconv.ParseBool(v.Get("critical")); on {
		if err := sess.DetectCritical(r.Context(), s.eng); err != nil && !controller.IsKind(err, controller.KindNoResults) {
			s.writeSessionError(w, r, err, sess.Panels().Critical)
			return
		}
	}

	scene := snapshot.FromMap(m, width, height)
	scene.Describe(sess.Panels())
	if s.roads != nil {
		scene.Roads = s.roads()
	}
	var buf bytes.Buffer
	if err := snapshot.WriteSVG(&buf, scene); err != nil {
		writeError(w, http.StatusInternalServerError, "render_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	_, _ = w.Write(buf.Bytes())
}

// writeSessionError maps a session outcome to a status code. The message is
// the inline panel text the UI would show.
func (s *Server) writeSessionError(w http.ResponseWriter, r *http.Request, err error, panel controller.Notice) {
	msg := noticeText(panel)
	if msg == "" {
		msg = err.Error()
	}
	switch {
	case controller.IsKind(err, controller.KindInvalidSelection):
		writeError(w, http.StatusBadRequest, "invalid_selection", msg)
	case controller.IsKind(err, controller.KindNoResults):
		writeError(w, http.StatusNotFound, "no_results", msg)
	case controller.IsKind(err, controller.KindEngineFailure):
		logging.FromContext(r.Context(), s.log).Error(r.Context(), "engine failure", logging.Err(err))
		writeError(w, http.StatusBadGateway, "engine_failure", msg)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func noticeText(n controller.Notice) string {
	parts := n.Lines
	if n.Title != "" {
		parts = append([]string{n.Title}, parts...)
	}
	return strings.Join(parts, " ")
}

func latLon(pts []geo.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.Lat, p.Lon}
	}
	return out
}
