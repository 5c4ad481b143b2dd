// Package server is the headless HTTP API behind `rl serve`. Each request runs
// its own controller session on a private map, so the JSON it returns is
// exactly what the terminal UI would show for the same inputs.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"golang.org/x/time/rate"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/geo"
	"github.com/vanderheijden86/routelens/pkg/logging"
	"github.com/vanderheijden86/routelens/pkg/metrics"
	"github.com/vanderheijden86/routelens/pkg/places"
	"github.com/vanderheijden86/routelens/pkg/surface"
)

// Engine is the query side of the engine bridge.
type Engine interface {
	controller.RouteFinder
	controller.CriticalFinder
	Ready() <-chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logging.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithCollector exports request metrics and serves /metrics from c.
func WithCollector(c *metrics.Collector) Option {
	return func(s *Server) { s.metrics = c }
}

// WithObserver receives the events of every request's session, typically a
// journal.
func WithObserver(o controller.Observer) Option {
	return func(s *Server) { s.observer = o }
}

// WithRateLimit limits the engine-backed endpoints to r requests per second
// with the given burst. A non-positive r disables limiting.
func WithRateLimit(r float64, burst int) Option {
	return func(s *Server) {
		if r <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = rate.NewLimiter(rate.Limit(r), max(burst, 1))
	}
}

// WithView sets the map view snapshots and cluster counts are computed for.
func WithView(v surface.View) Option {
	return func(s *Server) { s.view = v }
}

// WithRoads supplies the road segments drawn under snapshots.
func WithRoads(fn func() [][2]geo.Point) Option {
	return func(s *Server) { s.roads = fn }
}

// WithDefaultAStar sets the algorithm used when a request names none.
func WithDefaultAStar(on bool) Option {
	return func(s *Server) { s.astar = on }
}

// Server serves the routelens API.
type Server struct {
	eng      Engine
	dir      *places.Directory
	view     surface.View
	roads    func() [][2]geo.Point
	astar    bool
	log      logging.Logger
	metrics  *metrics.Collector
	observer controller.Observer
	limiter  *rate.Limiter

	router *mux.Router
	http   *http.Server
}

// New builds a server over eng and dir.
func New(eng Engine, dir *places.Directory, opts ...Option) *Server {
	s := &Server{
		eng:  eng,
		dir:  dir,
		log:  logging.Noop(),
		view: surface.View{Center: geo.Pt(30.3165, 78.0322), Zoom: 13, MinZoom: 13, MaxZoom: 19, Width: 1024, Height: 768},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.view.Width <= 0 || s.view.Height <= 0 {
		s.view.Width, s.view.Height = 1024, 768
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/places", s.handlePlaces).Methods(http.MethodGet)
	api.HandleFunc("/routes", s.withRateLimit(s.handleRoutes)).Methods(http.MethodGet, http.MethodPost)
	api.HandleFunc("/critical", s.withRateLimit(s.handleCritical)).Methods(http.MethodGet)
	api.HandleFunc("/snapshot.svg", s.withRateLimit(s.handleSnapshot)).Methods(http.MethodGet)

	r.Use(s.recoveryMiddleware, s.loggingMiddleware)
	return r
}

// Handler returns the routed handler with middleware.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx ends, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	s.http = &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- s.http.ListenAndServe() }()
	s.log.Info(ctx, "api listening", logging.String("addr", addr))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down api: %w", err)
		}
		return nil
	}
}

// newSession returns a session drawing on a private map.
func (s *Server) newSession() (*controller.Session, *surface.Map) {
	m := surface.NewMap(s.view)
	m.SetSize(s.view.Width, s.view.Height)
	opts := []controller.Option{controller.WithAStar(s.astar)}
	if s.observer != nil {
		opts = append(opts, controller.WithObserver(s.observer))
	}
	return controller.New(m, s.dir, opts...), m
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a standardised JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": message, "code": code})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware tags the request with an id, logs it, and records its
// metrics under the route template.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		if id := r.Header.Get("X-Request-ID"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, log := logging.WithRequestLogger(ctx, s.log)
		w.Header().Set("X-Request-ID", logging.RequestIDFromContext(ctx))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		d := time.Since(start)
		s.metrics.ObserveHTTP(route, rec.status, d)
		log.Info(ctx, "request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", rec.status),
			logging.Duration("duration", d),
			logging.String("remote_addr", r.RemoteAddr),
		)
	})
}

// recoveryMiddleware turns a handler panic into a 500.
func (s *Server) recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.FromContext(r.Context(), s.log).Error(r.Context(), "panic recovered",
					logging.Any("panic", err),
					logging.String("stack", string(debug.Stack())),
				)
				writeError(w, http.StatusInternalServerError, "internal", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// withRateLimit returns 429 once the shared token bucket is empty.
func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			w.Header().Set("X-RateLimit-Limit", strconv.FormatFloat(float64(s.limiter.Limit()), 'f', -1, 64))
			writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
			logging.FromContext(r.Context(), s.log).Warn(r.Context(), "rate limit exceeded",
				logging.String("path", r.URL.Path))
			return
		}
		next(w, r)
	}
}
