// Package journal keeps a SQLite history of route and critical-point queries.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/vanderheijden86/routelens/pkg/controller"
	"github.com/vanderheijden86/routelens/pkg/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS entries (
	id           TEXT PRIMARY KEY,
	session      TEXT NOT NULL,
	kind         TEXT NOT NULL,
	created_at   INTEGER NOT NULL,
	start_lat    REAL,
	start_lon    REAL,
	end_lat      REAL,
	end_lon      REAL,
	algorithm    TEXT,
	outcome      TEXT NOT NULL,
	found        INTEGER NOT NULL DEFAULT 0,
	displayed    INTEGER NOT NULL DEFAULT 0,
	shortest_m   REAL,
	exec_ms      REAL,
	summary      TEXT,
	error        TEXT
);
CREATE INDEX IF NOT EXISTS idx_entries_created ON entries(created_at);
`

// Kinds stored in the journal.
const (
	KindRoutes   = "routes"
	KindCritical = "critical"
)

// Outcomes stored in the journal.
const (
	OutcomeOK               = "ok"
	OutcomeInvalidSelection = "invalid_selection"
	OutcomeEngineFailure    = "engine_failure"
	OutcomeNoResults        = "no_results"
	OutcomeError            = "error"
)

// Entry is one recorded query.
type Entry struct {
	ID        string    `json:"id"`
	Session   string    `json:"session"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	StartLat  float64   `json:"start_lat,omitempty"`
	StartLon  float64   `json:"start_lon,omitempty"`
	EndLat    float64   `json:"end_lat,omitempty"`
	EndLon    float64   `json:"end_lon,omitempty"`
	Algorithm string    `json:"algorithm,omitempty"`
	Outcome   string    `json:"outcome"`
	Found     int       `json:"found"`
	Displayed int       `json:"displayed"`
	ShortestM float64   `json:"shortest_m,omitempty"`
	ExecMs    float64   `json:"exec_ms"`
	Summary   string    `json:"summary,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Stats aggregates the journal.
type Stats struct {
	Total    int `json:"total"`
	Routes   int `json:"routes"`
	Critical int `json:"critical"`
	Failures int `json:"failures"`
}

// Journal is an open history database. Each Journal value tags its entries
// with its own session id.
type Journal struct {
	db      *sql.DB
	path    string
	session string
	now     func() time.Time
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	// One writer; the TUI and server record from a single goroutine at a time.
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring journal: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	return &Journal{db: db, path: path, session: uuid.NewString(), now: time.Now}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Session returns the id stamped on entries recorded through j.
func (j *Journal) Session() string { return j.session }

// Path returns the database path.
func (j *Journal) Path() string { return j.path }

// EntryFromEvent converts a session event. Reset events have no entry.
func EntryFromEvent(ev controller.Event) (Entry, bool) {
	var e Entry
	switch ev.Kind {
	case controller.EventRoutes:
		e.Kind = KindRoutes
	case controller.EventCritical:
		e.Kind = KindCritical
	default:
		return Entry{}, false
	}
	e.CreatedAt = ev.At
	e.Outcome = outcome(ev.Err)
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	if q := ev.Query; q != nil {
		e.StartLat, e.StartLon = q.Start.Lat, q.Start.Lon
		e.EndLat, e.EndLon = q.End.Lat, q.End.Lon
		e.Algorithm = q.Algorithm()
	}
	if s := ev.Summary; s != nil && ev.Err == nil {
		e.Found = s.RoutesFound
		e.Displayed = s.Displayed
		e.ShortestM = s.Comparison.ShortestKm * 1000
		e.ExecMs = s.ExecutionTimeMs
		if data, err := json.Marshal(s); err == nil {
			e.Summary = string(data)
		}
	}
	if c := ev.Critical; c != nil && ev.Err == nil {
		e.Found = c.Count
		e.Displayed = c.Count
		e.ExecMs = c.ExecutionTimeMs
	}
	return e, true
}

func outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case controller.IsKind(err, controller.KindInvalidSelection):
		return OutcomeInvalidSelection
	case controller.IsKind(err, controller.KindEngineFailure):
		return OutcomeEngineFailure
	case controller.IsKind(err, controller.KindNoResults):
		return OutcomeNoResults
	default:
		return OutcomeError
	}
}

// Record stores ev. Reset events are ignored.
func (j *Journal) Record(ctx context.Context, ev controller.Event) (Entry, error) {
	e, ok := EntryFromEvent(ev)
	if !ok {
		return Entry{}, nil
	}
	return e, j.Insert(ctx, &e)
}

// Insert stores e, filling its id, session and time when unset.
func (j *Journal) Insert(ctx context.Context, e *Entry) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Session == "" {
		e.Session = j.session
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = j.now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO entries (
			id, session, kind, created_at, start_lat, start_lon, end_lat, end_lon,
			algorithm, outcome, found, displayed, shortest_m, exec_ms, summary, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Session, e.Kind, e.CreatedAt.UnixMilli(),
		nullFloat(e.StartLat, e.Kind == KindRoutes), nullFloat(e.StartLon, e.Kind == KindRoutes),
		nullFloat(e.EndLat, e.Kind == KindRoutes), nullFloat(e.EndLon, e.Kind == KindRoutes),
		nullString(e.Algorithm), e.Outcome, e.Found, e.Displayed,
		nullFloat(e.ShortestM, e.ShortestM > 0), e.ExecMs,
		nullString(e.Summary), nullString(e.Error),
	)
	if err != nil {
		return fmt.Errorf("recording %s entry: %w", e.Kind, err)
	}
	return nil
}

// Observer returns a session observer that records every event, logging
// failures instead of surfacing them to the session.
func (j *Journal) Observer(log logging.Logger) controller.Observer {
	if log == nil {
		log = logging.Noop()
	}
	return func(ev controller.Event) {
		if _, err := j.Record(context.Background(), ev); err != nil {
			log.Warn(context.Background(), "journal write failed", logging.Err(err))
		}
	}
}

// Filter narrows Recent.
type Filter struct {
	Kind    string // empty for all kinds
	Session string // empty for all sessions
	Limit   int    // zero means 20
}

// Recent returns the newest entries first.
func (j *Journal) Recent(ctx context.Context, f Filter) ([]Entry, error) {
	if f.Limit <= 0 {
		f.Limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, session, kind, created_at, start_lat, start_lon, end_lat, end_lon,
			algorithm, outcome, found, displayed, shortest_m, exec_ms, summary, error
		FROM entries
		WHERE (? = '' OR kind = ?) AND (? = '' OR session = ?)
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, f.Kind, f.Kind, f.Session, f.Session, f.Limit)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		var startLat, startLon, endLat, endLon, shortest sql.NullFloat64
		var algorithm, summary, errText sql.NullString
		if err := rows.Scan(&e.ID, &e.Session, &e.Kind, &created,
			&startLat, &startLon, &endLat, &endLon,
			&algorithm, &e.Outcome, &e.Found, &e.Displayed, &shortest, &e.ExecMs,
			&summary, &errText); err != nil {
			return nil, fmt.Errorf("reading journal entry: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created)
		e.StartLat, e.StartLon = startLat.Float64, startLon.Float64
		e.EndLat, e.EndLon = endLat.Float64, endLon.Float64
		e.ShortestM = shortest.Float64
		e.Algorithm, e.Summary, e.Error = algorithm.String, summary.String, errText.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Stats counts entries by kind and failures.
func (j *Journal) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := j.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(kind = 'routes'), 0),
			COALESCE(SUM(kind = 'critical'), 0),
			COALESCE(SUM(outcome IN ('engine_failure', 'error')), 0)
		FROM entries`).Scan(&s.Total, &s.Routes, &s.Critical, &s.Failures)
	if err != nil {
		return Stats{}, fmt.Errorf("counting journal: %w", err)
	}
	return s, nil
}

// Prune keeps the newest keep entries and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		return 0, errors.New("keep must not be negative")
	}
	res, err := j.db.ExecContext(ctx, `
		DELETE FROM entries WHERE id NOT IN (
			SELECT id FROM entries ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return res.RowsAffected()
}

func nullFloat(v float64, valid bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: valid}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
