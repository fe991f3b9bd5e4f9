// store.go — Durable SQLite report store.
// One row per session in reports (summary columns plus the full JSON
// document) and one row per finding in findings, written in a single
// transaction. Saving the same session again replaces it.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/dev-console/pagediag/internal/diagnose"
	"github.com/dev-console/pagediag/internal/types"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

// ErrReportNotFound is returned when no report is stored under an ID.
var ErrReportNotFound = errors.New("report_not_found")

// StoredReport is the summary row of a persisted report.
type StoredReport struct {
	SessionID string    `json:"session_id"`
	Target    string    `json:"target"`
	Status    string    `json:"status"`
	Critical  int       `json:"critical_issues"`
	Findings  int       `json:"findings"`
	StartedAt time.Time `json:"started_at"`
	SavedAt   time.Time `json:"saved_at"`
}

// Store persists reports in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// OpenStore opens (creating if needed) the database at dsn.
func OpenStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store_open_failed: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		return fmt.Errorf("store_init_failed: %w", err)
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			session_id TEXT PRIMARY KEY,
			target TEXT NOT NULL,
			status TEXT NOT NULL,
			partial_reason TEXT NOT NULL DEFAULT '',
			critical_count INTEGER NOT NULL DEFAULT 0,
			finding_count INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			document TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS findings (
			session_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			origin TEXT NOT NULL,
			verdict TEXT NOT NULL,
			pattern_id TEXT NOT NULL,
			url TEXT NOT NULL,
			text TEXT NOT NULL,
			PRIMARY KEY(session_id, idx)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_findings_verdict ON findings(verdict);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("store_init_failed: %w", err)
		}
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes r, replacing any earlier report for the same session.
func (s *Store) Save(ctx context.Context, r *diagnose.Report) error {
	if r.SessionID == "" {
		return fmt.Errorf("store_save_failed: report has no session id")
	}
	doc, err := MarshalReport(r)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store_save_failed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE session_id=?`, r.SessionID); err != nil {
		return fmt.Errorf("store_save_failed: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO reports(session_id,target,status,partial_reason,critical_count,finding_count,started_at,saved_at,document) VALUES(?,?,?,?,?,?,?,?,?)`,
		r.SessionID, r.Target, r.Status(), r.PartialReason, len(r.CriticalIssues), len(r.Findings),
		formatTime(r.StartedAt), formatTime(s.now()), string(doc))
	if err != nil {
		return fmt.Errorf("store_save_failed: %w", err)
	}
	for i, f := range r.Findings {
		_, err := tx.ExecContext(ctx, `INSERT INTO findings(session_id,idx,origin,verdict,pattern_id,url,text) VALUES(?,?,?,?,?,?,?)`,
			r.SessionID, i, string(f.Origin), string(f.Verdict), f.PatternID, f.URL, f.Text)
		if err != nil {
			return fmt.Errorf("store_save_failed: finding %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store_save_failed: %w", err)
	}
	return nil
}

// Get loads the full report stored for sessionID.
func (s *Store) Get(ctx context.Context, sessionID string) (*diagnose.Report, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, `SELECT document FROM reports WHERE session_id=?`, sessionID).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("store_get_failed: %w", err)
	}
	return DecodeReport([]byte(doc))
}

// List returns up to limit summaries, newest first. limit <= 0 lists all.
func (s *Store) List(ctx context.Context, limit int) ([]StoredReport, error) {
	query := `SELECT session_id,target,status,critical_count,finding_count,started_at,saved_at FROM reports ORDER BY saved_at DESC, session_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store_list_failed: %w", err)
	}
	defer rows.Close()

	out := make([]StoredReport, 0)
	for rows.Next() {
		var (
			sr               StoredReport
			started, savedAt string
		)
		if err := rows.Scan(&sr.SessionID, &sr.Target, &sr.Status, &sr.Critical, &sr.Findings, &started, &savedAt); err != nil {
			return nil, fmt.Errorf("store_list_failed: %w", err)
		}
		sr.StartedAt = parseTime(started)
		sr.SavedAt = parseTime(savedAt)
		out = append(out, sr)
	}
	return out, rows.Err()
}

// FindingsByVerdict returns the stored findings of one verdict for a session.
func (s *Store) FindingsByVerdict(ctx context.Context, sessionID string, verdict types.Verdict) ([]types.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT origin,verdict,pattern_id,url,text FROM findings WHERE session_id=? AND verdict=? ORDER BY idx`, sessionID, string(verdict))
	if err != nil {
		return nil, fmt.Errorf("store_query_failed: %w", err)
	}
	defer rows.Close()

	out := make([]types.Finding, 0)
	for rows.Next() {
		var f types.Finding
		var origin, v string
		if err := rows.Scan(&origin, &v, &f.PatternID, &f.URL, &f.Text); err != nil {
			return nil, fmt.Errorf("store_query_failed: %w", err)
		}
		f.Origin = types.Origin(origin)
		f.Verdict = types.Verdict(v)
		out = append(out, f)
	}
	return out, rows.Err()
}

// Emit implements Sink.
func (s *Store) Emit(ctx context.Context, r *diagnose.Report) error {
	return s.Save(ctx, r)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
