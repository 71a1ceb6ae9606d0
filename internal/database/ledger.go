package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/papergrab/internal/model"
)

// FileName is the name of the database file inside the data directory.
const FileName = "papergrab.db"

// Ledger stores runs, series and download outcomes.
type Ledger struct {
	db     *sql.DB
	dbPath string
}

// Options configures Ledger behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the ledger in dbDir.
// With CreateIfNotExists false a missing database is an error.
func Open(dbDir string, opts Options) (*Ledger, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, err)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	l := &Ledger{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := l.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return l, nil
}

// Path returns the database file path.
func (l *Ledger) Path() string {
	return l.dbPath
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createTables() error {
	schema := `
	-- One row per invocation of papergrab fetch
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		profile TEXT NOT NULL,
		subject TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		series_processed INTEGER DEFAULT 0,
		saved INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0,
		summary_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per processed exam series
	CREATE TABLE IF NOT EXISTS series (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		name TEXT NOT NULL,
		page_url TEXT,
		restarts INTEGER DEFAULT 0,
		links INTEGER DEFAULT 0,
		bundles INTEGER DEFAULT 0,
		error TEXT,
		started_at TEXT,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_series_run ON series(run_id);

	-- One row per document fetch attempt
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		series TEXT NOT NULL,
		code TEXT NOT NULL,
		kind TEXT NOT NULL,
		href TEXT NOT NULL,
		title TEXT,
		path TEXT NOT NULL,
		status TEXT NOT NULL,
		status_code INTEGER,
		reason TEXT,
		timestamp TEXT NOT NULL,
		UNIQUE(run_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_code ON downloads(code);
	CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);
	`

	_, err := l.db.ExecContext(context.Background(), schema)
	return err
}

// BeginRun inserts a run for s and stores its ID in s.RunID.
func (l *Ledger) BeginRun(ctx context.Context, s *model.RunSummary) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (profile, subject, started_at) VALUES (?, ?, ?)`,
		s.Profile, s.Subject, formatTimestamp(s.StartedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	s.RunID = id
	return id, nil
}

// RecordSeries stores a finished series and its download outcomes in one
// transaction. Re-recording a document of the same run replaces it.
func (l *Ledger) RecordSeries(ctx context.Context, runID int64, r *model.SeriesReport) (err error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
	INSERT INTO series (run_id, name, page_url, restarts, links, bundles, error, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Series, r.PageURL, r.Restarts, r.LinksHarvested, len(r.Bundles),
		r.ErrorMessage, formatTimestamp(r.StartedAt), formatTimestamp(r.FinishedAt),
	); err != nil {
		return fmt.Errorf("failed to insert series: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO downloads (run_id, series, code, kind, href, title, path, status, status_code, reason, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id, path) DO UPDATE SET
		status = excluded.status,
		status_code = excluded.status_code,
		reason = excluded.reason,
		timestamp = excluded.timestamp`)
	if err != nil {
		return fmt.Errorf("failed to prepare download insert: %w", err)
	}
	defer stmt.Close()

	now := formatTimestamp(time.Now())
	for _, d := range r.Downloads {
		if _, err = stmt.ExecContext(ctx,
			runID, r.Series, d.Code.String(), d.Kind.String(), d.Ref.Href, d.Ref.Title, d.Path,
			d.Outcome.Status.String(), d.Outcome.StatusCode, d.Outcome.Reason, now,
		); err != nil {
			return fmt.Errorf("failed to insert download: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit series: %w", err)
	}
	return nil
}

// FinishRun stores the final counters and the JSON summary of s.
func (l *Ledger) FinishRun(ctx context.Context, s *model.RunSummary) error {
	summaryJSON, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to serialize summary: %w", err)
	}

	res, err := l.db.ExecContext(ctx, `
	UPDATE runs SET
		finished_at = ?, series_processed = ?, saved = ?, skipped = ?, failed = ?,
		cancelled = ?, summary_json = ?
	WHERE id = ?`,
		formatTimestamp(s.FinishedAt), s.SeriesProcessed, s.Saved, s.Skipped, s.Failed,
		s.Cancelled, string(summaryJSON), s.RunID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("run %d: %w", s.RunID, sql.ErrNoRows)
	}
	return nil
}

// RunRecord is one row of the run history.
type RunRecord struct {
	ID              int64
	Profile         string
	Subject         string
	StartedAt       time.Time
	FinishedAt      time.Time
	SeriesProcessed int
	Saved           int
	Skipped         int
	Failed          int
	Cancelled       bool
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	query := `
	SELECT id, profile, subject, started_at, COALESCE(finished_at, ''),
		series_processed, saved, skipped, failed, cancelled
	FROM runs
	ORDER BY id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		var started, finished string
		if err := rows.Scan(&r.ID, &r.Profile, &r.Subject, &started, &finished,
			&r.SeriesProcessed, &r.Saved, &r.Skipped, &r.Failed, &r.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = parseTimestamp(started)
		r.FinishedAt = parseTimestamp(finished)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRunSummary returns the stored summary of a finished run,
// or nil when the run is unknown or has not finished.
func (l *Ledger) GetRunSummary(ctx context.Context, id int64) (*model.RunSummary, error) {
	var summaryJSON sql.NullString
	err := l.db.QueryRowContext(ctx, `SELECT summary_json FROM runs WHERE id = ?`, id).Scan(&summaryJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	if !summaryJSON.Valid || summaryJSON.String == "" {
		return nil, nil
	}

	var s model.RunSummary
	if err := json.Unmarshal([]byte(summaryJSON.String), &s); err != nil {
		return nil, fmt.Errorf("failed to parse summary: %w", err)
	}
	return &s, nil
}

// DownloadRecord is one stored fetch attempt.
type DownloadRecord struct {
	ID         int64
	RunID      int64
	Series     string
	Code       model.PaperCode
	Kind       string
	Href       string
	Title      string
	Path       string
	Status     string
	StatusCode int
	Reason     string
	Timestamp  time.Time
}

// DownloadFilter narrows QueryDownloads. Zero fields match everything.
type DownloadFilter struct {
	RunID  int64
	Code   model.PaperCode
	Status model.DownloadStatus

	// FilterStatus enables the Status filter, since DownloadSaved is zero.
	FilterStatus bool
}

// QueryDownloads returns fetch attempts matching f, newest first.
func (l *Ledger) QueryDownloads(ctx context.Context, f DownloadFilter) ([]DownloadRecord, error) {
	query := `
	SELECT id, run_id, series, code, kind, href, COALESCE(title, ''), path, status,
		COALESCE(status_code, 0), COALESCE(reason, ''), timestamp
	FROM downloads
	WHERE 1=1
	`
	args := make([]any, 0, 3)

	if f.RunID != 0 {
		query += " AND run_id = ?"
		args = append(args, f.RunID)
	}
	if f.Code != "" {
		query += " AND code = ?"
		args = append(args, f.Code.String())
	}
	if f.FilterStatus {
		query += " AND status = ?"
		args = append(args, f.Status.String())
	}
	query += " ORDER BY id DESC"

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var records []DownloadRecord
	for rows.Next() {
		var d DownloadRecord
		var code, timestamp string
		if err := rows.Scan(&d.ID, &d.RunID, &d.Series, &code, &d.Kind, &d.Href, &d.Title,
			&d.Path, &d.Status, &d.StatusCode, &d.Reason, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		d.Code = model.PaperCode(code)
		d.Timestamp = parseTimestamp(timestamp)
		records = append(records, d)
	}
	return records, rows.Err()
}

// formatTimestamp stores times as UTC RFC 3339; the zero time is stored as "".
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
