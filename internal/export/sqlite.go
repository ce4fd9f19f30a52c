package export

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current export schema version. Bump this when the schema changes.
const schemaVersion = 1

var (
	// ErrSchemaMismatch indicates the export file was written by an incompatible version.
	ErrSchemaMismatch = errors.New("export schema version mismatch")
	// ErrLocked indicates another process is writing the same export file.
	ErrLocked = errors.New("export file is locked by another process")
)

// WriteSQLite appends report as a new run to the SQLite file at path. The
// file is created when missing. A sibling .lock file serializes writers.
func WriteSQLite(ctx context.Context, path string, report Report) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("export path required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire export lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLocked, path)
	}
	defer func() { _ = lock.Unlock() }()

	db, err := openDB(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	return insertReport(ctx, db, report)
}

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}
	if err := initSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func initSchema(ctx context.Context, db *sql.DB) error {
	var tableExists int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin schema tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()
		if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit schema: %w", err)
		}
		return nil
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: file has version %d, expected %d (choose a new export path or delete the file)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func insertReport(ctx context.Context, db *sql.DB, report Report) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin export tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, cinema_code, started_at, finished_at, events_kept, events_excluded, events_unknown)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.CinemaCode,
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
		report.Events.Kept,
		report.Events.Excluded,
		report.Events.Unknown,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, m := range report.Movies {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO movies (run_id, code, rank, query, title, feature_title, year, genres, rating, votes, tmdb_id, url)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID, m.Code, m.Rank, m.Query, m.Title, nullableString(m.FeatureTitle),
			m.Year, strings.Join(m.Genres, ","), m.Rating, m.Votes, m.TMDBID, m.URL,
		)
		if err != nil {
			return fmt.Errorf("insert movie %s: %w", m.Code, err)
		}
		for seq, starts := range m.Screenings {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO screenings (run_id, code, seq, starts_at) VALUES (?, ?, ?, ?)",
				report.RunID, m.Code, seq, starts,
			); err != nil {
				return fmt.Errorf("insert screening for %s: %w", m.Code, err)
			}
		}
	}
	for seq, u := range report.Unresolved {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO unresolved (run_id, seq, title, reason) VALUES (?, ?, ?, ?)",
			report.RunID, seq, u.Title, u.Reason,
		); err != nil {
			return fmt.Errorf("insert unresolved: %w", err)
		}
	}
	for seq, r := range report.Rejections {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO rejections (run_id, seq, code, title, reason) VALUES (?, ?, ?, ?, ?)",
			report.RunID, seq, r.Code, r.Title, r.Reason,
		); err != nil {
			return fmt.Errorf("insert rejection: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}
