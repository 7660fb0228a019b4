// Package history keeps a SQLite index of download and script runs next to the thread output.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// FileName is the database file created inside the output directory.
const FileName = ".x-thread-dl.db"

func DefaultPath(outputDir string) string {
	return filepath.Join(outputDir, FileName)
}

// NewRunID returns a fresh id shared by every row written during one invocation.
func NewRunID() string {
	return uuid.NewString()
}

type Download struct {
	RunID         string
	User          string
	ThreadID      string
	Replies       int
	Videos        int
	VideoFailures int
	CreatedAt     time.Time
}

type Script struct {
	RunID       string
	ThreadDir   string
	Model       string
	Stage       string
	Placeholder bool
	Status      string
	Error       string
	CreatedAt   time.Time
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("history.Open: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history.Open: %w", err)
	}
	// Batch workers write concurrently; a single connection serializes them.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("history.Open: migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		user TEXT NOT NULL,
		thread_id TEXT NOT NULL,
		replies INTEGER NOT NULL,
		videos INTEGER NOT NULL,
		video_failures INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS scripts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		thread_dir TEXT NOT NULL,
		model TEXT,
		stage TEXT,
		placeholder BOOLEAN NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_thread ON downloads(user, thread_id);
	CREATE INDEX IF NOT EXISTS idx_scripts_dir ON scripts(thread_dir);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) stamp(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func (s *Store) RecordDownload(ctx context.Context, d Download) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO downloads (run_id, user, thread_id, replies, videos, video_failures, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, d.RunID, d.User, d.ThreadID, d.Replies, d.Videos, d.VideoFailures, s.stamp(d.CreatedAt))
	if err != nil {
		return fmt.Errorf("RecordDownload: %w", err)
	}
	return nil
}

func (s *Store) RecordScript(ctx context.Context, sc Script) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scripts (run_id, thread_dir, model, stage, placeholder, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sc.RunID, sc.ThreadDir, sc.Model, sc.Stage, sc.Placeholder, sc.Status, sc.Error, s.stamp(sc.CreatedAt))
	if err != nil {
		return fmt.Errorf("RecordScript: %w", err)
	}
	return nil
}

// RecentDownloads returns up to limit rows, newest first.
func (s *Store) RecentDownloads(ctx context.Context, limit int) ([]Download, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, user, thread_id, replies, videos, video_failures, created_at
		FROM downloads
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("RecentDownloads: %w", err)
	}
	defer rows.Close()

	var out []Download
	for rows.Next() {
		var d Download
		var created string
		if err := rows.Scan(&d.RunID, &d.User, &d.ThreadID, &d.Replies, &d.Videos, &d.VideoFailures, &created); err != nil {
			return nil, fmt.Errorf("RecentDownloads: scan: %w", err)
		}
		d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentDownloads: %w", err)
	}
	return out, nil
}

// RecentScripts returns up to limit rows, newest first.
func (s *Store) RecentScripts(ctx context.Context, limit int) ([]Script, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, thread_dir, COALESCE(model, ''), COALESCE(stage, ''), placeholder, status, COALESCE(error, ''), created_at
		FROM scripts
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, limitOrAll(limit))
	if err != nil {
		return nil, fmt.Errorf("RecentScripts: %w", err)
	}
	defer rows.Close()

	var out []Script
	for rows.Next() {
		var sc Script
		var created string
		if err := rows.Scan(&sc.RunID, &sc.ThreadDir, &sc.Model, &sc.Stage, &sc.Placeholder, &sc.Status, &sc.Error, &created); err != nil {
			return nil, fmt.Errorf("RecentScripts: scan: %w", err)
		}
		sc.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("RecentScripts: %w", err)
	}
	return out, nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
