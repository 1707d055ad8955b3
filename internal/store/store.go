package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("not found")

const schema = `
CREATE TABLE IF NOT EXISTS tracks (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    artist TEXT NOT NULL,
    submitter TEXT NOT NULL,
    source_type TEXT NOT NULL,
    source_url TEXT,
    file_path TEXT,
    duration_s REAL,
    tempo_bpm REAL,
    rms_energy REAL,
    spectral_centroid REAL,
    zero_crossing_rate REAL,
    status TEXT NOT NULL DEFAULT 'pending',
    error_msg TEXT,
    submitted_at TEXT NOT NULL,
    ready_at TEXT,
    comment TEXT,
    youtube_video_id TEXT
);

CREATE TABLE IF NOT EXISTS play_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    track_id TEXT NOT NULL REFERENCES tracks(id),
    played_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    track_id TEXT NOT NULL REFERENCES tracks(id),
    status TEXT NOT NULL DEFAULT 'pending',
    created_at TEXT NOT NULL,
    started_at TEXT,
    finished_at TEXT,
    error_msg TEXT
);

CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS push_subscriptions (
    endpoint TEXT PRIMARY KEY,
    p256dh TEXT NOT NULL,
    auth TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_play_log_played_at ON play_log(played_at DESC);
CREATE INDEX IF NOT EXISTS idx_tracks_status ON tracks(status);
`

// Store wraps the SQLite database holding tracks, jobs, the play log and config.
type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	dsn := url.URL{
		Scheme: "file",
		Opaque: path,
		RawQuery: url.Values{
			"_pragma": []string{
				"journal_mode(WAL)",
				"foreign_keys(ON)",
				"busy_timeout(5000)",
			},
		}.Encode(),
	}
	db, err := sql.Open("sqlite", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for key, value := range configDefaults {
		if _, err := s.db.Exec(
			"INSERT OR IGNORE INTO config (key, value) VALUES (?, ?)", key, value,
		); err != nil {
			return fmt.Errorf("seed config %s: %w", key, err)
		}
	}
	return s.migrate()
}

// migrate patches databases created before later columns existed.
func (s *Store) migrate() error {
	for _, col := range []string{"comment TEXT", "youtube_video_id TEXT"} {
		if _, err := s.db.Exec("ALTER TABLE tracks ADD COLUMN " + col); err != nil {
			if !strings.Contains(err.Error(), "duplicate column") {
				return fmt.Errorf("add column %s: %w", col, err)
			}
		}
	}

	// Backfill youtube_video_id for tracks submitted before the column existed.
	rows, err := s.db.Query(
		`SELECT id, source_url FROM tracks
		 WHERE source_type='youtube' AND youtube_video_id IS NULL AND source_url IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("select backfill rows: %w", err)
	}
	type pending struct{ id, sourceURL string }
	var todo []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.sourceURL); err != nil {
			rows.Close()
			return fmt.Errorf("scan backfill row: %w", err)
		}
		todo = append(todo, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("backfill rows: %w", err)
	}

	for _, p := range todo {
		vid := ExtractYouTubeVideoID(p.sourceURL)
		if vid == "" {
			continue
		}
		if _, err := s.db.Exec("UPDATE tracks SET youtube_video_id=? WHERE id=?", vid, p.id); err != nil {
			return fmt.Errorf("backfill video id: %w", err)
		}
		slog.Debug("Backfilled youtube video id", "track_id", p.id, "video_id", vid)
	}
	return nil
}

// ExtractYouTubeVideoID pulls the video id out of the YouTube URL shapes we accept.
// Returns "" when none can be found.
func ExtractYouTubeVideoID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	switch host {
	case "youtu.be":
		return strings.TrimPrefix(strings.SplitN(u.Path, "?", 2)[0], "/")
	case "youtube.com", "www.youtube.com", "m.youtube.com":
		return u.Query().Get("v")
	}
	return ""
}

// TimeString renders t the way timestamps are stored: RFC 3339 UTC with
// sub-second precision. Lexicographic order matches chronological order.
func TimeString(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nowString() string {
	return TimeString(time.Now())
}

func (s *Store) beginTx(ctx context.Context) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}
