package store

import (
	"context"
	"database/sql"
	"fmt"
)

const trackColumns = `id, title, artist, submitter, source_type, source_url, file_path,
	duration_s, tempo_bpm, rms_energy, spectral_centroid, zero_crossing_rate,
	status, error_msg, submitted_at, ready_at, comment, youtube_video_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrack(r rowScanner) (*Track, error) {
	var t Track
	err := r.Scan(
		&t.ID, &t.Title, &t.Artist, &t.Submitter, &t.SourceType, &t.SourceURL, &t.FilePath,
		&t.DurationS, &t.TempoBPM, &t.RMSEnergy, &t.SpectralCentroid, &t.ZeroCrossingRate,
		&t.Status, &t.ErrorMsg, &t.SubmittedAt, &t.ReadyAt, &t.Comment, &t.YouTubeVideoID,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// NewTrack holds the fields set at submission time.
type NewTrack struct {
	ID             string
	Title          string
	Artist         string
	Submitter      string
	SourceType     string
	SourceURL      string
	Comment        string
	YouTubeVideoID string
}

// CreateTrackWithJob inserts a pending track and its pending job in one
// transaction, so a track in a non-terminal state always has its job.
func (s *Store) CreateTrackWithJob(ctx context.Context, nt NewTrack) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nowString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO tracks (id, title, artist, submitter, source_type, source_url,
		                     status, submitted_at, comment, youtube_video_id)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending', ?, ?, ?)`,
		nt.ID, nt.Title, nt.Artist, nt.Submitter, nt.SourceType,
		nullable(nt.SourceURL), now, nullable(nt.Comment), nullable(nt.YouTubeVideoID),
	)
	if err != nil {
		return fmt.Errorf("insert track: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO jobs (track_id, status, created_at) VALUES (?, 'pending', ?)",
		nt.ID, now,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return tx.Commit()
}

// GetTrack loads one track. Returns ErrNotFound for an unknown id.
func (s *Store) GetTrack(ctx context.Context, id string) (*Track, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+trackColumns+" FROM tracks WHERE id=?", id)
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	return t, nil
}

// ListTracks returns the whole library, newest submissions first.
func (s *Store) ListTracks(ctx context.Context) ([]*Track, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+trackColumns+" FROM tracks ORDER BY submitted_at DESC")
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// ListSubmitters returns every distinct submitter name, sorted.
func (s *Store) ListSubmitters(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT submitter FROM tracks ORDER BY submitter")
	if err != nil {
		return nil, fmt.Errorf("list submitters: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// CountPendingBySubmitter counts tracks a submitter has in flight, used to
// enforce the per-submitter submission cap.
func (s *Store) CountPendingBySubmitter(ctx context.Context, submitter string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tracks WHERE submitter=? AND status IN ('pending', 'processing')",
		submitter,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending: %w", err)
	}
	return n, nil
}

// DeleteTrack removes a track plus its play-log and job rows in one
// transaction. Returns the track's file path (empty if none) so the caller
// can unlink the asset.
func (s *Store) DeleteTrack(ctx context.Context, id string) (string, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var filePath sql.NullString
	err = tx.QueryRowContext(ctx, "SELECT file_path FROM tracks WHERE id=?", id).Scan(&filePath)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select track: %w", err)
	}

	for _, q := range []string{
		"DELETE FROM play_log WHERE track_id=?",
		"DELETE FROM jobs WHERE track_id=?",
		"DELETE FROM tracks WHERE id=?",
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return "", fmt.Errorf("delete track rows: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return filePath.String, nil
}

// FindTrackByVideoID returns a non-failed track with the given YouTube video
// id, or ErrNotFound.
func (s *Store) FindTrackByVideoID(ctx context.Context, videoID string) (*Track, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+trackColumns+" FROM tracks WHERE youtube_video_id=? AND status != 'failed'",
		videoID)
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find by video id: %w", err)
	}
	return t, nil
}

// ListActiveTracks returns non-failed tracks with a title, the candidate set
// for fuzzy duplicate matching.
func (s *Store) ListActiveTracks(ctx context.Context) ([]*Track, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+trackColumns+" FROM tracks WHERE status != 'failed' AND title != ''")
	if err != nil {
		return nil, fmt.Errorf("list active tracks: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

// PendingCount counts tracks still being ingested.
func (s *Store) PendingCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tracks WHERE status IN ('pending', 'processing')").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("pending count: %w", err)
	}
	return n, nil
}

func collectTracks(rows *sql.Rows) ([]*Track, error) {
	var out []*Track
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
