package store

import (
	"context"
	"database/sql"
	"fmt"
)

// AppendPlay records that a track started playing on the stream.
func (s *Store) AppendPlay(ctx context.Context, trackID string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO play_log (track_id, played_at) VALUES (?, ?)",
		trackID, nowString())
	if err != nil {
		return fmt.Errorf("append play: %w", err)
	}
	return nil
}

// LastPlay returns the most recent play event, or (nil, nil) when the log is
// empty.
func (s *Store) LastPlay(ctx context.Context) (*PlayEvent, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, track_id, played_at FROM play_log ORDER BY played_at DESC, id DESC LIMIT 1")
	var pe PlayEvent
	err := row.Scan(&pe.ID, &pe.TrackID, &pe.PlayedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last play: %w", err)
	}
	return &pe, nil
}

// MaxPlayLogID returns the highest play-log id, 0 when the log is empty.
func (s *Store) MaxPlayLogID(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(id), 0) FROM play_log").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("max play log id: %w", err)
	}
	return n, nil
}

// PlaysForSubmitterSince counts play events for a submitter's tracks with a
// play-log id greater than sinceID. Used for rotation block accounting.
func (s *Store) PlaysForSubmitterSince(ctx context.Context, submitter string, sinceID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM play_log pl
		 JOIN tracks t ON pl.track_id = t.id
		 WHERE t.submitter = ? AND pl.id > ?`,
		submitter, sinceID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("plays for submitter: %w", err)
	}
	return n, nil
}

// RecentPlays returns the latest play events joined with their tracks, newest
// first, up to limit.
func (s *Store) RecentPlays(ctx context.Context, limit int) ([]*PlayedTrack, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.id, t.title, t.artist, t.submitter, t.duration_s, pl.played_at
		 FROM play_log pl
		 JOIN tracks t ON pl.track_id = t.id
		 ORDER BY pl.played_at DESC, pl.id DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent plays: %w", err)
	}
	defer rows.Close()

	var out []*PlayedTrack
	for rows.Next() {
		var pt PlayedTrack
		if err := rows.Scan(&pt.ID, &pt.Title, &pt.Artist, &pt.Submitter, &pt.DurationS, &pt.PlayedAt); err != nil {
			return nil, err
		}
		out = append(out, &pt)
	}
	return out, rows.Err()
}
