package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReadySubmitters returns the distinct submitters who currently own at least
// one ready track, sorted lexicographically.
func (s *Store) ReadySubmitters(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT submitter FROM tracks WHERE status='ready' ORDER BY submitter")
	if err != nil {
		return nil, fmt.Errorf("ready submitters: %w", err)
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

// TotalReadyRuntime sums the durations of ready tracks. Tracks with an
// unknown duration contribute nothing.
func (s *Store) TotalReadyRuntime(ctx context.Context) (float64, error) {
	var total float64
	err := s.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(duration_s), 0) FROM tracks WHERE status='ready' AND duration_s IS NOT NULL",
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("ready runtime: %w", err)
	}
	return total, nil
}

// RotationCandidates returns a submitter's ready tracks with play counts,
// excluding the two given track ids. When cooldownCutoff is non-empty, tracks
// played after that timestamp are excluded too.
func (s *Store) RotationCandidates(ctx context.Context, submitter, excludeA, excludeB, cooldownCutoff string) ([]*Candidate, error) {
	q := `
		SELECT ` + prefixedTrackColumns("t") + `, COUNT(pl.id) AS play_count
		FROM tracks t
		LEFT JOIN play_log pl ON pl.track_id = t.id
		WHERE t.submitter=? AND t.status='ready'
		  AND t.id != ? AND t.id != ?`
	args := []any{submitter, excludeA, excludeB}
	if cooldownCutoff != "" {
		q += `
		  AND t.id NOT IN (SELECT track_id FROM play_log WHERE played_at > ?)`
		args = append(args, cooldownCutoff)
	}
	q += `
		GROUP BY t.id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("rotation candidates: %w", err)
	}
	defer rows.Close()

	var out []*Candidate
	for rows.Next() {
		var c Candidate
		if err := scanCandidate(rows, &c); err != nil {
			return nil, err
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// LeastRecentlyPlayedReady returns the ready track with the oldest most-recent
// play (never-played tracks rank earliest), ties broken by earliest
// submission, skipping the excluded ids. (nil, nil) when nothing matches.
func (s *Store) LeastRecentlyPlayedReady(ctx context.Context, exclude ...string) (*Track, error) {
	q := "SELECT " + trackColumns + " FROM tracks WHERE status='ready'"
	var args []any
	for _, id := range exclude {
		q += " AND id != ?"
		args = append(args, id)
	}
	q += `
		ORDER BY COALESCE(
		    (SELECT MAX(pl.played_at) FROM play_log pl WHERE pl.track_id=tracks.id), ''
		) ASC, submitted_at ASC
		LIMIT 1`

	row := s.db.QueryRowContext(ctx, q, args...)
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("least recently played: %w", err)
	}
	return t, nil
}

// LastPlayedTrackWithFeatures returns the track of the most recent play event
// whose track has a feature vector. (nil, nil) when no such play exists.
func (s *Store) LastPlayedTrackWithFeatures(ctx context.Context) (*Track, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+prefixedTrackColumns("t")+`
		FROM play_log pl
		JOIN tracks t ON pl.track_id = t.id
		WHERE t.tempo_bpm IS NOT NULL
		ORDER BY pl.played_at DESC, pl.id DESC
		LIMIT 1`)
	t, err := scanTrack(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("last played with features: %w", err)
	}
	return t, nil
}

// CountReadyWithFeatures counts ready tracks that have a feature vector.
func (s *Store) CountReadyWithFeatures(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM tracks WHERE status='ready' AND tempo_bpm IS NOT NULL").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ready with features: %w", err)
	}
	return n, nil
}

// MoodCandidates returns ready tracks with features, excluding the excludeN
// most recently played distinct tracks.
func (s *Store) MoodCandidates(ctx context.Context, excludeN int) ([]*Track, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+trackColumns+`
		FROM tracks
		WHERE status='ready' AND tempo_bpm IS NOT NULL
		  AND id NOT IN (
		      SELECT track_id FROM play_log
		      GROUP BY track_id
		      ORDER BY MAX(played_at) DESC
		      LIMIT ?
		  )`, excludeN)
	if err != nil {
		return nil, fmt.Errorf("mood candidates: %w", err)
	}
	defer rows.Close()
	return collectTracks(rows)
}

func prefixedTrackColumns(alias string) string {
	cols := []string{
		"id", "title", "artist", "submitter", "source_type", "source_url", "file_path",
		"duration_s", "tempo_bpm", "rms_energy", "spectral_centroid", "zero_crossing_rate",
		"status", "error_msg", "submitted_at", "ready_at", "comment", "youtube_video_id",
	}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}

func scanCandidate(rows *sql.Rows, c *Candidate) error {
	return rows.Scan(
		&c.ID, &c.Title, &c.Artist, &c.Submitter, &c.SourceType, &c.SourceURL, &c.FilePath,
		&c.DurationS, &c.TempoBPM, &c.RMSEnergy, &c.SpectralCentroid, &c.ZeroCrossingRate,
		&c.Status, &c.ErrorMsg, &c.SubmittedAt, &c.ReadyAt, &c.Comment, &c.YouTubeVideoID,
		&c.PlayCount,
	)
}
