package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// NextPendingJob returns the oldest pending job, or (nil, nil) when the queue
// is empty.
func (s *Store) NextPendingJob(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, track_id, status, created_at, started_at, finished_at, error_msg
		 FROM jobs WHERE status='pending' ORDER BY created_at ASC, id ASC LIMIT 1`)
	var j Job
	err := row.Scan(&j.ID, &j.TrackID, &j.Status, &j.CreatedAt, &j.StartedAt, &j.FinishedAt, &j.ErrorMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next pending job: %w", err)
	}
	return &j, nil
}

// ClaimJob marks a job and its track as processing in one transaction.
func (s *Store) ClaimJob(ctx context.Context, jobID int64, trackID string) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nowString()
	if _, err := tx.ExecContext(ctx,
		"UPDATE jobs SET status='processing', started_at=? WHERE id=?", now, jobID); err != nil {
		return fmt.Errorf("claim job: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE tracks SET status='processing' WHERE id=?", trackID); err != nil {
		return fmt.Errorf("claim track: %w", err)
	}
	return tx.Commit()
}

// ReadyUpdate carries everything the worker commits when ingestion succeeds.
type ReadyUpdate struct {
	Title            string
	Artist           string
	FilePath         string
	DurationS        *float64
	TempoBPM         float64
	RMSEnergy        float64
	SpectralCentroid float64
	ZeroCrossingRate float64
}

// CompleteJob commits the terminal success state for a job and its track in
// one transaction: track ready with features, job done.
func (s *Store) CompleteJob(ctx context.Context, jobID int64, trackID string, u ReadyUpdate) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nowString()
	_, err = tx.ExecContext(ctx,
		`UPDATE tracks SET
		    title=?, artist=?, file_path=?, duration_s=?,
		    tempo_bpm=?, rms_energy=?, spectral_centroid=?, zero_crossing_rate=?,
		    status='ready', ready_at=?, error_msg=NULL
		 WHERE id=?`,
		u.Title, u.Artist, u.FilePath, u.DurationS,
		u.TempoBPM, u.RMSEnergy, u.SpectralCentroid, u.ZeroCrossingRate,
		now, trackID,
	)
	if err != nil {
		return fmt.Errorf("complete track: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE jobs SET status='done', finished_at=? WHERE id=?", now, jobID); err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return tx.Commit()
}

// FailJob commits the terminal failure state for a job and its track.
func (s *Store) FailJob(ctx context.Context, jobID int64, trackID, errMsg string) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := nowString()
	if _, err := tx.ExecContext(ctx,
		"UPDATE jobs SET status='failed', finished_at=?, error_msg=? WHERE id=?",
		now, errMsg, jobID); err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE tracks SET status='failed', error_msg=? WHERE id=?",
		errMsg, trackID); err != nil {
		return fmt.Errorf("fail track: %w", err)
	}
	return tx.Commit()
}

// ResetStuckJobs demotes jobs (and their tracks) left in processing by a
// previous crash back to pending. Returns how many jobs were reset.
func (s *Store) ResetStuckJobs(ctx context.Context) (int, error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT id, track_id FROM jobs WHERE status='processing'")
	if err != nil {
		return 0, fmt.Errorf("select stuck jobs: %w", err)
	}
	type stuck struct {
		jobID   int64
		trackID string
	}
	var stuckJobs []stuck
	for rows.Next() {
		var st stuck
		if err := rows.Scan(&st.jobID, &st.trackID); err != nil {
			rows.Close()
			return 0, err
		}
		stuckJobs = append(stuckJobs, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, st := range stuckJobs {
		if _, err := tx.ExecContext(ctx,
			"UPDATE jobs SET status='pending', started_at=NULL WHERE id=?", st.jobID); err != nil {
			return 0, fmt.Errorf("reset job: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE tracks SET status='pending' WHERE id=?", st.trackID); err != nil {
			return 0, fmt.Errorf("reset track: %w", err)
		}
		slog.Warn("Reset stuck processing job", "job_id", st.jobID, "track_id", st.trackID)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(stuckJobs), nil
}

// GetJob loads one job by id. Returns ErrNotFound for an unknown id.
func (s *Store) GetJob(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, track_id, status, created_at, started_at, finished_at, error_msg
		 FROM jobs WHERE id=?`, id)
	var j Job
	err := row.Scan(&j.ID, &j.TrackID, &j.Status, &j.CreatedAt, &j.StartedAt, &j.FinishedAt, &j.ErrorMsg)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}
