package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Config keys with scheduler state and feature normalization bounds.
const (
	KeyProgrammingMode     = "programming_mode"
	KeyTracksPerBlock      = "rotation_tracks_per_block"
	KeyCurrentSubmitterIdx = "rotation_current_submitter_idx"
	KeyBlockStartLogID     = "rotation_block_start_log_id"
	KeyLastReturnedTrackID = "last_returned_track_id"
	KeyFeatureMinTempo     = "feature_min_tempo_bpm"
	KeyFeatureMaxTempo     = "feature_max_tempo_bpm"
	KeyFeatureMinRMS       = "feature_min_rms_energy"
	KeyFeatureMaxRMS       = "feature_max_rms_energy"
	KeyFeatureMinCentroid  = "feature_min_spectral_centroid"
	KeyFeatureMaxCentroid  = "feature_max_spectral_centroid"
	KeyFeatureMinZeroCross = "feature_min_zero_crossing_rate"
	KeyFeatureMaxZeroCross = "feature_max_zero_crossing_rate"
)

var configDefaults = map[string]string{
	KeyProgrammingMode:     "rotation",
	KeyTracksPerBlock:      "3",
	KeyCurrentSubmitterIdx: "0",
	KeyBlockStartLogID:     "0",
	KeyLastReturnedTrackID: "",
	KeyFeatureMinTempo:     "0",
	KeyFeatureMaxTempo:     "1",
	KeyFeatureMinRMS:       "0",
	KeyFeatureMaxRMS:       "1",
	KeyFeatureMinCentroid:  "0",
	KeyFeatureMaxCentroid:  "1",
	KeyFeatureMinZeroCross: "0",
	KeyFeatureMaxZeroCross: "1",
}

// GetConfig reads a config value, falling back to the seeded default (empty
// string for unknown keys).
func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key=?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return configDefaults[key], nil
	}
	if err != nil {
		return "", fmt.Errorf("get config %s: %w", key, err)
	}
	return value, nil
}

// SetConfig writes a config value, inserting or replacing.
func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("set config %s: %w", key, err)
	}
	return nil
}
