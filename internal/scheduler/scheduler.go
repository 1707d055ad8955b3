// Package scheduler picks the next track for the streaming engine, balancing
// submitter fairness, replay recency and feature similarity.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"airwave/internal/audio"
	"airwave/internal/metrics"
	"airwave/internal/store"
)

const (
	// cooldownThreshold activates replay cooldown once the ready library
	// holds at least this much runtime; below it cooldown would starve the
	// scheduler.
	cooldownThreshold = 3600 * time.Second
	// cooldownWindow is the minimum gap between plays of one track while
	// cooldown is active.
	cooldownWindow = 3600 * time.Second

	// moodMaxExclusions caps how many recently played tracks mood mode
	// refuses to repeat.
	moodMaxExclusions = 3
)

// Scheduler is the policy engine behind next-track. Decisions are serialized:
// concurrent callers queue on the internal mutex.
type Scheduler struct {
	store *store.Store

	mu  sync.Mutex
	rng *rand.Rand
}

// New returns a scheduler reading and writing its state through st.
func New(st *store.Store) *Scheduler {
	return &Scheduler{
		store: st,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Next returns the next track to play, or (nil, nil) when nothing is ready.
// On success last_returned_track_id is updated to the returned track.
func (s *Scheduler) Next(ctx context.Context) (*store.Track, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	mode, err := s.store.GetConfig(ctx, store.KeyProgrammingMode)
	if err != nil {
		return nil, err
	}
	slog.Info("Scheduling next track", "mode", mode)

	var track *store.Track
	if mode == "mood" {
		track, err = s.pickMood(ctx)
	} else {
		track, err = s.pickRotation(ctx)
	}
	if err != nil {
		return nil, err
	}
	if track != nil {
		metrics.SchedulerPicks.WithLabelValues(mode).Inc()
	}
	return track, nil
}

// pickRotation walks submitters round-robin, N picks per block. The depth
// counter bounds the walk at one full lap; a lap without a pick means every
// submitter is exhausted and the global fallback takes over.
func (s *Scheduler) pickRotation(ctx context.Context) (*store.Track, error) {
	for depth := 0; ; depth++ {
		submitters, err := s.store.ReadySubmitters(ctx)
		if err != nil {
			return nil, err
		}
		if len(submitters) == 0 {
			return nil, nil
		}
		if depth >= len(submitters) {
			slog.Info("All submitters exhausted; using global fallback")
			return s.pickGlobalFallback(ctx)
		}

		idx, err := s.configInt(ctx, store.KeyCurrentSubmitterIdx)
		if err != nil {
			return nil, err
		}
		idx %= len(submitters)
		tracksPerBlock, err := s.configInt(ctx, store.KeyTracksPerBlock)
		if err != nil {
			return nil, err
		}
		blockStartID, err := s.configInt64(ctx, store.KeyBlockStartLogID)
		if err != nil {
			return nil, err
		}
		lastReturnedID, err := s.store.GetConfig(ctx, store.KeyLastReturnedTrackID)
		if err != nil {
			return nil, err
		}
		submitter := submitters[idx]

		played, err := s.store.PlaysForSubmitterSince(ctx, submitter, blockStartID)
		if err != nil {
			return nil, err
		}
		// The last returned track may be prefetched but not yet in the play
		// log; count it against the block if it belongs to this submitter.
		if lastReturnedID != "" {
			lr, err := s.store.GetTrack(ctx, lastReturnedID)
			if err == nil && lr.Submitter == submitter {
				played++
			} else if err != nil && err != store.ErrNotFound {
				return nil, err
			}
		}

		if played >= tracksPerBlock {
			slog.Info("Rotation block complete, advancing", "submitter", submitter)
			if err := s.advanceSubmitter(ctx, idx, len(submitters)); err != nil {
				return nil, err
			}
			continue
		}

		cutoff, err := s.cooldownCutoff(ctx)
		if err != nil {
			return nil, err
		}
		lastPlayedID := ""
		if lp, err := s.store.LastPlay(ctx); err != nil {
			return nil, err
		} else if lp != nil {
			lastPlayedID = lp.TrackID
		}

		candidates, err := s.store.RotationCandidates(ctx, submitter, lastPlayedID, lastReturnedID, cutoff)
		if err != nil {
			return nil, err
		}
		if len(candidates) == 0 {
			slog.Info("No eligible track for submitter, advancing",
				"submitter", submitter, "depth", depth)
			if err := s.advanceSubmitter(ctx, idx, len(submitters)); err != nil {
				return nil, err
			}
			continue
		}

		chosen := s.chooseCandidate(candidates)
		if err := s.store.SetConfig(ctx, store.KeyLastReturnedTrackID, chosen.ID); err != nil {
			return nil, err
		}
		slog.Info("Rotation pick",
			"submitter", submitter, "track_id", chosen.ID,
			"played_this_block", played, "tracks_per_block", tracksPerBlock)
		return &chosen.Track, nil
	}
}

// chooseCandidate guarantees unplayed tracks (uniform among them); otherwise
// a weighted pick with weight 1/sqrt(plays+1), so light rotation still leaves
// well-played tracks a real chance.
func (s *Scheduler) chooseCandidate(candidates []*store.Candidate) *store.Candidate {
	var unplayed []*store.Candidate
	for _, c := range candidates {
		if c.PlayCount == 0 {
			unplayed = append(unplayed, c)
		}
	}
	if len(unplayed) > 0 {
		return unplayed[s.rng.Intn(len(unplayed))]
	}

	weights := make([]float64, len(candidates))
	var total float64
	for i, c := range candidates {
		weights[i] = 1.0 / math.Sqrt(float64(c.PlayCount+1))
		total += weights[i]
	}
	r := s.rng.Float64() * total
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return candidates[i]
		}
	}
	return candidates[len(candidates)-1]
}

// advanceSubmitter moves the rotation cursor to the next submitter and marks
// the current end of the play log as the new block boundary.
func (s *Scheduler) advanceSubmitter(ctx context.Context, idx, total int) error {
	next := (idx + 1) % total
	if err := s.store.SetConfig(ctx, store.KeyCurrentSubmitterIdx, strconv.Itoa(next)); err != nil {
		return err
	}
	latest, err := s.store.MaxPlayLogID(ctx)
	if err != nil {
		return err
	}
	return s.store.SetConfig(ctx, store.KeyBlockStartLogID, strconv.FormatInt(latest, 10))
}

// cooldownCutoff returns the played_at cutoff excluding recently played
// tracks, or "" when the library is too small for cooldown.
func (s *Scheduler) cooldownCutoff(ctx context.Context) (string, error) {
	runtime, err := s.store.TotalReadyRuntime(ctx)
	if err != nil {
		return "", err
	}
	if runtime < cooldownThreshold.Seconds() {
		return "", nil
	}
	return store.TimeString(time.Now().Add(-cooldownWindow)), nil
}

// pickGlobalFallback returns the least-recently-played ready track, first
// honoring the usual two exclusions, then without them as a last resort.
func (s *Scheduler) pickGlobalFallback(ctx context.Context) (*store.Track, error) {
	lastReturnedID, err := s.store.GetConfig(ctx, store.KeyLastReturnedTrackID)
	if err != nil {
		return nil, err
	}
	lastPlayedID := ""
	if lp, err := s.store.LastPlay(ctx); err != nil {
		return nil, err
	} else if lp != nil {
		lastPlayedID = lp.TrackID
	}

	track, err := s.store.LeastRecentlyPlayedReady(ctx, lastPlayedID, lastReturnedID)
	if err != nil {
		return nil, err
	}
	if track == nil {
		track, err = s.store.LeastRecentlyPlayedReady(ctx)
		if err != nil {
			return nil, err
		}
	}
	if track == nil {
		return nil, nil
	}
	if err := s.store.SetConfig(ctx, store.KeyLastReturnedTrackID, track.ID); err != nil {
		return nil, err
	}
	slog.Info("Global fallback pick", "track_id", track.ID)
	return track, nil
}

// pickMood returns the ready track closest in normalized feature space to the
// last played track. With no usable play history it delegates to rotation.
func (s *Scheduler) pickMood(ctx context.Context) (*store.Track, error) {
	last, err := s.store.LastPlayedTrackWithFeatures(ctx)
	if err != nil {
		return nil, err
	}
	if last == nil {
		slog.Info("No play history for mood matching, falling back to rotation")
		return s.pickRotation(ctx)
	}

	bounds, err := s.loadBounds(ctx)
	if err != nil {
		return nil, err
	}
	lastVec := bounds.Vector(trackFeatures(last))

	librarySize, err := s.store.CountReadyWithFeatures(ctx)
	if err != nil {
		return nil, err
	}
	excludeN := librarySize - 1
	if excludeN < 0 {
		excludeN = 0
	}
	if excludeN > moodMaxExclusions {
		excludeN = moodMaxExclusions
	}

	candidates, err := s.store.MoodCandidates(ctx, excludeN)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return s.pickRotation(ctx)
	}

	var best *store.Track
	bestDist := math.Inf(1)
	for _, c := range candidates {
		dist := audio.EuclideanDistance(lastVec, bounds.Vector(trackFeatures(c)))
		if dist < bestDist {
			bestDist = dist
			best = c
		}
	}
	if err := s.store.SetConfig(ctx, store.KeyLastReturnedTrackID, best.ID); err != nil {
		return nil, err
	}
	slog.Info("Mood pick", "track_id", best.ID, "distance", fmt.Sprintf("%.4f", bestDist))
	return best, nil
}

// loadBounds reads the persisted running min/max for every feature.
func (s *Scheduler) loadBounds(ctx context.Context) (audio.Bounds, error) {
	var b audio.Bounds
	fields := []struct {
		key  string
		dest *float64
	}{
		{store.KeyFeatureMinTempo, &b.Min.TempoBPM},
		{store.KeyFeatureMaxTempo, &b.Max.TempoBPM},
		{store.KeyFeatureMinRMS, &b.Min.RMSEnergy},
		{store.KeyFeatureMaxRMS, &b.Max.RMSEnergy},
		{store.KeyFeatureMinCentroid, &b.Min.SpectralCentroid},
		{store.KeyFeatureMaxCentroid, &b.Max.SpectralCentroid},
		{store.KeyFeatureMinZeroCross, &b.Min.ZeroCrossingRate},
		{store.KeyFeatureMaxZeroCross, &b.Max.ZeroCrossingRate},
	}
	for _, f := range fields {
		raw, err := s.store.GetConfig(ctx, f.key)
		if err != nil {
			return b, err
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return b, fmt.Errorf("parse %s: %w", f.key, err)
		}
		*f.dest = v
	}
	return b, nil
}

func trackFeatures(t *store.Track) audio.Features {
	f := audio.Features{}
	if t.TempoBPM != nil {
		f.TempoBPM = *t.TempoBPM
	}
	if t.RMSEnergy != nil {
		f.RMSEnergy = *t.RMSEnergy
	}
	if t.SpectralCentroid != nil {
		f.SpectralCentroid = *t.SpectralCentroid
	}
	if t.ZeroCrossingRate != nil {
		f.ZeroCrossingRate = *t.ZeroCrossingRate
	}
	return f
}

func (s *Scheduler) configInt(ctx context.Context, key string) (int, error) {
	raw, err := s.store.GetConfig(ctx, key)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func (s *Scheduler) configInt64(ctx context.Context, key string) (int64, error) {
	raw, err := s.store.GetConfig(ctx, key)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
