package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "radio.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertReadyTrack(t *testing.T, s *Store, id, submitter string, submittedAt time.Time) {
	t.Helper()
	_, err := s.db.Exec(
		`INSERT INTO tracks (id, title, artist, submitter, source_type, file_path,
		                     duration_s, status, submitted_at)
		 VALUES (?, ?, ?, ?, 'upload', ?, 180.0, 'ready', ?)`,
		id, "Title "+id, "Artist "+id, submitter, "/media/tracks/"+id+".mp3",
		TimeString(submittedAt))
	require.NoError(t, err)
}

func insertPlay(t *testing.T, s *Store, trackID string, at time.Time) {
	t.Helper()
	_, err := s.db.Exec(
		"INSERT INTO play_log (track_id, played_at) VALUES (?, ?)",
		trackID, TimeString(at))
	require.NoError(t, err)
}

func TestOpenSeedsConfigDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	mode, err := s.GetConfig(ctx, KeyProgrammingMode)
	require.NoError(t, err)
	assert.Equal(t, "rotation", mode)

	block, err := s.GetConfig(ctx, KeyTracksPerBlock)
	require.NoError(t, err)
	assert.Equal(t, "3", block)

	minTempo, err := s.GetConfig(ctx, KeyFeatureMinTempo)
	require.NoError(t, err)
	assert.Equal(t, "0", minTempo)

	maxTempo, err := s.GetConfig(ctx, KeyFeatureMaxTempo)
	require.NoError(t, err)
	assert.Equal(t, "1", maxTempo)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "radio.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.SetConfig(ctx, KeyProgrammingMode, "mood"))
	require.NoError(t, s.Close())

	// Reopening must not clobber existing config values.
	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	mode, err := s.GetConfig(ctx, KeyProgrammingMode)
	require.NoError(t, err)
	assert.Equal(t, "mood", mode)
}

func TestGetConfigUnknownKeyFallsBackToDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec("DELETE FROM config WHERE key=?", KeyTracksPerBlock)
	require.NoError(t, err)

	block, err := s.GetConfig(ctx, KeyTracksPerBlock)
	require.NoError(t, err)
	assert.Equal(t, "3", block)
}

func TestTrackJobLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.CreateTrackWithJob(ctx, NewTrack{
		ID:         "t1",
		Title:      "Song",
		Artist:     "Band",
		Submitter:  "alice",
		SourceType: SourceUpload,
		Comment:    "for dad",
	})
	require.NoError(t, err)

	track, err := s.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, TrackPending, track.Status)
	require.NotNil(t, track.Comment)
	assert.Equal(t, "for dad", *track.Comment)
	assert.Nil(t, track.SourceURL)

	job, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "t1", job.TrackID)
	assert.Equal(t, JobPending, job.Status)

	require.NoError(t, s.ClaimJob(ctx, job.ID, job.TrackID))
	track, err = s.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, TrackProcessing, track.Status)

	claimed, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobProcessing, claimed.Status)
	assert.NotNil(t, claimed.StartedAt)

	dur := 212.4
	err = s.CompleteJob(ctx, job.ID, job.TrackID, ReadyUpdate{
		Title:            "Song",
		Artist:           "Band",
		FilePath:         "/media/tracks/t1.mp3",
		DurationS:        &dur,
		TempoBPM:         120,
		RMSEnergy:        0.2,
		SpectralCentroid: 1500,
		ZeroCrossingRate: 0.05,
	})
	require.NoError(t, err)

	track, err = s.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, TrackReady, track.Status)
	require.NotNil(t, track.TempoBPM)
	assert.Equal(t, 120.0, *track.TempoBPM)
	require.NotNil(t, track.DurationS)
	assert.Equal(t, 212.4, *track.DurationS)
	assert.NotNil(t, track.ReadyAt)
	assert.Nil(t, track.ErrorMsg)

	done, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobDone, done.Status)

	// Queue is drained.
	next, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestFailJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTrackWithJob(ctx, NewTrack{
		ID: "t1", Title: "x", Artist: "y", Submitter: "bob",
		SourceType: SourceYouTube, SourceURL: "https://youtu.be/abc123",
	}))
	job, err := s.NextPendingJob(ctx)
	require.NoError(t, err)

	require.NoError(t, s.FailJob(ctx, job.ID, job.TrackID, "download failed"))

	track, err := s.GetTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, TrackFailed, track.Status)
	require.NotNil(t, track.ErrorMsg)
	assert.Equal(t, "download failed", *track.ErrorMsg)

	failed, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobFailed, failed.Status)
}

func TestNextPendingJobOrdersByAge(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.CreateTrackWithJob(ctx, NewTrack{
			ID: id, Title: id, Artist: id, Submitter: "sub", SourceType: SourceUpload,
		}))
	}

	job, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", job.TrackID)
}

func TestResetStuckJobs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTrackWithJob(ctx, NewTrack{
		ID: "stuck", Title: "x", Artist: "y", Submitter: "sub", SourceType: SourceUpload,
	}))
	job, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.NoError(t, s.ClaimJob(ctx, job.ID, job.TrackID))

	n, err := s.ResetStuckJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	track, err := s.GetTrack(ctx, "stuck")
	require.NoError(t, err)
	assert.Equal(t, TrackPending, track.Status)

	reset, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobPending, reset.Status)
	assert.Nil(t, reset.StartedAt)

	// Nothing left to reset on a clean store.
	n, err = s.ResetStuckJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestDeleteTrackCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	insertReadyTrack(t, s, "t1", "alice", time.Now())
	insertPlay(t, s, "t1", time.Now())

	path, err := s.DeleteTrack(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "/media/tracks/t1.mp3", path)

	_, err = s.GetTrack(ctx, "t1")
	assert.Equal(t, ErrNotFound, err)

	plays, err := s.RecentPlays(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, plays)

	_, err = s.DeleteTrack(ctx, "t1")
	assert.Equal(t, ErrNotFound, err)
}

func TestCountPendingBySubmitter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, s.CreateTrackWithJob(ctx, NewTrack{
			ID: id, Title: id, Artist: id, Submitter: "alice", SourceType: SourceUpload,
		}))
	}
	insertReadyTrack(t, s, "c", "alice", time.Now())

	n, err := s.CountPendingBySubmitter(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.CountPendingBySubmitter(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFindTrackByVideoID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTrackWithJob(ctx, NewTrack{
		ID: "t1", Title: "x", Artist: "y", Submitter: "sub",
		SourceType: SourceYouTube, SourceURL: "https://youtu.be/dQw4w9WgXcQ",
		YouTubeVideoID: "dQw4w9WgXcQ",
	}))

	track, err := s.FindTrackByVideoID(ctx, "dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "t1", track.ID)

	_, err = s.FindTrackByVideoID(ctx, "nope")
	assert.Equal(t, ErrNotFound, err)

	// Failed tracks no longer count as duplicates.
	job, err := s.NextPendingJob(ctx)
	require.NoError(t, err)
	require.NoError(t, s.FailJob(ctx, job.ID, job.TrackID, "boom"))
	_, err = s.FindTrackByVideoID(ctx, "dQw4w9WgXcQ")
	assert.Equal(t, ErrNotFound, err)
}

func TestPlayLog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	last, err := s.LastPlay(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	maxID, err := s.MaxPlayLogID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), maxID)

	now := time.Now()
	insertReadyTrack(t, s, "t1", "alice", now)
	insertReadyTrack(t, s, "t2", "bob", now)
	insertPlay(t, s, "t1", now.Add(-2*time.Minute))
	insertPlay(t, s, "t2", now.Add(-1*time.Minute))

	last, err = s.LastPlay(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "t2", last.TrackID)

	n, err := s.PlaysForSubmitterSince(ctx, "alice", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.PlaysForSubmitterSince(ctx, "alice", last.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	recent, err := s.RecentPlays(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "t2", recent[0].ID)
	assert.Equal(t, "t1", recent[1].ID)
}

func TestRotationCandidates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	insertReadyTrack(t, s, "t1", "alice", now.Add(-3*time.Hour))
	insertReadyTrack(t, s, "t2", "alice", now.Add(-2*time.Hour))
	insertReadyTrack(t, s, "t3", "bob", now.Add(-1*time.Hour))
	insertPlay(t, s, "t1", now.Add(-10*time.Minute))
	insertPlay(t, s, "t1", now.Add(-5*time.Minute))

	cands, err := s.RotationCandidates(ctx, "alice", "", "", "")
	require.NoError(t, err)
	require.Len(t, cands, 2)
	counts := map[string]int{}
	for _, c := range cands {
		counts[c.ID] = c.PlayCount
	}
	assert.Equal(t, 2, counts["t1"])
	assert.Equal(t, 0, counts["t2"])

	// Exclusion removes a specific track.
	cands, err = s.RotationCandidates(ctx, "alice", "t2", "", "")
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "t1", cands[0].ID)

	// Cooldown cutoff drops recently played tracks.
	cutoff := TimeString(now.Add(-time.Hour))
	cands, err = s.RotationCandidates(ctx, "alice", "", "", cutoff)
	require.NoError(t, err)
	require.Len(t, cands, 1)
	assert.Equal(t, "t2", cands[0].ID)
}

func TestLeastRecentlyPlayedReady(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	track, err := s.LeastRecentlyPlayedReady(ctx)
	require.NoError(t, err)
	assert.Nil(t, track)

	insertReadyTrack(t, s, "t1", "alice", now.Add(-3*time.Hour))
	insertReadyTrack(t, s, "t2", "bob", now.Add(-2*time.Hour))
	insertPlay(t, s, "t1", now.Add(-time.Minute))

	// Never-played t2 ranks before recently played t1.
	track, err = s.LeastRecentlyPlayedReady(ctx)
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "t2", track.ID)

	track, err = s.LeastRecentlyPlayedReady(ctx, "t2")
	require.NoError(t, err)
	require.NotNil(t, track)
	assert.Equal(t, "t1", track.ID)
}

func TestExtractYouTubeVideoID(t *testing.T) {
	cases := []struct {
		url  string
		want string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtube.com/watch?v=abc_123-XYZ", "abc_123-XYZ"},
		{"https://m.youtube.com/watch?v=abc", "abc"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ?t=42", "dQw4w9WgXcQ"},
		{"https://example.com/watch?v=abc", ""},
		{"not a url at all ://", ""},
		{"https://www.youtube.com/playlist?list=PL123", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ExtractYouTubeVideoID(tc.url), "url %q", tc.url)
	}
}

func TestPushSubscriptions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sub := PushSubscription{Endpoint: "https://push.example/1", P256dh: "key", Auth: "auth"}
	require.NoError(t, s.UpsertPushSubscription(ctx, sub))

	// Upsert with new keys replaces, not duplicates.
	sub.Auth = "auth2"
	require.NoError(t, s.UpsertPushSubscription(ctx, sub))

	subs, err := s.ListPushSubscriptions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "auth2", subs[0].Auth)

	require.NoError(t, s.DeletePushSubscription(ctx, sub.Endpoint))
	subs, err = s.ListPushSubscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestTotalReadyRuntime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	total, err := s.TotalReadyRuntime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0.0, total)

	insertReadyTrack(t, s, "t1", "alice", time.Now())
	insertReadyTrack(t, s, "t2", "bob", time.Now())

	total, err = s.TotalReadyRuntime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 360.0, total)
}
