// Package worker runs the single-consumer ingestion loop: it drains pending
// jobs, drives the media pipeline and feature extractor, and commits terminal
// state. Ingestion is deliberately sequential; parallelism would contend on
// the downloader, the disk and the single SQLite writer for no real gain.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"airwave/internal/audio"
	"airwave/internal/config"
	"airwave/internal/events"
	"airwave/internal/media"
	"airwave/internal/metrics"
	"airwave/internal/store"
)

const (
	idleWait     = 5 * time.Second
	errorBackoff = 10 * time.Second
	stopTimeout  = 30 * time.Second
)

// Downloader fetches remote audio for a track.
type Downloader interface {
	Download(ctx context.Context, url, trackID string) (title, artist, rawPath string, err error)
}

// Transcoder normalizes raw audio to the canonical asset.
type Transcoder interface {
	Transcode(ctx context.Context, rawPath, trackID, title, artist string) (string, error)
}

// Prober reads the duration of a finished asset.
type Prober interface {
	Duration(ctx context.Context, path string) (*float64, error)
}

// Extractor computes the feature vector of a finished asset.
type Extractor interface {
	Extract(path string) (audio.Features, error)
}

// Pusher delivers the "new track" notification to subscribers.
type Pusher interface {
	SendToAll(title, body, url string)
}

// Worker is the single ingestion consumer.
type Worker struct {
	store      *store.Store
	downloader Downloader
	transcoder Transcoder
	prober     Prober
	extractor  Extractor
	pusher     Pusher
	events     *events.Publisher
	rawDir     string

	stop chan struct{}
	done chan struct{}
}

// New wires a worker. events may be nil.
func New(st *store.Store, dl Downloader, tc Transcoder, pr Prober, ex Extractor, push Pusher, pub *events.Publisher, rawDir string) *Worker {
	return &Worker{
		store:      st,
		downloader: dl,
		transcoder: tc,
		prober:     pr,
		extractor:  ex,
		pusher:     push,
		events:     pub,
		rawDir:     rawDir,
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start launches the consumer loop. Callers must run startup recovery
// (store.ResetStuckJobs) before the first Start so the at-most-one-processing
// invariant holds across restarts.
func (w *Worker) Start() {
	go w.run()
}

// Stop asks the loop to finish its current job and waits up to 30 seconds.
func (w *Worker) Stop() {
	close(w.stop)
	select {
	case <-w.done:
	case <-time.After(stopTimeout):
		slog.Warn("Worker did not stop within timeout")
	}
}

func (w *Worker) run() {
	defer close(w.done)
	slog.Info("Worker started")
	ctx := context.Background()

	for {
		select {
		case <-w.stop:
			slog.Info("Worker stopped")
			return
		default:
		}

		job, err := w.store.NextPendingJob(ctx)
		if err != nil {
			slog.Error("Worker loop error", "error", err)
			w.wait(errorBackoff)
			continue
		}
		if job == nil {
			w.wait(idleWait)
			continue
		}
		w.processJob(ctx, job)
	}
}

func (w *Worker) wait(d time.Duration) {
	select {
	case <-w.stop:
	case <-time.After(d):
	}
}

// processJob runs one job to a terminal state. Every failure is projected
// into failed job + track rows; only store errors on that final write are
// unrecoverable and just logged.
func (w *Worker) processJob(ctx context.Context, job *store.Job) {
	slog.Info("Processing job", "job_id", job.ID, "track_id", job.TrackID)
	start := time.Now()

	if err := w.store.ClaimJob(ctx, job.ID, job.TrackID); err != nil {
		slog.Error("Failed to claim job", "job_id", job.ID, "error", err)
		return
	}

	track, err := w.store.GetTrack(ctx, job.TrackID)
	if err != nil {
		w.fail(ctx, job, nil, fmt.Sprintf("track %s not found", job.TrackID))
		return
	}

	update, err := w.ingest(ctx, track)
	if err != nil {
		w.fail(ctx, job, track, err.Error())
		return
	}

	if err := w.store.CompleteJob(ctx, job.ID, job.TrackID, *update); err != nil {
		slog.Error("Failed to commit ready state", "job_id", job.ID, "error", err)
		w.fail(ctx, job, track, fmt.Sprintf("commit failed: %v", err))
		return
	}

	metrics.JobsProcessed.WithLabelValues(store.JobDone).Inc()
	metrics.JobDuration.Observe(time.Since(start).Seconds())
	slog.Info("Job completed", "job_id", job.ID, "track_id", job.TrackID, "path", update.FilePath)

	w.notifyReady(ctx, track, update)
}

// ingest is the linear pipeline: fetch raw audio, transcode, analyze, probe.
func (w *Worker) ingest(ctx context.Context, track *store.Track) (*store.ReadyUpdate, error) {
	title := track.Title
	artist := track.Artist
	var rawPath string

	switch track.SourceType {
	case store.SourceUpload:
		path, err := media.ResolveUploadPath(w.rawDir, track.ID)
		if err != nil {
			return nil, err
		}
		rawPath = path

	case store.SourceYouTube:
		sourceURL := ""
		if track.SourceURL != nil {
			sourceURL = *track.SourceURL
		}
		var err error
		title, artist, rawPath, err = w.downloader.Download(ctx, sourceURL, track.ID)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unknown source_type: %s", track.SourceType)
	}

	finalPath, err := w.transcoder.Transcode(ctx, rawPath, track.ID, title, artist)
	if err != nil {
		return nil, err
	}

	feats, err := w.extractor.Extract(finalPath)
	if err != nil {
		return nil, fmt.Errorf("feature extraction: %w", err)
	}
	if err := w.updateFeatureBounds(ctx, feats); err != nil {
		return nil, err
	}

	duration, err := w.prober.Duration(ctx, finalPath)
	if err != nil {
		return nil, err
	}

	return &store.ReadyUpdate{
		Title:            title,
		Artist:           artist,
		FilePath:         finalPath,
		DurationS:        duration,
		TempoBPM:         feats.TempoBPM,
		RMSEnergy:        feats.RMSEnergy,
		SpectralCentroid: feats.SpectralCentroid,
		ZeroCrossingRate: feats.ZeroCrossingRate,
	}, nil
}

func (w *Worker) fail(ctx context.Context, job *store.Job, track *store.Track, errMsg string) {
	slog.Error("Job failed", "job_id", job.ID, "track_id", job.TrackID, "error", errMsg)
	if err := w.store.FailJob(ctx, job.ID, job.TrackID, errMsg); err != nil {
		slog.Error("Failed to record job failure", "job_id", job.ID, "error", err)
	}
	metrics.JobsProcessed.WithLabelValues(store.JobFailed).Inc()

	w.events.Publish(ctx, events.TrackFailed, map[string]any{
		"track_id": job.TrackID,
		"error":    errMsg,
	})

	// YouTube occasionally demands sign-in verification from server IPs; the
	// fix is fresh cookies, so tell the operator right away.
	if track != nil && strings.Contains(errMsg, "bot-check failed") {
		w.sendBotCheckAlert(track, errMsg)
	}
}

func (w *Worker) sendBotCheckAlert(track *store.Track, errMsg string) {
	adminURL := "(admin panel)"
	if config.ServerHostname != "" {
		adminURL = "https://" + config.ServerHostname + "/admin"
	}
	sourceURL := ""
	if track.SourceURL != nil {
		sourceURL = *track.SourceURL
	}
	go SendAlertFunc(
		"["+config.StationName+"] YouTube bot-check failed",
		fmt.Sprintf(
			"A YouTube download failed because YouTube is requiring sign-in verification.\n\n"+
				"Submitted by: %s\nURL: %s\n\n"+
				"Fix: upload fresh cookies at the admin panel:\n%s\n\n"+
				"Error: %s",
			track.Submitter, sourceURL, adminURL, errMsg),
	)
}

func (w *Worker) notifyReady(ctx context.Context, track *store.Track, update *store.ReadyUpdate) {
	w.events.Publish(ctx, events.TrackReady, map[string]any{
		"track_id":  track.ID,
		"title":     update.Title,
		"artist":    update.Artist,
		"submitter": track.Submitter,
	})

	if w.pusher == nil {
		return
	}
	const signoff = "Tune in to hear its upcoming debut."
	body := signoff
	if track.Comment != nil && *track.Comment != "" {
		comment := *track.Comment
		body = fmt.Sprintf("They said: %q", comment)
		if len(comment) <= 50 {
			body += "\n" + signoff
		}
	}
	w.pusher.SendToAll(
		fmt.Sprintf("%s added %s to the radio!", track.Submitter, update.Title),
		body,
		"/playing.html",
	)
}

// updateFeatureBounds widens the persisted running min/max for each feature,
// writing only the values that changed. Safe without compare-and-set because
// ingestion is single-consumer.
func (w *Worker) updateFeatureBounds(ctx context.Context, feats audio.Features) error {
	fields := []struct {
		minKey, maxKey string
		value          float64
	}{
		{store.KeyFeatureMinTempo, store.KeyFeatureMaxTempo, feats.TempoBPM},
		{store.KeyFeatureMinRMS, store.KeyFeatureMaxRMS, feats.RMSEnergy},
		{store.KeyFeatureMinCentroid, store.KeyFeatureMaxCentroid, feats.SpectralCentroid},
		{store.KeyFeatureMinZeroCross, store.KeyFeatureMaxZeroCross, feats.ZeroCrossingRate},
	}
	for _, f := range fields {
		if err := w.widenBound(ctx, f.minKey, f.value, false); err != nil {
			return err
		}
		if err := w.widenBound(ctx, f.maxKey, f.value, true); err != nil {
			return err
		}
	}
	return nil
}

func (w *Worker) widenBound(ctx context.Context, key string, value float64, isMax bool) error {
	raw, err := w.store.GetConfig(ctx, key)
	if err != nil {
		return err
	}
	current, err := parseFloat(raw)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	changed := (isMax && value > current) || (!isMax && value < current)
	if !changed {
		return nil
	}
	return w.store.SetConfig(ctx, key, formatFloat(value))
}

// SendAlertFunc is swapped out in tests.
var SendAlertFunc = defaultSendAlert
