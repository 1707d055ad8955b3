package endpoints

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"airwave/internal/events"
	"airwave/internal/metrics"
	"airwave/internal/store"
)

// TrackPicker selects the next track to stream.
type TrackPicker interface {
	Next(ctx context.Context) (*store.Track, error)
}

// HandleNextTrack returns the next track as a Liquidsoap annotate URI in
// plain text. Liquidsoap treats any non-empty body as a playlist entry, so
// on any failure we return an empty 200 and let it fall back to silence
// rather than choke on an error page.
func HandleNextTrack(picker TrackPicker) gin.HandlerFunc {
	return func(c *gin.Context) {
		track, err := picker.Next(c.Request.Context())
		if err != nil {
			slog.Error("Next-track selection failed", "error", err)
			c.String(http.StatusOK, "")
			return
		}
		if track == nil {
			slog.Info("Next-track: library empty, nothing to play")
			c.String(http.StatusOK, "")
			return
		}
		if track.FilePath == nil || *track.FilePath == "" {
			slog.Error("Next-track: ready track has no file path", "track_id", track.ID)
			c.String(http.StatusOK, "")
			return
		}

		slog.Info("Next track", "track_id", track.ID, "title", track.Title, "submitter", track.Submitter)
		c.String(http.StatusOK, annotateURI(track.Title, track.Artist, *track.FilePath))
	}
}

// annotateURI builds annotate:title="...",artist="...":path with backslash
// and double-quote escaping inside the quoted values.
func annotateURI(title, artist, path string) string {
	return `annotate:title="` + annotateEscape(title) +
		`",artist="` + annotateEscape(artist) + `":` + path
}

func annotateEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// HandleTrackStarted records a play event when Liquidsoap begins a track.
// Unknown track ids are logged and acknowledged; a failure response would
// only make the streamer retry a hopeless request.
func HandleTrackStarted(st *store.Store, pub *events.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		trackID := c.Param("track_id")

		track, err := st.GetTrack(ctx, trackID)
		if err == store.ErrNotFound {
			slog.Warn("Track-started for unknown track", "track_id", trackID)
			c.JSON(http.StatusOK, gin.H{"ok": false})
			return
		}
		if err != nil {
			internalError(c, err)
			return
		}

		if err := st.AppendPlay(ctx, trackID); err != nil {
			internalError(c, err)
			return
		}
		metrics.PlayEvents.Inc()

		pub.Publish(ctx, events.TrackStarted, map[string]any{
			"track_id":  track.ID,
			"title":     track.Title,
			"artist":    track.Artist,
			"submitter": track.Submitter,
		})

		slog.Info("Track started", "track_id", trackID, "title", track.Title)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
