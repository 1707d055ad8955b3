package endpoints

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"airwave/internal/store"
)

// HandleStatus reports what is playing now and what played recently.
func HandleStatus(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		plays, err := st.RecentPlays(ctx, 11)
		if err != nil {
			internalError(c, err)
			return
		}
		pending, err := st.PendingCount(ctx)
		if err != nil {
			internalError(c, err)
			return
		}

		var nowPlaying *store.PlayedTrack
		recent := []*store.PlayedTrack{}
		if len(plays) > 0 {
			nowPlaying = plays[0]
			recent = plays[1:]
		}

		c.JSON(http.StatusOK, gin.H{
			"now_playing":   nowPlaying,
			"recent":        recent,
			"pending_count": pending,
		})
	}
}

// HandleLibrary lists every track, newest submission first.
func HandleLibrary(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		tracks, err := st.ListTracks(c.Request.Context())
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tracks": tracks, "count": len(tracks)})
	}
}

// HandleSubmitters lists the distinct submitter names seen so far.
func HandleSubmitters(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		submitters, err := st.ListSubmitters(c.Request.Context())
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"submitters": submitters})
	}
}

// HandleGetTrack returns one track by id, mainly for submission polling.
func HandleGetTrack(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		track, err := st.GetTrack(c.Request.Context(), c.Param("track_id"))
		if err == store.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Track not found"})
			return
		}
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, track)
	}
}
