package endpoints

import (
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"airwave/internal/config"
	"airwave/internal/store"
)

const skipTimeout = 5 * time.Second

// HandleGetConfig returns the station tuning knobs.
func HandleGetConfig(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		mode, err := st.GetConfig(ctx, store.KeyProgrammingMode)
		if err != nil {
			internalError(c, err)
			return
		}
		block, err := st.GetConfig(ctx, store.KeyTracksPerBlock)
		if err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"programming_mode": mode,
			"tracks_per_block": block,
		})
	}
}

type configUpdate struct {
	ProgrammingMode *string `json:"programming_mode"`
	TracksPerBlock  *int    `json:"tracks_per_block"`
}

// HandleUpdateConfig validates and applies config changes.
func HandleUpdateConfig(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		var req configUpdate
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}

		if req.ProgrammingMode != nil {
			mode := *req.ProgrammingMode
			if mode != "rotation" && mode != "mood" {
				c.JSON(http.StatusBadRequest, gin.H{"error": "programming_mode must be rotation or mood"})
				return
			}
			if err := st.SetConfig(ctx, store.KeyProgrammingMode, mode); err != nil {
				internalError(c, err)
				return
			}
			slog.Info("Programming mode changed", "mode", mode)
		}

		if req.TracksPerBlock != nil {
			n := *req.TracksPerBlock
			if n < 1 || n > 20 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "tracks_per_block must be between 1 and 20"})
				return
			}
			if err := st.SetConfig(ctx, store.KeyTracksPerBlock, strconv.Itoa(n)); err != nil {
				internalError(c, err)
				return
			}
			slog.Info("Tracks per block changed", "tracks_per_block", n)
		}

		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleSkip tells Liquidsoap to cut to the next track. The pick cursor is
// cleared first so the scheduler does not treat the skipped track as the
// block anchor on its next selection.
func HandleSkip(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.SetConfig(c.Request.Context(), store.KeyLastReturnedTrackID, ""); err != nil {
			internalError(c, err)
			return
		}

		addr := net.JoinHostPort(config.LiquidsoapHost, strconv.Itoa(config.LiquidsoapPort))
		if err := telnetSkip(addr); err != nil {
			slog.Error("Skip failed", "addr", addr, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Could not reach the stream server"})
			return
		}
		slog.Info("Skipped current track")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

func telnetSkip(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, skipTimeout)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(skipTimeout))

	if _, err := conn.Write([]byte("dynamic.flush_and_skip\nquit\n")); err != nil {
		return err
	}
	// Drain the command response so Liquidsoap sees a clean close.
	buf := make([]byte, 1024)
	if _, err := conn.Read(buf); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// HandleCookiesStatus reports whether YouTube cookies are installed.
func HandleCookiesStatus() gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := os.Stat(config.CookiesPath)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"installed": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"installed":  true,
			"size_bytes": info.Size(),
			"updated_at": info.ModTime().UTC().Format(time.RFC3339),
		})
	}
}

// HandleCookiesUpload installs a Netscape cookies.txt for yt-dlp.
func HandleCookiesUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cookies file is required"})
			return
		}
		if err := os.MkdirAll(filepath.Dir(config.CookiesPath), 0o755); err != nil {
			internalError(c, err)
			return
		}
		if err := c.SaveUploadedFile(fh, config.CookiesPath); err != nil {
			internalError(c, err)
			return
		}
		slog.Info("YouTube cookies updated", "size", fh.Size)
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// HandleDeleteTrack removes a track, its history and its media file.
func HandleDeleteTrack(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		trackID := c.Param("track_id")

		filePath, err := st.DeleteTrack(c.Request.Context(), trackID)
		if err == store.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Track not found"})
			return
		}
		if err != nil {
			internalError(c, err)
			return
		}

		if filePath != "" {
			if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
				slog.Warn("Could not remove media file", "path", filePath, "error", err)
			}
		}

		slog.Info("Track deleted", "track_id", trackID)
		c.JSON(http.StatusOK, gin.H{"ok": true, "message": fmt.Sprintf("Track %s deleted", trackID)})
	}
}
