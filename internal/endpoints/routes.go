package endpoints

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"airwave/internal/events"
	"airwave/internal/store"
)

// Deps carries everything the handlers need.
type Deps struct {
	Store  *store.Store
	Picker TrackPicker
	Events *events.Publisher
}

// SetupRoutes configures all API routes.
func SetupRoutes(r *gin.Engine, deps Deps) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Submission
	r.POST("/submit", HandleSubmit(deps.Store))
	r.GET("/check-duplicate", HandleCheckDuplicate(deps.Store))

	// Streaming boundary (called by Liquidsoap)
	r.GET("/internal/next-track", HandleNextTrack(deps.Picker))
	r.POST("/internal/track-started/:track_id", HandleTrackStarted(deps.Store, deps.Events))

	// Status
	r.GET("/status", HandleStatus(deps.Store))
	r.GET("/library", HandleLibrary(deps.Store))
	r.GET("/submitters", HandleSubmitters(deps.Store))
	r.GET("/track/:track_id", HandleGetTrack(deps.Store))

	// Push
	r.GET("/manifest.json", HandleManifest())
	r.GET("/push/vapid-key", HandleVAPIDKey())
	r.POST("/push/subscribe", HandlePushSubscribe(deps.Store))
	r.POST("/push/unsubscribe", HandlePushUnsubscribe(deps.Store))

	// Admin (protected)
	admin := r.Group("/admin")
	admin.Use(AdminAuthMiddleware())
	{
		admin.GET("/config", HandleGetConfig(deps.Store))
		admin.POST("/config", HandleUpdateConfig(deps.Store))
		admin.POST("/skip", HandleSkip(deps.Store))
		admin.GET("/youtube-cookies/status", HandleCookiesStatus())
		admin.POST("/youtube-cookies", HandleCookiesUpload())
		admin.DELETE("/track/:track_id", HandleDeleteTrack(deps.Store))
	}
}
