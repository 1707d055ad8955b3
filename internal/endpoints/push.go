package endpoints

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"airwave/internal/config"
	"airwave/internal/store"
)

// HandleManifest serves the PWA manifest so the player page is installable.
func HandleManifest() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"name":             config.StationName,
			"short_name":       config.StationName,
			"start_url":        "/playing.html",
			"display":          "standalone",
			"background_color": "#111111",
			"theme_color":      "#111111",
			"icons": []gin.H{
				{"src": "/icon-192.png", "sizes": "192x192", "type": "image/png"},
				{"src": "/icon-512.png", "sizes": "512x512", "type": "image/png"},
			},
		})
	}
}

// HandleVAPIDKey hands the public key to the service worker. 503 when push
// is not configured so the frontend can hide the subscribe button.
func HandleVAPIDKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.VAPIDPublicKey == "" {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push notifications are not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"public_key": config.VAPIDPublicKey})
	}
}

type subscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256dh   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// HandlePushSubscribe stores or refreshes a browser push subscription.
func HandlePushSubscribe(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint, p256dh and auth are required"})
			return
		}
		err := st.UpsertPushSubscription(c.Request.Context(), store.PushSubscription{
			Endpoint: req.Endpoint,
			P256dh:   req.P256dh,
			Auth:     req.Auth,
		})
		if err != nil {
			internalError(c, err)
			return
		}
		slog.Info("Push subscription saved")
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

type unsubscribeRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// HandlePushUnsubscribe drops a subscription by endpoint.
func HandlePushUnsubscribe(st *store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req unsubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
			return
		}
		if err := st.DeletePushSubscription(c.Request.Context(), req.Endpoint); err != nil {
			internalError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}
