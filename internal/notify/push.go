// Package notify delivers web-push notifications to subscribers and email
// alerts to the operator. Both are no-ops until configured.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	webpush "github.com/SherClockHolmes/webpush-go"

	"airwave/internal/config"
	"airwave/internal/store"
)

// Pusher sends web-push notifications to every stored subscription.
type Pusher struct {
	store *store.Store
	mu    sync.Mutex
}

// NewPusher returns a pusher backed by the subscription table in st.
func NewPusher(st *store.Store) *Pusher {
	return &Pusher{store: st}
}

// Enabled reports whether VAPID keys are configured.
func (p *Pusher) Enabled() bool {
	return config.VAPIDPrivateKey != "" && config.VAPIDClaimsEmail != ""
}

// SendToAll pushes a notification to all subscribers from a background
// goroutine. Dead subscriptions (404/410) are removed.
func (p *Pusher) SendToAll(title, body, url string) {
	if !p.Enabled() {
		return
	}
	go p.sendToAll(title, body, url)
}

func (p *Pusher) sendToAll(title, body, url string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ctx := context.Background()
	subs, err := p.store.ListPushSubscriptions(ctx)
	if err != nil {
		slog.Error("Failed to load push subscriptions", "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"title": title,
		"body":  body,
		"url":   url,
	})
	if err != nil {
		slog.Error("Failed to marshal push payload", "error", err)
		return
	}

	var dead []string
	for _, sub := range subs {
		resp, err := webpush.SendNotification(payload, &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: sub.P256dh,
				Auth:   sub.Auth,
			},
		}, &webpush.Options{
			Subscriber:      "mailto:" + config.VAPIDClaimsEmail,
			VAPIDPublicKey:  config.VAPIDPublicKey,
			VAPIDPrivateKey: config.VAPIDPrivateKey,
			TTL:             3600,
		})
		if err != nil {
			slog.Warn("Push failed", "endpoint", truncate(sub.Endpoint, 60), "error", err)
			continue
		}
		if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
			dead = append(dead, sub.Endpoint)
			slog.Info("Push subscription expired, removing",
				"status", resp.StatusCode, "endpoint", truncate(sub.Endpoint, 60))
		}
		resp.Body.Close()
	}

	for _, endpoint := range dead {
		if err := p.store.DeletePushSubscription(ctx, endpoint); err != nil {
			slog.Error("Failed to remove dead subscription", "error", err)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "…"
	}
	return s
}
