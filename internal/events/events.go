// Package events fans live station events out over Redis pub/sub for the
// frontend bridge. The publisher is optional; a nil *Publisher drops events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Channel is the pub/sub channel all station events are published on.
const Channel = "airwave:events"

// Event names.
const (
	TrackReady   = "track_ready"
	TrackFailed  = "track_failed"
	TrackStarted = "track_started"
)

// Publisher publishes station events to Redis.
type Publisher struct {
	client *redis.Client
}

// NewPublisher connects to Redis at host:port and verifies the connection.
func NewPublisher(ctx context.Context, host string, port int) (*Publisher, error) {
	addr := fmt.Sprintf("%s:%d", host, port)
	slog.Debug("Connecting to event bus", "addr", addr)

	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to event bus: %w", err)
	}

	slog.Info("Event bus initialized", "addr", addr)
	return &Publisher{client: client}, nil
}

// Publish emits one event with its payload. Failures are logged, never fatal:
// the stream must keep running without the frontend bridge.
func (p *Publisher) Publish(ctx context.Context, event string, payload map[string]any) {
	if p == nil || p.client == nil {
		return
	}
	msg := map[string]any{"event": event}
	for k, v := range payload {
		msg[k] = v
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal event", "event", event, "error", err)
		return
	}
	if err := p.client.Publish(ctx, Channel, data).Err(); err != nil {
		slog.Warn("Failed to publish event", "event", event, "error", err)
	}
}

// Close closes the Redis connection.
func (p *Publisher) Close() error {
	if p == nil || p.client == nil {
		return nil
	}
	return p.client.Close()
}
