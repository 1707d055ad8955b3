package events

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPublisherConnectFailure(t *testing.T) {
	_, err := NewPublisher(context.Background(), "127.0.0.1", 1)
	assert.Error(t, err)
}

func TestPublish(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	host, portStr, ok := strings.Cut(mr.Addr(), ":")
	require.True(t, ok)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	pub, err := NewPublisher(ctx, host, port)
	require.NoError(t, err)
	defer pub.Close()

	sub := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer sub.Close()
	ps := sub.Subscribe(ctx, Channel)
	defer ps.Close()
	_, err = ps.Receive(ctx)
	require.NoError(t, err)

	pub.Publish(ctx, TrackReady, map[string]any{
		"track_id": "t1",
		"title":    "Song",
	})

	select {
	case msg := <-ps.Channel():
		var got map[string]any
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, TrackReady, got["event"])
		assert.Equal(t, "t1", got["track_id"])
		assert.Equal(t, "Song", got["title"])
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestNilPublisherIsSafe(t *testing.T) {
	var pub *Publisher
	pub.Publish(context.Background(), TrackFailed, map[string]any{"track_id": "x"})
	assert.NoError(t, pub.Close())
}
