package notify

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"airwave/internal/config"
	"airwave/internal/store"
)

func TestPusherDisabledWithoutVAPID(t *testing.T) {
	origKey, origEmail := config.VAPIDPrivateKey, config.VAPIDClaimsEmail
	defer func() {
		config.VAPIDPrivateKey, config.VAPIDClaimsEmail = origKey, origEmail
	}()

	st, err := store.Open(filepath.Join(t.TempDir(), "radio.db"))
	require.NoError(t, err)
	defer st.Close()
	p := NewPusher(st)

	config.VAPIDPrivateKey, config.VAPIDClaimsEmail = "", ""
	assert.False(t, p.Enabled())

	config.VAPIDPrivateKey = "key-only"
	assert.False(t, p.Enabled())

	config.VAPIDClaimsEmail = "ops@example.com"
	assert.True(t, p.Enabled())

	// Disabled pusher must be a silent no-op.
	config.VAPIDPrivateKey = ""
	p.SendToAll("title", "body", "/playing.html")

	subs, err := st.ListPushSubscriptions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestSendAlertUnconfiguredIsNoop(t *testing.T) {
	origHost := config.SMTPHost
	config.SMTPHost = ""
	defer func() { config.SMTPHost = origHost }()

	// Must return without attempting any network dial.
	SendAlert("subject", "body")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcde…", truncate("abcdefgh", 5))
}
