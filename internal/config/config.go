package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Load .env before the vars below are evaluated. Best effort: deployments
// configure the environment directly and ship no .env file.
var _ = godotenv.Load()

var (
	// Core paths
	DBPath   = getEnvWithDefault("DB_PATH", "/data/radio.db")
	MediaDir = getEnvWithDefault("MEDIA_DIR", "/media")

	// HTTP server
	Port = getEnvWithDefault("PORT", "8080")

	// Station identity
	StationName = getEnvWithDefault("STATION_NAME", "Family Radio")
	// Public hostname, used to build admin-panel links in alert emails
	ServerHostname = os.Getenv("SERVER_HOSTNAME")

	// Admin auth: shared token checked against the X-Admin-Token header
	AdminToken = os.Getenv("ADMIN_TOKEN")

	// Liquidsoap telnet control endpoint
	LiquidsoapHost = getEnvWithDefault("LIQUIDSOAP_HOST", "liquidsoap")
	LiquidsoapPort = getEnvInt("LIQUIDSOAP_PORT", 1234)

	// yt-dlp cookies file, uploadable through the admin panel
	CookiesPath = getEnvWithDefault("COOKIES_PATH", "/app/cookies/youtube.txt")

	// Web push (no-op when unset)
	VAPIDPublicKey   = os.Getenv("VAPID_PUBLIC_KEY")
	VAPIDPrivateKey  = os.Getenv("VAPID_PRIVATE_KEY")
	VAPIDClaimsEmail = os.Getenv("VAPID_CLAIMS_EMAIL")

	// Email alerts (no-op when unset)
	SMTPHost  = os.Getenv("SMTP_HOST")
	SMTPPort  = getEnvInt("SMTP_PORT", 587)
	SMTPUser  = os.Getenv("SMTP_USER")
	SMTPPass  = os.Getenv("SMTP_PASS")
	AlertFrom = os.Getenv("ALERT_FROM")
	AlertTo   = os.Getenv("ALERT_TO")

	// Event fan-out (disabled when VALKEY_HOST unset)
	ValkeyHost = os.Getenv("VALKEY_HOST")
	ValkeyPort = getEnvInt("VALKEY_PORT", 6379)
)

// RawDir is where uploaded and downloaded files land before transcoding.
func RawDir() string {
	return filepath.Join(MediaDir, "raw")
}

// TracksDir holds the normalized MP3 assets served to the streaming engine.
func TracksDir() string {
	return filepath.Join(MediaDir, "tracks")
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
