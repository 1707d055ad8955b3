package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Downloader fetches remote audio with yt-dlp.
type Downloader struct {
	rawDir      string
	cookiesPath string
}

// NewDownloader returns a downloader writing raw files into rawDir. When a
// cookies file exists at cookiesPath it is passed to yt-dlp, which YouTube
// requires from some server IPs.
func NewDownloader(rawDir, cookiesPath string) *Downloader {
	return &Downloader{rawDir: rawDir, cookiesPath: cookiesPath}
}

// Download fetches url as MP3 into the raw directory and returns the inferred
// title, artist and the raw file path.
func (d *Downloader) Download(ctx context.Context, url, trackID string) (title, artist, rawPath string, err error) {
	if err := os.MkdirAll(d.rawDir, 0o755); err != nil {
		return "", "", "", fmt.Errorf("create raw dir: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, ProcessTimeout)
	defer cancel()

	outputTemplate := filepath.Join(d.rawDir, trackID+".%(ext)s")
	args := []string{
		"--extract-audio",
		"--audio-format", "mp3",
		"--audio-quality", "0",
		"--output", outputTemplate,
		"--no-playlist",
		"--write-info-json",
		"--quiet",
	}
	if d.cookiesPath != "" {
		if _, statErr := os.Stat(d.cookiesPath); statErr == nil {
			args = append(args, "--cookies", d.cookiesPath)
		}
	}
	args = append(args, url)

	slog.Info("Downloading remote audio", "url", url, "track_id", trackID)
	cmd := exec.CommandContext(ctx, "yt-dlp", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := stderr.String()
		// YouTube's sign-in wall; surfaced distinctly so the worker can
		// alert the operator to refresh cookies.
		if strings.Contains(msg, "Sign in to confirm") {
			return "", "", "", fmt.Errorf("bot-check failed: %s", stderrTail(msg))
		}
		return "", "", "", fmt.Errorf("yt-dlp failed: %s", stderrTail(msg))
	}

	title = "Unknown Title"
	artist = "Unknown Artist"
	infoPath := filepath.Join(d.rawDir, trackID+".info.json")
	if data, readErr := os.ReadFile(infoPath); readErr == nil {
		var info struct {
			Title    string `json:"title"`
			Artist   string `json:"artist"`
			Uploader string `json:"uploader"`
		}
		if json.Unmarshal(data, &info) == nil {
			if info.Title != "" {
				title = info.Title
			}
			if info.Artist != "" {
				artist = info.Artist
			} else if info.Uploader != "" {
				artist = info.Uploader
			}
		}
		os.Remove(infoPath)
	}

	rawPath = filepath.Join(d.rawDir, trackID+".mp3")
	if _, statErr := os.Stat(rawPath); statErr != nil {
		// yt-dlp may have kept the source container extension.
		found := false
		for _, ext := range []string{".webm", ".m4a", ".opus"} {
			candidate := filepath.Join(d.rawDir, trackID+ext)
			if _, err := os.Stat(candidate); err == nil {
				rawPath = candidate
				found = true
				break
			}
		}
		if !found {
			return "", "", "", fmt.Errorf("downloaded file not found for track %s", trackID)
		}
	}
	return title, artist, rawPath, nil
}
