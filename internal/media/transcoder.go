package media

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Transcoder converts raw audio to the canonical asset: MP3, 128 kbps CBR,
// 44.1 kHz, stereo, with the track id embedded as the ID3v2.3 comment tag.
type Transcoder struct {
	tracksDir string
}

// NewTranscoder returns a transcoder writing normalized files into tracksDir.
func NewTranscoder(tracksDir string) *Transcoder {
	return &Transcoder{tracksDir: tracksDir}
}

// Transcode normalizes rawPath and returns the final asset path. The raw file
// is unlinked on success.
func (t *Transcoder) Transcode(ctx context.Context, rawPath, trackID, title, artist string) (string, error) {
	if err := os.MkdirAll(t.tracksDir, 0o755); err != nil {
		return "", fmt.Errorf("create tracks dir: %w", err)
	}
	outputPath := filepath.Join(t.tracksDir, trackID+".mp3")

	ctx, cancel := context.WithTimeout(ctx, ProcessTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", rawPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", "128k",
		"-ar", "44100",
		"-ac", "2",
		"-id3v2_version", "3",
		"-metadata", "comment="+trackID,
		"-metadata", "title="+title,
		"-metadata", "artist="+artist,
		"-y",
		outputPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	slog.Info("Transcoding to canonical MP3", "input", rawPath, "output", outputPath)
	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg conversion failed: %s", stderrTail(stderr.String()))
	}

	if rawPath != outputPath {
		if err := os.Remove(rawPath); err != nil && !os.IsNotExist(err) {
			slog.Warn("Failed to remove raw file", "path", rawPath, "error", err)
		}
	}
	return outputPath, nil
}
