// Package media retrieves raw audio and normalizes it to the canonical MP3
// asset by driving the external yt-dlp / ffmpeg / ffprobe tools.
package media

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ProcessTimeout bounds every external tool invocation.
const ProcessTimeout = 300 * time.Second

// stderrTailBytes is how much tool stderr is kept in error messages.
const stderrTailBytes = 500

// AllowedExtensions are the upload formats we accept and probe for.
var AllowedExtensions = []string{".mp3", ".wav", ".flac", ".m4a", ".ogg", ".opus"}

// ResolveUploadPath finds the raw file an upload submission left at
// rawDir/<trackID>.<ext>, probing the allowed extensions.
func ResolveUploadPath(rawDir, trackID string) (string, error) {
	for _, ext := range AllowedExtensions {
		candidate := filepath.Join(rawDir, trackID+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("uploaded file not found for track %s", trackID)
}

func stderrTail(s string) string {
	if len(s) > stderrTailBytes {
		return s[len(s)-stderrTailBytes:]
	}
	return s
}
