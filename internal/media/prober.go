package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"
)

const probeTimeout = 30 * time.Second

// Prober reads asset metadata with ffprobe.
type Prober struct {
	binary string
}

// NewProber returns a prober. An empty binary falls back to "ffprobe".
func NewProber(binary string) *Prober {
	if binary == "" {
		binary = "ffprobe"
	}
	return &Prober{binary: binary}
}

// Duration returns the duration in seconds of the first audio stream of the
// file at path, or nil when the stream reports no usable duration.
func (p *Prober) Duration(ctx context.Context, path string) (*float64, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.binary,
		"-v", "quiet",
		"-print_format", "json",
		"-show_streams",
		path,
	)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %s", stderrTail(stderr.String()))
	}
	return parseAudioDuration(stdout.Bytes())
}

// parseAudioDuration extracts the first audio stream's duration from ffprobe
// JSON output. A zero or missing duration yields nil.
func parseAudioDuration(data []byte) (*float64, error) {
	var payload struct {
		Streams []struct {
			CodecType string `json:"codec_type"`
			Duration  string `json:"duration"`
		} `json:"streams"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, stream := range payload.Streams {
		if stream.CodecType != "audio" {
			continue
		}
		d, err := strconv.ParseFloat(stream.Duration, 64)
		if err != nil || d == 0 {
			return nil, nil
		}
		return &d, nil
	}
	return nil, nil
}
