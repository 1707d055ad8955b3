package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/hajimehoshi/go-mp3"
)

// maxAnalysisDuration caps how much audio the extractor looks at; features
// stabilize well before two minutes and full songs would only burn CPU.
const maxAnalysisDuration = 120 * time.Second

// Extractor computes the feature vector of a normalized MP3 asset.
type Extractor struct{}

// NewExtractor returns a feature extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract decodes up to the first 120 seconds of the MP3 at path, downmixed
// to mono, and returns its feature vector.
func (e *Extractor) Extract(path string) (Features, error) {
	start := time.Now()

	f, err := os.Open(path)
	if err != nil {
		return Features{}, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	signal, sampleRate, err := decodeMono(f)
	if err != nil {
		return Features{}, fmt.Errorf("decode audio: %w", err)
	}
	if len(signal) < fftSize {
		return Features{}, errors.New("audio too short for analysis")
	}

	spec := stft(signal)
	perc := percussiveComponent(spec)

	feats := Features{
		TempoBPM:         estimateTempo(onsetEnvelope(perc), sampleRate),
		RMSEnergy:        meanRMS(spec),
		SpectralCentroid: meanSpectralCentroid(spec, sampleRate),
		ZeroCrossingRate: meanZeroCrossingRate(signal),
	}

	slog.Info("Extracted audio features",
		"path", path,
		"tempo_bpm", fmt.Sprintf("%.1f", feats.TempoBPM),
		"rms", fmt.Sprintf("%.4f", feats.RMSEnergy),
		"centroid", fmt.Sprintf("%.1f", feats.SpectralCentroid),
		"zcr", fmt.Sprintf("%.4f", feats.ZeroCrossingRate),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return feats, nil
}

// decodeMono decodes an MP3 stream to mono float64 samples in [-1, 1],
// stopping after maxAnalysisDuration of audio.
func decodeMono(r io.Reader) ([]float64, int, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, 0, err
	}
	sampleRate := dec.SampleRate()
	maxSamples := int(maxAnalysisDuration.Seconds()) * sampleRate

	// The decoder always emits 16-bit little-endian stereo.
	signal := make([]float64, 0, maxSamples)
	buf := make([]byte, 8192)
	for len(signal) < maxSamples {
		n, err := dec.Read(buf)
		for i := 0; i+4 <= n; i += 4 {
			left := int16(binary.LittleEndian.Uint16(buf[i:]))
			right := int16(binary.LittleEndian.Uint16(buf[i+2:]))
			signal = append(signal, (float64(left)+float64(right))/2/32768)
			if len(signal) >= maxSamples {
				break
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, err
		}
	}
	return signal, sampleRate, nil
}
