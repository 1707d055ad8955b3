package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, 0.5, Normalize(5, 0, 10))
	assert.Equal(t, 0.0, Normalize(2, 2, 8))
	assert.Equal(t, 1.0, Normalize(8, 2, 8))
	// Degenerate bounds collapse to 0 instead of dividing by zero.
	assert.Equal(t, 0.0, Normalize(7, 3, 3))
	// Out-of-range values are not clamped.
	assert.Equal(t, 2.0, Normalize(20, 0, 10))
}

func TestBoundsVector(t *testing.T) {
	b := Bounds{
		Min: Features{TempoBPM: 60, RMSEnergy: 0, SpectralCentroid: 0, ZeroCrossingRate: 0},
		Max: Features{TempoBPM: 180, RMSEnergy: 1, SpectralCentroid: 4000, ZeroCrossingRate: 0.5},
	}
	v := b.Vector(Features{TempoBPM: 120, RMSEnergy: 0.25, SpectralCentroid: 1000, ZeroCrossingRate: 0.25})
	assert.InDelta(t, 0.5, v[0], 1e-12)
	assert.InDelta(t, 0.25, v[1], 1e-12)
	assert.InDelta(t, 0.25, v[2], 1e-12)
	assert.InDelta(t, 0.5, v[3], 1e-12)
}

func TestEuclideanDistance(t *testing.T) {
	assert.Equal(t, 0.0, EuclideanDistance([4]float64{1, 2, 3, 4}, [4]float64{1, 2, 3, 4}))
	assert.InDelta(t, 2.0, EuclideanDistance([4]float64{0, 0, 0, 0}, [4]float64{1, 1, 1, 1}), 1e-12)
}

func TestMedianFilter(t *testing.T) {
	// A lone spike is removed, the plateau survives.
	x := []float64{1, 1, 9, 1, 1, 1, 1}
	got := medianFilter(x, 3)
	assert.Equal(t, []float64{1, 1, 1, 1, 1, 1, 1}, got)

	// Edge replication keeps the output length and does not invent values.
	got = medianFilter([]float64{5, 1, 1}, 3)
	assert.Equal(t, []float64{5, 1, 1}, got)
}

func sine(freq float64, sampleRate, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / float64(sampleRate))
	}
	return out
}

func TestMeanZeroCrossingRate(t *testing.T) {
	const sampleRate = 44100

	// A sine at f Hz crosses zero 2f times per second.
	low := meanZeroCrossingRate(sine(100, sampleRate, sampleRate))
	high := meanZeroCrossingRate(sine(2000, sampleRate, sampleRate))
	assert.InDelta(t, 2*100.0/sampleRate, low, 0.001)
	assert.InDelta(t, 2*2000.0/sampleRate, high, 0.005)
	assert.Greater(t, high, low)

	// Too short for a single frame.
	assert.Equal(t, 0.0, meanZeroCrossingRate(make([]float64, 100)))
}

func TestSTFTShape(t *testing.T) {
	signal := sine(440, 44100, 4*fftSize)
	spec := stft(signal)
	require.NotEmpty(t, spec)
	assert.Len(t, spec[0], fftSize/2+1)
	wantFrames := 1 + (len(signal)-fftSize)/hopSize
	assert.Len(t, spec, wantFrames)

	assert.Nil(t, stft(make([]float64, fftSize-1)))
}

func TestSpectralCentroidTracksFrequency(t *testing.T) {
	const sampleRate = 44100
	lowSpec := stft(sine(220, sampleRate, 4*fftSize))
	highSpec := stft(sine(4400, sampleRate, 4*fftSize))

	low := meanSpectralCentroid(lowSpec, sampleRate)
	high := meanSpectralCentroid(highSpec, sampleRate)

	assert.Greater(t, high, low)
	// The centroid of a pure tone sits near the tone itself.
	assert.InDelta(t, 220, low, 100)
	assert.InDelta(t, 4400, high, 400)
}

func TestMeanRMSTracksAmplitude(t *testing.T) {
	const sampleRate = 44100
	loud := sine(440, sampleRate, 4*fftSize)
	quiet := make([]float64, len(loud))
	for i, v := range loud {
		quiet[i] = v * 0.1
	}

	loudRMS := meanRMS(stft(loud))
	quietRMS := meanRMS(stft(quiet))
	assert.Greater(t, loudRMS, quietRMS)
	assert.InDelta(t, 10.0, loudRMS/quietRMS, 0.5)

	assert.Equal(t, 0.0, meanRMS(nil))
}

func TestEstimateTempoOnClickTrack(t *testing.T) {
	const sampleRate = 44100
	const bpm = 120.0

	// Synthesize ~30s of clicks at 120 BPM and measure the tempo from the
	// onset envelope of its spectrogram.
	n := 30 * sampleRate
	signal := make([]float64, n)
	period := int(60.0 / bpm * sampleRate)
	for start := 0; start < n; start += period {
		for i := 0; i < 512 && start+i < n; i++ {
			signal[start+i] = math.Sin(2*math.Pi*1000*float64(i)/sampleRate) *
				math.Exp(-float64(i)/64)
		}
	}

	spec := stft(signal)
	env := onsetEnvelope(percussiveComponent(spec))
	got := estimateTempo(env, sampleRate)

	// Allow octave-adjacent grid lags; the prior should keep it near 120.
	assert.InDelta(t, bpm, got, 6)
}

func TestEstimateTempoDegenerateInput(t *testing.T) {
	assert.Equal(t, 0.0, estimateTempo(nil, 44100))
	assert.Equal(t, 0.0, estimateTempo([]float64{1, 2}, 44100))
}

func TestOnsetEnvelopeIsMeanCentered(t *testing.T) {
	spec := [][]float64{
		{1, 1, 1}, {2, 2, 2}, {2, 2, 2}, {5, 5, 5},
	}
	env := onsetEnvelope(spec)
	require.Len(t, env, 3)
	var sum float64
	for _, v := range env {
		sum += v
	}
	assert.InDelta(t, 0, sum, 1e-9)
}
