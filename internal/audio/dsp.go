package audio

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/dsp/fourier"
)

const (
	fftSize    = 2048
	hopSize    = 512
	hpssKernel = 31

	minBPM = 30.0
	maxBPM = 300.0
)

// stft computes the magnitude spectrogram of signal: one row per frame,
// fftSize/2+1 bins per row, Hann-windowed.
func stft(signal []float64) [][]float64 {
	if len(signal) < fftSize {
		return nil
	}
	window := hannWindow(fftSize)
	fft := fourier.NewFFT(fftSize)

	nFrames := 1 + (len(signal)-fftSize)/hopSize
	spec := make([][]float64, 0, nFrames)
	buf := make([]float64, fftSize)
	coeffs := make([]complex128, fftSize/2+1)

	for start := 0; start+fftSize <= len(signal); start += hopSize {
		for i := 0; i < fftSize; i++ {
			buf[i] = signal[start+i] * window[i]
		}
		coeffs = fft.Coefficients(coeffs, buf)
		mags := make([]float64, len(coeffs))
		for i, c := range coeffs {
			mags[i] = cmplxAbs(c)
		}
		spec = append(spec, mags)
	}
	return spec
}

func cmplxAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n)))
	}
	return w
}

// percussiveComponent separates the percussive part of a magnitude
// spectrogram by median filtering: harmonic energy is smooth across time,
// percussive energy is smooth across frequency. A binary mask keeps the bins
// where the percussive estimate dominates.
func percussiveComponent(spec [][]float64) [][]float64 {
	if len(spec) == 0 {
		return nil
	}
	nFrames := len(spec)
	nBins := len(spec[0])

	perc := make([][]float64, nFrames)
	harmCol := make([]float64, nFrames)

	// Harmonic estimate: median across frames per bin.
	harm := make([][]float64, nFrames)
	for t := range harm {
		harm[t] = make([]float64, nBins)
	}
	for k := 0; k < nBins; k++ {
		for t := 0; t < nFrames; t++ {
			harmCol[t] = spec[t][k]
		}
		filtered := medianFilter(harmCol, hpssKernel)
		for t := 0; t < nFrames; t++ {
			harm[t][k] = filtered[t]
		}
	}

	// Percussive estimate: median across bins per frame, then mask.
	for t := 0; t < nFrames; t++ {
		percRow := medianFilter(spec[t], hpssKernel)
		out := make([]float64, nBins)
		for k := 0; k < nBins; k++ {
			if percRow[k] >= harm[t][k] {
				out[k] = spec[t][k]
			}
		}
		perc[t] = out
	}
	return perc
}

// medianFilter applies a centered running median with the given odd kernel
// size, replicating edge values.
func medianFilter(x []float64, kernel int) []float64 {
	half := kernel / 2
	out := make([]float64, len(x))
	window := make([]float64, 0, kernel)
	for i := range x {
		window = window[:0]
		for j := i - half; j <= i+half; j++ {
			idx := j
			if idx < 0 {
				idx = 0
			}
			if idx >= len(x) {
				idx = len(x) - 1
			}
			window = append(window, x[idx])
		}
		sort.Float64s(window)
		out[i] = window[len(window)/2]
	}
	return out
}

// onsetEnvelope is the half-wave rectified spectral flux of a spectrogram.
func onsetEnvelope(spec [][]float64) []float64 {
	if len(spec) < 2 {
		return nil
	}
	env := make([]float64, len(spec)-1)
	for t := 1; t < len(spec); t++ {
		var flux float64
		for k := range spec[t] {
			if d := spec[t][k] - spec[t-1][k]; d > 0 {
				flux += d
			}
		}
		env[t-1] = flux
	}
	// Center the envelope so autocorrelation sees rhythm, not loudness.
	var mean float64
	for _, v := range env {
		mean += v
	}
	mean /= float64(len(env))
	for i := range env {
		env[i] -= mean
	}
	return env
}

// estimateTempo picks the tempo whose beat period maximizes the onset
// envelope's autocorrelation, weighted by a log-normal preference centered on
// 120 BPM so octave-ambiguous peaks resolve toward common tempos.
func estimateTempo(env []float64, sampleRate int) float64 {
	if len(env) < 4 {
		return 0
	}
	frameRate := float64(sampleRate) / float64(hopSize)
	minLag := int(math.Max(1, math.Floor(60*frameRate/maxBPM)))
	maxLag := int(math.Ceil(60 * frameRate / minBPM))
	if maxLag >= len(env) {
		maxLag = len(env) - 1
	}
	if minLag > maxLag {
		return 0
	}

	bestScore := math.Inf(-1)
	bestBPM := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var ac float64
		for i := 0; i+lag < len(env); i++ {
			ac += env[i] * env[i+lag]
		}
		bpm := 60 * frameRate / float64(lag)
		logDev := math.Log2(bpm / 120.0)
		score := ac * math.Exp(-0.5*logDev*logDev)
		if score > bestScore {
			bestScore = score
			bestBPM = bpm
		}
	}
	return bestBPM
}

// meanRMS computes the mean frame-level RMS energy from a magnitude
// spectrogram.
func meanRMS(spec [][]float64) float64 {
	if len(spec) == 0 {
		return 0
	}
	var total float64
	for _, frame := range spec {
		var power float64
		for k, m := range frame {
			p := m * m
			// Interior bins appear twice in the full spectrum.
			if k != 0 && k != len(frame)-1 {
				p *= 2
			}
			power += p
		}
		total += math.Sqrt(power / float64(fftSize*fftSize))
	}
	return total / float64(len(spec))
}

// meanSpectralCentroid computes the mean magnitude-weighted frequency (Hz).
func meanSpectralCentroid(spec [][]float64, sampleRate int) float64 {
	if len(spec) == 0 {
		return 0
	}
	binHz := float64(sampleRate) / float64(fftSize)
	var total float64
	var frames int
	for _, frame := range spec {
		var num, den float64
		for k, m := range frame {
			num += float64(k) * binHz * m
			den += m
		}
		if den > 0 {
			total += num / den
			frames++
		}
	}
	if frames == 0 {
		return 0
	}
	return total / float64(frames)
}

// meanZeroCrossingRate computes the mean per-frame fraction of sign changes.
func meanZeroCrossingRate(signal []float64) float64 {
	if len(signal) < fftSize {
		return 0
	}
	var total float64
	var frames int
	for start := 0; start+fftSize <= len(signal); start += hopSize {
		crossings := 0
		for i := start + 1; i < start+fftSize; i++ {
			if (signal[i] >= 0) != (signal[i-1] >= 0) {
				crossings++
			}
		}
		total += float64(crossings) / float64(fftSize)
		frames++
	}
	return total / float64(frames)
}
