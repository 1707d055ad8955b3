package audio

import "math"

// Features is the 4-tuple extracted from every normalized track, in the fixed
// order (tempo_bpm, rms_energy, spectral_centroid, zero_crossing_rate).
type Features struct {
	TempoBPM         float64
	RMSEnergy        float64
	SpectralCentroid float64
	ZeroCrossingRate float64
}

// Bounds holds the running per-feature min/max used for normalization.
type Bounds struct {
	Min Features
	Max Features
}

// Normalize maps x into [0,1] against [lo,hi]. Degenerate bounds map to 0.
func Normalize(x, lo, hi float64) float64 {
	if hi == lo {
		return 0
	}
	return (x - lo) / (hi - lo)
}

// Vector normalizes f against b and returns the 4-vector used for mood
// distance.
func (b Bounds) Vector(f Features) [4]float64 {
	return [4]float64{
		Normalize(f.TempoBPM, b.Min.TempoBPM, b.Max.TempoBPM),
		Normalize(f.RMSEnergy, b.Min.RMSEnergy, b.Max.RMSEnergy),
		Normalize(f.SpectralCentroid, b.Min.SpectralCentroid, b.Max.SpectralCentroid),
		Normalize(f.ZeroCrossingRate, b.Min.ZeroCrossingRate, b.Max.ZeroCrossingRate),
	}
}

// EuclideanDistance is the straight-line distance between two 4-vectors.
func EuclideanDistance(a, b [4]float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
