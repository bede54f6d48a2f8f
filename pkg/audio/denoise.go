package audio

import "math"

const (
	// aggressiveGateStrength is applied when the measured background-noise
	// level exceeds noisyThreshold.
	aggressiveGateStrength = 0.8

	// lightGateStrength is applied to clean recordings.
	lightGateStrength = 0.3

	// noisyThreshold is the background-noise level above which the
	// aggressive gate is used.
	noisyThreshold = 0.5

	// normalizePeak is the target peak amplitude after gating.
	normalizePeak = 0.95
)

// Denoise applies a simple noise gate followed by peak normalization and
// returns a new sample slice. noiseLevel is the background-noise metric in
// [0, 1] measured by the quality analyzer; it selects the gate strength.
//
// The gate zeroes any sample whose absolute value falls below
// 0.01 × (1 − strength). There is no smoothing or interpolation — samples
// either pass unchanged or become silence.
func Denoise(samples []float64, noiseLevel float64) []float64 {
	strength := lightGateStrength
	if noiseLevel > noisyThreshold {
		strength = aggressiveGateStrength
	}
	threshold := 0.01 * (1 - strength)

	out := make([]float64, len(samples))
	for i, s := range samples {
		if math.Abs(s) >= threshold {
			out[i] = s
		}
	}
	return NormalizePeak(out, normalizePeak)
}

// NormalizePeak scales samples in place so the largest absolute value maps
// to peak. All-silent input is returned unchanged. The (possibly scaled)
// slice is returned for convenience.
func NormalizePeak(samples []float64, peak float64) []float64 {
	var max float64
	for _, s := range samples {
		if a := math.Abs(s); a > max {
			max = a
		}
	}
	if max == 0 {
		return samples
	}
	gain := peak / max
	for i := range samples {
		samples[i] *= gain
	}
	return samples
}
