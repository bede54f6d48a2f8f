package transcribe

import "github.com/lexivoice/lexivoice/pkg/audio/quality"

// Quality-score weights and decision bands. The SNR term enters on its raw
// [0, 20] dB scale while clarity and the noise complement are ratios in
// [0, 1]; the mixed scales are intentional and preserved — rescaling SNR
// would shift every recording's band. Flagged for product review rather
// than changed here.
const (
	snrWeight     = 0.4
	clarityWeight = 0.4
	noiseWeight   = 0.2

	accurateBand = 7.0
	hybridBand   = 4.0
)

// QualityScore collapses quality metrics into the composite routing score:
//
//	0.4·SNR + 0.4·clarity + 0.2·(1 − backgroundNoise)
func QualityScore(m quality.Metrics) float64 {
	return snrWeight*m.SNR + clarityWeight*m.Clarity + noiseWeight*(1-m.BackgroundNoise)
}

// SelectMethod maps quality metrics and the cost-optimization policy to a
// processing method. It is a pure function of its inputs:
//
//   - score > 7 with cost optimization enabled → accurate
//   - score > 4 → hybrid
//   - otherwise → tolerant
//
// Comparisons are strict, so a score of exactly 7 or 4 never promotes to
// the higher tier.
func SelectMethod(m quality.Metrics, costOptimized bool) Method {
	score := QualityScore(m)
	switch {
	case score > accurateBand && costOptimized:
		return MethodAccurate
	case score > hybridBand:
		return MethodHybrid
	default:
		return MethodTolerant
	}
}
