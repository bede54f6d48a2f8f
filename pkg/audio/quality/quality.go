// Package quality computes objective signal metrics from a raw audio sample.
//
// The metrics drive the routing decision between transcription backends:
// clean recordings go to the high-accuracy backend, degraded recordings to
// the noise-tolerant one. Analysis never fails outward — an undecodable
// container yields a fixed low-quality sentinel so routing degrades
// gracefully instead of failing the request.
package quality

import (
	"log/slog"
	"math"
	"sort"

	"github.com/lexivoice/lexivoice/pkg/audio"
)

const (
	// frameSize is the FFT frame length used for the clarity measurement.
	// Tail samples that do not fill a whole frame are dropped.
	frameSize = 2048

	// speechBandLow and speechBandHigh bound the human speech band in Hz.
	speechBandLow  = 300.0
	speechBandHigh = 3400.0

	// noiseFloorFraction is the share of quietest samples used to estimate
	// the noise floor for the SNR measurement.
	noiseFloorFraction = 0.10

	// backgroundFraction is the share of quietest samples used for the
	// background-noise measurement.
	backgroundFraction = 0.20

	// noiseEpsilon guards the SNR division against a silent noise floor.
	noiseEpsilon = 0.001

	// snrMax caps the reported SNR in dB.
	snrMax = 20.0
)

// Metrics is an immutable snapshot of audio quality, computed once per
// sample and attached to the transcription result downstream.
type Metrics struct {
	// SNR is the signal-to-noise ratio in decibels, clamped to [0, 20].
	SNR float64

	// Clarity is the mean fraction of spectral power inside the speech
	// band (300–3400 Hz), in [0, 1].
	Clarity float64

	// BackgroundNoise is the scaled RMS of the quietest fifth of the
	// sample, in [0, 1]. Any RMS ≥ 0.1 reads as maximal noise.
	BackgroundNoise float64

	// Duration is the clip length in seconds.
	Duration float64

	// SampleRate in Hz.
	SampleRate int

	// Bitrate in bits per second, derived from container byte size and
	// duration.
	Bitrate int
}

// Sentinel returns the fixed low-quality metrics substituted when audio
// cannot be decoded. The values steer the selector to the noise-tolerant
// backend.
func Sentinel() Metrics {
	return Metrics{
		SNR:             5,
		Clarity:         0.3,
		BackgroundNoise: 0.8,
		Duration:        0,
		SampleRate:      16000,
		Bitrate:         32000,
	}
}

// Analyzer computes [Metrics] from raw container bytes using an injected
// decoder. The decoder is the only collaborator; Analyzer itself holds no
// mutable state and is safe for concurrent use.
type Analyzer struct {
	dec audio.Decoder
}

// NewAnalyzer creates an Analyzer that decodes containers with dec.
func NewAnalyzer(dec audio.Decoder) *Analyzer {
	return &Analyzer{dec: dec}
}

// Analyze decodes data and measures its quality. Decode failures (and empty
// decoded clips) are absorbed: the documented sentinel metrics are returned
// and the cause is logged for operators.
func (a *Analyzer) Analyze(data []byte) Metrics {
	clip, err := a.dec.Decode(data)
	if err != nil {
		slog.Debug("quality: decode failed, using sentinel metrics", "error", err)
		return Sentinel()
	}
	if len(clip.Samples) == 0 {
		slog.Debug("quality: decoded clip is empty, using sentinel metrics")
		return Sentinel()
	}
	return Measure(clip, len(data))
}

// Measure computes quality metrics from an already-decoded clip. byteSize is
// the original container size used for the bitrate derivation.
func Measure(clip audio.Clip, byteSize int) Metrics {
	duration := clip.Duration()

	bitrate := 0
	if duration > 0 {
		bitrate = int(float64(byteSize) * 8 / duration)
	}

	return Metrics{
		SNR:             signalToNoise(clip.Samples),
		Clarity:         clarity(clip.Samples, clip.SampleRate),
		BackgroundNoise: backgroundNoise(clip.Samples),
		Duration:        duration,
		SampleRate:      clip.SampleRate,
		Bitrate:         bitrate,
	}
}

// signalToNoise estimates SNR in dB. The quietest 10% of samples (by
// absolute amplitude) serve as the noise-floor estimate; both powers are
// mean squares so the ratio is independent of clip length.
func signalToNoise(samples []float64) float64 {
	signalPower := meanSquare(samples)

	sorted := sortedAbs(samples)
	n := len(sorted) * 10 / 100
	if n < 1 {
		n = 1
	}
	noisePower := meanSquare(sorted[:n])

	snr := 10 * math.Log10(signalPower/math.Max(noisePower, noiseEpsilon))
	return clamp(snr, 0, snrMax)
}

// clarity is the mean, across non-overlapping frames of frameSize samples,
// of the fraction of spectral power inside the speech band. The DC bin is
// excluded so a constant offset does not read as out-of-band power.
// Clips shorter than one frame report zero clarity.
func clarity(samples []float64, sampleRate int) float64 {
	frames := len(samples) / frameSize
	if frames == 0 || sampleRate <= 0 {
		return 0
	}

	var sum float64
	for f := range frames {
		frame := samples[f*frameSize : (f+1)*frameSize]
		sum += speechBandFraction(frame, sampleRate)
	}
	return sum / float64(frames)
}

// speechBandFraction transforms one frame into the frequency domain and
// returns speech-band power over total power for bins up to Nyquist.
func speechBandFraction(frame []float64, sampleRate int) float64 {
	spectrum := make([]complex128, len(frame))
	for i, s := range frame {
		spectrum[i] = complex(s, 0)
	}
	fft(spectrum)

	binHz := float64(sampleRate) / float64(len(frame))
	var band, total float64
	for k := 1; k <= len(frame)/2; k++ {
		p := real(spectrum[k])*real(spectrum[k]) + imag(spectrum[k])*imag(spectrum[k])
		total += p
		freq := float64(k) * binHz
		if freq >= speechBandLow && freq <= speechBandHigh {
			band += p
		}
	}
	if total == 0 {
		return 0
	}
	return band / total
}

// backgroundNoise is the RMS of the quietest 20% of samples, scaled by 10
// and clamped so any RMS at or above 0.1 reads as maximal background noise.
func backgroundNoise(samples []float64) float64 {
	sorted := sortedAbs(samples)
	n := len(sorted) * 20 / 100
	if n < 1 {
		n = 1
	}
	rms := math.Sqrt(meanSquare(sorted[:n]))
	return clamp(rms*10, 0, 1)
}

func sortedAbs(samples []float64) []float64 {
	abs := make([]float64, len(samples))
	for i, s := range samples {
		abs[i] = math.Abs(s)
	}
	sort.Float64s(abs)
	return abs
}

func meanSquare(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return sum / float64(len(samples))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo || math.IsNaN(v) {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
