// Package audio provides audio container handling and the small amount of
// signal processing the intake pipeline needs: WAV decode/encode, float/PCM
// conversion, and the noise-gate preprocessing applied before uploads to the
// noise-tolerant transcription backend.
//
// All functions and the WAVDecoder are stateless. Two concurrent requests
// never share decoding state; callers may reuse a single WAVDecoder freely.
package audio

import "errors"

// ErrDecode indicates that an audio container could not be parsed. Callers
// that want graceful degradation (the quality analyzer) match it with
// errors.Is and substitute sentinel metrics instead of failing the request.
var ErrDecode = errors.New("audio: undecodable container")

// Clip is a decoded mono audio clip. Samples are normalized amplitudes in
// [-1, 1]. A Clip is never mutated after decoding; processing functions
// return new sample slices.
type Clip struct {
	// Samples is the mono sample sequence, one float per frame.
	Samples []float64

	// SampleRate in Hz.
	SampleRate int
}

// Duration returns the clip length in seconds.
func (c Clip) Duration() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Decoder turns raw container bytes into a normalized mono Clip.
// Implementations must be safe for concurrent use.
type Decoder interface {
	// Decode parses data and returns the decoded clip. A malformed or
	// unsupported container yields an error wrapping [ErrDecode].
	Decode(data []byte) (Clip, error)
}
