package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-audio/wav"
)

// WAVDecoder decodes RIFF/WAV containers into mono [Clip] values.
// Multi-channel input is downmixed by averaging all channels per frame.
// The zero value is ready to use and safe for concurrent use.
type WAVDecoder struct{}

// Compile-time interface assertion.
var _ Decoder = WAVDecoder{}

// Decode implements [Decoder] for WAV input.
func (WAVDecoder) Decode(data []byte) (Clip, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return Clip{}, fmt.Errorf("%w: not a valid WAV file", ErrDecode)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if buf.Format == nil || buf.Format.SampleRate <= 0 {
		return Clip{}, fmt.Errorf("%w: missing format chunk", ErrDecode)
	}

	channels := buf.Format.NumChannels
	if channels <= 0 {
		channels = 1
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := range frames {
		var sum float64
		for ch := range channels {
			sum += float64(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float64(channels)
	}

	return Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

// EncodeWAV packages a mono clip as a 16-bit PCM WAV file. It is used to
// repackage preprocessed audio for backend uploads. The header is written
// directly so encoding works on an in-memory buffer.
func EncodeWAV(clip Clip) ([]byte, error) {
	if clip.SampleRate <= 0 {
		return nil, fmt.Errorf("audio: encode wav: sample rate %d is invalid", clip.SampleRate)
	}

	pcm := Float64ToPCM16(clip.Samples)
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))

	byteRate := clip.SampleRate * 2 // mono, 2 bytes per sample

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&buf, binary.LittleEndian, uint32(clip.SampleRate))
	binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(&buf, binary.LittleEndian, uint16(2))  // block align
	binary.Write(&buf, binary.LittleEndian, uint16(16)) // bits per sample

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// Float64ToPCM16 converts normalized samples to little-endian int16 PCM.
// Values outside [-1, 1] are clamped.
func Float64ToPCM16(samples []float64) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		v := int16(s * 32767)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloat64 converts little-endian int16 PCM to normalized float
// samples in [-1, 1]. A trailing odd byte is ignored.
func PCM16ToFloat64(pcm []byte) []float64 {
	n := len(pcm) / 2
	samples := make([]float64, n)
	for i := range n {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float64(s) / 32768.0
	}
	return samples
}
