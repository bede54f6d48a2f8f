package audio

import (
	"errors"
	"math"
	"testing"
)

// sine generates n samples of a sine wave at freq Hz with the given amplitude.
func sine(n, sampleRate int, freq, amplitude float64) []float64 {
	out := make([]float64, n)
	for i := range n {
		out[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return out
}

func TestWAVRoundTrip(t *testing.T) {
	in := Clip{Samples: sine(16000, 16000, 440, 0.5), SampleRate: 16000}

	data, err := EncodeWAV(in)
	if err != nil {
		t.Fatalf("EncodeWAV: %v", err)
	}

	out, err := WAVDecoder{}.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.SampleRate != 16000 {
		t.Errorf("sample rate = %d, want 16000", out.SampleRate)
	}
	if len(out.Samples) != len(in.Samples) {
		t.Fatalf("decoded %d samples, want %d", len(out.Samples), len(in.Samples))
	}
	for i := range out.Samples {
		if math.Abs(out.Samples[i]-in.Samples[i]) > 1e-3 {
			t.Fatalf("sample %d = %f, want %f (±1e-3)", i, out.Samples[i], in.Samples[i])
		}
	}
}

func TestWAVDecoder_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("this is definitely not audio"),
		"truncated": []byte("RIFF\x00\x00"),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := WAVDecoder{}.Decode(data)
			if !errors.Is(err, ErrDecode) {
				t.Fatalf("err = %v, want ErrDecode", err)
			}
		})
	}
}

func TestEncodeWAV_InvalidRate(t *testing.T) {
	if _, err := EncodeWAV(Clip{Samples: []float64{0}, SampleRate: 0}); err == nil {
		t.Fatal("expected error for zero sample rate")
	}
}

func TestClipDuration(t *testing.T) {
	c := Clip{Samples: make([]float64, 8000), SampleRate: 16000}
	if d := c.Duration(); d != 0.5 {
		t.Errorf("duration = %f, want 0.5", d)
	}
	if d := (Clip{}).Duration(); d != 0 {
		t.Errorf("zero clip duration = %f, want 0", d)
	}
}

func TestPCM16Conversion(t *testing.T) {
	in := []float64{0, 0.5, -0.5, 1.5, -1.5}
	pcm := Float64ToPCM16(in)
	out := PCM16ToFloat64(pcm)
	want := []float64{0, 0.5, -0.5, 1, -1} // out-of-range clamped
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-3 {
			t.Errorf("sample %d = %f, want %f", i, out[i], want[i])
		}
	}
}
