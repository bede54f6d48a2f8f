package audio

import (
	"math"
	"testing"
)

func TestDenoise_LightGate(t *testing.T) {
	// Clean audio → strength 0.3 → threshold 0.007.
	in := []float64{0.5, 0.005, -0.006, -0.3, 0.0069}
	out := Denoise(in, 0.2)

	// After gating, quiet samples are zero; the rest are scaled so the
	// peak (0.5) maps to 0.95.
	gain := 0.95 / 0.5
	want := []float64{0.5 * gain, 0, 0, -0.3 * gain, 0}
	for i := range want {
		if math.Abs(out[i]-want[i]) > 1e-9 {
			t.Errorf("sample %d = %f, want %f", i, out[i], want[i])
		}
	}
}

func TestDenoise_AggressiveGate(t *testing.T) {
	// Noisy audio → strength 0.8 → threshold 0.002.
	in := []float64{0.0019, 0.0021, 0.4}
	out := Denoise(in, 0.7)

	if out[0] != 0 {
		t.Errorf("sample below aggressive threshold = %f, want 0", out[0])
	}
	if out[1] == 0 {
		t.Error("sample above aggressive threshold was gated")
	}
	if math.Abs(out[2]-0.95) > 1e-9 {
		t.Errorf("peak sample = %f, want 0.95", out[2])
	}
}

func TestDenoise_InputNotMutated(t *testing.T) {
	in := []float64{0.5, 0.001}
	Denoise(in, 0.2)
	if in[0] != 0.5 || in[1] != 0.001 {
		t.Errorf("input mutated: %v", in)
	}
}

func TestNormalizePeak_Silence(t *testing.T) {
	in := []float64{0, 0, 0}
	out := NormalizePeak(in, 0.95)
	for i, s := range out {
		if s != 0 {
			t.Errorf("sample %d = %f, want 0", i, s)
		}
	}
}
