package openai

import (
	"testing"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/param"
)

func oaiInput(text string) oai.EmbeddingNewParamsInputUnion {
	return oai.EmbeddingNewParamsInputUnion{OfString: param.NewOpt(text)}
}

func TestModelDimensions(t *testing.T) {
	tests := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
	}
	for _, tt := range tests {
		if got := modelDimensions(tt.model); got != tt.want {
			t.Errorf("modelDimensions(%q) = %d, want %d", tt.model, got, tt.want)
		}
	}
}

func TestModelDimensions_UnknownPositive(t *testing.T) {
	if d := modelDimensions("some-future-model"); d <= 0 {
		t.Errorf("unknown model: expected positive dimensions, got %d", d)
	}
}

func TestDimensions_MethodMatchesHelper(t *testing.T) {
	cases := []string{
		"text-embedding-3-small",
		"text-embedding-3-large",
		"text-embedding-ada-002",
	}
	for _, model := range cases {
		p := &Provider{model: model}
		if got := p.Dimensions(); got != modelDimensions(model) {
			t.Errorf("model %s: Dimensions() = %d, want %d", model, got, modelDimensions(model))
		}
	}
}

func TestModelID(t *testing.T) {
	p := &Provider{model: "my-custom-embeddings-model"}
	if got := p.ModelID(); got != "my-custom-embeddings-model" {
		t.Errorf("ModelID() = %q", got)
	}
}

func TestNew_DefaultModel(t *testing.T) {
	p, err := New("sk-test", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ModelID() != DefaultModel {
		t.Errorf("expected default model %s, got %s", DefaultModel, p.ModelID())
	}
}

func TestNew_MissingAPIKey(t *testing.T) {
	if _, err := New("", "text-embedding-3-small"); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestWithDimensions_OverridesModelWidth(t *testing.T) {
	p, err := New("sk-test", "text-embedding-3-large", WithDimensions(256))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := p.Dimensions(); got != 256 {
		t.Errorf("Dimensions() = %d, want 256", got)
	}

	params := p.params(oaiInput("hello"))
	if !params.Dimensions.Valid() || params.Dimensions.Value != 256 {
		t.Errorf("request dimensions = %+v, want 256", params.Dimensions)
	}
}

func TestWithDimensions_UnsetLeavesRequestBare(t *testing.T) {
	p, err := New("sk-test", "text-embedding-3-small")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.params(oaiInput("hello")).Dimensions.Valid() {
		t.Error("expected no dimensions parameter when WithDimensions is unset")
	}
}

func TestWithDimensions_NegativeRejected(t *testing.T) {
	if _, err := New("sk-test", "text-embedding-3-small", WithDimensions(-1)); err == nil {
		t.Fatal("expected error for negative dimensions")
	}
}

func TestNew_Options(t *testing.T) {
	_, err := New("sk-test", "text-embedding-3-small",
		WithBaseURL("https://custom.example.com"),
		WithOrganization("org-123"),
	)
	if err != nil {
		t.Fatalf("unexpected error with valid options: %v", err)
	}
}

func TestFloat64ToFloat32(t *testing.T) {
	in := []float64{1.0, 2.5, -0.5}
	out := float64ToFloat32(in)
	if len(out) != len(in) {
		t.Fatalf("expected %d elements, got %d", len(in), len(out))
	}
	for i, v := range out {
		if v != float32(in[i]) {
			t.Errorf("index %d: expected %v, got %v", i, float32(in[i]), v)
		}
	}
}
