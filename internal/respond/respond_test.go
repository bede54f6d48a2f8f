package respond

import (
	"math"
	"testing"

	"github.com/lexivoice/lexivoice/pkg/knowledge"
)

func results(distances ...float64) []knowledge.SearchResult {
	out := make([]knowledge.SearchResult, len(distances))
	for i, d := range distances {
		out[i] = knowledge.SearchResult{
			Document: knowledge.Document{ID: string(rune('a' + i))},
			Distance: d,
		}
	}
	return out
}

func TestGroundingConfidence(t *testing.T) {
	tests := []struct {
		name string
		docs []knowledge.SearchResult
		want float64
	}{
		{"no documents", nil, 0.3},
		{"single close match", results(0.1), 0.9},
		{"mixed matches", results(0.1, 0.5), 0.7},
		{"distant matches", results(0.9, 0.9), 0.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GroundingConfidence(tt.docs)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("GroundingConfidence = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestGroundingConfidence_Clamped(t *testing.T) {
	// Cosine distance can exceed 1 for opposed vectors, pushing relevance
	// negative.
	if got := GroundingConfidence(results(1.8)); got != 0 {
		t.Errorf("confidence = %f, want clamped to 0", got)
	}
}

func TestSourcesOf(t *testing.T) {
	docs := results(0.2, 0.6)
	sources := SourcesOf(docs)
	if len(sources) != 2 {
		t.Fatalf("sources = %d, want 2", len(sources))
	}
	if sources[0].DocumentID != "a" {
		t.Errorf("source[0] = %q", sources[0].DocumentID)
	}
	if math.Abs(sources[0].Relevance-0.8) > 1e-9 {
		t.Errorf("relevance = %f, want 0.8", sources[0].Relevance)
	}
}

func TestSourcesOf_Empty(t *testing.T) {
	if got := SourcesOf(nil); got != nil {
		t.Errorf("SourcesOf(nil) = %v, want nil", got)
	}
}
