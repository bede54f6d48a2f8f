package anyllm

import (
	"strings"
	"testing"

	"github.com/lexivoice/lexivoice/internal/respond"
	"github.com/lexivoice/lexivoice/pkg/knowledge"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New("", "gpt-4o-mini", nil); err == nil {
		t.Error("expected error for empty provider name")
	}
	if _, err := New("openai", "", nil); err == nil {
		t.Error("expected error for empty model")
	}
	if _, err := New("not-a-provider", "some-model", nil); err == nil {
		t.Error("expected error for unsupported provider")
	}
}

func TestNew_Options(t *testing.T) {
	g, err := New("ollama", "llama3", nil, WithTemperature(0.1), WithMaxTokens(256))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if g.temperature != 0.1 {
		t.Errorf("temperature = %f", g.temperature)
	}
	if g.maxTokens != 256 {
		t.Errorf("maxTokens = %d", g.maxTokens)
	}
}

func TestBuildPrompt(t *testing.T) {
	q := respond.Query{
		Question:     "can my landlord evict me without notice?",
		Language:     "es",
		CaseType:     "eviction",
		Jurisdiction: "US-CA",
		Documents: []knowledge.SearchResult{
			{Document: knowledge.Document{ID: "d1", Content: "eviction requires written notice"}, Distance: 0.1},
			{Document: knowledge.Document{ID: "d2", Content: "tenants may contest evictions in court"}, Distance: 0.2},
		},
	}

	prompt := BuildPrompt(q)

	for _, want := range []string{
		"Case type: eviction",
		"Jurisdiction: US-CA",
		"Answer language: es",
		"[1] eviction requires written notice",
		"[2] tenants may contest evictions in court",
		"Question: can my landlord evict me without notice?",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildPrompt_NoDocuments(t *testing.T) {
	prompt := BuildPrompt(respond.Query{Question: "what are my rights?"})
	if !strings.Contains(prompt, "No reference documents") {
		t.Errorf("prompt should flag missing documents:\n%s", prompt)
	}
	if strings.Contains(prompt, "Case type") {
		t.Error("prompt should omit empty context fields")
	}
}
