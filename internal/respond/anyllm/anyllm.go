// Package anyllm provides a respond.Generator backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, Mistral, Groq, and more.
//
// Usage:
//
//	g, err := anyllm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/lexivoice/lexivoice/internal/respond"
)

// Compile-time interface assertion.
var _ respond.Generator = (*Generator)(nil)

const (
	// defaultTemperature keeps answers factual rather than creative.
	defaultTemperature = 0.3

	// defaultMaxTokens bounds answer length.
	defaultMaxTokens = 1024

	// systemPrompt frames the model as an intake assistant, not a lawyer.
	systemPrompt = "You are a legal intake assistant. Answer the caller's question in plain, " +
		"non-technical language based only on the reference documents provided. " +
		"If the documents do not cover the question, say so and suggest the caller " +
		"speak with an attorney. Never present your answer as legal advice. " +
		"Answer in the language requested."
)

// Generator implements respond.Generator by wrapping any-llm-go.
type Generator struct {
	backend     anyllmlib.Provider
	model       string
	temperature float64
	maxTokens   int
}

// Option is a functional option for configuring a Generator.
type Option func(*Generator)

// WithTemperature overrides the sampling temperature. Default 0.3.
func WithTemperature(t float64) Option {
	return func(g *Generator) { g.temperature = t }
}

// WithMaxTokens overrides the answer token budget. Default 1024.
func WithMaxTokens(n int) Option {
	return func(g *Generator) { g.maxTokens = n }
}

// New creates a Generator backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "mistral", "groq". model is the specific model to use (e.g.,
// "gpt-4o-mini", "claude-3-5-sonnet-latest"). opts are lexivoice options;
// llmOpts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey).
// Without an API key option, the provider falls back to the relevant
// environment variable (OPENAI_API_KEY, ANTHROPIC_API_KEY, etc.).
func New(providerName, model string, llmOpts []anyllmlib.Option, opts ...Option) (*Generator, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, llmOpts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	g := &Generator{
		backend:     backend,
		model:       model,
		temperature: defaultTemperature,
		maxTokens:   defaultMaxTokens,
	}
	for _, o := range opts {
		o(g)
	}
	return g, nil
}

// createBackend creates the underlying any-llm-go provider.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, mistral, groq", providerName)
	}
}

// Generate implements [respond.Generator].
func (g *Generator) Generate(ctx context.Context, q respond.Query) (*respond.Response, error) {
	temp := g.temperature
	maxTokens := g.maxTokens

	resp, err := g.backend.Completion(ctx, anyllmlib.CompletionParams{
		Model: g.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt},
			{Role: anyllmlib.RoleUser, Content: BuildPrompt(q)},
		},
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("anyllm: empty choices in response")
	}

	return &respond.Response{
		Text:       resp.Choices[0].Message.ContentString(),
		Confidence: respond.GroundingConfidence(q.Documents),
		Sources:    respond.SourcesOf(q.Documents),
	}, nil
}

// BuildPrompt renders the user message: the question, its intake context,
// and the retrieved reference documents.
func BuildPrompt(q respond.Query) string {
	var b strings.Builder

	if q.CaseType != "" {
		fmt.Fprintf(&b, "Case type: %s\n", q.CaseType)
	}
	if q.Jurisdiction != "" {
		fmt.Fprintf(&b, "Jurisdiction: %s\n", q.Jurisdiction)
	}
	if q.Language != "" {
		fmt.Fprintf(&b, "Answer language: %s\n", q.Language)
	}

	if len(q.Documents) > 0 {
		b.WriteString("\nReference documents:\n")
		for i, d := range q.Documents {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Document.Content)
		}
	} else {
		b.WriteString("\nNo reference documents were found for this question.\n")
	}

	fmt.Fprintf(&b, "\nQuestion: %s", q.Question)
	return b.String()
}
