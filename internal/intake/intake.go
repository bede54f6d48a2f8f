// Package intake runs the end-to-end pipeline behind a single intake
// request: transcribe the caller's audio, correct legal terminology,
// retrieve supporting knowledge, and generate a grounded answer.
package intake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexivoice/lexivoice/internal/observe"
	"github.com/lexivoice/lexivoice/internal/respond"
	"github.com/lexivoice/lexivoice/internal/router"
	"github.com/lexivoice/lexivoice/internal/transcript"
	"github.com/lexivoice/lexivoice/pkg/embeddings"
	"github.com/lexivoice/lexivoice/pkg/knowledge"
	"github.com/lexivoice/lexivoice/pkg/transcribe"
)

const (
	// searchTopK bounds the semantic retrieval leg.
	searchTopK = 5

	// minRelevance drops semantic hits too distant to ground an answer.
	minRelevance = 0.3

	// recentLimit bounds the jurisdiction-recent retrieval leg.
	recentLimit = 3
)

// Context carries the caller-declared facts that scope retrieval. Both
// fields are optional; empty values widen the search.
type Context struct {
	// CaseType is the declared case category, e.g. "eviction".
	CaseType string

	// Jurisdiction is the caller's jurisdiction, e.g. "US-CA".
	Jurisdiction string
}

// Word is one word-level timestamp of the transcription.
type Word struct {
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

// Transcription is the speech-to-text portion of an intake result.
type Transcription struct {
	// Text is the transcript after glossary correction.
	Text string `json:"text"`

	// Language is the language the backend detected.
	Language string `json:"language"`

	// Confidence is the backend's confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Method is the processing method that produced the transcript.
	Method string `json:"method"`

	// Cost is the transcription cost in USD.
	Cost float64 `json:"cost"`

	// FellBack is true when the transcript came from the tolerant retry.
	FellBack bool `json:"fell_back,omitempty"`

	// Words holds word-level timestamps when the backend provides them.
	Words []Word `json:"words,omitempty"`

	// Corrections lists the glossary substitutions applied to the raw
	// transcript.
	Corrections []transcript.Correction `json:"corrections,omitempty"`
}

// Result is the outcome of one intake request.
type Result struct {
	Transcription Transcription    `json:"transcription"`
	Response      respond.Response `json:"response"`
}

// Transcriber routes audio to a speech-to-text backend. *router.Router
// satisfies it.
type Transcriber interface {
	Route(ctx context.Context, data []byte, language string) (*transcribe.Result, router.Decision, error)
}

var _ Transcriber = (*router.Router)(nil)

// Option configures a Service.
type Option func(*Service)

// WithMetrics overrides the metrics sink.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// Service is the intake pipeline. It is safe for concurrent use.
type Service struct {
	transcriber Transcriber
	corrector   *transcript.Corrector
	embedder    embeddings.Provider
	store       knowledge.Store
	generator   respond.Generator
	metrics     *observe.Metrics
}

// New builds a Service. All dependencies are required.
func New(t Transcriber, c *transcript.Corrector, e embeddings.Provider, s knowledge.Store, g respond.Generator, opts ...Option) (*Service, error) {
	if t == nil {
		return nil, errors.New("intake: transcriber must not be nil")
	}
	if c == nil {
		return nil, errors.New("intake: corrector must not be nil")
	}
	if e == nil {
		return nil, errors.New("intake: embedder must not be nil")
	}
	if s == nil {
		return nil, errors.New("intake: store must not be nil")
	}
	if g == nil {
		return nil, errors.New("intake: generator must not be nil")
	}
	svc := &Service{
		transcriber: t,
		corrector:   c,
		embedder:    e,
		store:       s,
		generator:   g,
		metrics:     observe.DefaultMetrics(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// ProcessAudio runs the full pipeline for one recording. Transcription and
// answer-generation failures are returned to the caller; knowledge
// retrieval is best-effort and a retrieval failure degrades the answer to
// general information instead of failing the request.
func (s *Service) ProcessAudio(ctx context.Context, audio []byte, language string, ic Context) (*Result, error) {
	ctx, span := observe.StartSpan(ctx, "intake.ProcessAudio")
	defer span.End()

	s.metrics.ActiveIntakes.Add(ctx, 1)
	defer s.metrics.ActiveIntakes.Add(ctx, -1)

	res, decision, err := s.transcriber.Route(ctx, audio, language)
	if err != nil {
		return nil, err
	}

	corrected := s.corrector.Correct(res.Text)

	docs := s.retrieve(ctx, corrected.Text, ic)

	start := time.Now()
	answer, err := s.generator.Generate(ctx, respond.Query{
		Question:     corrected.Text,
		Language:     res.Language,
		CaseType:     ic.CaseType,
		Jurisdiction: ic.Jurisdiction,
		Documents:    docs,
	})
	s.metrics.ResponseDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	words := make([]Word, 0, len(res.Words))
	for _, w := range res.Words {
		words = append(words, Word{
			Text:    w.Text,
			StartMs: w.Start.Milliseconds(),
			EndMs:   w.End.Milliseconds(),
		})
	}

	return &Result{
		Transcription: Transcription{
			Text:        corrected.Text,
			Language:    res.Language,
			Confidence:  res.Confidence,
			Method:      string(res.Method),
			Cost:        res.Cost,
			FellBack:    decision.FellBack,
			Words:       words,
			Corrections: corrected.Corrections,
		},
		Response: *answer,
	}, nil
}

// retrieve runs the two knowledge legs concurrently: a semantic search over
// the question embedding and a recency scan scoped to the jurisdiction.
// Each leg is best-effort on its own; a failure in one never cancels the
// other, so a surviving leg still contributes its documents. Recent
// documents carry no similarity to the question, so they join the context
// at the minimum relevance rather than inflating grounding confidence.
func (s *Service) retrieve(ctx context.Context, question string, ic Context) []knowledge.SearchResult {
	ctx, span := observe.StartSpan(ctx, "intake.retrieve")
	defer span.End()

	start := time.Now()
	defer func() {
		s.metrics.RetrievalDuration.Record(ctx, time.Since(start).Seconds())
	}()

	var (
		semantic []knowledge.SearchResult
		recent   []knowledge.Document
	)

	var g errgroup.Group
	g.Go(func() error {
		embedding, err := s.embedder.Embed(ctx, question)
		if err != nil {
			return fmt.Errorf("embed question: %w", err)
		}
		results, err := s.store.Search(ctx, embedding, searchTopK, knowledge.Filter{
			Jurisdiction: ic.Jurisdiction,
			LegalDomain:  ic.CaseType,
		})
		if err != nil {
			return fmt.Errorf("semantic search: %w", err)
		}
		for _, r := range results {
			if r.Relevance() >= minRelevance {
				semantic = append(semantic, r)
			}
		}
		return nil
	})
	g.Go(func() error {
		docs, err := s.store.Recent(ctx, recentLimit, knowledge.Filter{
			Jurisdiction: ic.Jurisdiction,
		})
		if err != nil {
			return fmt.Errorf("recent documents: %w", err)
		}
		recent = docs
		return nil
	})
	if err := g.Wait(); err != nil {
		observe.Logger(ctx).WarnContext(ctx, "knowledge retrieval degraded",
			"error", err)
	}

	seen := make(map[string]struct{}, len(semantic))
	for _, r := range semantic {
		seen[r.Document.ID] = struct{}{}
	}
	docs := semantic
	for _, d := range recent {
		if _, ok := seen[d.ID]; ok {
			continue
		}
		docs = append(docs, knowledge.SearchResult{
			Document: d,
			Distance: 1 - minRelevance,
		})
	}
	return docs
}
