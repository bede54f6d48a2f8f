// Package respond turns a corrected intake transcript plus retrieved legal
// documents into a grounded plain-language answer.
//
// [Generator] is the abstraction; the anyllm subpackage provides the
// production implementation over github.com/mozilla-ai/any-llm-go.
package respond

import (
	"context"

	"github.com/lexivoice/lexivoice/pkg/knowledge"
)

// Query is one answer-generation request.
type Query struct {
	// Question is the corrected transcript of what the caller asked.
	Question string

	// Language is the language code the answer should be written in.
	Language string

	// CaseType is the caller-declared case category, e.g. "eviction".
	CaseType string

	// Jurisdiction is the caller's jurisdiction, e.g. "US-CA".
	Jurisdiction string

	// Documents are the retrieved knowledge-base entries to ground the
	// answer on, most relevant first.
	Documents []knowledge.SearchResult
}

// Source identifies a knowledge-base document the answer drew on.
type Source struct {
	// DocumentID is the knowledge-base document ID.
	DocumentID string `json:"document_id"`

	// Relevance is the document's similarity to the question in [0, 1].
	Relevance float64 `json:"relevance"`
}

// Response is a generated answer.
type Response struct {
	// Text is the plain-language answer.
	Text string `json:"text"`

	// Confidence estimates how well the answer is grounded, in [0, 1].
	// It reflects retrieval quality, not the model's own certainty.
	Confidence float64 `json:"confidence"`

	// Sources lists the documents the answer was grounded on.
	Sources []Source `json:"sources"`
}

// Generator produces grounded answers.
//
// Implementations must be safe for concurrent use.
type Generator interface {
	Generate(ctx context.Context, q Query) (*Response, error)
}

// GroundingConfidence estimates answer grounding from the retrieved
// documents: the mean relevance of the supplied results, or a low floor when
// retrieval found nothing and the answer can only be general information.
func GroundingConfidence(docs []knowledge.SearchResult) float64 {
	if len(docs) == 0 {
		return 0.3
	}
	var sum float64
	for _, d := range docs {
		sum += d.Relevance()
	}
	conf := sum / float64(len(docs))
	if conf < 0 {
		conf = 0
	}
	if conf > 1 {
		conf = 1
	}
	return conf
}

// SourcesOf lists the Source entries for the retrieved documents.
func SourcesOf(docs []knowledge.SearchResult) []Source {
	if len(docs) == 0 {
		return nil
	}
	sources := make([]Source, 0, len(docs))
	for _, d := range docs {
		sources = append(sources, Source{
			DocumentID: d.Document.ID,
			Relevance:  d.Relevance(),
		})
	}
	return sources
}
