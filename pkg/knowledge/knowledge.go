// Package knowledge defines the legal knowledge base used to ground intake
// responses.
//
// Documents are statutes, procedural guides, and FAQ-style explainers, each
// tagged with the jurisdiction, legal domain, and language they apply to and
// stored alongside an embedding vector. [Store] is the retrieval
// abstraction; the postgres subpackage provides the production
// implementation.
package knowledge

import (
	"context"
	"time"
)

// Document is one entry in the legal knowledge base.
type Document struct {
	// ID uniquely identifies the document.
	ID string

	// Content is the document text that gets embedded and retrieved.
	Content string

	// Jurisdiction is the legal jurisdiction the document applies to,
	// e.g. "US-CA" or "DE". Empty means jurisdiction-neutral.
	Jurisdiction string

	// LegalDomain is the area of law, e.g. "housing", "immigration",
	// "employment", "family".
	LegalDomain string

	// Language is the document's language code, e.g. "en", "es".
	Language string

	// Embedding is the document's vector. Its length must match the
	// dimensionality the store was created with.
	Embedding []float32

	// CreatedAt is when the document was indexed.
	CreatedAt time.Time
}

// Filter narrows searches to matching documents. Zero-value fields are
// ignored.
type Filter struct {
	Jurisdiction string
	LegalDomain  string
	Language     string
}

// SearchResult pairs a document with its similarity to the query.
type SearchResult struct {
	Document Document

	// Distance is the cosine distance to the query embedding. Lower is
	// more similar.
	Distance float64
}

// Relevance maps the cosine distance onto [0, 1], higher meaning more
// relevant.
func (r SearchResult) Relevance() float64 {
	return 1 - r.Distance
}

// Store is the knowledge-base abstraction.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Index upserts a pre-embedded document. An existing document with the
	// same ID is replaced.
	Index(ctx context.Context, doc Document) error

	// Search returns the topK documents closest to the query embedding,
	// most similar first, restricted by filter.
	Search(ctx context.Context, embedding []float32, topK int, filter Filter) ([]SearchResult, error)

	// Recent returns up to limit of the most recently indexed documents
	// matching filter, newest first. Embeddings are not populated.
	Recent(ctx context.Context, limit int, filter Filter) ([]Document, error)
}
