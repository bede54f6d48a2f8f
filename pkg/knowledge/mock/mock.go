// Package mock provides a test double for the knowledge.Store interface.
package mock

import (
	"context"
	"sync"

	"github.com/lexivoice/lexivoice/pkg/knowledge"
)

// SearchCall records a single invocation of Store.Search.
type SearchCall struct {
	Embedding []float32
	TopK      int
	Filter    knowledge.Filter
}

// RecentCall records a single invocation of Store.Recent.
type RecentCall struct {
	Limit  int
	Filter knowledge.Filter
}

// Store is a mock implementation of knowledge.Store.
type Store struct {
	mu sync.Mutex

	// SearchResults is returned by Search.
	SearchResults []knowledge.SearchResult

	// SearchErr, if non-nil, is returned as the error from Search.
	SearchErr error

	// RecentDocs is returned by Recent.
	RecentDocs []knowledge.Document

	// RecentErr, if non-nil, is returned as the error from Recent.
	RecentErr error

	// IndexErr, if non-nil, is returned as the error from Index.
	IndexErr error

	// Indexed records every document passed to Index.
	Indexed []knowledge.Document

	// SearchCalls records every call to Search.
	SearchCalls []SearchCall

	// RecentCalls records every call to Recent.
	RecentCalls []RecentCall
}

// Compile-time interface assertion.
var _ knowledge.Store = (*Store)(nil)

// Index records the document and returns IndexErr.
func (s *Store) Index(ctx context.Context, doc knowledge.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Indexed = append(s.Indexed, doc)
	return s.IndexErr
}

// Search records the call and returns SearchResults, SearchErr.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, filter knowledge.Filter) ([]knowledge.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]float32, len(embedding))
	copy(cp, embedding)
	s.SearchCalls = append(s.SearchCalls, SearchCall{Embedding: cp, TopK: topK, Filter: filter})
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	return s.SearchResults, nil
}

// Recent records the call and returns RecentDocs, RecentErr.
func (s *Store) Recent(ctx context.Context, limit int, filter knowledge.Filter) ([]knowledge.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.RecentCalls = append(s.RecentCalls, RecentCall{Limit: limit, Filter: filter})
	if s.RecentErr != nil {
		return nil, s.RecentErr
	}
	return s.RecentDocs, nil
}

// Reset clears all recorded calls. Thread-safe.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Indexed = nil
	s.SearchCalls = nil
	s.RecentCalls = nil
}
