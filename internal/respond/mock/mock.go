// Package mock provides a test double for the respond.Generator interface.
package mock

import (
	"context"
	"sync"

	"github.com/lexivoice/lexivoice/internal/respond"
)

// Generator is a mock implementation of respond.Generator.
type Generator struct {
	mu sync.Mutex

	// Response is returned from Generate on success.
	Response *respond.Response

	// Err, if non-nil, is returned as the error from Generate.
	Err error

	// Calls records every query passed to Generate.
	Calls []respond.Query
}

// Compile-time interface assertion.
var _ respond.Generator = (*Generator)(nil)

// Generate records the call and returns the configured outcome.
func (g *Generator) Generate(ctx context.Context, q respond.Query) (*respond.Response, error) {
	g.mu.Lock()
	g.Calls = append(g.Calls, q)
	res, err := g.Response, g.Err
	g.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if res == nil {
		return &respond.Response{Text: "mock answer", Confidence: 0.8}, nil
	}
	cp := *res
	return &cp, nil
}

// CallCount returns the number of recorded calls. Thread-safe.
func (g *Generator) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.Calls)
}
