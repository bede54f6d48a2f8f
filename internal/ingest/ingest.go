// Package ingest loads legal documents into the knowledge base.
//
// Documents arrive as YAML files, are embedded in batches through the
// configured provider, and are upserted into the store keyed by document ID,
// so re-running an ingest refreshes existing entries instead of duplicating
// them.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lexivoice/lexivoice/internal/observe"
	"github.com/lexivoice/lexivoice/pkg/embeddings"
	"github.com/lexivoice/lexivoice/pkg/knowledge"
)

// defaultBatchSize keeps embedding requests comfortably under the API's
// input limits while amortising the per-request overhead.
const defaultBatchSize = 64

// Document is the on-disk shape of one knowledge-base entry. Only content
// is required; the remaining fields default the way the store expects.
type Document struct {
	ID           string `yaml:"id"`
	Content      string `yaml:"content"`
	Jurisdiction string `yaml:"jurisdiction"`
	LegalDomain  string `yaml:"legal_domain"`
	Language     string `yaml:"language"`
}

// file is the top-level YAML layout of an ingest file.
type file struct {
	Documents []Document `yaml:"documents"`
}

// LoadFile reads documents from a YAML file. Unknown fields are rejected so
// a typoed key fails loudly instead of silently dropping metadata.
func LoadFile(path string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	docs, err := load(f)
	if err != nil {
		return nil, fmt.Errorf("ingest: %s: %w", path, err)
	}
	return docs, nil
}

func load(r io.Reader) ([]Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc file
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if len(doc.Documents) == 0 {
		return nil, fmt.Errorf("no documents found")
	}
	for i, d := range doc.Documents {
		if strings.TrimSpace(d.Content) == "" {
			return nil, fmt.Errorf("document %d: content must not be empty", i)
		}
	}
	return doc.Documents, nil
}

// Ingestor embeds documents and writes them to the knowledge store.
type Ingestor struct {
	embedder  embeddings.Provider
	store     knowledge.Store
	batchSize int
}

// Option is a functional option for [New].
type Option func(*Ingestor)

// WithBatchSize overrides the number of documents embedded per request.
func WithBatchSize(n int) Option {
	return func(ing *Ingestor) { ing.batchSize = n }
}

// New constructs an Ingestor.
func New(embedder embeddings.Provider, store knowledge.Store, opts ...Option) (*Ingestor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingest: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingest: store must not be nil")
	}
	ing := &Ingestor{
		embedder:  embedder,
		store:     store,
		batchSize: defaultBatchSize,
	}
	for _, o := range opts {
		o(ing)
	}
	if ing.batchSize < 1 {
		return nil, fmt.Errorf("ingest: batch size %d must be positive", ing.batchSize)
	}
	return ing, nil
}

// Run embeds and indexes all documents, returning the number stored. The
// whole run shares one embedding model, so a partial failure aborts rather
// than leaving the index split across vector spaces.
func (ing *Ingestor) Run(ctx context.Context, docs []Document) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	log := observe.Logger(ctx)
	log.InfoContext(ctx, "ingest starting",
		"documents", len(docs),
		"model", ing.embedder.ModelID(),
		"batch_size", ing.batchSize,
	)

	stored := 0
	for start := 0; start < len(docs); start += ing.batchSize {
		end := min(start+ing.batchSize, len(docs))
		batch := docs[start:end]

		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}

		vectors, err := ing.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return stored, fmt.Errorf("ingest: embed batch at %d: %w", start, err)
		}
		if len(vectors) != len(batch) {
			return stored, fmt.Errorf("ingest: embed batch at %d: got %d vectors for %d documents", start, len(vectors), len(batch))
		}

		for i, d := range batch {
			if want := ing.embedder.Dimensions(); want > 0 && len(vectors[i]) != want {
				return stored, fmt.Errorf("ingest: document %q: embedding has %d dimensions, provider reports %d", docID(d), len(vectors[i]), want)
			}
			if err := ing.store.Index(ctx, toKnowledge(d, vectors[i])); err != nil {
				return stored, fmt.Errorf("ingest: index %q: %w", docID(d), err)
			}
			stored++
		}
		log.DebugContext(ctx, "ingest batch stored", "from", start, "to", end)
	}

	log.InfoContext(ctx, "ingest complete", "stored", stored)
	return stored, nil
}

// toKnowledge converts a file entry to a store document, filling the same
// defaults the retrieval side assumes for untagged material.
func toKnowledge(d Document, vector []float32) knowledge.Document {
	doc := knowledge.Document{
		ID:           docID(d),
		Content:      d.Content,
		Jurisdiction: d.Jurisdiction,
		LegalDomain:  d.LegalDomain,
		Language:     d.Language,
		Embedding:    vector,
	}
	if doc.Jurisdiction == "" {
		doc.Jurisdiction = "federal"
	}
	if doc.LegalDomain == "" {
		doc.LegalDomain = "general"
	}
	if doc.Language == "" {
		doc.Language = "en"
	}
	return doc
}

// docID returns the declared ID, or a stable content-derived one so that
// re-ingesting an unchanged file upserts instead of inserting duplicates.
func docID(d Document) string {
	if d.ID != "" {
		return d.ID
	}
	sum := sha256.Sum256([]byte(d.Content))
	return "doc-" + hex.EncodeToString(sum[:8])
}
