package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	embmock "github.com/lexivoice/lexivoice/pkg/embeddings/mock"
	kbmock "github.com/lexivoice/lexivoice/pkg/knowledge/mock"
)

const sampleDocsYAML = `documents:
  - id: tenant-rights-ny
    content: "Tenants in New York may withhold rent when essential services fail."
    jurisdiction: new-york
    legal_domain: housing
    language: en
  - content: "Un contrato verbal puede ser vinculante en ciertas circunstancias."
    language: es
`

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.yaml")
	if err := os.WriteFile(path, []byte(sampleDocsYAML), 0o600); err != nil {
		t.Fatal(err)
	}

	docs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "tenant-rights-ny" || docs[0].Jurisdiction != "new-york" {
		t.Errorf("first document not parsed: %+v", docs[0])
	}
	if docs[1].Language != "es" {
		t.Errorf("second document language = %q, want es", docs[1].Language)
	}
}

func TestLoadFile_Missing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "documents:\n  - content: x\n    juriction: typo\n"},
		{"empty content", "documents:\n  - content: \"   \"\n"},
		{"no documents", "documents: []\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := load(strings.NewReader(tt.yaml)); err == nil {
				t.Errorf("expected error for %s", tt.name)
			}
		})
	}
}

func TestRun_EmbedsAndIndexes(t *testing.T) {
	embedder := &embmock.Provider{
		EmbedBatchResult: [][]float32{{1, 2, 3}, {4, 5, 6}},
		DimensionsValue:  3,
		ModelIDValue:     "text-embedding-3-small",
	}
	store := &kbmock.Store{}
	ing, err := New(embedder, store)
	if err != nil {
		t.Fatal(err)
	}

	docs := []Document{
		{ID: "statute-1", Content: "first statute", Jurisdiction: "california", LegalDomain: "family", Language: "en"},
		{Content: "second statute"},
	}
	stored, err := ing.Run(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 2 {
		t.Fatalf("stored = %d, want 2", stored)
	}
	if len(embedder.EmbedBatchCalls) != 1 || len(embedder.EmbedBatchCalls[0]) != 2 {
		t.Fatalf("expected one batch of 2 texts, got %v", embedder.EmbedBatchCalls)
	}
	if len(store.Indexed) != 2 {
		t.Fatalf("indexed = %d documents, want 2", len(store.Indexed))
	}

	first := store.Indexed[0]
	if first.ID != "statute-1" || first.Jurisdiction != "california" {
		t.Errorf("first indexed document = %+v", first)
	}
	if len(first.Embedding) != 3 || first.Embedding[0] != 1 {
		t.Errorf("first embedding = %v", first.Embedding)
	}

	second := store.Indexed[1]
	if !strings.HasPrefix(second.ID, "doc-") {
		t.Errorf("expected derived ID for unnamed document, got %q", second.ID)
	}
	if second.Jurisdiction != "federal" || second.LegalDomain != "general" || second.Language != "en" {
		t.Errorf("defaults not applied: %+v", second)
	}
}

func TestRun_SplitsBatches(t *testing.T) {
	embedder := &embmock.Provider{}
	store := &kbmock.Store{}
	ing, err := New(embedder, store, WithBatchSize(2))
	if err != nil {
		t.Fatal(err)
	}

	docs := []Document{
		{Content: "one"}, {Content: "two"}, {Content: "three"},
	}
	stored, err := ing.Run(context.Background(), docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored != 3 {
		t.Fatalf("stored = %d, want 3", stored)
	}
	if len(embedder.EmbedBatchCalls) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(embedder.EmbedBatchCalls))
	}
	if len(embedder.EmbedBatchCalls[0]) != 2 || len(embedder.EmbedBatchCalls[1]) != 1 {
		t.Errorf("batch sizes = %d, %d; want 2, 1",
			len(embedder.EmbedBatchCalls[0]), len(embedder.EmbedBatchCalls[1]))
	}
}

func TestRun_DimensionMismatch(t *testing.T) {
	embedder := &embmock.Provider{
		EmbedBatchResult: [][]float32{{1, 2, 3}},
		DimensionsValue:  4,
	}
	store := &kbmock.Store{}
	ing, err := New(embedder, store)
	if err != nil {
		t.Fatal(err)
	}

	stored, err := ing.Run(context.Background(), []Document{{Content: "misfit"}})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
	if stored != 0 || len(store.Indexed) != 0 {
		t.Errorf("nothing should be stored on mismatch, got %d", len(store.Indexed))
	}
}

func TestRun_ErrorsPropagate(t *testing.T) {
	embedErr := errors.New("model offline")
	embedder := &embmock.Provider{EmbedBatchErr: embedErr}
	ing, err := New(embedder, &kbmock.Store{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ing.Run(context.Background(), []Document{{Content: "x"}}); !errors.Is(err, embedErr) {
		t.Errorf("expected embed error, got %v", err)
	}

	indexErr := errors.New("connection reset")
	ing, err = New(&embmock.Provider{}, &kbmock.Store{IndexErr: indexErr})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ing.Run(context.Background(), []Document{{Content: "x"}}); !errors.Is(err, indexErr) {
		t.Errorf("expected index error, got %v", err)
	}
}

func TestRun_EmptyInput(t *testing.T) {
	embedder := &embmock.Provider{}
	ing, err := New(embedder, &kbmock.Store{})
	if err != nil {
		t.Fatal(err)
	}
	stored, err := ing.Run(context.Background(), nil)
	if err != nil || stored != 0 {
		t.Errorf("empty input: stored = %d, err = %v", stored, err)
	}
	if len(embedder.EmbedBatchCalls) != 0 {
		t.Error("no embedding calls expected for empty input")
	}
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, &kbmock.Store{}); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := New(&embmock.Provider{}, nil); err == nil {
		t.Error("expected error for nil store")
	}
	if _, err := New(&embmock.Provider{}, &kbmock.Store{}, WithBatchSize(0)); err == nil {
		t.Error("expected error for zero batch size")
	}
}

func TestDocIDStable(t *testing.T) {
	a := docID(Document{Content: "same text"})
	b := docID(Document{Content: "same text"})
	if a != b {
		t.Errorf("derived IDs differ: %q vs %q", a, b)
	}
	if c := docID(Document{Content: "other text"}); c == a {
		t.Error("distinct content produced the same ID")
	}
}
