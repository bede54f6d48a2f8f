// Package postgres provides a PostgreSQL-backed implementation of the legal
// knowledge base.
//
// Documents live in a single table with a pgvector HNSW index for fast
// approximate nearest-neighbour search. The pgvector extension must be
// available in the target database; [Migrate] installs it automatically via
// CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//	defer store.Close()
//
//	_ = store.Index(ctx, doc)
//	results, _ := store.Search(ctx, queryVec, 5, knowledge.Filter{LegalDomain: "housing"})
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/lexivoice/lexivoice/pkg/knowledge"
)

// Compile-time interface check.
var _ knowledge.Store = (*Store)(nil)

// Store is the PostgreSQL-backed knowledge base. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure the schema exists.
//
// embeddingDimensions must match the output dimension of the embedding model
// used to produce [knowledge.Document.Embedding] values (e.g., 1536 for
// OpenAI text-embedding-3-small). Changing this value after the first
// migration requires a manual schema change.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("knowledge store: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so vector columns can
	// be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("knowledge store: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("knowledge store: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("knowledge store: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// ddlDocuments returns the DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddlDocuments(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS legal_documents (
    id            TEXT         PRIMARY KEY,
    content       TEXT         NOT NULL,
    jurisdiction  TEXT         NOT NULL DEFAULT '',
    legal_domain  TEXT         NOT NULL DEFAULT '',
    language      TEXT         NOT NULL DEFAULT '',
    embedding     vector(%d),
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_legal_documents_jurisdiction
    ON legal_documents (jurisdiction);

CREATE INDEX IF NOT EXISTS idx_legal_documents_domain
    ON legal_documents (legal_domain);

CREATE INDEX IF NOT EXISTS idx_legal_documents_created_at
    ON legal_documents (created_at);

CREATE INDEX IF NOT EXISTS idx_legal_documents_embedding
    ON legal_documents USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures the documents table and extensions exist. It is
// idempotent and safe to call on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddlDocuments(embeddingDimensions)); err != nil {
		return fmt.Errorf("knowledge migrate: %w", err)
	}
	return nil
}

// Index implements [knowledge.Store]. It upserts a pre-embedded document;
// an existing document with the same ID is completely replaced.
func (s *Store) Index(ctx context.Context, doc knowledge.Document) error {
	const q = `
		INSERT INTO legal_documents
		    (id, content, jurisdiction, legal_domain, language, embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		ON CONFLICT (id) DO UPDATE SET
		    content      = EXCLUDED.content,
		    jurisdiction = EXCLUDED.jurisdiction,
		    legal_domain = EXCLUDED.legal_domain,
		    language     = EXCLUDED.language,
		    embedding    = EXCLUDED.embedding,
		    created_at   = EXCLUDED.created_at`

	var createdAt any
	if !doc.CreatedAt.IsZero() {
		createdAt = doc.CreatedAt
	}
	_, err := s.pool.Exec(ctx, q,
		doc.ID,
		doc.Content,
		doc.Jurisdiction,
		doc.LegalDomain,
		doc.Language,
		pgvector.NewVector(doc.Embedding),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("knowledge store: index document: %w", err)
	}
	return nil
}

// Search implements [knowledge.Store]. It finds the topK documents whose
// embeddings are closest (cosine distance) to the query embedding, filtered
// by filter, ordered most similar first.
func (s *Store) Search(ctx context.Context, embedding []float32, topK int, filter knowledge.Filter) ([]knowledge.SearchResult, error) {
	args := []any{pgvector.NewVector(embedding)} // $1 = query vector
	where := filterClause(filter, &args)

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, content, jurisdiction, legal_domain, language, embedding, created_at,
		       embedding <=> $1 AS distance
		FROM   legal_documents
		%s
		ORDER  BY distance
		LIMIT  %s`, where, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge store: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.SearchResult, error) {
		var (
			sr  knowledge.SearchResult
			vec pgvector.Vector
		)
		if err := row.Scan(
			&sr.Document.ID,
			&sr.Document.Content,
			&sr.Document.Jurisdiction,
			&sr.Document.LegalDomain,
			&sr.Document.Language,
			&vec,
			&sr.Document.CreatedAt,
			&sr.Distance,
		); err != nil {
			return knowledge.SearchResult{}, err
		}
		sr.Document.Embedding = vec.Slice()
		return sr, nil
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge store: scan rows: %w", err)
	}
	if results == nil {
		results = []knowledge.SearchResult{}
	}
	return results, nil
}

// Recent implements [knowledge.Store]. Embeddings are not fetched.
func (s *Store) Recent(ctx context.Context, limit int, filter knowledge.Filter) ([]knowledge.Document, error) {
	var args []any
	where := filterClause(filter, &args)

	args = append(args, limit)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, content, jurisdiction, legal_domain, language, created_at
		FROM   legal_documents
		%s
		ORDER  BY created_at DESC
		LIMIT  %s`, where, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("knowledge store: recent: %w", err)
	}

	docs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (knowledge.Document, error) {
		var d knowledge.Document
		err := row.Scan(&d.ID, &d.Content, &d.Jurisdiction, &d.LegalDomain, &d.Language, &d.CreatedAt)
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge store: scan rows: %w", err)
	}
	if docs == nil {
		docs = []knowledge.Document{}
	}
	return docs, nil
}

// Ping checks database connectivity, for readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases all connections held by the underlying pool. Call it when
// the Store is no longer needed, typically via defer.
func (s *Store) Close() {
	s.pool.Close()
}

// filterClause builds a WHERE clause from filter, appending bind values to
// args. Returns the empty string when no fields are set.
func filterClause(filter knowledge.Filter, args *[]any) string {
	next := func(v any) string {
		*args = append(*args, v)
		return fmt.Sprintf("$%d", len(*args))
	}

	var conditions []string
	if filter.Jurisdiction != "" {
		conditions = append(conditions, "jurisdiction = "+next(filter.Jurisdiction))
	}
	if filter.LegalDomain != "" {
		conditions = append(conditions, "legal_domain = "+next(filter.LegalDomain))
	}
	if filter.Language != "" {
		conditions = append(conditions, "language = "+next(filter.Language))
	}
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, "\n  AND ")
}
