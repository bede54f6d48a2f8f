// Command lexivoice-ingest loads legal documents into the knowledge base.
//
// It reads a YAML document file, embeds the contents with the same provider
// the intake server queries with, and upserts the results into Postgres.
// Run it once to seed a fresh database and again whenever the corpus
// changes.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lexivoice/lexivoice/internal/config"
	"github.com/lexivoice/lexivoice/internal/ingest"
	"github.com/lexivoice/lexivoice/pkg/embeddings"
	oaembed "github.com/lexivoice/lexivoice/pkg/embeddings/openai"
	"github.com/lexivoice/lexivoice/pkg/knowledge/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	docsPath := flag.String("file", "", "path to the YAML document file to ingest")
	batchSize := flag.Int("batch-size", 0, "documents per embedding request (0 uses the default)")
	flag.Parse()

	if *docsPath == "" {
		fmt.Fprintln(os.Stderr, "lexivoice-ingest: -file is required")
		flag.Usage()
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lexivoice-ingest: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lexivoice-ingest: %v\n", err)
		}
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	docs, err := ingest.LoadFile(*docsPath)
	if err != nil {
		slog.Error("failed to load document file", "err", err)
		return 1
	}

	dims := cfg.Knowledge.EmbeddingDimensions
	if dims == 0 {
		dims = 1536 // matches OpenAI text-embedding-3-small
	}
	store, err := postgres.NewStore(ctx, cfg.Knowledge.PostgresDSN, dims)
	if err != nil {
		slog.Error("failed to connect to the knowledge base", "err", err)
		return 1
	}
	defer store.Close()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		slog.Error("failed to build embeddings provider", "err", err)
		return 1
	}

	var opts []ingest.Option
	if *batchSize > 0 {
		opts = append(opts, ingest.WithBatchSize(*batchSize))
	}
	ing, err := ingest.New(embedder, store, opts...)
	if err != nil {
		slog.Error("failed to build ingestor", "err", err)
		return 1
	}

	stored, err := ing.Run(ctx, docs)
	if err != nil {
		slog.Error("ingest failed", "stored", stored, "err", err)
		return 1
	}
	slog.Info("ingest finished", "stored", stored, "file", *docsPath)
	return 0
}

// buildEmbedder constructs the embeddings provider from config, matching
// vector width to the knowledge base's column.
func buildEmbedder(cfg *config.Config) (embeddings.Provider, error) {
	provider := cfg.Embeddings.Provider
	if provider == "" {
		provider = "openai"
	}
	if provider != "openai" {
		return nil, fmt.Errorf("unknown embeddings provider %q", provider)
	}

	var opts []oaembed.Option
	if cfg.Embeddings.BaseURL != "" {
		opts = append(opts, oaembed.WithBaseURL(cfg.Embeddings.BaseURL))
	}
	if dims := cfg.Knowledge.EmbeddingDimensions; dims > 0 {
		opts = append(opts, oaembed.WithDimensions(dims))
	}
	return oaembed.New(cfg.Embeddings.APIKey, cfg.Embeddings.Model, opts...)
}
