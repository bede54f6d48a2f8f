// Command lexivoice is the main entry point for the LexiVoice intake server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/lexivoice/lexivoice/internal/config"
	"github.com/lexivoice/lexivoice/internal/health"
	"github.com/lexivoice/lexivoice/internal/intake"
	"github.com/lexivoice/lexivoice/internal/observe"
	"github.com/lexivoice/lexivoice/internal/resilience"
	"github.com/lexivoice/lexivoice/internal/respond"
	"github.com/lexivoice/lexivoice/internal/respond/anyllm"
	"github.com/lexivoice/lexivoice/internal/router"
	"github.com/lexivoice/lexivoice/internal/server"
	"github.com/lexivoice/lexivoice/internal/transcript"
	"github.com/lexivoice/lexivoice/pkg/audio"
	"github.com/lexivoice/lexivoice/pkg/audio/quality"
	"github.com/lexivoice/lexivoice/pkg/embeddings"
	oaembed "github.com/lexivoice/lexivoice/pkg/embeddings/openai"
	"github.com/lexivoice/lexivoice/pkg/knowledge/postgres"
	"github.com/lexivoice/lexivoice/pkg/transcribe"
	"github.com/lexivoice/lexivoice/pkg/transcribe/flamingo"
	"github.com/lexivoice/lexivoice/pkg/transcribe/hybrid"
	"github.com/lexivoice/lexivoice/pkg/transcribe/whisperapi"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lexivoice: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lexivoice: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("lexivoice starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Transcription backends ────────────────────────────────────────────────
	decoder := audio.WAVDecoder{}

	accurate, tolerant, err := buildBackends(cfg, decoder)
	if err != nil {
		slog.Error("failed to build transcription backends", "err", err)
		return 1
	}

	breakerCfg := cfg.Resilience
	guardedAccurate := resilience.Guard(accurate, resilience.BreakerConfig{
		Name:      "whisperapi",
		Threshold: breakerCfg.FailureThreshold,
		Cooldown:  breakerCfg.Cooldown.Std(),
		Probes:    breakerCfg.Probes,
	})
	guardedTolerant := resilience.Guard(tolerant, resilience.BreakerConfig{
		Name:      "flamingo",
		Threshold: breakerCfg.FailureThreshold,
		Cooldown:  breakerCfg.Cooldown.Std(),
		Probes:    breakerCfg.Probes,
	})

	backends := map[transcribe.Method]transcribe.Backend{
		transcribe.MethodAccurate: guardedAccurate,
		transcribe.MethodTolerant: guardedTolerant,
		transcribe.MethodHybrid:   hybrid.New(guardedAccurate, guardedTolerant),
	}

	rtr, err := router.New(quality.NewAnalyzer(decoder), backends, router.Config{
		CostOptimization: cfg.Routing.CostOptimization,
		FallbackEnabled:  cfg.Routing.FallbackEnabled,
		QualityThreshold: cfg.Routing.QualityThreshold,
	})
	if err != nil {
		slog.Error("failed to build router", "err", err)
		return 1
	}

	// ── Knowledge base ────────────────────────────────────────────────────────
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

	// ── Responder ─────────────────────────────────────────────────────────────
	generator, err := buildResponder(cfg)
	if err != nil {
		slog.Error("failed to build responder", "err", err)
		return 1
	}

	// ── Intake pipeline ───────────────────────────────────────────────────────
	corrector := transcript.NewCorrector(cfg.Glossary)

	svc, err := intake.New(rtr, corrector, embedder, store, generator)
	if err != nil {
		slog.Error("failed to build intake pipeline", "err", err)
		return 1
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	healthHandler := health.New(
		health.Database(store),
		health.Backend("whisperapi", guardedAccurate),
		health.Backend("flamingo", guardedTolerant),
	)

	var serverOpts []server.Option
	if cfg.Server.MaxUploadBytes > 0 {
		serverOpts = append(serverOpts, server.WithMaxUploadBytes(cfg.Server.MaxUploadBytes))
	}
	srv, err := server.New(svc, healthHandler, serverOpts...)
	if err != nil {
		slog.Error("failed to build server", "err", err)
		return 1
	}

	addr := cfg.Server.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	printStartupSummary(cfg, addr)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if cfg.Server.TLS != nil {
			err = httpSrv.ListenAndServeTLS(cfg.Server.TLS.CertFile, cfg.Server.TLS.KeyFile)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("server ready — press Ctrl+C to shut down", "addr", addr)

	select {
	case err := <-errCh:
		slog.Error("server error", "err", err)
		return 1
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Component wiring ──────────────────────────────────────────────────────────

// buildBackends constructs the two speech-to-text adapters from config.
func buildBackends(cfg *config.Config, dec audio.Decoder) (accurate, tolerant transcribe.Backend, err error) {
	var whisperOpts []whisperapi.Option
	if cfg.Backends.WhisperAPI.Model != "" {
		whisperOpts = append(whisperOpts, whisperapi.WithModel(cfg.Backends.WhisperAPI.Model))
	}
	whisperURL := cfg.Backends.WhisperAPI.BaseURL
	if whisperURL == "" {
		whisperURL = "https://api.openai.com"
	}
	accurate, err = whisperapi.New(whisperURL, cfg.Backends.WhisperAPI.APIKey, whisperOpts...)
	if err != nil {
		return nil, nil, fmt.Errorf("whisperapi: %w", err)
	}

	tolerant, err = flamingo.New(cfg.Backends.Flamingo.BaseURL, cfg.Backends.Flamingo.APIKey, dec)
	if err != nil {
		return nil, nil, fmt.Errorf("flamingo: %w", err)
	}
	return accurate, tolerant, nil
}

// buildEmbedder constructs the embeddings provider from config. Only the
// openai provider ships today.
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
	// Keep query vectors the same width as the knowledge base's vector column.
	if dims := cfg.Knowledge.EmbeddingDimensions; dims > 0 {
		opts = append(opts, oaembed.WithDimensions(dims))
	}
	return oaembed.New(cfg.Embeddings.APIKey, cfg.Embeddings.Model, opts...)
}

// buildResponder constructs the answer generator from config.
func buildResponder(cfg *config.Config) (respond.Generator, error) {
	var llmOpts []anyllmlib.Option
	if cfg.Responder.APIKey != "" {
		llmOpts = append(llmOpts, anyllmlib.WithAPIKey(cfg.Responder.APIKey))
	}
	if cfg.Responder.BaseURL != "" {
		llmOpts = append(llmOpts, anyllmlib.WithBaseURL(cfg.Responder.BaseURL))
	}

	var opts []anyllm.Option
	if cfg.Responder.Temperature != nil {
		opts = append(opts, anyllm.WithTemperature(*cfg.Responder.Temperature))
	}
	if cfg.Responder.MaxTokens > 0 {
		opts = append(opts, anyllm.WithMaxTokens(cfg.Responder.MaxTokens))
	}
	return anyllm.New(cfg.Responder.Provider, cfg.Responder.Model, llmOpts, opts...)
}

// printStartupSummary logs an operator-friendly overview of what is enabled.
func printStartupSummary(cfg *config.Config, addr string) {
	slog.Info("routing policy",
		"cost_optimization", cfg.Routing.CostOptimization,
		"fallback_enabled", cfg.Routing.FallbackEnabled,
		"quality_threshold", cfg.Routing.QualityThreshold,
	)
	slog.Info("responder", "provider", cfg.Responder.Provider, "model", cfg.Responder.Model)
	slog.Info("glossary", "terms", len(cfg.Glossary))
	if cfg.Server.TLS != nil {
		slog.Info("tls enabled", "cert", cfg.Server.TLS.CertFile)
	}
	slog.Info("listening", "addr", addr)
}

// newLogger builds the process-wide slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
