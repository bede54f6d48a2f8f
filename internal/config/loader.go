package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"embeddings": {"openai"},
	"responder":  {"openai", "anthropic", "gemini", "ollama", "mistral", "groq"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.MaxUploadBytes < 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_bytes %d must not be negative", cfg.Server.MaxUploadBytes))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when TLS is enabled"))
		}
		if cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when TLS is enabled"))
		}
	}

	// Routing
	if cfg.Routing.QualityThreshold < 0 || cfg.Routing.QualityThreshold > 10 {
		errs = append(errs, fmt.Errorf("routing.quality_threshold %.2f is out of range [0, 10]", cfg.Routing.QualityThreshold))
	}

	// Backends
	if cfg.Backends.WhisperAPI.APIKey == "" {
		errs = append(errs, errors.New("backends.whisperapi.api_key is required"))
	}
	if cfg.Backends.Flamingo.BaseURL == "" {
		errs = append(errs, errors.New("backends.flamingo.base_url is required"))
	}

	// Resilience
	if cfg.Resilience.FailureThreshold < 0 {
		errs = append(errs, fmt.Errorf("resilience.failure_threshold %d must not be negative", cfg.Resilience.FailureThreshold))
	}
	if cfg.Resilience.Cooldown < 0 {
		errs = append(errs, errors.New("resilience.cooldown must not be negative"))
	}
	if cfg.Resilience.Probes < 0 {
		errs = append(errs, fmt.Errorf("resilience.probes %d must not be negative", cfg.Resilience.Probes))
	}

	// Knowledge
	if cfg.Knowledge.PostgresDSN == "" {
		errs = append(errs, errors.New("knowledge.postgres_dsn is required"))
	}
	if cfg.Knowledge.EmbeddingDimensions <= 0 {
		slog.Warn("knowledge.embedding_dimensions is not set; defaulting to 1536")
	}

	// Embeddings
	validateProviderName("embeddings", cfg.Embeddings.Provider)
	if cfg.Embeddings.Provider == "openai" && cfg.Embeddings.APIKey == "" {
		errs = append(errs, errors.New("embeddings.api_key is required for the openai provider"))
	}

	// Responder
	if cfg.Responder.Provider == "" {
		errs = append(errs, errors.New("responder.provider is required"))
	} else {
		validateProviderName("responder", cfg.Responder.Provider)
	}
	if cfg.Responder.Model == "" {
		errs = append(errs, errors.New("responder.model is required"))
	}
	if cfg.Responder.Temperature != nil {
		if t := *cfg.Responder.Temperature; t < 0 || t > 2 {
			errs = append(errs, fmt.Errorf("responder.temperature %.2f is out of range [0, 2]", t))
		}
	}
	if cfg.Responder.MaxTokens < 0 {
		errs = append(errs, fmt.Errorf("responder.max_tokens %d must not be negative", cfg.Responder.MaxTokens))
	}

	// Glossary
	if len(cfg.Glossary) == 0 {
		slog.Warn("glossary is empty; transcripts will not have legal terms corrected")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
