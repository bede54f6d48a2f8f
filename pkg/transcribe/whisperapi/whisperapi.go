// Package whisperapi provides the high-accuracy transcription backend
// adapter. It targets a Whisper-style HTTP API (POST /v1/audio/transcriptions
// with a multipart body) and requests word-level timestamps via the
// verbose_json response format. It implements the transcribe.Backend
// interface.
//
// This is the expensive path: the per-minute rate is roughly double the
// noise-tolerant backend's, in exchange for better accuracy on clean audio.
package whisperapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lexivoice/lexivoice/pkg/transcribe"
)

// Compile-time interface assertion.
var _ transcribe.Backend = (*Backend)(nil)

const (
	defaultModel   = "whisper-large-v3"
	defaultTimeout = 60 * time.Second

	transcribeEndpoint = "/v1/audio/transcriptions"

	// costPerMinute is the service's fixed per-minute rate in USD.
	costPerMinute = 0.006

	// defaultConfidence is reported when the service omits segment
	// log-probabilities.
	defaultConfidence = 0.8

	// defaultLanguage is the hint sent when the caller's language code is
	// not in the supported table.
	defaultLanguage = "en"

	// maxErrorBody caps how much of an error response body is captured
	// into a BackendError.
	maxErrorBody = 512
)

// supportedLanguages is the fixed language-code table for the service.
// Codes outside this set fall back to defaultLanguage.
var supportedLanguages = map[string]string{
	"en": "en", "es": "es", "fr": "fr", "de": "de", "zh": "zh",
	"ar": "ar", "hi": "hi", "ja": "ja", "ko": "ko", "pt": "pt",
	"it": "it", "ru": "ru", "tr": "tr",
}

// Option is a functional option for configuring a Backend.
type Option func(*Backend)

// WithModel overrides the model identifier sent with each request.
func WithModel(model string) Option {
	return func(b *Backend) { b.model = model }
}

// WithTimeout sets the per-request HTTP timeout. Defaults to 60 s.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) { b.httpClient.Timeout = d }
}

// WithHTTPClient replaces the HTTP client, e.g. to share a transport.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.httpClient = c }
}

// Backend implements transcribe.Backend against the high-accuracy service.
// It holds no per-request state and is safe for concurrent use.
type Backend struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// New creates a Backend targeting the service at baseURL
// (e.g. "https://api.openai.com"). baseURL must be non-empty; apiKey may be
// empty for unauthenticated self-hosted deployments.
func New(baseURL, apiKey string, opts ...Option) (*Backend, error) {
	if baseURL == "" {
		return nil, errors.New("whisperapi: baseURL must not be empty")
	}
	b := &Backend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      defaultModel,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// transcriptionResponse is the verbose_json body returned by the service.
type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
	Words    []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"words"`
	Segments []struct {
		AvgLogprob float64 `json:"avg_logprob"`
	} `json:"segments"`
}

// Transcribe implements [transcribe.Backend]. It submits the audio as-is
// with a mapped language hint and word-level timestamp granularity.
func (b *Backend) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	lang := MapLanguage(req.Language)

	body, contentType, err := b.buildForm(req.Audio, lang)
	if err != nil {
		return nil, fmt.Errorf("whisperapi: build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+transcribeEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("whisperapi: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transcribe.BackendError{Backend: "whisperapi", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &transcribe.BackendError{
			Backend:    "whisperapi",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("transcription rejected: %s", strings.TrimSpace(string(snippet))),
		}
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &transcribe.BackendError{
			Backend: "whisperapi",
			Err:     fmt.Errorf("decode response: %w", err),
		}
	}

	duration := req.Quality.Duration
	if duration == 0 {
		duration = tr.Duration
	}

	detected := tr.Language
	if detected == "" {
		detected = lang
	}

	words := make([]transcribe.Word, 0, len(tr.Words))
	for _, w := range tr.Words {
		words = append(words, transcribe.Word{
			Start: time.Duration(w.Start * float64(time.Second)),
			End:   time.Duration(w.End * float64(time.Second)),
			Text:  w.Word,
		})
	}

	return &transcribe.Result{
		Text:       tr.Text,
		Confidence: confidenceFromSegments(tr),
		Language:   detected,
		Words:      words,
		Method:     transcribe.MethodAccurate,
		Cost:       duration / 60 * costPerMinute,
		Quality:    req.Quality,
	}, nil
}

// buildForm assembles the multipart request body.
func (b *Backend) buildForm(audio []byte, lang string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"model":                     b.model,
		"language":                  lang,
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "word",
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return &buf, mw.FormDataContentType(), nil
}

// confidenceFromSegments derives an overall confidence from per-segment
// average log-probabilities: exp of the mean log-prob, clamped to [0, 1].
// Responses without segments use the documented default.
func confidenceFromSegments(tr transcriptionResponse) float64 {
	if len(tr.Segments) == 0 {
		return defaultConfidence
	}
	var sum float64
	for _, s := range tr.Segments {
		sum += s.AvgLogprob
	}
	conf := math.Exp(sum / float64(len(tr.Segments)))
	if conf > 1 {
		conf = 1
	}
	return conf
}

// MapLanguage normalizes a caller-supplied language code to one the service
// accepts. Region subtags are stripped ("pt-BR" → "pt"); unknown codes fall
// back to the default language.
func MapLanguage(code string) string {
	base := strings.ToLower(code)
	if i := strings.IndexAny(base, "-_"); i >= 0 {
		base = base[:i]
	}
	if mapped, ok := supportedLanguages[base]; ok {
		return mapped
	}
	return defaultLanguage
}
