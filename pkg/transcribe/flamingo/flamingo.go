// Package flamingo provides the noise-tolerant transcription backend
// adapter. Before upload it runs the audio through a noise gate tuned by the
// measured background-noise level, then submits the cleaned clip with
// enhancement flags set. It implements the transcribe.Backend interface.
//
// This is the cheap path: roughly half the accurate backend's per-minute
// rate, and the preferred fallback for degraded recordings.
package flamingo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/lexivoice/lexivoice/pkg/audio"
	"github.com/lexivoice/lexivoice/pkg/transcribe"
)

// Compile-time interface assertion.
var _ transcribe.Backend = (*Backend)(nil)

const (
	defaultTimeout = 60 * time.Second

	transcribeEndpoint = "/v1/transcribe"

	// costPerMinute is roughly half the accurate backend's rate, in USD.
	costPerMinute = 0.003

	// defaultConfidence is reported when the service omits a confidence.
	defaultConfidence = 0.8

	maxErrorBody = 512
)

// Option is a functional option for configuring a Backend.
type Option func(*Backend)

// WithTimeout sets the per-request HTTP timeout. Defaults to 60 s.
func WithTimeout(d time.Duration) Option {
	return func(b *Backend) { b.httpClient.Timeout = d }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(b *Backend) { b.httpClient = c }
}

// Backend implements transcribe.Backend against the noise-tolerant service.
// The injected decoder is used only for preprocessing; it must be safe for
// concurrent use, as must the Backend itself.
type Backend struct {
	baseURL    string
	apiKey     string
	dec        audio.Decoder
	httpClient *http.Client
}

// New creates a Backend targeting the service at baseURL. dec decodes the
// incoming container for preprocessing; pass audio.WAVDecoder{} in
// production.
func New(baseURL, apiKey string, dec audio.Decoder, opts ...Option) (*Backend, error) {
	if baseURL == "" {
		return nil, errors.New("flamingo: baseURL must not be empty")
	}
	if dec == nil {
		return nil, errors.New("flamingo: decoder must not be nil")
	}
	b := &Backend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		dec:        dec,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(b)
	}
	return b, nil
}

// transcriptionResponse is the JSON body returned by the service.
type transcriptionResponse struct {
	Transcription    string  `json:"transcription"`
	Confidence       float64 `json:"confidence"`
	DetectedLanguage string  `json:"detected_language"`
	WordTimestamps   []struct {
		Word  string  `json:"word"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"word_timestamps"`
}

// Transcribe implements [transcribe.Backend]. The audio is denoised and
// re-encoded before upload; if the container cannot be decoded the original
// bytes are submitted untouched and the service's own enhancement does what
// it can.
func (b *Backend) Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error) {
	upload := b.preprocess(req)

	body, contentType, err := buildForm(upload, req.Language)
	if err != nil {
		return nil, fmt.Errorf("flamingo: build request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+transcribeEndpoint, body)
	if err != nil {
		return nil, fmt.Errorf("flamingo: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return nil, &transcribe.BackendError{Backend: "flamingo", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &transcribe.BackendError{
			Backend:    "flamingo",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("transcription rejected: %s", strings.TrimSpace(string(snippet))),
		}
	}

	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &transcribe.BackendError{
			Backend: "flamingo",
			Err:     fmt.Errorf("decode response: %w", err),
		}
	}

	confidence := tr.Confidence
	if confidence == 0 {
		confidence = defaultConfidence
	}

	detected := tr.DetectedLanguage
	if detected == "" {
		detected = req.Language
	}

	words := make([]transcribe.Word, 0, len(tr.WordTimestamps))
	for _, w := range tr.WordTimestamps {
		words = append(words, transcribe.Word{
			Start: time.Duration(w.Start * float64(time.Second)),
			End:   time.Duration(w.End * float64(time.Second)),
			Text:  w.Word,
		})
	}

	return &transcribe.Result{
		Text:       tr.Transcription,
		Confidence: confidence,
		Language:   detected,
		Words:      words,
		Method:     transcribe.MethodTolerant,
		Cost:       req.Quality.Duration / 60 * costPerMinute,
		Quality:    req.Quality,
	}, nil
}

// preprocess gates and normalizes the audio per the measured background
// noise, repackaged as WAV for upload. Any preprocessing problem falls back
// to the raw input rather than failing the request.
func (b *Backend) preprocess(req transcribe.Request) []byte {
	clip, err := b.dec.Decode(req.Audio)
	if err != nil {
		slog.Debug("flamingo: preprocessing skipped, container undecodable", "error", err)
		return req.Audio
	}

	cleaned := audio.Clip{
		Samples:    audio.Denoise(clip.Samples, req.Quality.BackgroundNoise),
		SampleRate: clip.SampleRate,
	}
	encoded, err := audio.EncodeWAV(cleaned)
	if err != nil {
		slog.Debug("flamingo: preprocessing skipped, re-encode failed", "error", err)
		return req.Audio
	}
	return encoded
}

// buildForm assembles the multipart body with enhancement flags enabled.
func buildForm(upload []byte, language string) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fw, err := mw.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, "", err
	}
	if _, err := fw.Write(upload); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"language":           language,
		"noise_suppression":  "true",
		"speech_enhancement": "true",
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
