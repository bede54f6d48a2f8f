package whisperapi

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lexivoice/lexivoice/pkg/audio/quality"
	"github.com/lexivoice/lexivoice/pkg/transcribe"
)

const verboseJSON = `{
	"text": "my landlord changed the locks",
	"language": "en",
	"duration": 4.2,
	"words": [
		{"word": "my", "start": 0.0, "end": 0.3},
		{"word": "landlord", "start": 0.3, "end": 0.9}
	],
	"segments": [
		{"avg_logprob": -0.1},
		{"avg_logprob": -0.3}
	]
}`

func TestTranscribe(t *testing.T) {
	var gotForm map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != transcribeEndpoint {
			t.Errorf("path = %q, want %q", r.URL.Path, transcribeEndpoint)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("auth header = %q", auth)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotForm = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotForm[k] = v[0]
		}
		if len(r.MultipartForm.File["file"]) != 1 {
			t.Error("missing file part")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(verboseJSON))
	}))
	defer srv.Close()

	b, err := New(srv.URL, "test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := b.Transcribe(context.Background(), transcribe.Request{
		Audio:    []byte("fake-wav"),
		Language: "es",
		Quality:  quality.Metrics{Duration: 60},
	})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	want := map[string]string{
		"model":                     defaultModel,
		"language":                  "es",
		"response_format":           "verbose_json",
		"timestamp_granularities[]": "word",
	}
	for k, v := range want {
		if gotForm[k] != v {
			t.Errorf("form[%q] = %q, want %q", k, gotForm[k], v)
		}
	}

	if res.Text != "my landlord changed the locks" {
		t.Errorf("text = %q", res.Text)
	}
	if res.Method != transcribe.MethodAccurate {
		t.Errorf("method = %q, want accurate", res.Method)
	}
	// exp((-0.1 + -0.3)/2) = exp(-0.2)
	if wantConf := math.Exp(-0.2); math.Abs(res.Confidence-wantConf) > 1e-9 {
		t.Errorf("confidence = %f, want %f", res.Confidence, wantConf)
	}
	// 60 s at $0.006/min.
	if math.Abs(res.Cost-0.006) > 1e-12 {
		t.Errorf("cost = %f, want 0.006", res.Cost)
	}
	if len(res.Words) != 2 {
		t.Fatalf("words = %d, want 2", len(res.Words))
	}
	if res.Words[1].Text != "landlord" || res.Words[1].Start != 300*time.Millisecond {
		t.Errorf("word[1] = %+v", res.Words[1])
	}
}

func TestTranscribe_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	b, _ := New(srv.URL, "")
	_, err := b.Transcribe(context.Background(), transcribe.Request{Audio: []byte("x")})

	var be *transcribe.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want *BackendError", err)
	}
	if be.Backend != "whisperapi" {
		t.Errorf("backend = %q", be.Backend)
	}
	if be.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", be.StatusCode)
	}
}

func TestTranscribe_ConfidenceDefaultWithoutSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text": "hello", "language": "en"}`))
	}))
	defer srv.Close()

	b, _ := New(srv.URL, "")
	res, err := b.Transcribe(context.Background(), transcribe.Request{Audio: []byte("x")})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if res.Confidence != defaultConfidence {
		t.Errorf("confidence = %f, want %f", res.Confidence, defaultConfidence)
	}
}

func TestNew_EmptyBaseURL(t *testing.T) {
	if _, err := New("", "key"); err == nil {
		t.Fatal("expected error for empty baseURL")
	}
}

func TestMapLanguage(t *testing.T) {
	tests := []struct{ in, want string }{
		{"en", "en"},
		{"es", "es"},
		{"pt-BR", "pt"},
		{"zh_CN", "zh"},
		{"DE", "de"},
		{"tlh", "en"}, // unsupported → default
		{"", "en"},
	}
	for _, tt := range tests {
		if got := MapLanguage(tt.in); got != tt.want {
			t.Errorf("MapLanguage(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
