// Package openai implements the embeddings provider over the OpenAI
// embeddings API.
//
// The provider carries double duty in the intake service: single-text
// embedding of corrected transcripts on the query path, and batch embedding
// of legal documents when the knowledge base is loaded. Both run through the
// same model so index vectors and query vectors share one space.
package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/lexivoice/lexivoice/pkg/embeddings"
)

// DefaultModel balances retrieval quality against per-document cost for
// legal text.
const DefaultModel = oai.EmbeddingModelTextEmbedding3Small

var _ embeddings.Provider = (*Provider)(nil)

// Provider calls the OpenAI embeddings endpoint. It is stateless beyond its
// configuration and safe for concurrent use.
type Provider struct {
	client     oai.Client
	model      string
	dimensions int
}

// Option is a functional option for [New].
type Option func(*Provider, *[]option.RequestOption)

// WithBaseURL overrides the default API base URL, e.g. for a proxy or an
// OpenAI-compatible local server.
func WithBaseURL(url string) Option {
	return func(_ *Provider, reqOpts *[]option.RequestOption) {
		*reqOpts = append(*reqOpts, option.WithBaseURL(url))
	}
}

// WithOrganization sets the OpenAI organization ID on all requests.
func WithOrganization(org string) Option {
	return func(_ *Provider, reqOpts *[]option.RequestOption) {
		*reqOpts = append(*reqOpts, option.WithOrganization(org))
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(_ *Provider, reqOpts *[]option.RequestOption) {
		*reqOpts = append(*reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: d,
		}))
	}
}

// WithDimensions asks the API to truncate vectors to n dimensions
// (supported by the text-embedding-3 family). Use it to match an existing
// vector column narrower than the model's native width.
func WithDimensions(n int) Option {
	return func(p *Provider, _ *[]option.RequestOption) {
		p.dimensions = n
	}
}

// New constructs a Provider for the given model. An empty model selects
// [DefaultModel].
func New(apiKey string, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai embeddings: apiKey must not be empty")
	}
	if model == "" {
		model = DefaultModel
	}

	p := &Provider{model: model}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	for _, o := range opts {
		o(p, &reqOpts)
	}
	if p.dimensions < 0 {
		return nil, fmt.Errorf("openai embeddings: dimensions %d must be positive", p.dimensions)
	}

	p.client = oai.NewClient(reqOpts...)
	return p, nil
}

// Embed implements [embeddings.Provider]. It submits a single text, the
// query-path shape used for intake questions.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := p.client.Embeddings.New(ctx, p.params(oai.EmbeddingNewParamsInputUnion{
		OfString: param.NewOpt(text),
	}))
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return float64ToFloat32(resp.Data[0].Embedding), nil
}

// EmbedBatch implements [embeddings.Provider]. One request embeds the whole
// slice; the API may return entries out of order, so results are placed by
// index.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.Embeddings.New(ctx, p.params(oai.EmbeddingNewParamsInputUnion{
		OfArrayOfStrings: texts,
	}))
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: embed batch: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai embeddings: expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	result := make([][]float32, len(texts))
	for _, e := range resp.Data {
		if int(e.Index) >= len(texts) {
			return nil, fmt.Errorf("openai embeddings: unexpected index %d", e.Index)
		}
		result[e.Index] = float64ToFloat32(e.Embedding)
	}
	return result, nil
}

// params builds the request, applying the configured dimension truncation.
func (p *Provider) params(input oai.EmbeddingNewParamsInputUnion) oai.EmbeddingNewParams {
	params := oai.EmbeddingNewParams{
		Model: p.model,
		Input: input,
	}
	if p.dimensions > 0 {
		params.Dimensions = param.NewOpt(int64(p.dimensions))
	}
	return params
}

// Dimensions implements [embeddings.Provider]: the configured truncation
// when set, otherwise the model's native width.
func (p *Provider) Dimensions() int {
	if p.dimensions > 0 {
		return p.dimensions
	}
	return modelDimensions(p.model)
}

// ModelID implements [embeddings.Provider].
func (p *Provider) ModelID() string {
	return p.model
}

// modelDimensions maps known OpenAI models to their native vector width.
func modelDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "text-embedding-3-large"):
		return 3072
	case strings.Contains(lower, "text-embedding-3-small"):
		return 1536
	case strings.Contains(lower, "text-embedding-ada-002"):
		return 1536
	default:
		return 1536
	}
}

func float64ToFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
