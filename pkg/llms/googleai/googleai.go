// Package googleai implements a client for Gemini models served by the
// Google AI (Gemini) API. See https://ai.google.dev/ for more details.
package googleai

import (
	"context"
	"iter"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
	"google.golang.org/genai"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg/llms", "googleai")

const (
	CITATIONS            = "citations"
	SAFETY               = "safety"
	RoleModel            = "model"
	RoleUser             = "user"
	ResponseMIMETypeJson = "application/json"

	// DefaultEmbeddingModel is used when neither the handle nor the options name one.
	DefaultEmbeddingModel = "gemini-embedding-001"
)

var (
	_ llms.Model    = (*LLM)(nil)
	_ llms.Streamer = (*LLM)(nil)
	_ llms.Embedder = (*LLM)(nil)
)

type (
	// GeneratePipeline is the text generation pipeline.
	GeneratePipeline = pipeline.Pipeline[*llms.Request, *Payload, *genai.GenerateContentResponse, *llms.ContentResponse]
	// EmbeddingPipeline is the embedding pipeline.
	EmbeddingPipeline = pipeline.Pipeline[*llms.EmbeddingRequest, *embedPayload, []*genai.EmbedContentResponse, *llms.EmbeddingResult]
)

// LLM is a Gemini API client.
type LLM struct {
	adapter *Adapter
	pipe    *GeneratePipeline
	embed   *EmbeddingPipeline
}

// New returns a client for the configured handle. It performs no I/O.
func New(h *provider.Handle, opts ...Option) (*LLM, error) {
	if h == nil {
		return nil, errors.New("client handle is required")
	}
	if h.Provider() != llms.ProviderGoogleAI {
		return nil, &llms.InvalidOptionError{
			Provider: h.Provider(),
			Option:   "provider",
			Value:    string(h.Provider()),
			Reason:   "expected " + string(llms.ProviderGoogleAI),
		}
	}

	o := &options{
		harmThreshold: genai.HarmBlockThresholdBlockOnlyHigh,
	}
	for _, opt := range opts {
		opt(o)
	}
	embeddingModel := o.embeddingModel
	if embeddingModel == "" {
		embeddingModel = h.EmbeddingModel()
	}
	if embeddingModel == "" {
		embeddingModel = DefaultEmbeddingModel
	}

	cfg := &genai.ClientConfig{
		APIKey:     h.APIKey(),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: transport.HTTPClient(o.httpClient),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    h.Endpoint(),
			APIVersion: h.APIVersion(),
		},
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, &llms.InvalidOptionError{Provider: llms.ProviderGoogleAI, Option: "client", Reason: err.Error()}
	}

	adapter := &Adapter{client: client, harmThreshold: o.harmThreshold}
	pipe, err := pipeline.New(h,
		pipeline.Adapter[*llms.Request, *Payload, *genai.GenerateContentResponse, *llms.ContentResponse](adapter),
		pipeline.WithCallbacks(o.callbacks))
	if err != nil {
		return nil, err
	}
	embed, err := pipeline.New(h,
		pipeline.Adapter[*llms.EmbeddingRequest, *embedPayload, []*genai.EmbedContentResponse, *llms.EmbeddingResult](
			&embeddingAdapter{client: client, model: embeddingModel}),
		pipeline.WithCallbacks(o.callbacks),
		pipeline.WithOperation(pipeline.OperationEmbed))
	if err != nil {
		return nil, err
	}
	return &LLM{
		adapter: adapter,
		pipe:    pipe,
		embed:   embed,
	}, nil
}

// GetName implements the Model interface.
func (g *LLM) GetName() string {
	return g.pipe.Handle().Model()
}

// GetProviderType implements the Model interface.
func (g *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderGoogleAI
}

// Adapter returns the request and response adapter.
func (g *LLM) Adapter() *Adapter {
	return g.adapter
}

// Pipeline returns the text generation pipeline.
func (g *LLM) Pipeline() *GeneratePipeline {
	return g.pipe
}

// Embeddings returns the embedding pipeline.
func (g *LLM) Embeddings() *EmbeddingPipeline {
	return g.embed
}

// GenerateContent implements the [llms.Model] interface.
func (g *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return g.pipe.Run(ctx, llms.NewRequest(messages, options...))
}

// StreamContent implements the [llms.Streamer] interface.
func (g *LLM) StreamContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) iter.Seq2[llms.Chunk, error] {
	return g.pipe.Stream(ctx, llms.NewRequest(messages, options...))
}

// CreateEmbedding creates embeddings for the given input texts.
func (g *LLM) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := g.embed.Run(ctx, &llms.EmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, err
	}
	if len(res.Vectors) != len(texts) {
		return nil, &llms.MalformedResponseError{
			Provider: llms.ProviderGoogleAI,
			Reason:   "unexpected number of embeddings",
			Err:      errors.Newf("expected %d, got %d", len(texts), len(res.Vectors)),
		}
	}
	return res.Vectors, nil
}
