// Package bedrock implements a client for models served by Amazon Bedrock.
// The request format is selected by the model family: anthropic, amazon
// and meta models generate text, amazon and cohere models embed.
package bedrock

import (
	"context"
	"iter"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/bedrock/internal/bedrockclient"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
)

var (
	_ llms.Model    = (*LLM)(nil)
	_ llms.Streamer = (*LLM)(nil)
	_ llms.Embedder = (*LLM)(nil)
)

type (
	// InvokePipeline is the text generation pipeline.
	InvokePipeline = pipeline.Pipeline[*llms.Request, *bedrockclient.Request, *bedrockclient.Response, *llms.ContentResponse]
	// EmbeddingPipeline is the embedding pipeline.
	EmbeddingPipeline = pipeline.Pipeline[*llms.EmbeddingRequest, []*bedrockclient.Request, []*bedrockclient.Response, *llms.EmbeddingResult]
)

// LLM is a Bedrock LLM implementation.
type LLM struct {
	adapter *Adapter
	pipe    *InvokePipeline
	embed   *EmbeddingPipeline
}

// New returns a client for the configured handle. It performs no I/O,
// credentials are used as configured and not resolved from AWS profiles.
func New(h *provider.Handle, opts ...Option) (*LLM, error) {
	if h == nil {
		return nil, errors.New("client handle is required")
	}
	if h.Provider() != llms.ProviderBedrock {
		return nil, &llms.InvalidOptionError{
			Provider: h.Provider(),
			Option:   "provider",
			Value:    string(h.Provider()),
			Reason:   "expected " + string(llms.ProviderBedrock),
		}
	}

	o := &options{}
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

	client := bedrockclient.New(h, o.httpClient)
	adapter := &Adapter{client: client}
	pipe, err := pipeline.New(h,
		pipeline.Adapter[*llms.Request, *bedrockclient.Request, *bedrockclient.Response, *llms.ContentResponse](adapter),
		pipeline.WithCallbacks(o.callbacks))
	if err != nil {
		return nil, err
	}
	embed, err := pipeline.New(h,
		pipeline.Adapter[*llms.EmbeddingRequest, []*bedrockclient.Request, []*bedrockclient.Response, *llms.EmbeddingResult](
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
func (l *LLM) GetName() string {
	return l.pipe.Handle().Model()
}

// GetProviderType implements the Model interface.
func (l *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderBedrock
}

// Adapter returns the request and response adapter.
func (l *LLM) Adapter() *Adapter {
	return l.adapter
}

// Pipeline returns the text generation pipeline.
func (l *LLM) Pipeline() *InvokePipeline {
	return l.pipe
}

// Embeddings returns the embedding pipeline.
func (l *LLM) Embeddings() *EmbeddingPipeline {
	return l.embed
}

// GenerateContent implements llms.Model.
func (l *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return l.pipe.Run(ctx, llms.NewRequest(messages, options...))
}

// StreamContent implements llms.Streamer.
func (l *LLM) StreamContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) iter.Seq2[llms.Chunk, error] {
	return l.pipe.Stream(ctx, llms.NewRequest(messages, options...))
}

// CreateEmbedding creates embeddings for the given input texts.
func (l *LLM) CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error) {
	res, err := l.embed.Run(ctx, &llms.EmbeddingRequest{Texts: texts})
	if err != nil {
		return nil, err
	}
	if len(res.Vectors) != len(texts) {
		return nil, &llms.MalformedResponseError{
			Provider: llms.ProviderBedrock,
			Reason:   "unexpected number of embeddings",
			Err:      errors.Newf("expected %d, got %d", len(texts), len(res.Vectors)),
		}
	}
	return res.Vectors, nil
}
