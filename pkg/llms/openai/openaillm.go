// Package openai implements the OpenAI provider and the providers that serve
// the same API: Azure OpenAI and Perplexity.
package openai

import (
	"context"
	"iter"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/openai/openai-go/v3/responses"
)

var (
	_ llms.Model    = (*LLM)(nil)
	_ llms.Streamer = (*LLM)(nil)
	_ llms.Embedder = (*LLM)(nil)
)

// Pipeline types used by LLM.
type (
	ChatPipeline      = pipeline.Pipeline[*llms.Request, *ChatRequest, []byte, *llms.ContentResponse]
	ResponsesPipeline = pipeline.Pipeline[*llms.Request, *responses.ResponseNewParams, []byte, *llms.ContentResponse]
	EmbeddingPipeline = pipeline.Pipeline[*llms.EmbeddingRequest, *openaiclient.EmbeddingRequest, []byte, *llms.EmbeddingResult]
)

// LLM is an OpenAI compatible model.
type LLM struct {
	client    *openaiclient.Client
	chat      *ChatPipeline
	responses *ResponsesPipeline
	embed     *EmbeddingPipeline
}

// New returns a client for the configured handle.
// The handle must be configured for OpenAI, Azure, AzureAD or Perplexity.
func New(h *provider.Handle, opts ...Option) (*LLM, error) {
	if h == nil {
		return nil, errors.New("client handle is required")
	}
	switch h.Provider() {
	case llms.ProviderOpenAI, llms.ProviderAzure, llms.ProviderAzureAD, llms.ProviderPerplexity:
	default:
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: "provider", Value: h.Provider(), Reason: "not served by the OpenAI client"}
	}

	o := &options{
		httpClient: transport.DefaultDoer,
	}
	for _, opt := range opts {
		opt(o)
	}

	client := openaiclient.New(h, o.httpClient)
	if o.responsesAPI && !client.SupportsResponsesAPI() {
		return nil, &llms.InvalidOptionError{
			Provider: h.Provider(),
			Option:   "responses_api",
			Value:    h.APIVersion(),
			Reason:   "the responses API is not served by the provider or API version",
		}
	}

	embeddingModel := o.embeddingModel
	if embeddingModel == "" {
		embeddingModel = h.EmbeddingModel()
	}
	if embeddingModel == "" {
		embeddingModel = openaiclient.DefaultEmbeddingModel()
	}

	llm := &LLM{client: client}
	var err error
	if o.responsesAPI {
		llm.responses, err = pipeline.New(h,
			pipeline.Adapter[*llms.Request, *responses.ResponseNewParams, []byte, *llms.ContentResponse](
				&responsesAdapter{client: client, promptCache: o.promptCache}),
			pipeline.WithCallbacks(o.callbacks))
	} else {
		llm.chat, err = pipeline.New(h,
			pipeline.Adapter[*llms.Request, *ChatRequest, []byte, *llms.ContentResponse](
				&chatAdapter{client: client, responseFormat: o.responseFormat, promptCache: o.promptCache}),
			pipeline.WithCallbacks(o.callbacks))
	}
	if err != nil {
		return nil, err
	}

	llm.embed, err = pipeline.New(h,
		pipeline.Adapter[*llms.EmbeddingRequest, *openaiclient.EmbeddingRequest, []byte, *llms.EmbeddingResult](
			&embeddingAdapter{client: client, model: embeddingModel}),
		pipeline.WithCallbacks(o.callbacks),
		pipeline.WithOperation(pipeline.OperationEmbed))
	if err != nil {
		return nil, err
	}
	return llm, nil
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return o.client.Provider
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	if o.chat != nil {
		return o.chat.Handle().Model()
	}
	return o.responses.Handle().Model()
}

// Chat returns the chat completions pipeline, nil when the client uses the responses API.
func (o *LLM) Chat() *ChatPipeline {
	return o.chat
}

// Responses returns the responses API pipeline, nil unless WithResponsesAPI is set.
func (o *LLM) Responses() *ResponsesPipeline {
	return o.responses
}

// Embeddings returns the embeddings pipeline.
func (o *LLM) Embeddings() *EmbeddingPipeline {
	return o.embed
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	req := llms.NewRequest(messages, options...)
	if o.responses != nil {
		return o.responses.Run(ctx, req)
	}
	return o.chat.Run(ctx, req)
}

// StreamContent implements the Streamer interface.
func (o *LLM) StreamContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) iter.Seq2[llms.Chunk, error] {
	req := llms.NewRequest(messages, options...)
	if o.responses != nil {
		return o.responses.Stream(ctx, req)
	}
	return o.chat.Stream(ctx, req)
}

// CreateEmbedding creates embeddings for the given input texts.
func (o *LLM) CreateEmbedding(ctx context.Context, inputTexts []string) ([][]float32, error) {
	res, err := o.embed.Run(ctx, &llms.EmbeddingRequest{Texts: inputTexts})
	if err != nil {
		return nil, err
	}
	if len(res.Vectors) != len(inputTexts) {
		return nil, &llms.MalformedResponseError{
			Provider: o.client.Provider,
			Reason:   "unexpected number of embeddings",
			Err:      errors.Newf("expected %d, got %d", len(inputTexts), len(res.Vectors)),
		}
	}
	return res.Vectors, nil
}
