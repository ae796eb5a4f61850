package openai

import (
	"context"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
)

var _ pipeline.Adapter[*llms.EmbeddingRequest, *openaiclient.EmbeddingRequest, []byte, *llms.EmbeddingResult] = (*embeddingAdapter)(nil)

type embeddingAdapter struct {
	client *openaiclient.Client
	model  string
}

func (a *embeddingAdapter) Adapt(req *llms.EmbeddingRequest, h *provider.Handle) (*openaiclient.EmbeddingRequest, error) {
	if err := req.Validate(h.Provider()); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = a.model
	}
	return &openaiclient.EmbeddingRequest{
		Model: model,
		Input: req.Texts,
	}, nil
}

func (a *embeddingAdapter) Invoke(ctx context.Context, payload *openaiclient.EmbeddingRequest, _ *provider.Handle) ([]byte, error) {
	return a.client.CreateEmbedding(ctx, payload)
}

// AdaptResponse cannot check the vector count against the request, so
// CreateEmbedding does it.
func (a *embeddingAdapter) AdaptResponse(raw []byte) (*llms.EmbeddingResult, error) {
	resp, vectors, err := openaiclient.ParseEmbeddingResponse(a.client.Provider, raw, -1)
	if err != nil {
		return nil, err
	}
	return &llms.EmbeddingResult{
		Vectors: vectors,
		Model:   resp.Model,
		Usage: llms.Usage{
			InputTokens: int64(resp.Usage.PromptTokens),
			TotalTokens: int64(resp.Usage.TotalTokens),
		},
	}, nil
}
