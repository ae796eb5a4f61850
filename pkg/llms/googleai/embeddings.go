package googleai

import (
	"context"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"google.golang.org/genai"
)

// MaxEmbeddingBatch is the number of texts the batch embedding API accepts in one call.
const MaxEmbeddingBatch = 100

var _ pipeline.Adapter[*llms.EmbeddingRequest, *embedPayload, []*genai.EmbedContentResponse, *llms.EmbeddingResult] = (*embeddingAdapter)(nil)

type embedPayload struct {
	Model   string
	Batches [][]*genai.Content
}

type embeddingAdapter struct {
	client *genai.Client
	model  string
}

func (a *embeddingAdapter) Adapt(req *llms.EmbeddingRequest, h *provider.Handle) (*embedPayload, error) {
	if err := req.Validate(h.Provider()); err != nil {
		return nil, err
	}
	p := &embedPayload{Model: req.Model}
	if p.Model == "" {
		p.Model = a.model
	}

	var batch []*genai.Content
	for _, text := range req.Texts {
		batch = append(batch, genai.NewContentFromText(text, genai.RoleUser))
		if len(batch) == MaxEmbeddingBatch {
			p.Batches = append(p.Batches, batch)
			batch = nil
		}
	}
	if len(batch) > 0 {
		p.Batches = append(p.Batches, batch)
	}
	return p, nil
}

// Invoke sends the batches in order and stops at the first error.
func (a *embeddingAdapter) Invoke(ctx context.Context, p *embedPayload, _ *provider.Handle) ([]*genai.EmbedContentResponse, error) {
	res := make([]*genai.EmbedContentResponse, 0, len(p.Batches))
	for _, batch := range p.Batches {
		resp, err := a.client.Models.EmbedContent(ctx, p.Model, batch, nil)
		if err != nil {
			return nil, mapError(err)
		}
		res = append(res, resp)
	}
	return res, nil
}

func (a *embeddingAdapter) AdaptResponse(raw []*genai.EmbedContentResponse) (*llms.EmbeddingResult, error) {
	res := &llms.EmbeddingResult{Model: a.model}
	for _, resp := range raw {
		if resp == nil {
			return nil, &llms.MalformedResponseError{Provider: llms.ProviderGoogleAI, Reason: "empty embedding response"}
		}
		for _, e := range resp.Embeddings {
			if e == nil || len(e.Values) == 0 {
				return nil, &llms.MalformedResponseError{Provider: llms.ProviderGoogleAI, Reason: "empty embedding"}
			}
			res.Vectors = append(res.Vectors, e.Values)
		}
	}
	return res, nil
}
