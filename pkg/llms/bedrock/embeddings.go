package bedrock

import (
	"context"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/bedrock/internal/bedrockclient"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
)

var _ pipeline.Adapter[*llms.EmbeddingRequest, []*bedrockclient.Request, []*bedrockclient.Response, *llms.EmbeddingResult] = (*embeddingAdapter)(nil)

type embeddingAdapter struct {
	client *bedrockclient.Client
	model  string
}

func (a *embeddingAdapter) Adapt(req *llms.EmbeddingRequest, h *provider.Handle) ([]*bedrockclient.Request, error) {
	if err := req.Validate(h.Provider()); err != nil {
		return nil, err
	}
	model := req.Model
	if model == "" {
		model = a.model
	}
	return bedrockclient.BuildEmbeddingRequests(model, req.Texts)
}

// Invoke calls InvokeModel for each request in order and stops at the
// first error.
func (a *embeddingAdapter) Invoke(ctx context.Context, payload []*bedrockclient.Request, _ *provider.Handle) ([]*bedrockclient.Response, error) {
	res := make([]*bedrockclient.Response, 0, len(payload))
	for _, r := range payload {
		out, err := a.client.InvokeModel(ctx, r)
		if err != nil {
			return nil, err
		}
		res = append(res, out)
	}
	return res, nil
}

func (a *embeddingAdapter) AdaptResponse(raw []*bedrockclient.Response) (*llms.EmbeddingResult, error) {
	vectors, usage, err := bedrockclient.ParseEmbeddings(raw)
	if err != nil {
		return nil, err
	}
	return &llms.EmbeddingResult{
		Vectors: vectors,
		Model:   a.model,
		Usage:   usage,
	}, nil
}
