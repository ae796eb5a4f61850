package openaiclient

import (
	"context"
	"encoding/json"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
)

// EmbeddingRequest is a request to create embeddings.
type EmbeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// EmbeddingResponse is the response of the embeddings API.
type EmbeddingResponse struct {
	Object string `json:"object"`
	Data   []struct {
		Object    string    `json:"object"`
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		TotalTokens  int `json:"total_tokens"`
	} `json:"usage"`
}

// DefaultEmbeddingModel returns the model used when none is configured.
func DefaultEmbeddingModel() string {
	return defaultEmbeddingModel
}

// CreateEmbedding sends an embedding request and returns the raw response body.
func (c *Client) CreateEmbedding(ctx context.Context, r *EmbeddingRequest) ([]byte, error) {
	u := c.BuildURL("/embeddings", r.Model)
	logger.ContextKV(ctx, xlog.DEBUG, "url", u, "model", r.Model, "inputs", len(r.Input))
	return transport.PostJSON(ctx, c.httpClient, c.Provider, u, c.headers(), r)
}

// ParseEmbeddingResponse decodes an embeddings response. The vectors are
// ordered by their index. A non negative expected count is checked.
func ParseEmbeddingResponse(provider llms.ProviderType, raw []byte, expected int) (*EmbeddingResponse, [][]float32, error) {
	var resp EmbeddingResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, &llms.MalformedResponseError{Provider: provider, Reason: "decode embeddings", Err: err}
	}
	if len(resp.Data) == 0 {
		return nil, nil, &llms.MalformedResponseError{Provider: provider, Reason: "no embeddings", Err: ErrEmptyResponse}
	}
	if expected >= 0 && len(resp.Data) != expected {
		return nil, nil, &llms.MalformedResponseError{Provider: provider, Reason: "unexpected number of embeddings"}
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		idx := d.Index
		if idx < 0 || idx >= len(vectors) || vectors[idx] != nil {
			// ignore inconsistent indexes, keep the response order
			idx = i
		}
		vectors[idx] = d.Embedding
	}
	return &resp, vectors, nil
}
