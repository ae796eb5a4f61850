package bedrockclient

import (
	"encoding/json"

	"github.com/effective-security/llmkit/pkg/llms"
)

type amazonEmbeddingInput struct {
	InputText string `json:"inputText"`
}

type amazonEmbeddingOutput struct {
	Embedding           []float32 `json:"embedding"`
	InputTextTokenCount int64     `json:"inputTextTokenCount"`
}

type cohereEmbeddingInput struct {
	Texts     []string `json:"texts"`
	InputType string   `json:"input_type"`
}

type cohereEmbeddingOutput struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// BuildEmbeddingRequests returns the embedding requests for the texts.
// Titan models embed one text per request, Cohere models take the batch.
func BuildEmbeddingRequests(modelID string, texts []string) ([]*Request, error) {
	family := Family(modelID)
	switch family {
	case FamilyAmazon:
		reqs := make([]*Request, len(texts))
		for i, text := range texts {
			body, err := json.Marshal(amazonEmbeddingInput{InputText: text})
			if err != nil {
				return nil, err
			}
			reqs[i] = &Request{ModelID: modelID, Family: family, Body: body}
		}
		return reqs, nil
	case FamilyCohere:
		body, err := json.Marshal(cohereEmbeddingInput{Texts: texts, InputType: "search_document"})
		if err != nil {
			return nil, err
		}
		return []*Request{{ModelID: modelID, Family: family, Body: body}}, nil
	default:
		return nil, &llms.InvalidOptionError{
			Provider: llms.ProviderBedrock,
			Option:   "embedding_model",
			Value:    modelID,
			Reason:   "unsupported embedding model family",
		}
	}
}

// ParseEmbeddings decodes the responses of BuildEmbeddingRequests,
// in request order.
func ParseEmbeddings(responses []*Response) ([][]float32, llms.Usage, error) {
	var vectors [][]float32
	var usage llms.Usage
	for _, r := range responses {
		switch r.Family {
		case FamilyAmazon:
			var out amazonEmbeddingOutput
			if err := json.Unmarshal(r.Body, &out); err != nil {
				return nil, usage, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "decode embedding", Err: err}
			}
			if len(out.Embedding) == 0 {
				return nil, usage, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "empty embedding"}
			}
			vectors = append(vectors, out.Embedding)
			usage.InputTokens += out.InputTextTokenCount
		case FamilyCohere:
			var out cohereEmbeddingOutput
			if err := json.Unmarshal(r.Body, &out); err != nil {
				return nil, usage, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "decode embeddings", Err: err}
			}
			vectors = append(vectors, out.Embeddings...)
		default:
			return nil, usage, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "unknown embedding family " + r.Family}
		}
	}
	usage.TotalTokens = usage.InputTokens
	return vectors, usage, nil
}
