package bedrock

import (
	"github.com/effective-security/llmkit/pkg/callbacks"
	"github.com/effective-security/llmkit/pkg/transport"
)

type options struct {
	httpClient     transport.Doer
	callbacks      callbacks.Handler
	embeddingModel string
}

// Option is an option for the Bedrock LLM.
type Option func(*options)

// WithHTTPClient sets the HTTP client used by the Bedrock runtime client.
func WithHTTPClient(client transport.Doer) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithCallbacks sets the invocation observer.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(o *options) {
		o.callbacks = handler
	}
}

// WithEmbeddingModel sets the model used by CreateEmbedding.
func WithEmbeddingModel(modelID string) Option {
	return func(o *options) {
		o.embeddingModel = modelID
	}
}
