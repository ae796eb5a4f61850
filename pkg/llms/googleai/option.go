package googleai

import (
	"github.com/effective-security/llmkit/pkg/callbacks"
	"github.com/effective-security/llmkit/pkg/transport"
	"google.golang.org/genai"
)

type options struct {
	httpClient     transport.Doer
	callbacks      callbacks.Handler
	embeddingModel string
	harmThreshold  genai.HarmBlockThreshold
}

// Option is a functional option for the Google AI client.
type Option func(*options)

// WithHTTPClient sets the HTTP client used by the genai client.
func WithHTTPClient(client transport.Doer) Option {
	return func(opts *options) {
		opts.httpClient = client
	}
}

// WithCallbacks sets the invocation observer.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(opts *options) {
		opts.callbacks = handler
	}
}

// WithEmbeddingModel sets the model used by CreateEmbedding.
func WithEmbeddingModel(model string) Option {
	return func(opts *options) {
		opts.embeddingModel = model
	}
}

// WithHarmThreshold sets the safety/harm setting for the model, potentially
// limiting any harmful content it may generate.
func WithHarmThreshold(ht genai.HarmBlockThreshold) Option {
	return func(opts *options) {
		opts.harmThreshold = ht
	}
}
