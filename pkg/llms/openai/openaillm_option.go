package openai

import (
	"github.com/effective-security/llmkit/pkg/callbacks"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/schema"
	"github.com/effective-security/llmkit/pkg/transport"
)

type options struct {
	httpClient     transport.Doer
	callbacks      callbacks.Handler
	responseFormat *schema.ResponseFormat
	embeddingModel string
	responsesAPI   bool
	promptCache    *llms.PromptCacheRequestPolicy
}

// Option is a functional option for the OpenAI client.
type Option func(*options)

// WithEmbeddingModel sets the model used by CreateEmbedding.
// Required for Azure, where it is the embedding deployment name.
func WithEmbeddingModel(embeddingModel string) Option {
	return func(opts *options) {
		opts.embeddingModel = embeddingModel
	}
}

// WithHTTPClient allows setting a custom HTTP client. If not set, the default value
// is http.DefaultClient.
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

// WithResponseFormat sets the response format for calls that do not set one.
func WithResponseFormat(responseFormat *schema.ResponseFormat) Option {
	return func(opts *options) {
		opts.responseFormat = responseFormat
	}
}

// WithResponsesAPI sends text generation to the /responses API instead of
// /chat/completions. New fails if the provider does not serve it.
func WithResponsesAPI() Option {
	return func(opts *options) {
		opts.responsesAPI = true
	}
}

// WithPromptCache sets the prompt cache key and retention for calls that
// do not carry a prompt cache policy.
func WithPromptCache(key string, retention llms.PromptCacheRetention) Option {
	return func(opts *options) {
		opts.promptCache = &llms.PromptCacheRequestPolicy{Key: key, Retention: retention}
	}
}
