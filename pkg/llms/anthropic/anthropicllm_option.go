package anthropic

import (
	"github.com/effective-security/llmkit/pkg/callbacks"
	"github.com/effective-security/llmkit/pkg/transport"
)

// Options are the client options of the Anthropic provider.
type Options struct {
	HTTPClient transport.Doer
	Callbacks  callbacks.Handler

	// If supplied, the 'anthropic-beta' header will be added to the request with the given value.
	AnthropicBetaHeader string
}

type Option func(*Options)

// WithHTTPClient allows setting a custom HTTP client. If not set, the default value
// is http.DefaultClient.
func WithHTTPClient(client transport.Doer) Option {
	return func(opts *Options) {
		opts.HTTPClient = client
	}
}

// WithCallbacks sets the invocation observer.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(opts *Options) {
		opts.Callbacks = handler
	}
}

// WithAnthropicBetaHeader adds the Anthropic Beta header to support extended options.
func WithAnthropicBetaHeader(value string) Option {
	return func(opts *Options) {
		opts.AnthropicBetaHeader = value
	}
}
