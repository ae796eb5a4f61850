// Package generic implements a provider for JSON over HTTP endpoints whose
// request and response fields are described by paths, such as self-hosted
// models, gateways and test stubs.
package generic

import (
	"context"
	"iter"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/callbacks"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg/llms", "generic")

var (
	_ llms.Model    = (*LLM)(nil)
	_ llms.Streamer = (*LLM)(nil)
)

// TextPipeline is the pipeline type used by LLM.
type TextPipeline = pipeline.Pipeline[*llms.Request, []byte, []byte, *llms.ContentResponse]

type options struct {
	config     *Config
	httpClient transport.Doer
	callbacks  callbacks.Handler
}

// Option is a functional option for the generic client.
type Option func(*options)

// WithConfig replaces the field mapping read from the handle.
func WithConfig(cfg Config) Option {
	return func(opts *options) {
		opts.config = &cfg
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

// LLM is a generic JSON over HTTP model.
type LLM struct {
	adapter *Adapter
	pipe    *TextPipeline
}

// New returns a client for the configured handle.
func New(h *provider.Handle, opts ...Option) (*LLM, error) {
	if h == nil {
		return nil, errors.New("client handle is required")
	}
	o := &options{
		httpClient: transport.DefaultDoer,
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg := ConfigFromHandle(h)
	if o.config != nil {
		cfg = *o.config
	}
	if cfg.TextPath == "" {
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: ExtraTextPath, Reason: "must not be empty"}
	}
	if cfg.PromptPath == "" && cfg.MessagesPath == "" {
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: ExtraPromptPath, Reason: "prompt_path or messages_path must be set"}
	}
	if cfg.StreamFormat != StreamNDJSON && cfg.StreamFormat != StreamSSE {
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: ExtraStreamFormat, Value: cfg.StreamFormat, Reason: "must be ndjson or sse"}
	}

	adapter := NewAdapter(cfg, o.httpClient)
	pipe, err := pipeline.New(h, pipeline.Adapter[*llms.Request, []byte, []byte, *llms.ContentResponse](adapter),
		pipeline.WithCallbacks(o.callbacks))
	if err != nil {
		return nil, err
	}
	return &LLM{
		adapter: adapter,
		pipe:    pipe,
	}, nil
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderGeneric
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.pipe.Handle().Model()
}

// Adapter returns the request and response adapter.
func (o *LLM) Adapter() *Adapter {
	return o.adapter
}

// Pipeline returns the pipeline, for asynchronous and batch calls.
func (o *LLM) Pipeline() *TextPipeline {
	return o.pipe
}

// GenerateContent implements the Model interface.
func (o *LLM) GenerateContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return o.pipe.Run(ctx, llms.NewRequest(messages, options...))
}

// StreamContent implements the Streamer interface.
func (o *LLM) StreamContent(ctx context.Context, messages []llms.Message, options ...llms.CallOption) iter.Seq2[llms.Chunk, error] {
	return o.pipe.Stream(ctx, llms.NewRequest(messages, options...))
}
