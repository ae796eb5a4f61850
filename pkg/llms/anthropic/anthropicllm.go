// Package anthropic implements the Anthropic Messages API provider on top of
// the official SDK.
package anthropic

import (
	"context"
	"iter"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg/llms", "anthropic")

var ErrEmptyResponse = errors.New("anthropic: no response")

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"

	DefaultMaxTokens = 4096
)

var (
	_ llms.Model    = (*LLM)(nil)
	_ llms.Streamer = (*LLM)(nil)
)

// MessagesPipeline is the pipeline type used by LLM.
type MessagesPipeline = pipeline.Pipeline[*llms.Request, *Payload, *sdkanthropic.Message, *llms.ContentResponse]

type LLM struct {
	Options *Options

	adapter *Adapter
	pipe    *MessagesPipeline
}

// New returns an Anthropic client for the configured handle.
// It performs no network calls.
//
// Example usage:
//
//	h, err := provider.Configure(provider.Anthropic, provider.Credentials{}, "",
//	    provider.Options{Model: "claude-sonnet-4-5"}, provider.Environ())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	llm, err := anthropic.New(h)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	resp, err := llm.GenerateContent(ctx, messages)
func New(h *provider.Handle, opts ...Option) (*LLM, error) {
	if h == nil {
		return nil, errors.New("anthropic: client handle is required")
	}
	if h.Provider() != llms.ProviderAnthropic {
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: "provider", Value: h.Provider(), Reason: "anthropic client requires the anthropic provider"}
	}

	options := &Options{
		HTTPClient: transport.DefaultDoer,
	}
	for _, opt := range opts {
		opt(options)
	}

	client := newClient(h, options)
	adapter := &Adapter{
		client:     client,
		betaHeader: options.AnthropicBetaHeader,
	}
	pipe, err := pipeline.New(h, pipeline.Adapter[*llms.Request, *Payload, *sdkanthropic.Message, *llms.ContentResponse](adapter),
		pipeline.WithCallbacks(options.Callbacks))
	if err != nil {
		return nil, err
	}
	return &LLM{
		Options: options,
		adapter: adapter,
		pipe:    pipe,
	}, nil
}

func newClient(h *provider.Handle, options *Options) *sdkanthropic.Client {
	// retries are left to the caller, every invocation is a single call
	sdkOpts := []option.RequestOption{
		option.WithAPIKey(h.APIKey()),
		option.WithMaxRetries(0),
	}
	if ep := h.Endpoint(); ep != "" {
		sdkOpts = append(sdkOpts, option.WithBaseURL(ep))
	}
	if options.HTTPClient != nil {
		sdkOpts = append(sdkOpts, option.WithHTTPClient(options.HTTPClient))
	}
	if options.AnthropicBetaHeader != "" {
		sdkOpts = append(sdkOpts, option.WithHeader("anthropic-beta", options.AnthropicBetaHeader))
	}

	client := sdkanthropic.NewClient(sdkOpts...)
	return &client
}

// GetName implements the Model interface.
func (o *LLM) GetName() string {
	return o.pipe.Handle().Model()
}

// GetProviderType implements the Model interface.
func (o *LLM) GetProviderType() llms.ProviderType {
	return llms.ProviderAnthropic
}

// Adapter returns the request and response adapter.
func (o *LLM) Adapter() *Adapter {
	return o.adapter
}

// Pipeline returns the pipeline, for asynchronous and batch calls.
func (o *LLM) Pipeline() *MessagesPipeline {
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
