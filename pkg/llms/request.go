package llms

import (
	"strconv"
	"time"
)

// Request is the caller intent for a text generation call.
// It is not modified by adapters.
type Request struct {
	Messages []Message
	Options  []CallOption
}

// NewRequest returns a request for the messages.
func NewRequest(messages []Message, opts ...CallOption) *Request {
	return &Request{
		Messages: messages,
		Options:  opts,
	}
}

// NewTextRequest returns a request with a single human message.
func NewTextRequest(text string, opts ...CallOption) *Request {
	return NewRequest([]Message{MessageFromTextParts(RoleHuman, text)}, opts...)
}

// Validate returns UnsupportedInputError if the request carries no content,
// or InvalidOptionError if a call option is out of range.
func (r *Request) Validate(provider ProviderType) error {
	if r == nil || !hasContent(r.Messages) {
		return &UnsupportedInputError{
			Provider: provider,
			Input:    "empty content",
			Reason:   "request must contain text, a file or messages",
		}
	}
	opts := r.CallOptions(CallOptions{})
	return opts.Validate(provider)
}

// CallOptions applies the request options over defaults.
func (r *Request) CallOptions(defaults CallOptions) CallOptions {
	opts := defaults
	if r != nil {
		for _, opt := range r.Options {
			opt(&opts)
		}
	}
	return opts
}

func hasContent(messages []Message) bool {
	for _, m := range messages {
		if !m.IsEmpty() {
			return true
		}
	}
	return false
}

// Chunk is one piece of a streamed response.
type Chunk struct {
	// Text is the incremental text delivered by the provider.
	Text string `json:"text,omitempty"`
	// StopReason is set on the final chunk when the provider reports one.
	StopReason string `json:"stop_reason,omitempty"`
	// Usage is set when the provider reports token usage, typically at the end.
	Usage *Usage `json:"usage,omitempty"`
}

// Usage is the token accounting reported by a provider.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

// IsZero returns true if no tokens were reported.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.TotalTokens == 0
}

// GenerationInfo returns the usage in the GenerationInfo form used by ContentChoice.
func (u Usage) GenerationInfo() map[string]any {
	return map[string]any{
		"InputTokens":  u.InputTokens,
		"OutputTokens": u.OutputTokens,
		"TotalTokens":  u.TotalTokens,
	}
}

// Document is a piece of text with metadata, returned by loaders and retrievers.
type Document struct {
	PageContent string         `json:"page_content"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Score       float32        `json:"score,omitempty"`
}

// Timeout returns the timeout set with WithTimeout, zero if none.
func (r *Request) Timeout() time.Duration {
	return r.CallOptions(CallOptions{}).Timeout
}

// Model returns the model set with WithModel, empty if none.
func (r *Request) Model() string {
	return r.CallOptions(CallOptions{}).Model
}

// EmbeddingRequest is the caller intent for an embedding call.
type EmbeddingRequest struct {
	Texts []string `json:"texts"`
	// Model overrides the embedding model of the handle.
	Model string `json:"model,omitempty"`
}

// Validate returns UnsupportedInputError if there is nothing to embed.
func (r *EmbeddingRequest) Validate(provider ProviderType) error {
	if r == nil || len(r.Texts) == 0 {
		return &UnsupportedInputError{Provider: provider, Input: "empty content", Reason: "no texts to embed"}
	}
	for i, t := range r.Texts {
		if t == "" {
			return &UnsupportedInputError{Provider: provider, Input: "empty content", Reason: "text " + strconv.Itoa(i) + " is empty"}
		}
	}
	return nil
}

// EmbeddingResult holds one vector per input text, in the input order.
type EmbeddingResult struct {
	Vectors [][]float32 `json:"vectors"`
	Model   string      `json:"model,omitempty"`
	Usage   Usage       `json:"usage"`
}
