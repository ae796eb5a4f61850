package openaiclient

import (
	"context"
	"encoding/json"
	"io"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/schema"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
)

// ToolType is the type of a tool.
type ToolType string

const (
	ToolTypeFunction ToolType = "function"
)

// ChatRequest is a request to the chat completions API.
type ChatRequest struct {
	Model               string         `json:"model"`
	Messages            []*ChatMessage `json:"messages"`
	Temperature         float64        `json:"temperature,omitempty"`
	TopP                float64        `json:"top_p,omitempty"`
	MaxTokens           int            `json:"max_tokens,omitempty"`
	MaxCompletionTokens int            `json:"max_completion_tokens,omitempty"`
	N                   int            `json:"n,omitempty"`
	StopWords           []string       `json:"stop,omitempty"`
	FrequencyPenalty    float64        `json:"frequency_penalty,omitempty"`
	PresencePenalty     float64        `json:"presence_penalty,omitempty"`
	Seed                int            `json:"seed,omitempty"`

	Tools      []Tool `json:"tools,omitempty"`
	ToolChoice any    `json:"tool_choice,omitempty"`

	ResponseFormat *schema.ResponseFormat `json:"response_format,omitempty"`
	Metadata       map[string]any         `json:"metadata,omitempty"`

	PromptCacheKey       string `json:"prompt_cache_key,omitempty"`
	PromptCacheRetention string `json:"prompt_cache_retention,omitempty"`

	Stream        bool           `json:"stream,omitempty"`
	StreamOptions *StreamOptions `json:"stream_options,omitempty"`
}

// StreamOptions asks for usage in the last streamed chunk.
type StreamOptions struct {
	IncludeUsage bool `json:"include_usage,omitempty"`
}

// ChatMessage is a message in a chat request.
type ChatMessage struct {
	Role string
	// Content is used when the message has no parts, e.g. tool results.
	Content string
	// MultiContent is text and image parts.
	MultiContent []llms.ContentPart
	ToolCalls    []ToolCall
	ToolCallID   string
	Name         string
}

type textPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// MarshalJSON sends a single text part as a string, and multiple
// or image parts as an array of typed parts.
func (m ChatMessage) MarshalJSON() ([]byte, error) {
	out := struct {
		Role       string     `json:"role"`
		Content    any        `json:"content,omitempty"`
		ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
		ToolCallID string     `json:"tool_call_id,omitempty"`
		Name       string     `json:"name,omitempty"`
	}{
		Role:       m.Role,
		ToolCalls:  m.ToolCalls,
		ToolCallID: m.ToolCallID,
		Name:       m.Name,
	}

	switch {
	case len(m.MultiContent) == 1:
		if tc, ok := m.MultiContent[0].(llms.TextContent); ok {
			out.Content = tc.Text
			break
		}
		out.Content = contentParts(m.MultiContent)
	case len(m.MultiContent) > 1:
		out.Content = contentParts(m.MultiContent)
	case m.Content != "":
		out.Content = m.Content
	}
	return json.Marshal(out)
}

func contentParts(parts []llms.ContentPart) []textPart {
	res := make([]textPart, 0, len(parts))
	for _, p := range parts {
		switch typ := p.(type) {
		case llms.TextContent:
			res = append(res, textPart{Type: "text", Text: typ.Text})
		case llms.ImageURLContent:
			res = append(res, textPart{Type: "image_url", ImageURL: &imageURL{URL: typ.URL, Detail: typ.Detail}})
		case llms.BinaryContent:
			res = append(res, textPart{Type: "image_url", ImageURL: &imageURL{URL: typ.String()}})
		}
	}
	return res
}

// Tool is a tool definition.
type Tool struct {
	Type     ToolType           `json:"type"`
	Function FunctionDefinition `json:"function,omitempty"`
}

// FunctionDefinition is a function the model may call.
type FunctionDefinition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
	Strict      bool   `json:"strict,omitempty"`
}

// ToolCall is a tool call requested by the model.
type ToolCall struct {
	Index    *int         `json:"index,omitempty"`
	ID       string       `json:"id,omitempty"`
	Type     ToolType     `json:"type,omitempty"`
	Function ToolFunction `json:"function"`
}

// ToolFunction is the function name and JSON arguments of a tool call.
type ToolFunction struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ChatUsage is the token usage of a chat completion.
type ChatUsage struct {
	PromptTokens            int `json:"prompt_tokens"`
	CompletionTokens        int `json:"completion_tokens"`
	TotalTokens             int `json:"total_tokens"`
	CompletionTokensDetails struct {
		ReasoningTokens int `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

// ChatCompletionMessage is the message of a completion choice.
type ChatCompletionMessage struct {
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ChatCompletionChoice is one choice of a completion.
type ChatCompletionChoice struct {
	Index        int                   `json:"index"`
	Message      ChatCompletionMessage `json:"message"`
	FinishReason string                `json:"finish_reason"`
}

// ChatCompletionResponse is the response of the chat completions API.
type ChatCompletionResponse struct {
	ID      string                  `json:"id,omitempty"`
	Created int64                   `json:"created,omitempty"`
	Model   string                  `json:"model,omitempty"`
	Choices []*ChatCompletionChoice `json:"choices"`
	Usage   ChatUsage               `json:"usage"`
}

// StreamedChatResponsePayload is one chunk of a streamed completion.
type StreamedChatResponsePayload struct {
	ID      string `json:"id,omitempty"`
	Model   string `json:"model,omitempty"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role      string     `json:"role,omitempty"`
			Content   string     `json:"content,omitempty"`
			ToolCalls []ToolCall `json:"tool_calls,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage *ChatUsage `json:"usage,omitempty"`
}

// CreateChat sends a chat request and returns the raw response body.
func (c *Client) CreateChat(ctx context.Context, r *ChatRequest) ([]byte, error) {
	u := c.BuildURL("/chat/completions", r.Model)
	logger.ContextKV(ctx, xlog.DEBUG, "url", u, "model", r.Model)
	return transport.PostJSON(ctx, c.httpClient, c.Provider, u, c.headers(), r)
}

// StreamChat sends a streaming chat request and returns the event stream.
// The request is not modified.
func (c *Client) StreamChat(ctx context.Context, r *ChatRequest) (io.ReadCloser, error) {
	sr := *r
	sr.Stream = true
	sr.StreamOptions = &StreamOptions{IncludeUsage: true}

	u := c.BuildURL("/chat/completions", r.Model)
	logger.ContextKV(ctx, xlog.DEBUG, "url", u, "model", r.Model, "stream", true)
	return transport.OpenStream(ctx, c.httpClient, c.Provider, u, c.headers(), &sr)
}

// ParseChatResponse decodes a chat completion.
func ParseChatResponse(provider llms.ProviderType, raw []byte) (*ChatCompletionResponse, error) {
	var resp ChatCompletionResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &llms.MalformedResponseError{Provider: provider, Reason: "decode chat completion", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &llms.MalformedResponseError{Provider: provider, Reason: "no choices", Err: ErrEmptyResponse}
	}
	return &resp, nil
}

// ParseStreamChunk decodes a streamed chunk.
func ParseStreamChunk(provider llms.ProviderType, data []byte) (*StreamedChatResponsePayload, error) {
	var chunk StreamedChatResponsePayload
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, &llms.MalformedResponseError{Provider: provider, Reason: "decode stream chunk", Err: err}
	}
	return &chunk, nil
}
