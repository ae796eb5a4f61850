package openaiclient

import (
	"context"
	"encoding/json"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
	"github.com/openai/openai-go/v3/responses"
	"github.com/tidwall/sjson"
)

// Responses API stream event types.
const (
	EventOutputTextDelta = "response.output_text.delta"
	EventCompleted       = "response.completed"
	EventIncomplete      = "response.incomplete"
	EventFailed          = "response.failed"
	EventError           = "error"
)

// CreateResponse sends the request to /responses and returns the raw response body.
func (c *Client) CreateResponse(ctx context.Context, payload *responses.ResponseNewParams) ([]byte, error) {
	u := c.BuildURL("/responses", payload.Model)
	logger.ContextKV(ctx, xlog.DEBUG, "url", u, "model", payload.Model)
	return transport.PostJSON(ctx, c.httpClient, c.Provider, u, c.headers(), payload)
}

// StreamResponse sends a streaming request to /responses and returns the event stream.
func (c *Client) StreamResponse(ctx context.Context, payload *responses.ResponseNewParams) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, "marshal payload")
	}
	body, err = sjson.SetBytes(body, "stream", true)
	if err != nil {
		return nil, errors.Wrap(err, "set stream flag")
	}

	u := c.BuildURL("/responses", payload.Model)
	logger.ContextKV(ctx, xlog.DEBUG, "url", u, "model", payload.Model, "stream", true)
	return transport.OpenStream(ctx, c.httpClient, c.Provider, u, c.headers(), body)
}

// ParseResponse decodes a response of the /responses API.
func ParseResponse(provider llms.ProviderType, raw []byte) (*responses.Response, error) {
	var resp responses.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, &llms.MalformedResponseError{Provider: provider, Reason: "decode response", Err: err}
	}
	if len(resp.Output) == 0 {
		return nil, &llms.MalformedResponseError{Provider: provider, Reason: "no output", Err: ErrEmptyResponse}
	}
	return &resp, nil
}

// StreamEvent is the subset of a /responses stream event used to build chunks.
type StreamEvent struct {
	Type     string `json:"type"`
	Delta    string `json:"delta,omitempty"`
	Message  string `json:"message,omitempty"`
	Code     string `json:"code,omitempty"`
	Response *struct {
		Status string `json:"status,omitempty"`
		Usage  *struct {
			InputTokens  int64 `json:"input_tokens"`
			OutputTokens int64 `json:"output_tokens"`
			TotalTokens  int64 `json:"total_tokens"`
		} `json:"usage,omitempty"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"response,omitempty"`
}

// ParseStreamEvent decodes a /responses stream event.
func ParseStreamEvent(provider llms.ProviderType, data []byte) (*StreamEvent, error) {
	var ev StreamEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, &llms.MalformedResponseError{Provider: provider, Reason: "decode stream event", Err: err}
	}
	return &ev, nil
}
