package bedrock

import (
	"context"
	"iter"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/bedrock/internal/bedrockclient"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg/llms", "bedrock")

var (
	_ pipeline.Adapter[*llms.Request, *bedrockclient.Request, *bedrockclient.Response, *llms.ContentResponse] = (*Adapter)(nil)
	_ pipeline.StreamDispatcher[*bedrockclient.Request]                                                       = (*Adapter)(nil)
)

// Adapter maps requests to the body format of the model family.
type Adapter struct {
	client *bedrockclient.Client
}

// Adapt returns the invocation body. It does not modify req and performs no I/O.
func (a *Adapter) Adapt(req *llms.Request, h *provider.Handle) (*bedrockclient.Request, error) {
	if err := req.Validate(h.Provider()); err != nil {
		return nil, err
	}
	opts := req.CallOptions(h.CallOptions())

	family := bedrockclient.Family(opts.Model)
	if !bedrockclient.SupportsFamily(family) {
		return nil, &llms.InvalidOptionError{
			Provider: llms.ProviderBedrock,
			Option:   "model",
			Value:    opts.Model,
			Reason:   "unsupported model family " + family,
		}
	}

	msgs, err := processMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	body, err := bedrockclient.BuildBody(family, msgs, opts)
	if err != nil {
		return nil, err
	}
	return &bedrockclient.Request{
		ModelID: opts.Model,
		Family:  family,
		Body:    body,
	}, nil
}

// Invoke calls InvokeModel once.
func (a *Adapter) Invoke(ctx context.Context, payload *bedrockclient.Request, _ *provider.Handle) (*bedrockclient.Response, error) {
	return a.client.InvokeModel(ctx, payload)
}

// AdaptResponse decodes the body in the format of its family.
func (a *Adapter) AdaptResponse(raw *bedrockclient.Response) (*llms.ContentResponse, error) {
	if raw == nil {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderBedrock, Reason: "empty response"}
	}
	return bedrockclient.ParseOutput(raw)
}

// InvokeStream calls InvokeModelWithResponseStream and yields the text of
// each chunk event. The event stream is closed when the consumer stops.
func (a *Adapter) InvokeStream(ctx context.Context, payload *bedrockclient.Request, _ *provider.Handle) iter.Seq2[llms.Chunk, error] {
	return func(yield func(llms.Chunk, error) bool) {
		parse, err := bedrockclient.NewStreamParser(payload.Family)
		if err != nil {
			yield(llms.Chunk{}, err)
			return
		}
		for data, err := range a.client.InvokeModelStream(ctx, payload) {
			if err != nil {
				yield(llms.Chunk{}, err)
				return
			}
			chunk, done, err := parse(data)
			if err != nil {
				yield(llms.Chunk{}, err)
				return
			}
			if chunk.Text != "" || chunk.Usage != nil || chunk.StopReason != "" {
				if !yield(chunk, nil) {
					return
				}
			}
			if done {
				logger.ContextKV(ctx, xlog.DEBUG, "status", "stream_done", "model", payload.ModelID)
				return
			}
		}
	}
}

func processMessages(messages []llms.Message) ([]bedrockclient.Message, error) {
	bedrockMsgs := make([]bedrockclient.Message, 0, len(messages))

	for _, m := range messages {
		for _, part := range m.Parts {
			switch part := part.(type) {
			case llms.TextContent:
				bedrockMsgs = append(bedrockMsgs, bedrockclient.Message{
					Role:    m.Role,
					Content: part.Text,
					Type:    bedrockclient.AnthropicMessageTypeText,
				})
			case llms.BinaryContent:
				if !isImage(part.MIMEType) {
					return nil, &llms.UnsupportedInputError{Provider: llms.ProviderBedrock, Input: part.MIMEType, Reason: "only images are supported as binary content"}
				}
				bedrockMsgs = append(bedrockMsgs, bedrockclient.Message{
					Role:     m.Role,
					Content:  string(part.Data),
					MimeType: part.MIMEType,
					Type:     bedrockclient.AnthropicMessageTypeImage,
				})
			case llms.ImageURLContent:
				return nil, &llms.UnsupportedInputError{Provider: llms.ProviderBedrock, Input: "image_url", Reason: "images must be sent as binary content"}
			case llms.ToolCall:
				if part.FunctionCall == nil {
					return nil, &llms.UnsupportedInputError{Provider: llms.ProviderBedrock, Input: "tool call", Reason: "tool call has no function"}
				}
				bedrockMsgs = append(bedrockMsgs, bedrockclient.Message{
					Role:       m.Role,
					Type:       bedrockclient.AnthropicMessageTypeToolUse,
					ToolCallID: part.ID,
					ToolName:   part.FunctionCall.Name,
					ToolInput:  part.FunctionCall.Arguments,
				})
			case llms.ToolCallResponse:
				bedrockMsgs = append(bedrockMsgs, bedrockclient.Message{
					Role:       m.Role,
					Content:    part.Content,
					Type:       bedrockclient.AnthropicMessageTypeToolResult,
					ToolCallID: part.ToolCallID,
				})
			default:
				return nil, &llms.UnsupportedInputError{Provider: llms.ProviderBedrock, Input: "content part", Reason: "unsupported content part"}
			}
		}
	}
	return bedrockMsgs, nil
}

func isImage(mimeType string) bool {
	switch mimeType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	}
	return false
}
