package openai

import (
	"context"
	"iter"
	"strings"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport/sse"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

var (
	_ pipeline.Adapter[*llms.Request, *responses.ResponseNewParams, []byte, *llms.ContentResponse] = (*responsesAdapter)(nil)
	_ pipeline.StreamDispatcher[*responses.ResponseNewParams]                                      = (*responsesAdapter)(nil)
)

// responsesAdapter maps text requests to the /responses API.
type responsesAdapter struct {
	client      *openaiclient.Client
	promptCache *llms.PromptCacheRequestPolicy
}

// Adapt builds the /responses request. System messages become the
// instructions. Only text content is supported.
func (a *responsesAdapter) Adapt(req *llms.Request, h *provider.Handle) (*responses.ResponseNewParams, error) {
	if err := req.Validate(h.Provider()); err != nil {
		return nil, err
	}
	opts := req.CallOptions(h.CallOptions())
	if len(opts.Tools) > 0 {
		return nil, &llms.UnsupportedInputError{Provider: h.Provider(), Input: "tools", Reason: "tools are supported with the chat completions API"}
	}

	var system []string
	var items responses.ResponseInputParam
	for _, m := range req.Messages {
		for _, p := range m.Parts {
			if _, ok := p.(llms.TextContent); !ok {
				return nil, &llms.UnsupportedInputError{
					Provider: h.Provider(),
					Input:    partName(p),
					Reason:   "only text content is supported with the responses API",
				}
			}
		}
		text := m.GetText()
		if text == "" {
			continue
		}
		switch m.Role {
		case llms.RoleSystem:
			system = append(system, text)
		case llms.RoleAI:
			items = append(items, responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleAssistant))
		default:
			items = append(items, responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser))
		}
	}
	if len(items) == 0 {
		return nil, &llms.UnsupportedInputError{Provider: h.Provider(), Input: "empty content", Reason: "request must contain a user message"}
	}

	params := &responses.ResponseNewParams{
		Model: opts.Model,
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: items},
	}
	if len(system) > 0 {
		params.Instructions = param.NewOpt(strings.Join(system, "\n\n"))
	}
	if opts.MaxTokens > 0 {
		params.MaxOutputTokens = param.NewOpt(int64(opts.MaxTokens))
	}
	if opts.Temperature > 0 {
		params.Temperature = param.NewOpt(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = param.NewOpt(opts.TopP)
	}
	setResponsesCache(params, h.Provider(), requestCache(&opts, a.promptCache))
	return params, nil
}

func partName(p llms.ContentPart) string {
	switch typ := p.(type) {
	case llms.BinaryContent:
		return typ.MIMEType
	case llms.ImageURLContent:
		return "image"
	case llms.ToolCall, llms.ToolCallResponse:
		return "tool call"
	default:
		return "content part"
	}
}

// Invoke sends the request.
func (a *responsesAdapter) Invoke(ctx context.Context, payload *responses.ResponseNewParams, _ *provider.Handle) ([]byte, error) {
	return a.client.CreateResponse(ctx, payload)
}

// AdaptResponse maps a /responses result to a ContentResponse.
func (a *responsesAdapter) AdaptResponse(raw []byte) (*llms.ContentResponse, error) {
	resp, err := openaiclient.ParseResponse(a.client.Provider, raw)
	if err != nil {
		return nil, err
	}
	usage := llms.Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		TotalTokens:  resp.Usage.TotalTokens,
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{
			{
				Content:        resp.OutputText(),
				StopReason:     string(resp.Status),
				GenerationInfo: usage.GenerationInfo(),
			},
		},
	}, nil
}

// InvokeStream streams the request and yields the output text deltas.
// The stream ends at the completed, incomplete or failed event.
func (a *responsesAdapter) InvokeStream(ctx context.Context, payload *responses.ResponseNewParams, h *provider.Handle) iter.Seq2[llms.Chunk, error] {
	return func(yield func(llms.Chunk, error) bool) {
		stream, err := a.client.StreamResponse(ctx, payload)
		if err != nil {
			yield(llms.Chunk{}, err)
			return
		}

		for ev, err := range sse.Events(stream) {
			if err != nil {
				yield(llms.Chunk{}, &llms.TransportError{Provider: h.Provider(), Op: "stream", Err: err})
				return
			}
			if ev.Data == "" || ev.Data == "[DONE]" {
				continue
			}
			se, err := openaiclient.ParseStreamEvent(h.Provider(), []byte(ev.Data))
			if err != nil {
				yield(llms.Chunk{}, err)
				return
			}

			switch se.Type {
			case openaiclient.EventOutputTextDelta:
				if se.Delta == "" {
					continue
				}
				if !yield(llms.Chunk{Text: se.Delta}, nil) {
					return
				}
			case openaiclient.EventCompleted, openaiclient.EventIncomplete:
				chunk := llms.Chunk{StopReason: "completed"}
				if se.Response != nil {
					if se.Response.Status != "" {
						chunk.StopReason = se.Response.Status
					}
					if u := se.Response.Usage; u != nil {
						chunk.Usage = &llms.Usage{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens, TotalTokens: u.TotalTokens}
					}
				}
				yield(chunk, nil)
				return
			case openaiclient.EventFailed, openaiclient.EventError:
				pe := &llms.ProviderError{Provider: h.Provider(), StatusCode: 200, Type: se.Code, Message: se.Message}
				if se.Response != nil && se.Response.Error != nil {
					pe.Type = se.Response.Error.Code
					pe.Message = se.Response.Error.Message
				}
				yield(llms.Chunk{}, pe)
				return
			}
		}
	}
}
