package openai

import (
	"context"
	"iter"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/openai/internal/openaiclient"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/schema"
	"github.com/effective-security/llmkit/pkg/transport/sse"
)

// ChatMessage is a message of a chat completions request.
type ChatMessage = openaiclient.ChatMessage

// ChatRequest is the payload of a chat completions request.
type ChatRequest = openaiclient.ChatRequest

const (
	RoleSystem    = "system"
	RoleAssistant = "assistant"
	RoleUser      = "user"
	RoleTool      = "tool"
)

var (
	_ pipeline.Adapter[*llms.Request, *ChatRequest, []byte, *llms.ContentResponse] = (*chatAdapter)(nil)
	_ pipeline.StreamDispatcher[*ChatRequest]                                      = (*chatAdapter)(nil)
)

// chatAdapter maps requests to the /chat/completions API.
type chatAdapter struct {
	client         *openaiclient.Client
	responseFormat *schema.ResponseFormat
	promptCache    *llms.PromptCacheRequestPolicy
}

// Adapt builds the chat request. It performs no I/O and does not modify req.
func (a *chatAdapter) Adapt(req *llms.Request, h *provider.Handle) (*ChatRequest, error) {
	if err := req.Validate(h.Provider()); err != nil {
		return nil, err
	}
	opts := req.CallOptions(h.CallOptions())

	chatMsgs := make([]*ChatMessage, 0, len(req.Messages))
	for _, mc := range req.Messages {
		msg, err := chatMessage(h.Provider(), mc)
		if err != nil {
			return nil, err
		}
		chatMsgs = append(chatMsgs, msg)
	}

	r := &ChatRequest{
		Model:            opts.Model,
		StopWords:        opts.StopWords,
		Messages:         chatMsgs,
		Temperature:      opts.Temperature,
		TopP:             opts.TopP,
		N:                opts.N,
		FrequencyPenalty: opts.FrequencyPenalty,
		PresencePenalty:  opts.PresencePenalty,
		ToolChoice:       opts.ToolChoice,
		Seed:             opts.Seed,
		Metadata:         opts.Metadata,
		ResponseFormat:   opts.ResponseFormat,
	}
	if h.Provider() == llms.ProviderPerplexity {
		r.MaxTokens = opts.MaxTokens
	} else {
		r.MaxCompletionTokens = opts.MaxTokens
	}
	if r.ResponseFormat == nil {
		r.ResponseFormat = a.responseFormat
	}

	for _, tool := range opts.Tools {
		t, err := toolFromTool(h.Provider(), tool)
		if err != nil {
			return nil, err
		}
		r.Tools = append(r.Tools, t)
	}

	setChatCache(r, h.Provider(), requestCache(&opts, a.promptCache))
	return r, nil
}

func chatMessage(pt llms.ProviderType, mc llms.Message) (*ChatMessage, error) {
	msg := &ChatMessage{MultiContent: mc.Parts}
	switch mc.Role {
	case llms.RoleSystem:
		msg.Role = RoleSystem
	case llms.RoleAI:
		msg.Role = RoleAssistant
	case llms.RoleHuman, llms.RoleGeneric:
		msg.Role = RoleUser
	case llms.RoleTool:
		msg.Role = RoleTool
		// a tool message carries exactly one ToolCallResponse
		if len(mc.Parts) != 1 {
			return nil, &llms.UnsupportedInputError{
				Provider: pt,
				Input:    "tool message",
				Reason:   "expected exactly one part",
			}
		}
		p, ok := mc.Parts[0].(llms.ToolCallResponse)
		if !ok {
			return nil, &llms.UnsupportedInputError{
				Provider: pt,
				Input:    "tool message",
				Reason:   "expected a tool call response",
			}
		}
		msg.ToolCallID = p.ToolCallID
		msg.Content = p.Content
		msg.MultiContent = nil
		return msg, nil
	default:
		return nil, &llms.UnsupportedInputError{Provider: pt, Input: "role " + string(mc.Role)}
	}

	newParts, toolCalls := ExtractToolParts(msg)
	msg.MultiContent = newParts
	msg.ToolCalls = toolCallsFromToolCalls(toolCalls)
	return msg, nil
}

// Invoke sends the chat request.
func (a *chatAdapter) Invoke(ctx context.Context, payload *ChatRequest, _ *provider.Handle) ([]byte, error) {
	return a.client.CreateChat(ctx, payload)
}

// AdaptResponse maps a chat completion to a ContentResponse.
func (a *chatAdapter) AdaptResponse(raw []byte) (*llms.ContentResponse, error) {
	result, err := openaiclient.ParseChatResponse(a.client.Provider, raw)
	if err != nil {
		return nil, err
	}

	usage := llms.Usage{
		InputTokens:  int64(result.Usage.PromptTokens),
		OutputTokens: int64(result.Usage.CompletionTokens),
		TotalTokens:  int64(result.Usage.TotalTokens),
	}

	choices := make([]*llms.ContentChoice, len(result.Choices))
	for i, c := range result.Choices {
		info := usage.GenerationInfo()
		info["ReasoningTokens"] = result.Usage.CompletionTokensDetails.ReasoningTokens
		choices[i] = &llms.ContentChoice{
			Content:        c.Message.Content,
			StopReason:     c.FinishReason,
			GenerationInfo: info,
		}
		for _, tool := range c.Message.ToolCalls {
			choices[i].ToolCalls = append(choices[i].ToolCalls, llms.ToolCall{
				ID:   tool.ID,
				Type: string(tool.Type),
				FunctionCall: &llms.FunctionCall{
					Name:      tool.Function.Name,
					Arguments: tool.Function.Arguments,
				},
			})
		}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// InvokeStream sends the chat request with streaming enabled and yields the
// content deltas of the first choice.
func (a *chatAdapter) InvokeStream(ctx context.Context, payload *ChatRequest, h *provider.Handle) iter.Seq2[llms.Chunk, error] {
	return func(yield func(llms.Chunk, error) bool) {
		stream, err := a.client.StreamChat(ctx, payload)
		if err != nil {
			yield(llms.Chunk{}, err)
			return
		}

		for ev, err := range sse.Events(stream) {
			if err != nil {
				yield(llms.Chunk{}, &llms.TransportError{Provider: h.Provider(), Op: "stream", Err: err})
				return
			}
			if ev.Data == "[DONE]" {
				return
			}
			sc, err := openaiclient.ParseStreamChunk(h.Provider(), []byte(ev.Data))
			if err != nil {
				yield(llms.Chunk{}, err)
				return
			}

			var chunk llms.Chunk
			if len(sc.Choices) > 0 {
				chunk.Text = sc.Choices[0].Delta.Content
				chunk.StopReason = sc.Choices[0].FinishReason
			}
			if sc.Usage != nil {
				chunk.Usage = &llms.Usage{
					InputTokens:  int64(sc.Usage.PromptTokens),
					OutputTokens: int64(sc.Usage.CompletionTokens),
					TotalTokens:  int64(sc.Usage.TotalTokens),
				}
			}
			if chunk.Text == "" && chunk.StopReason == "" && chunk.Usage == nil {
				continue
			}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// ExtractToolParts splits the parts of a message into content and tool calls.
func ExtractToolParts(msg *ChatMessage) ([]llms.ContentPart, []llms.ToolCall) {
	var content []llms.ContentPart
	var toolCalls []llms.ToolCall
	for _, part := range msg.MultiContent {
		switch p := part.(type) {
		case llms.TextContent, llms.ImageURLContent, llms.BinaryContent:
			content = append(content, p)
		case llms.ToolCall:
			toolCalls = append(toolCalls, p)
		}
	}
	return content, toolCalls
}

// toolFromTool converts an llms.Tool to a Tool.
func toolFromTool(pt llms.ProviderType, t llms.Tool) (openaiclient.Tool, error) {
	if t.Type != string(openaiclient.ToolTypeFunction) || t.Function == nil {
		return openaiclient.Tool{}, &llms.UnsupportedInputError{
			Provider: pt,
			Input:    "tool type " + t.Type,
			Reason:   "only function tools are supported",
		}
	}
	tool := openaiclient.Tool{
		Type: openaiclient.ToolTypeFunction,
		Function: openaiclient.FunctionDefinition{
			Name:        t.Function.Name,
			Description: t.Function.Description,
			Strict:      t.Function.Strict,
		},
	}
	if t.Function.Parameters != nil {
		tool.Function.Parameters = t.Function.Parameters
	}
	return tool, nil
}

// toolCallsFromToolCalls converts a slice of llms.ToolCall to a slice of ToolCall.
func toolCallsFromToolCalls(tcs []llms.ToolCall) []openaiclient.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	toolCalls := make([]openaiclient.ToolCall, len(tcs))
	for i, tc := range tcs {
		toolCalls[i] = openaiclient.ToolCall{
			ID:   tc.ID,
			Type: openaiclient.ToolType(tc.Type),
		}
		if tc.FunctionCall != nil {
			toolCalls[i].Function = openaiclient.ToolFunction{
				Name:      tc.FunctionCall.Name,
				Arguments: tc.FunctionCall.Arguments,
			}
		}
	}
	return toolCalls
}
