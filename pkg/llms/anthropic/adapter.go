package anthropic

import (
	"context"
	"encoding/json"
	"iter"
	"net/http"
	"strings"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/x/values"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
)

// ensure Adapter implements the pipeline stages
var (
	_ pipeline.Adapter[*llms.Request, *Payload, *sdkanthropic.Message, *llms.ContentResponse] = (*Adapter)(nil)
	_ pipeline.StreamDispatcher[*Payload]                                                      = (*Adapter)(nil)
)

// Payload is a Messages API request with its per-request options.
type Payload struct {
	Params         sdkanthropic.MessageNewParams
	RequestOptions []option.RequestOption
}

// Adapter maps requests to the Messages API.
type Adapter struct {
	client     *sdkanthropic.Client
	betaHeader string
}

// Adapt builds the Messages API parameters. It does not modify req and
// performs no I/O.
func (a *Adapter) Adapt(req *llms.Request, h *provider.Handle) (*Payload, error) {
	if err := req.Validate(h.Provider()); err != nil {
		return nil, err
	}
	opts := req.CallOptions(h.CallOptions())

	chatMessages, systemBlocks, refs, err := convertMessages(req.Messages)
	if err != nil {
		return nil, err
	}
	if len(chatMessages) == 0 {
		return nil, unsupported("empty content", "request must contain a user message")
	}

	params := sdkanthropic.MessageNewParams{
		Model:     sdkanthropic.Model(opts.Model),
		Messages:  chatMessages,
		MaxTokens: values.NumbersCoalesce(int64(opts.MaxTokens), DefaultMaxTokens),
	}
	if len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if opts.Temperature > 0 {
		params.Temperature = sdkanthropic.Float(opts.Temperature)
	}
	if opts.TopP > 0 {
		params.TopP = sdkanthropic.Float(opts.TopP)
	}
	if opts.TopK > 0 {
		params.TopK = sdkanthropic.Int(int64(opts.TopK))
	}
	if len(opts.StopWords) > 0 {
		params.StopSequences = opts.StopWords
	}
	for _, tool := range opts.Tools {
		if tool.Type != "" && tool.Type != "function" {
			return nil, unsupported("tool "+tool.Type, "only function tools are supported")
		}
	}
	if tools := ToTools(opts.Tools); len(tools) > 0 {
		params.Tools = tools
		if choice, ok := toolChoice(opts.ToolChoice); ok {
			params.ToolChoice = choice
		}
	}

	reqOpts, err := applyCachePolicy(a.betaHeader, &params, opts.PromptCachePolicy, refs)
	if err != nil {
		return nil, err
	}
	if cfg := toAnthropicOutputConfig(opts.ResponseFormat); cfg != nil {
		reqOpts = append(reqOpts, option.WithJSONSet("output_config", cfg))
	}

	return &Payload{
		Params:         params,
		RequestOptions: reqOpts,
	}, nil
}

// toolChoice maps "auto", "none", "required" or a llms.ToolChoice naming a function.
func toolChoice(choice any) (sdkanthropic.ToolChoiceUnionParam, bool) {
	switch c := choice.(type) {
	case string:
		switch c {
		case "auto":
			return sdkanthropic.ToolChoiceUnionParam{OfAuto: &sdkanthropic.ToolChoiceAutoParam{}}, true
		case "none":
			return sdkanthropic.ToolChoiceUnionParam{OfNone: &sdkanthropic.ToolChoiceNoneParam{}}, true
		case "required", "any":
			return sdkanthropic.ToolChoiceUnionParam{OfAny: &sdkanthropic.ToolChoiceAnyParam{}}, true
		}
	case llms.ToolChoice:
		if c.Function != nil && c.Function.Name != "" {
			return sdkanthropic.ToolChoiceUnionParam{OfTool: &sdkanthropic.ToolChoiceToolParam{Name: c.Function.Name}}, true
		}
	case *llms.ToolChoice:
		if c != nil {
			return toolChoice(*c)
		}
	}
	return sdkanthropic.ToolChoiceUnionParam{}, false
}

// Invoke sends the message request. The SDK retries are disabled,
// so this makes exactly one network call.
func (a *Adapter) Invoke(ctx context.Context, payload *Payload, h *provider.Handle) (*sdkanthropic.Message, error) {
	logger.ContextKV(ctx, xlog.DEBUG, "model", payload.Params.Model, "messages", len(payload.Params.Messages))
	msg, err := a.client.Messages.New(ctx, payload.Params, payload.RequestOptions...)
	if err != nil {
		return nil, mapError(err)
	}
	return msg, nil
}

// AdaptResponse maps a message to a ContentResponse with a choice per text
// or tool use block. It is pure: the same input always gives the same result.
func (a *Adapter) AdaptResponse(msg *sdkanthropic.Message) (*llms.ContentResponse, error) {
	if msg == nil {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderAnthropic, Reason: "empty message"}
	}

	usage := llms.Usage{
		InputTokens:  msg.Usage.InputTokens,
		OutputTokens: msg.Usage.OutputTokens,
		TotalTokens:  msg.Usage.InputTokens + msg.Usage.OutputTokens,
	}
	info := func(i int) map[string]any {
		gi := usage.GenerationInfo()
		gi["ID"] = msg.ID
		gi["Index"] = i
		gi["CacheReadTokens"] = msg.Usage.CacheReadInputTokens
		gi["CacheWriteTokens"] = msg.Usage.CacheCreationInputTokens
		return gi
	}

	var choices []*llms.ContentChoice
	for i, block := range msg.Content {
		switch content := block.AsAny().(type) {
		case sdkanthropic.TextBlock:
			choices = append(choices, &llms.ContentChoice{
				Content:        content.Text,
				StopReason:     string(msg.StopReason),
				GenerationInfo: info(i),
			})
		case sdkanthropic.ToolUseBlock:
			args := string(content.Input)
			if args == "" {
				args = "{}"
			}
			choices = append(choices, &llms.ContentChoice{
				ToolCalls: []llms.ToolCall{
					{
						ID:   content.ID,
						Type: "function",
						FunctionCall: &llms.FunctionCall{
							Name:      content.Name,
							Arguments: args,
						},
					},
				},
				StopReason:     string(msg.StopReason),
				GenerationInfo: info(i),
			})
		default:
			// thinking and server tool blocks carry no answer text
			logger.KV(xlog.DEBUG, "status", "skip_block", "type", block.Type)
		}
	}
	if len(choices) == 0 {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderAnthropic, Reason: "no text or tool use content", Err: ErrEmptyResponse}
	}
	return &llms.ContentResponse{Choices: choices}, nil
}

// InvokeStream streams the message and yields the text deltas. The final
// chunk carries the stop reason and the token usage.
func (a *Adapter) InvokeStream(ctx context.Context, payload *Payload, h *provider.Handle) iter.Seq2[llms.Chunk, error] {
	return func(yield func(llms.Chunk, error) bool) {
		stream := a.client.Messages.NewStreaming(ctx, payload.Params, payload.RequestOptions...)
		defer stream.Close()

		var inputTokens int64
		for stream.Next() {
			event := stream.Current()
			switch evt := event.AsAny().(type) {
			case sdkanthropic.MessageStartEvent:
				inputTokens = evt.Message.Usage.InputTokens
			case sdkanthropic.ContentBlockDeltaEvent:
				if delta, ok := evt.Delta.AsAny().(sdkanthropic.TextDelta); ok && delta.Text != "" {
					if !yield(llms.Chunk{Text: delta.Text}, nil) {
						return
					}
				}
			case sdkanthropic.MessageDeltaEvent:
				out := evt.Usage.OutputTokens
				chunk := llms.Chunk{
					StopReason: string(evt.Delta.StopReason),
					Usage: &llms.Usage{
						InputTokens:  inputTokens,
						OutputTokens: out,
						TotalTokens:  inputTokens + out,
					},
				}
				if !yield(chunk, nil) {
					return
				}
			case sdkanthropic.MessageStopEvent:
				return
			}
		}
		if err := stream.Err(); err != nil {
			yield(llms.Chunk{}, mapError(err))
		}
	}
}

// streamErrorPrefix is how the SDK reports an error event in a stream.
const streamErrorPrefix = "received error while streaming: "

var errorTypeStatus = map[string]int{
	"invalid_request_error": http.StatusBadRequest,
	"authentication_error":  http.StatusUnauthorized,
	"permission_error":      http.StatusForbidden,
	"not_found_error":       http.StatusNotFound,
	"request_too_large":     http.StatusRequestEntityTooLarge,
	"rate_limit_error":      http.StatusTooManyRequests,
	"api_error":             http.StatusInternalServerError,
	"overloaded_error":      529,
}

// mapError converts SDK errors to the llms error taxonomy.
func mapError(err error) error {
	var apiErr *sdkanthropic.Error
	if errors.As(err, &apiErr) {
		var header http.Header
		if apiErr.Response != nil {
			header = apiErr.Response.Header
		}
		return llms.ClassifyHTTPStatus(llms.ProviderAnthropic, apiErr.StatusCode, header, []byte(apiErr.RawJSON()))
	}

	if msg := err.Error(); strings.HasPrefix(msg, streamErrorPrefix) {
		data := strings.TrimPrefix(msg, streamErrorPrefix)
		typ := gjson.Get(data, "error.type").String()
		status, ok := errorTypeStatus[typ]
		if !ok {
			status = http.StatusInternalServerError
		}
		return llms.ClassifyHTTPStatus(llms.ProviderAnthropic, status, nil, []byte(data))
	}

	if isDecodeError(err) {
		return &llms.MalformedResponseError{Provider: llms.ProviderAnthropic, Reason: "decode message", Err: err}
	}

	return &llms.TransportError{Provider: llms.ProviderAnthropic, Op: "messages", Err: err}
}

// isDecodeError reports a response body that is not a valid message.
// The SDK decodes with its own copy of encoding/json, so its error types
// are matched by message as well.
func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "invalid character") ||
		strings.Contains(msg, "unexpected end of JSON input") ||
		strings.Contains(msg, "cannot unmarshal")
}
