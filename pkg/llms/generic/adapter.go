package generic

import (
	"context"
	"io"
	"iter"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/llmkit/pkg/transport/sse"
	"github.com/effective-security/xlog"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ensure Adapter implements the pipeline stages
var (
	_ pipeline.Adapter[*llms.Request, []byte, []byte, *llms.ContentResponse] = (*Adapter)(nil)
	_ pipeline.StreamDispatcher[[]byte]                                       = (*Adapter)(nil)
)

// Adapter maps requests to JSON bodies and JSON responses to results
// using the field paths of its Config.
type Adapter struct {
	cfg    Config
	client transport.Doer
}

// NewAdapter returns an adapter for the config.
func NewAdapter(cfg Config, client transport.Doer) *Adapter {
	return &Adapter{
		cfg:    cfg,
		client: client,
	}
}

// Config returns the field mapping of the adapter.
func (a *Adapter) Config() Config {
	return a.cfg
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func roleName(r llms.Role) string {
	switch r {
	case llms.RoleSystem:
		return "system"
	case llms.RoleAI:
		return "assistant"
	case llms.RoleTool:
		return "tool"
	default:
		return "user"
	}
}

// Adapt builds the JSON body. It does not modify req and performs no I/O.
func (a *Adapter) Adapt(req *llms.Request, h *provider.Handle) ([]byte, error) {
	if err := req.Validate(h.Provider()); err != nil {
		return nil, err
	}
	opts := req.CallOptions(h.CallOptions())

	var system []string
	var prompt []string
	var msgs []message
	for _, m := range req.Messages {
		for _, p := range m.Parts {
			switch typ := p.(type) {
			case llms.ImageURLContent:
				return nil, &llms.UnsupportedInputError{Provider: h.Provider(), Input: "image", Reason: "only text content is supported"}
			case llms.BinaryContent:
				return nil, &llms.UnsupportedInputError{Provider: h.Provider(), Input: typ.MIMEType, Reason: "only text content is supported"}
			case llms.ToolCall, llms.ToolCallResponse:
				return nil, &llms.UnsupportedInputError{Provider: h.Provider(), Input: "tool call", Reason: "tools are not supported"}
			}
		}
		text := m.GetText()
		if text == "" {
			continue
		}
		if m.Role == llms.RoleSystem && (a.cfg.SystemPath != "" || a.cfg.MessagesPath == "") {
			system = append(system, text)
			continue
		}
		prompt = append(prompt, text)
		msgs = append(msgs, message{Role: roleName(m.Role), Content: text})
	}

	if a.cfg.MessagesPath == "" && len(prompt) == 0 {
		return nil, &llms.UnsupportedInputError{
			Provider: h.Provider(),
			Input:    "empty content",
			Reason:   "request must contain a user message",
		}
	}

	body := []byte("{}")
	var err error
	set := func(path string, value any) {
		if err != nil || path == "" {
			return
		}
		body, err = sjson.SetBytes(body, path, value)
	}

	for k, v := range opts.Metadata {
		set(k, v)
	}
	if a.cfg.MessagesPath != "" {
		set(a.cfg.MessagesPath, msgs)
	} else {
		set(a.cfg.PromptPath, strings.Join(prompt, "\n\n"))
	}
	if len(system) > 0 {
		path := a.cfg.SystemPath
		if path == "" {
			// no place for a system prompt, prepend it to the prompt
			set(a.cfg.PromptPath, strings.Join(append(system, prompt...), "\n\n"))
		} else {
			set(path, strings.Join(system, "\n\n"))
		}
	}
	if opts.Model != "" {
		set(a.cfg.ModelPath, opts.Model)
	}
	if err != nil {
		return nil, &llms.InvalidOptionError{Provider: h.Provider(), Option: "field path", Reason: err.Error()}
	}
	return body, nil
}

func (a *Adapter) headers(h *provider.Handle) map[string]string {
	key := h.APIKey()
	if key == "" || a.cfg.AuthHeader == "" {
		return nil
	}
	value := key
	if a.cfg.AuthScheme != "" && !strings.EqualFold(a.cfg.AuthScheme, "none") {
		value = a.cfg.AuthScheme + " " + key
	}
	return map[string]string{a.cfg.AuthHeader: value}
}

// Invoke posts the body to the endpoint.
func (a *Adapter) Invoke(ctx context.Context, payload []byte, h *provider.Handle) ([]byte, error) {
	return transport.PostJSON(ctx, a.client, h.Provider(), h.Endpoint()+a.cfg.GeneratePath, a.headers(h), payload)
}

// AdaptResponse maps a JSON response to a ContentResponse.
// It is pure: the same input always gives the same result.
func (a *Adapter) AdaptResponse(raw []byte) (*llms.ContentResponse, error) {
	if !gjson.ValidBytes(raw) {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderGeneric, Reason: "invalid JSON"}
	}
	res := gjson.ParseBytes(raw)
	text := res.Get(a.cfg.TextPath)
	if !text.Exists() {
		return nil, &llms.MalformedResponseError{Provider: llms.ProviderGeneric, Reason: "missing field " + a.cfg.TextPath}
	}

	choice := &llms.ContentChoice{
		Content: text.String(),
	}
	if a.cfg.StopPath != "" {
		choice.StopReason = res.Get(a.cfg.StopPath).String()
	}
	if usage, ok := a.usage(res); ok {
		choice.GenerationInfo = usage.GenerationInfo()
	}
	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{choice},
	}, nil
}

func (a *Adapter) usage(res gjson.Result) (llms.Usage, bool) {
	var u llms.Usage
	if a.cfg.UsagePath == "" {
		return u, false
	}
	obj := res.Get(a.cfg.UsagePath)
	if !obj.IsObject() {
		return u, false
	}
	u.InputTokens = firstInt(obj, "input_tokens", "prompt_tokens")
	u.OutputTokens = firstInt(obj, "output_tokens", "completion_tokens")
	u.TotalTokens = firstInt(obj, "total_tokens")
	if u.TotalTokens == 0 {
		u.TotalTokens = u.InputTokens + u.OutputTokens
	}
	return u, !u.IsZero()
}

func firstInt(obj gjson.Result, keys ...string) int64 {
	for _, k := range keys {
		if v := obj.Get(k); v.Exists() {
			return v.Int()
		}
	}
	return 0
}

// InvokeStream posts the body with the stream flag set and yields the text
// deltas. The stream ends at the done marker, a "[DONE]" event, or the end
// of the response body.
func (a *Adapter) InvokeStream(ctx context.Context, payload []byte, h *provider.Handle) iter.Seq2[llms.Chunk, error] {
	return func(yield func(llms.Chunk, error) bool) {
		body := payload
		if a.cfg.StreamFlagPath != "" {
			var err error
			body, err = sjson.SetBytes(payload, a.cfg.StreamFlagPath, true)
			if err != nil {
				yield(llms.Chunk{}, &llms.InvalidOptionError{Provider: h.Provider(), Option: ExtraStreamFlagPath, Reason: err.Error()})
				return
			}
		}

		url := h.Endpoint() + a.cfg.GeneratePath
		if a.cfg.StreamPath != "" {
			url = h.Endpoint() + a.cfg.StreamPath
		}
		stream, err := transport.OpenStream(ctx, a.client, h.Provider(), url, a.headers(h), body)
		if err != nil {
			yield(llms.Chunk{}, err)
			return
		}

		for data, err := range a.frames(stream) {
			if err != nil {
				yield(llms.Chunk{}, &llms.TransportError{Provider: h.Provider(), Op: "stream", Err: err})
				return
			}
			if string(data) == "[DONE]" {
				return
			}
			chunk, done, err := a.parseChunk(data)
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
				logger.KV(xlog.DEBUG, "status", "stream_done", "url", url)
				return
			}
		}
	}
}

// frames returns the JSON payloads of the stream in the configured framing.
func (a *Adapter) frames(body io.ReadCloser) iter.Seq2[[]byte, error] {
	if a.cfg.StreamFormat != StreamSSE {
		return transport.Lines(body)
	}
	return func(yield func([]byte, error) bool) {
		for ev, err := range sse.Events(body) {
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield([]byte(ev.Data), nil) {
				return
			}
		}
	}
}

func (a *Adapter) parseChunk(data []byte) (llms.Chunk, bool, error) {
	var chunk llms.Chunk
	if !gjson.ValidBytes(data) {
		return chunk, false, &llms.MalformedResponseError{
			Provider: llms.ProviderGeneric,
			Reason:   "invalid JSON in stream",
			Err:      errors.Newf("%.64q", data),
		}
	}
	res := gjson.ParseBytes(data)
	chunk.Text = res.Get(a.cfg.ChunkPath).String()
	if a.cfg.StopPath != "" {
		chunk.StopReason = res.Get(a.cfg.StopPath).String()
	}
	if u, ok := a.usage(res); ok {
		chunk.Usage = &u
	}
	done := a.cfg.DonePath != "" && res.Get(a.cfg.DonePath).Bool()
	return chunk, done, nil
}
