package anthropic_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/anthropic"
	"github.com/effective-security/llmkit/pkg/pipeline"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const messageReply = `{
	"id": "msg_1",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-5",
	"content": [{"type": "text", "text": "Hello back"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 3, "output_tokens": 2}
}`

func newLLM(t *testing.T, srv *httptest.Server, opts ...anthropic.Option) *anthropic.LLM {
	t.Helper()
	h, err := provider.Configure(provider.Anthropic, provider.Credentials{APIKey: "test-key"}, srv.URL, provider.Options{}, nil)
	require.NoError(t, err)
	llm, err := anthropic.New(h, append([]anthropic.Option{anthropic.WithHTTPClient(srv.Client())}, opts...)...)
	require.NoError(t, err)
	return llm
}

func hello() []llms.Message {
	return []llms.Message{
		llms.MessageFromTextParts(llms.RoleSystem, "be brief"),
		llms.MessageFromTextParts(llms.RoleHuman, "Hello"),
	}
}

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "claude-sonnet-4-5", gjson.GetBytes(body, "model").String())
		assert.Equal(t, "be brief", gjson.GetBytes(body, "system.0.text").String())
		assert.Equal(t, "user", gjson.GetBytes(body, "messages.0.role").String())
		assert.Equal(t, "Hello", gjson.GetBytes(body, "messages.0.content.0.text").String())
		assert.Equal(t, int64(anthropic.DefaultMaxTokens), gjson.GetBytes(body, "max_tokens").Int())
		assert.Equal(t, int64(5), gjson.GetBytes(body, "top_k").Int())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageReply))
	}))
	defer srv.Close()

	llm := newLLM(t, srv)
	res, err := llm.GenerateContent(context.Background(), hello(), llms.WithTopK(5))
	require.NoError(t, err)
	assert.Equal(t, "Hello back", res.Text())
	require.Len(t, res.Choices, 1)
	assert.Equal(t, "end_turn", res.Choices[0].StopReason)
	assert.Equal(t, "msg_1", res.Choices[0].GenerationInfo["ID"])
	assert.Equal(t, llms.Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}, res.Usage())
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateContent_ToolUse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "get_weather", gjson.GetBytes(body, "tools.0.name").String())
		assert.Equal(t, "any", gjson.GetBytes(body, "tool_choice.type").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "msg_2", "type": "message", "role": "assistant", "model": "claude-sonnet-4-5",
			"content": [
				{"type": "text", "text": "Let me check."},
				{"type": "tool_use", "id": "toolu_1", "name": "get_weather", "input": {"location": "Boston"}}
			],
			"stop_reason": "tool_use",
			"usage": {"input_tokens": 10, "output_tokens": 8}
		}`))
	}))
	defer srv.Close()

	tools := []llms.Tool{{
		Type:     "function",
		Function: &llms.FunctionDefinition{Name: "get_weather", Description: "weather"},
	}}

	llm := newLLM(t, srv)
	res, err := llm.GenerateContent(context.Background(), hello(), llms.WithTools(tools), llms.WithToolChoice("required"))
	require.NoError(t, err)
	require.Len(t, res.Choices, 2)
	assert.Equal(t, "Let me check.", res.Choices[0].Content)
	require.Len(t, res.Choices[1].ToolCalls, 1)
	tc := res.Choices[1].ToolCalls[0]
	assert.Equal(t, "toolu_1", tc.ID)
	assert.Equal(t, "get_weather", tc.FunctionCall.Name)
	assert.JSONEq(t, `{"location":"Boston"}`, tc.FunctionCall.Arguments)
}

func TestGenerateContent_UnsupportedInput(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	llm := newLLM(t, srv)
	tests := []struct {
		name     string
		messages []llms.Message
		opts     []llms.CallOption
	}{
		{name: "empty", messages: []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "")}},
		{name: "system only", messages: []llms.Message{llms.MessageFromTextParts(llms.RoleSystem, "be brief")}},
		{name: "pdf", messages: []llms.Message{llms.MessageFromParts(llms.RoleHuman, llms.BinaryPart("application/pdf", []byte("%PDF")))}},
		{name: "image url", messages: []llms.Message{llms.MessageFromParts(llms.RoleHuman, llms.ImageURLPart("https://example.com/a.png"))}},
		{name: "retrieval tool", messages: hello(), opts: []llms.CallOption{llms.WithTools([]llms.Tool{{Type: "retrieval"}})}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := llm.GenerateContent(context.Background(), tc.messages, tc.opts...)
			var uie *llms.UnsupportedInputError
			require.ErrorAs(t, err, &uie)
		})
	}
	assert.Equal(t, int32(0), calls.Load())
}

func TestGenerateContent_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status int
		header map[string]string
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rate limit",
			status: http.StatusTooManyRequests,
			header: map[string]string{"Retry-After": "3"},
			body:   `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`,
			check: func(t *testing.T, err error) {
				var rl *llms.RateLimitError
				require.ErrorAs(t, err, &rl)
				assert.Equal(t, "rate_limit_error", rl.Type)
				assert.Equal(t, "slow down", rl.Message)
				assert.Equal(t, "3s", rl.RetryAfter.String())
				assert.True(t, llms.IsRetryable(err))
			},
		},
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
			check: func(t *testing.T, err error) {
				var pe *llms.ProviderError
				require.ErrorAs(t, err, &pe)
				assert.Equal(t, http.StatusUnauthorized, pe.StatusCode)
				assert.Equal(t, "authentication_error", pe.Type)
				assert.False(t, llms.IsRateLimit(err))
				assert.False(t, llms.IsRetryable(err))
			},
		},
		{
			name:   "overloaded",
			status: 529,
			body:   `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			check: func(t *testing.T, err error) {
				assert.Equal(t, 529, llms.StatusCode(err))
				assert.True(t, llms.IsRetryable(err))
			},
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `<html>`,
			check: func(t *testing.T, err error) {
				var mre *llms.MalformedResponseError
				require.ErrorAs(t, err, &mre)
			},
		},
		{
			name:   "no content",
			status: http.StatusOK,
			body:   `{"id":"msg_3","type":"message","role":"assistant","content":[],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":0}}`,
			check: func(t *testing.T, err error) {
				var mre *llms.MalformedResponseError
				require.ErrorAs(t, err, &mre)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				for k, v := range tc.header {
					w.Header().Set(k, v)
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := newLLM(t, srv).GenerateContent(context.Background(), hello())
			require.Error(t, err)
			tc.check(t, err)
			// no silent retries
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func writeEvent(w io.Writer, event, data string) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}

func messageStreamServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		if !gjson.GetBytes(body, "stream").Bool() {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(messageReply))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		writeEvent(w, "message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"usage":{"input_tokens":3,"output_tokens":1}}}`)
		writeEvent(w, "content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		writeEvent(w, "ping", `{"type":"ping"}`)
		for _, s := range []string{"Hel", "lo", " back"} {
			writeEvent(w, "content_block_delta", fmt.Sprintf(`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":%q}}`, s))
		}
		writeEvent(w, "content_block_stop", `{"type":"content_block_stop","index":0}`)
		writeEvent(w, "message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn","stop_sequence":null},"usage":{"output_tokens":2}}`)
		writeEvent(w, "message_stop", `{"type":"message_stop"}`)
	}))
}

func TestStreamContent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := messageStreamServer(t, &calls)
	defer srv.Close()

	llm := newLLM(t, srv)
	seq := llm.StreamContent(context.Background(), hello())
	assert.Equal(t, int32(0), calls.Load(), "stream must be lazy")

	var texts []string
	var last llms.Chunk
	for chunk, err := range seq {
		require.NoError(t, err)
		if chunk.Text != "" {
			texts = append(texts, chunk.Text)
		}
		last = chunk
	}
	assert.Equal(t, []string{"Hel", "lo", " back"}, texts)
	assert.Equal(t, "end_turn", last.StopReason)
	require.NotNil(t, last.Usage)
	assert.Equal(t, llms.Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}, *last.Usage)

	// the concatenated stream matches the synchronous result
	res, err := llm.GenerateContent(context.Background(), hello())
	require.NoError(t, err)
	assert.Equal(t, res.Text(), strings.Join(texts, ""))

	// not restartable
	for _, err := range seq {
		require.ErrorIs(t, err, pipeline.ErrStreamConsumed)
	}
	assert.Equal(t, int32(2), calls.Load())
}

func TestStreamContent_StopEarly(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := messageStreamServer(t, &calls)
	defer srv.Close()

	var first string
	for chunk, err := range newLLM(t, srv).StreamContent(context.Background(), hello()) {
		require.NoError(t, err)
		first = chunk.Text
		break
	}
	assert.Equal(t, "Hel", first)
}

func TestStreamContent_RateLimit(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	_, _, err := pipeline.Collect(newLLM(t, srv).StreamContent(context.Background(), hello()))
	assert.True(t, llms.IsRateLimit(err), "got %v", err)
}

func TestStreamContent_ErrorEvent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		writeEvent(w, "message_start", `{"type":"message_start","message":{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5","content":[],"usage":{"input_tokens":3,"output_tokens":1}}}`)
		writeEvent(w, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hel"}}`)
		writeEvent(w, "error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer srv.Close()

	text, _, err := pipeline.Collect(newLLM(t, srv).StreamContent(context.Background(), hello()))
	assert.Equal(t, "Hel", text)
	var pe *llms.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 529, pe.StatusCode)
	assert.Equal(t, "overloaded_error", pe.Type)
	assert.Equal(t, "Overloaded", pe.Message)
}

func TestPromptCache_ExtendedTTLHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("Anthropic-Beta"), "extended-cache-ttl-2025-04-11")
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.Equal(t, "ephemeral", gjson.GetBytes(body, "system.0.cache_control.type").String())
		assert.Equal(t, "1h", gjson.GetBytes(body, "system.0.cache_control.ttl").String())

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageReply))
	}))
	defer srv.Close()

	policy := &llms.PromptCachePolicy{
		Breakpoints: []llms.PromptCacheBreakpoint{{
			Target: llms.PromptCacheTarget{Kind: llms.PromptCacheTargetMessagePart},
			TTL:    llms.PromptCacheTTL1h,
		}},
	}
	res, err := newLLM(t, srv).GenerateContent(context.Background(), hello(), llms.WithPromptCachePolicy(policy))
	require.NoError(t, err)
	assert.Equal(t, "Hello back", res.Text())
}

func TestAdaptResponse_Idempotent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(messageReply))
	}))
	defer srv.Close()

	llm := newLLM(t, srv)
	a := llm.Adapter()
	h := llm.Pipeline().Handle()

	payload, err := a.Adapt(llms.NewRequest(hello()), h)
	require.NoError(t, err)
	raw, err := a.Invoke(context.Background(), payload, h)
	require.NoError(t, err)

	r1, err := a.AdaptResponse(raw)
	require.NoError(t, err)
	r2, err := a.AdaptResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
