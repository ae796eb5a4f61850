package webapp_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/effective-security/llmkit/pkg/llmfactory"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/store"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/llmkit/pkg/transport/sse"
	"github.com/effective-security/llmkit/pkg/webapp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider echoes the content with " back",
// or fails with the status when the content is "fail <status>".
func stubProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Content string `json:"content"`
			Stream  bool   `json:"stream"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		var status int
		if _, err := fmt.Sscanf(req.Content, "fail %d", &status); err == nil {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"stub failure"}}`))
			return
		}

		if req.Stream {
			w.Header().Set("Content-Type", "application/x-ndjson")
			_, _ = fmt.Fprintf(w, "{\"text\":%q}\n", req.Content)
			_, _ = fmt.Fprint(w, `{"text":" back","done":true,"stop_reason":"stop","usage":{"input_tokens":1,"output_tokens":2}}`+"\n")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":        req.Content + " back",
			"stop_reason": "stop",
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newServer(t *testing.T, opts ...webapp.Option) *webapp.Server {
	t.Helper()
	stub := stubProvider(t)
	cfg := &llmfactory.Config{
		Providers: []*llmfactory.ProviderConfig{
			{
				Name:         "stub",
				Type:         "GENERIC",
				Endpoint:     stub.URL,
				DefaultModel: "stub-echo",
			},
		},
	}
	f := llmfactory.New(cfg,
		llmfactory.WithEnv(provider.Env{}),
		llmfactory.WithHTTPClient(stub.Client()),
	)
	return webapp.New(f, opts...)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			r = strings.NewReader(b)
		default:
			js, err := json.Marshal(body)
			require.NoError(t, err)
			r = bytes.NewReader(js)
		}
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) webapp.ErrorInfo {
	t.Helper()
	var res webapp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res), w.Body.String())
	return res.Error
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	w := doJSON(t, s.Handler(), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res webapp.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "ok", res.Status)
	assert.Contains(t, res.Providers, "GENERIC")
	assert.Contains(t, res.Providers, "OPENAI")
	assert.NotEmpty(t, w.Header().Get(transport.HeaderRequestID))
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	h := s.Handler()

	w := doJSON(t, h, http.MethodPost, "/v1/generate", webapp.GenerateRequest{
		Messages: []webapp.MessageRequest{{Role: "user", Content: "Hello"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res webapp.GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "Hello back", res.Text)
	assert.Equal(t, "stub-echo", res.Model)
	assert.Equal(t, "generic", res.Provider)
	assert.Equal(t, "stop", res.StopReason)

	t.Run("template", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/v1/generate", webapp.GenerateRequest{
			Prompt: "{{ .greeting | title }}",
			Values: map[string]any{"greeting": "hello"},
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var res webapp.GenerateResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, "Hello back", res.Text)
	})

	t.Run("request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{"prompt":"Hello"}`))
		req.Header.Set(transport.HeaderRequestID, "req-42")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "req-42", w.Header().Get(transport.HeaderRequestID))
	})
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	h := s.Handler()

	tcases := []struct {
		name       string
		body       any
		expStatus  int
		expKind    string
		expMessage string
	}{
		{
			name:      "invalid json",
			body:      `{"messages":`,
			expStatus: http.StatusBadRequest,
			expKind:   webapp.KindBadRequest,
		},
		{
			name:       "empty",
			body:       webapp.GenerateRequest{},
			expStatus:  http.StatusBadRequest,
			expKind:    webapp.KindBadRequest,
			expMessage: "messages or prompt is required",
		},
		{
			name: "unsupported role",
			body: webapp.GenerateRequest{
				Messages: []webapp.MessageRequest{{Role: "robot", Content: "Hello"}},
			},
			expStatus:  http.StatusBadRequest,
			expKind:    webapp.KindBadRequest,
			expMessage: `messages[0]: unsupported role "robot"`,
		},
		{
			name: "invalid template",
			body: webapp.GenerateRequest{
				Prompt: "{{ .name",
				Values: map[string]any{"name": "x"},
			},
			expStatus: http.StatusBadRequest,
			expKind:   webapp.KindBadRequest,
		},
		{
			name: "unsupported format",
			body: webapp.GenerateRequest{
				Prompt: "Hello",
				Format: "mustache",
			},
			expStatus:  http.StatusBadRequest,
			expKind:    webapp.KindBadRequest,
			expMessage: `unsupported template format: "mustache"`,
		},
		{
			name:       "rate limit",
			body:       webapp.GenerateRequest{Prompt: "fail 429"},
			expStatus:  http.StatusTooManyRequests,
			expKind:    webapp.KindRateLimit,
			expMessage: "stub failure",
		},
		{
			name:       "provider error",
			body:       webapp.GenerateRequest{Prompt: "fail 500"},
			expStatus:  http.StatusBadGateway,
			expKind:    webapp.KindProvider,
			expMessage: "stub failure",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			w := doJSON(t, h, http.MethodPost, "/v1/generate", tc.body)
			require.Equal(t, tc.expStatus, w.Code, w.Body.String())
			info := decodeError(t, w)
			assert.Equal(t, tc.expKind, info.Kind)
			if tc.expMessage != "" {
				assert.Contains(t, info.Message, tc.expMessage)
			}
		})
	}

	t.Run("retry after", func(t *testing.T) {
		w := doJSON(t, h, http.MethodPost, "/v1/generate", webapp.GenerateRequest{Prompt: "fail 429"})
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "7", w.Header().Get("Retry-After"))
		info := decodeError(t, w)
		assert.Equal(t, 7, info.RetryAfter)
		assert.Equal(t, http.StatusTooManyRequests, info.ProviderStatus)
	})
}

func TestGenerate_Chat(t *testing.T) {
	t.Parallel()

	ms := store.NewMemoryStore()
	s := newServer(t, webapp.WithStore(ms))
	h := s.Handler()

	w := doJSON(t, h, http.MethodPost, "/v1/generate", webapp.GenerateRequest{
		ChatID: "chat1",
		System: "Be brief.",
		Prompt: "Hello",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	msgs, err := ms.Messages(context.Background(), "chat1")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, llms.RoleSystem, msgs[0].Role)
	assert.Equal(t, "Be brief.", msgs[0].GetText())
	assert.Equal(t, llms.RoleHuman, msgs[1].Role)
	assert.Equal(t, "Hello", msgs[1].GetText())
	assert.Equal(t, llms.RoleAI, msgs[2].Role)
	assert.Equal(t, "Be brief.\n\nHello back", msgs[2].GetText())

	w = doJSON(t, h, http.MethodPost, "/v1/generate", webapp.GenerateRequest{
		ChatID: "chat1",
		Prompt: "Again",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	msgs, err = ms.Messages(context.Background(), "chat1")
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	assert.Equal(t, "Again", msgs[3].GetText())
	assert.Equal(t, llms.RoleAI, msgs[4].Role)
}

func readEvents(t *testing.T, body []byte) []*sse.Event {
	t.Helper()
	var events []*sse.Event
	for ev, err := range sse.Events(io.NopCloser(bytes.NewReader(body))) {
		require.NoError(t, err)
		events = append(events, ev)
	}
	return events
}

func TestStream(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	h := s.Handler()

	w := doJSON(t, h, http.MethodPost, "/v1/stream", webapp.GenerateRequest{
		Messages: []webapp.MessageRequest{{Role: "human", Content: "Hello"}},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"), w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	events := readEvents(t, w.Body.Bytes())
	require.Len(t, events, 3)

	var text strings.Builder
	for _, ev := range events[:2] {
		assert.Equal(t, webapp.EventChunk, ev.Event)
		var chunk webapp.ChunkEvent
		require.NoError(t, json.Unmarshal([]byte(ev.Data), &chunk))
		text.WriteString(chunk.Text)
	}

	assert.Equal(t, webapp.EventDone, events[2].Event)
	var done webapp.GenerateResponse
	require.NoError(t, json.Unmarshal([]byte(events[2].Data), &done))
	assert.Equal(t, "Hello back", done.Text)
	assert.Equal(t, text.String(), done.Text)
	assert.Equal(t, "stop", done.StopReason)
	assert.Equal(t, int64(1), done.Usage.InputTokens)
	assert.Equal(t, int64(2), done.Usage.OutputTokens)

	// errors before the first chunk have a status
	w = doJSON(t, h, http.MethodPost, "/v1/stream", webapp.GenerateRequest{Prompt: "fail 429"})
	require.Equal(t, http.StatusTooManyRequests, w.Code, w.Body.String())
	assert.Equal(t, webapp.KindRateLimit, decodeError(t, w).Kind)
}

func TestServe(t *testing.T) {
	t.Parallel()

	s := newServer(t)
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		errc <- s.Serve(ctx, listener)
	}()

	resp, err := http.Get("http://" + listener.Addr().String() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(webapp.ShutdownTimeout + time.Second):
		t.Fatal("server did not stop")
	}
}
