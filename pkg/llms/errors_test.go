package llms_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()
	tests := []struct {
		err error
		exp string
	}{
		{
			&llms.MissingCredentialsError{Provider: llms.ProviderOpenAI, EnvVars: []string{"OPENAI_API_KEY"}},
			"openai: missing credentials, set it in the OPENAI_API_KEY environment variable",
		},
		{
			&llms.InvalidOptionError{Provider: llms.ProviderGeneric, Option: "endpoint", Value: "::", Reason: "must be an absolute URL"},
			"generic: invalid option endpoint=::: must be an absolute URL",
		},
		{
			&llms.UnsupportedInputError{Provider: llms.ProviderAnthropic, Input: "audio/wav", Reason: "only images are supported"},
			"anthropic: unsupported input audio/wav: only images are supported",
		},
		{
			&llms.TransportError{Provider: llms.ProviderOpenAI, Op: "POST", URL: "http://localhost", Err: errors.New("connection refused")},
			"openai: transport error on POST http://localhost: connection refused",
		},
		{
			&llms.ProviderError{Provider: llms.ProviderOpenAI, StatusCode: 500, Message: "boom"},
			"openai: API returned unexpected status code: 500: boom",
		},
		{
			llms.NewRateLimitError(llms.ProviderOpenAI, 429, "slow down", 2*time.Second),
			"openai: API returned unexpected status code: 429: slow down (retry after 2s)",
		},
		{
			&llms.MalformedResponseError{Provider: llms.ProviderGeneric, Reason: "missing field text"},
			"generic: malformed response: missing field text",
		},
	}
	for _, tt := range tests {
		assert.EqualError(t, tt.err, tt.exp)
	}
}

func TestRateLimitIsProviderError(t *testing.T) {
	t.Parallel()

	err := errors.Wrap(llms.NewRateLimitError(llms.ProviderAnthropic, http.StatusTooManyRequests, "throttled", time.Second), "generate")

	var pe *llms.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusTooManyRequests, pe.StatusCode)
	assert.Equal(t, llms.ProviderAnthropic, pe.Provider)

	var rl *llms.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, time.Second, rl.RetryAfter)

	assert.True(t, llms.IsRateLimit(err))
	assert.True(t, llms.IsRetryable(err))
	assert.Equal(t, http.StatusTooManyRequests, llms.StatusCode(err))
	assert.Equal(t, time.Second, llms.RetryAfter(err))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		exp  bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("x"), false},
		{"transport", &llms.TransportError{Err: context.DeadlineExceeded}, true},
		{"5xx", &llms.ProviderError{StatusCode: 503}, true},
		{"408", &llms.ProviderError{StatusCode: 408}, true},
		{"401", &llms.ProviderError{StatusCode: 401}, false},
		{"400", &llms.ProviderError{StatusCode: 400}, false},
		{"malformed", &llms.MalformedResponseError{}, false},
		{"unsupported", &llms.UnsupportedInputError{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.exp, llms.IsRetryable(tt.err))
		})
	}
}

func TestTransportError_Timeout(t *testing.T) {
	t.Parallel()
	te := &llms.TransportError{Err: errors.Wrap(context.DeadlineExceeded, "read")}
	assert.True(t, te.Timeout())
	assert.ErrorIs(t, te, context.DeadlineExceeded)

	te = &llms.TransportError{Err: errors.New("reset")}
	assert.False(t, te.Timeout())
}

func TestClassifyHTTPStatus(t *testing.T) {
	t.Parallel()

	assert.NoError(t, llms.ClassifyHTTPStatus(llms.ProviderOpenAI, 200, nil, nil))
	assert.NoError(t, llms.ClassifyHTTPStatus(llms.ProviderOpenAI, 204, nil, nil))

	tests := []struct {
		name    string
		status  int
		header  http.Header
		body    string
		msg     string
		typ     string
		limited bool
		retry   time.Duration
	}{
		{
			name:   "openai",
			status: 401,
			body:   `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			msg:    "Incorrect API key provided",
			typ:    "invalid_request_error",
		},
		{
			name:   "anthropic",
			status: 529,
			body:   `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`,
			msg:    "Overloaded",
			typ:    "overloaded_error",
		},
		{
			name:   "google",
			status: 400,
			body:   `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
			msg:    "API key not valid",
			typ:    "400",
		},
		{
			name:   "string error",
			status: 500,
			body:   `{"error":"boom"}`,
			msg:    "boom",
		},
		{
			name:   "detail",
			status: 422,
			body:   `{"detail":"bad file"}`,
			msg:    "bad file",
		},
		{
			name:   "plain text",
			status: 502,
			body:   "upstream unavailable\n",
			msg:    "upstream unavailable",
		},
		{
			name:   "empty",
			status: 503,
			msg:    "Service Unavailable",
		},
		{
			name:    "rate limit",
			status:  429,
			header:  http.Header{"Retry-After": []string{"3"}},
			body:    `{"error":{"message":"Rate limit reached","type":"requests"}}`,
			msg:     "Rate limit reached",
			typ:     "requests",
			limited: true,
			retry:   3 * time.Second,
		},
		{
			name:    "rate limit ms",
			status:  429,
			header:  http.Header{"Retry-After-Ms": []string{"250"}},
			msg:     "Too Many Requests",
			typ:     "rate_limit",
			limited: true,
			retry:   250 * time.Millisecond,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := llms.ClassifyHTTPStatus(llms.ProviderGeneric, tt.status, tt.header, []byte(tt.body))
			require.Error(t, err)

			var pe *llms.ProviderError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.status, pe.StatusCode)
			assert.Equal(t, tt.msg, pe.Message)
			assert.Equal(t, tt.typ, pe.Type)
			assert.Equal(t, tt.limited, llms.IsRateLimit(err))
			assert.Equal(t, tt.retry, llms.RetryAfter(err))
		})
	}
}

func TestParseRetryAfter(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	h := http.Header{}
	assert.Equal(t, time.Duration(0), llms.ParseRetryAfter(nil, now))
	assert.Equal(t, time.Duration(0), llms.ParseRetryAfter(h, now))

	h.Set("Retry-After", "1.5")
	assert.Equal(t, 1500*time.Millisecond, llms.ParseRetryAfter(h, now))

	h.Set("Retry-After", now.Add(10*time.Second).Format(http.TimeFormat))
	assert.Equal(t, 10*time.Second, llms.ParseRetryAfter(h, now))

	h.Set("Retry-After", now.Add(-10*time.Second).Format(http.TimeFormat))
	assert.Equal(t, time.Duration(0), llms.ParseRetryAfter(h, now))

	h.Set("Retry-After", "soon")
	assert.Equal(t, time.Duration(0), llms.ParseRetryAfter(h, now))
}
