package retry_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/generic"
	"github.com/effective-security/llmkit/pkg/mocks/mockllms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/retry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func fastPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.InitialInterval = time.Millisecond
	p.MaxInterval = 5 * time.Millisecond
	p.MaxRetryAfter = 20 * time.Millisecond
	return p
}

func TestDo(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first", func(t *testing.T) {
		calls := 0
		res, err := retry.Do(ctx, fastPolicy(), func(context.Context) (string, error) {
			calls++
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", res)
		assert.Equal(t, 1, calls)
	})

	t.Run("rate limited then ok", func(t *testing.T) {
		calls := 0
		var waits []time.Duration
		p := fastPolicy()
		p.OnRetry = func(_ int, _ error, wait time.Duration) {
			waits = append(waits, wait)
		}
		res, err := retry.Do(ctx, p, func(context.Context) (string, error) {
			calls++
			if calls == 1 {
				return "", llms.NewRateLimitError(llms.ProviderOpenAI, 429, "slow down", time.Hour)
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", res)
		assert.Equal(t, 2, calls)
		// Retry-After is capped by MaxRetryAfter
		assert.Equal(t, []time.Duration{20 * time.Millisecond}, waits)
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		_, err := retry.Do(ctx, fastPolicy(), func(context.Context) (int, error) {
			calls++
			return 0, &llms.ProviderError{Provider: llms.ProviderOpenAI, StatusCode: 503, Message: "overloaded"}
		})
		assert.Equal(t, 3, calls)
		assert.Equal(t, 503, llms.StatusCode(err))
	})

	t.Run("not retryable", func(t *testing.T) {
		calls := 0
		_, err := retry.Do(ctx, fastPolicy(), func(context.Context) (int, error) {
			calls++
			return 0, &llms.ProviderError{Provider: llms.ProviderOpenAI, StatusCode: 401, Message: "bad key"}
		})
		assert.Equal(t, 1, calls)
		assert.Equal(t, 401, llms.StatusCode(err))
	})

	t.Run("canceled", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		calls := 0
		_, err := retry.Do(cctx, fastPolicy(), func(context.Context) (int, error) {
			calls++
			cancel()
			return 0, &llms.TransportError{Provider: llms.ProviderOpenAI, Op: "post", Err: errors.New("reset")}
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}

func TestGenerateContent(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"content":"Hello back"}`))
	}))
	defer srv.Close()

	h, err := provider.Configure(provider.Generic, provider.Credentials{}, srv.URL, provider.Options{
		Extra: map[string]string{generic.ExtraTextPath: "content"},
	}, nil)
	require.NoError(t, err)
	llm, err := generic.New(h, generic.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	// the provider surfaces the rate limit
	_, err = llm.GenerateContent(context.Background(), []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "Hello")})
	require.True(t, llms.IsRateLimit(err))

	// and the caller opts in to retry it
	calls.Store(0)
	resp, err := retry.GenerateContent(context.Background(), fastPolicy(), llm, []llms.Message{llms.MessageFromTextParts(llms.RoleHuman, "Hello")})
	require.NoError(t, err)
	assert.Equal(t, "Hello back", resp.Text())
	assert.Equal(t, int32(2), calls.Load())
}

func TestCreateEmbedding(t *testing.T) {
	t.Parallel()
	ctrl := gomock.NewController(t)

	emb := mockllms.NewMockEmbedder(ctrl)
	gomock.InOrder(
		emb.EXPECT().CreateEmbedding(gomock.Any(), []string{"a"}).Return(nil, &llms.TransportError{Provider: llms.ProviderOpenAI, Op: "post", Err: errors.New("reset")}),
		emb.EXPECT().CreateEmbedding(gomock.Any(), []string{"a"}).Return([][]float32{{1, 2}}, nil),
	)

	vecs, err := retry.CreateEmbedding(context.Background(), fastPolicy(), emb, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 2}}, vecs)
}
