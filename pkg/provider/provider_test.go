package provider_test

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestConfigure_NoIO(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	for _, spec := range []*provider.Spec{provider.OpenAI, provider.Anthropic, provider.GoogleAI, provider.Generic, provider.Tavily} {
		h, err := provider.Configure(spec, provider.Credentials{APIKey: "key"}, srv.URL, provider.Options{}, nil)
		require.NoError(t, err, spec.Type)
		assert.Equal(t, srv.URL, h.Endpoint())
	}
	assert.Equal(t, int32(0), hits.Load())
}

func TestConfigure_MissingCredentials(t *testing.T) {
	t.Parallel()

	tests := []struct {
		spec *provider.Spec
		env  provider.Env
		vars []string
	}{
		{provider.OpenAI, nil, []string{"OPENAI_API_KEY"}},
		{provider.Anthropic, provider.Env{"OPENAI_API_KEY": "sk"}, []string{"ANTHROPIC_API_KEY"}},
		{provider.GoogleAI, provider.Env{"GOOGLE_API_KEY": "  "}, []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"}},
		{provider.Bedrock, provider.Env{"AWS_ACCESS_KEY_ID": "id", "AWS_REGION": "us-west-2"}, []string{"AWS_SECRET_ACCESS_KEY"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.spec.Type), func(t *testing.T) {
			t.Parallel()
			_, err := provider.Configure(tt.spec, provider.Credentials{}, "", provider.Options{}, tt.env)
			require.Error(t, err)

			var mce *llms.MissingCredentialsError
			require.True(t, errors.As(err, &mce), "got %v", err)
			assert.Equal(t, tt.spec.Type, mce.Provider)
			assert.Equal(t, tt.vars, mce.EnvVars)
		})
	}
}

func TestConfigure_Env(t *testing.T) {
	t.Parallel()

	env := provider.ParseEnv([]string{
		"OPENAI_API_KEY=sk-env",
		"OPENAI_BASE_URL=https://proxy.example.com/v1/",
		"OPENAI_MODEL=gpt-4.1",
		"IGNORED",
	})
	h, err := provider.ConfigureFromEnv(provider.OpenAI, env)
	require.NoError(t, err)
	assert.Equal(t, llms.ProviderOpenAI, h.Provider())
	assert.Equal(t, "sk-env", h.APIKey())
	assert.Equal(t, "https://proxy.example.com/v1", h.Endpoint())
	assert.Equal(t, "gpt-4.1", h.Model())

	// arguments win over env
	h, err = provider.Configure(provider.OpenAI,
		provider.Credentials{APIKey: "sk-arg"},
		"http://localhost:8080",
		provider.Options{Model: "gpt-4o"},
		env)
	require.NoError(t, err)
	assert.Equal(t, "sk-arg", h.APIKey())
	assert.Equal(t, "http://localhost:8080", h.Endpoint())
	assert.Equal(t, "gpt-4o", h.Model())

	// defaults
	h, err = provider.Configure(provider.OpenAI, provider.Credentials{APIKey: "sk"}, "", provider.Options{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", h.Endpoint())
	assert.Equal(t, "gpt-4o-mini", h.Model())
}

func TestConfigure_Bedrock(t *testing.T) {
	t.Parallel()

	env := provider.Env{
		"AWS_ACCESS_KEY_ID":     "AKIA",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"AWS_SESSION_TOKEN":     "token",
		"AWS_DEFAULT_REGION":    "us-east-1",
	}
	h, err := provider.ConfigureFromEnv(provider.Bedrock, env)
	require.NoError(t, err)
	assert.Equal(t, provider.Credentials{APIKey: "AKIA", Secret: "secret", Token: "token"}, h.Credentials())
	assert.Equal(t, "us-east-1", h.Region())
	assert.Empty(t, h.Endpoint())

	delete(env, "AWS_DEFAULT_REGION")
	_, err = provider.ConfigureFromEnv(provider.Bedrock, env)
	var ioe *llms.InvalidOptionError
	require.True(t, errors.As(err, &ioe), "got %v", err)
	assert.Equal(t, "region", ioe.Option)
}

func TestConfigure_InvalidOption(t *testing.T) {
	t.Parallel()

	creds := provider.Credentials{APIKey: "key"}
	tests := []struct {
		name     string
		spec     *provider.Spec
		endpoint string
		opts     provider.Options
		option   string
	}{
		{"relative url", provider.OpenAI, "/v1", provider.Options{}, "endpoint"},
		{"bad scheme", provider.OpenAI, "ftp://example.com", provider.Options{}, "endpoint"},
		{"garbage", provider.OpenAI, "http://[::1", provider.Options{}, "endpoint"},
		{"no host", provider.OpenAI, "http://", provider.Options{}, "endpoint"},
		{"required endpoint", provider.Generic, "", provider.Options{}, "endpoint"},
		{"azure endpoint", provider.Azure, "", provider.Options{}, "endpoint"},
		{"temperature", provider.OpenAI, "", provider.Options{Temperature: ptr(2.5)}, "temperature"},
		{"negative temperature", provider.OpenAI, "", provider.Options{Temperature: ptr(-1.0)}, "temperature"},
		{"timeout", provider.OpenAI, "", provider.Options{Timeout: -time.Second}, "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := provider.Configure(tt.spec, creds, tt.endpoint, tt.opts, nil)
			require.Error(t, err)

			var ioe *llms.InvalidOptionError
			require.True(t, errors.As(err, &ioe), "got %v", err)
			assert.Equal(t, tt.option, ioe.Option)
			assert.Equal(t, tt.spec.Type, ioe.Provider)
		})
	}
}

func TestConfigure_GenericWithoutCredentials(t *testing.T) {
	t.Parallel()

	h, err := provider.Configure(provider.Generic, provider.Credentials{}, "http://localhost:9000/generate", provider.Options{
		Extra: map[string]string{"text_path": "output.text"},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, h.APIKey())
	assert.Equal(t, "output.text", h.Extra("text_path"))
	assert.Equal(t, "text", h.ExtraOr("missing", "text"))
}

func TestHandle(t *testing.T) {
	t.Parallel()

	extra := map[string]string{"k": "v"}
	opts := provider.Options{
		Model:          "m1",
		EmbeddingModel: "e1",
		APIVersion:     "2024-06-01",
		Organization:   "org",
		Timeout:        time.Minute,
		Temperature:    ptr(0.3),
		Extra:          extra,
	}
	h, err := provider.Configure(provider.OpenAI, provider.Credentials{APIKey: "sk-secret"}, "", opts, nil)
	require.NoError(t, err)

	// caller's values are copied
	extra["k"] = "changed"
	*opts.Temperature = 1.5
	assert.Equal(t, "v", h.Extra("k"))
	temp, ok := h.Temperature()
	assert.True(t, ok)
	assert.Equal(t, 0.3, temp)

	assert.Equal(t, "e1", h.EmbeddingModel())
	assert.Equal(t, "2024-06-01", h.APIVersion())
	assert.Equal(t, "org", h.Organization())
	assert.Equal(t, time.Minute, h.Timeout())

	h2 := h.WithModel("m2")
	assert.Equal(t, "m2", h2.Model())
	assert.Equal(t, "m1", h.Model())
	assert.Equal(t, h.APIKey(), h2.APIKey())

	co := h.CallOptions()
	assert.Equal(t, "m1", co.Model)
	assert.Equal(t, 0.3, co.Temperature)
	assert.Equal(t, time.Minute, co.Timeout)

	assert.Equal(t, "provider=OPENAI endpoint=https://api.openai.com/v1 model=m1", h.String())
	assert.NotContains(t, h.String(), "sk-secret")
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	s, ok := provider.Lookup(llms.ProviderAnthropic)
	require.True(t, ok)
	assert.Same(t, provider.Anthropic, s)

	_, err := provider.MustLookup("UNKNOWN")
	assert.ErrorIs(t, err, provider.ErrNotRegistered)

	provider.Register(&provider.Spec{Type: "CUSTOM", DefaultEndpoint: "http://localhost"})
	s, err = provider.MustLookup("CUSTOM")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost", s.DefaultEndpoint)
	assert.Contains(t, provider.Registered(), llms.ProviderType("CUSTOM"))
	assert.Contains(t, provider.Registered(), llms.ProviderOpenAI)
}
