package llms_test

import (
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallOptions(t *testing.T) {
	t.Parallel()

	opts := llms.CallOptions{}
	for _, opt := range []llms.CallOption{
		llms.WithModel("gpt-4o"),
		llms.WithMaxTokens(100),
		llms.WithCandidateCount(2),
		llms.WithTemperature(0.7),
		llms.WithStopWords([]string{"STOP"}),
		llms.WithTopK(5),
		llms.WithTopP(0.9),
		llms.WithSeed(42),
		llms.WithN(1),
		llms.WithFrequencyPenalty(0.1),
		llms.WithPresencePenalty(0.2),
		llms.WithToolChoice("auto"),
		llms.WithMetadata(map[string]any{"user": "u1"}),
		llms.WithTimeout(time.Second),
	} {
		opt(&opts)
	}

	assert.Equal(t, llms.CallOptions{
		Model:            "gpt-4o",
		MaxTokens:        100,
		CandidateCount:   2,
		Temperature:      0.7,
		StopWords:        []string{"STOP"},
		TopK:             5,
		TopP:             0.9,
		Seed:             42,
		N:                1,
		FrequencyPenalty: 0.1,
		PresencePenalty:  0.2,
		ToolChoice:       "auto",
		Metadata:         map[string]any{"user": "u1"},
		Timeout:          time.Second,
	}, opts)
	require.NoError(t, opts.Validate(llms.ProviderOpenAI))

	replaced := llms.CallOptions{Model: "other"}
	llms.WithOptions(llms.CallOptions{Model: "x"})(&replaced)
	assert.Equal(t, "x", replaced.Model)
}

func TestCallOptions_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		opt    llms.CallOption
		option string
	}{
		{"temperature high", llms.WithTemperature(2.5), "temperature"},
		{"temperature negative", llms.WithTemperature(-0.1), "temperature"},
		{"top_p", llms.WithTopP(1.5), "top_p"},
		{"max_tokens", llms.WithMaxTokens(-1), "max_tokens"},
		{"top_k", llms.WithTopK(-1), "top_k"},
		{"timeout", llms.WithTimeout(-time.Second), "timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			opts := llms.CallOptions{}
			tt.opt(&opts)
			err := opts.Validate(llms.ProviderOpenAI)
			require.Error(t, err)

			var ioe *llms.InvalidOptionError
			require.True(t, errors.As(err, &ioe))
			assert.Equal(t, tt.option, ioe.Option)
			assert.Equal(t, llms.ProviderOpenAI, ioe.Provider)
		})
	}
}
