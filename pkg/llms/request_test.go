package llms_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequest_Validate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		req         *llms.Request
		unsupported bool
		invalid     bool
	}{
		{"nil", nil, true, false},
		{"no messages", llms.NewRequest(nil), true, false},
		{"empty text", llms.NewTextRequest(""), true, false},
		{"blank text", llms.NewTextRequest("   "), true, false},
		{"system only blank", llms.NewRequest([]llms.Message{llms.MessageFromTextParts(llms.RoleSystem, "")}), true, false},
		{"ok", llms.NewTextRequest("Hello"), false, false},
		{"bad option", llms.NewTextRequest("Hello", llms.WithTemperature(3)), false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.req.Validate(llms.ProviderGeneric)
			switch {
			case tt.unsupported:
				var ue *llms.UnsupportedInputError
				require.True(t, errors.As(err, &ue), "got %v", err)
				assert.Equal(t, llms.ProviderGeneric, ue.Provider)
			case tt.invalid:
				var ie *llms.InvalidOptionError
				require.True(t, errors.As(err, &ie), "got %v", err)
			default:
				require.NoError(t, err)
			}
		})
	}
}

func TestRequest_CallOptions(t *testing.T) {
	t.Parallel()
	req := llms.NewTextRequest("Hello", llms.WithMaxTokens(10))
	opts := req.CallOptions(llms.CallOptions{Model: "default", MaxTokens: 100})
	assert.Equal(t, "default", opts.Model)
	assert.Equal(t, 10, opts.MaxTokens)

	// defaults are not modified
	again := req.CallOptions(llms.CallOptions{})
	assert.Equal(t, 10, again.MaxTokens)
	assert.Empty(t, again.Model)
}
