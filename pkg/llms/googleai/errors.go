package googleai

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"google.golang.org/genai"
)

// mapError converts genai errors to the llms error taxonomy.
func mapError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		var pErr *genai.APIError
		if errors.As(err, &pErr) && pErr != nil {
			apiErr = *pErr
		}
	}
	if apiErr.Code != 0 {
		if apiErr.Code == http.StatusTooManyRequests {
			rl := llms.NewRateLimitError(llms.ProviderGoogleAI, apiErr.Code, apiErr.Message, 0)
			rl.Type = apiErr.Status
			return rl
		}
		return &llms.ProviderError{
			Provider:   llms.ProviderGoogleAI,
			StatusCode: apiErr.Code,
			Type:       apiErr.Status,
			Message:    apiErr.Message,
		}
	}

	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	if errors.As(err, &se) || errors.As(err, &ute) {
		return &llms.MalformedResponseError{Provider: llms.ProviderGoogleAI, Reason: "decode response", Err: err}
	}
	return &llms.TransportError{Provider: llms.ProviderGoogleAI, Op: "generate", Err: err}
}
