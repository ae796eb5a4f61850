package webapp

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llmfactory"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/prompts"
	"github.com/gin-gonic/gin"
)

// Error kinds reported in the error response.
const (
	KindBadRequest         = "bad_request"
	KindMissingCredentials = "missing_credentials"
	KindInvalidOption      = "invalid_option"
	KindUnsupportedInput   = "unsupported_input"
	KindRateLimit          = "rate_limit"
	KindProvider           = "provider"
	KindTransport          = "transport"
	KindTimeout            = "timeout"
	KindMalformedResponse  = "malformed_response"
	KindUnavailable        = "unavailable"
	KindInternal           = "internal"
)

// ErrorInfo is the error response body.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// ProviderStatus is the status code returned by the provider, if any.
	ProviderStatus int `json:"provider_status,omitempty"`
	// RetryAfter is the delay in seconds suggested by the provider.
	RetryAfter int `json:"retry_after,omitempty"`
}

// ErrorResponse wraps ErrorInfo.
type ErrorResponse struct {
	Error ErrorInfo `json:"error"`
}

var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return errors.Mark(err, errBadRequest)
}

// Classify returns the HTTP status and error info for err.
func Classify(err error) (int, ErrorInfo) {
	info := ErrorInfo{
		Message:        err.Error(),
		ProviderStatus: llms.StatusCode(err),
	}

	var (
		mc  *llms.MissingCredentialsError
		ioe *llms.InvalidOptionError
		ui  *llms.UnsupportedInputError
		rl  *llms.RateLimitError
		pe  *llms.ProviderError
		te  *llms.TransportError
		mr  *llms.MalformedResponseError
	)
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, prompts.ErrMissingVariable):
		info.Kind = KindBadRequest
		return http.StatusBadRequest, info
	case errors.As(err, &ioe):
		info.Kind = KindInvalidOption
		return http.StatusBadRequest, info
	case errors.As(err, &ui):
		info.Kind = KindUnsupportedInput
		return http.StatusBadRequest, info
	case errors.As(err, &rl):
		info.Kind = KindRateLimit
		if rl.RetryAfter > 0 {
			info.RetryAfter = int(math.Ceil(rl.RetryAfter.Seconds()))
		}
		return http.StatusTooManyRequests, info
	case errors.As(err, &pe):
		info.Kind = KindProvider
		return http.StatusBadGateway, info
	case errors.As(err, &te):
		if te.Timeout() || errors.Is(err, context.DeadlineExceeded) {
			info.Kind = KindTimeout
			return http.StatusGatewayTimeout, info
		}
		info.Kind = KindTransport
		return http.StatusBadGateway, info
	case errors.As(err, &mr):
		info.Kind = KindMalformedResponse
		return http.StatusBadGateway, info
	case errors.As(err, &mc):
		// the server is not configured for the provider
		info.Kind = KindMissingCredentials
		return http.StatusServiceUnavailable, info
	case errors.Is(err, llmfactory.ErrNoProviders):
		info.Kind = KindUnavailable
		return http.StatusServiceUnavailable, info
	case errors.Is(err, context.DeadlineExceeded):
		info.Kind = KindTimeout
		return http.StatusGatewayTimeout, info
	default:
		info.Kind = KindInternal
		return http.StatusInternalServerError, info
	}
}

// respondWithError writes the classified error.
func respondWithError(c *gin.Context, err error) {
	status, info := Classify(err)
	if info.RetryAfter > 0 {
		c.Header("Retry-After", strconv.Itoa(info.RetryAfter))
	}

	logger.ContextKV(c.Request.Context(), levelForStatus(status),
		"status", "request_failed",
		"path", c.FullPath(),
		"code", status,
		"kind", info.Kind,
		"err", err.Error(),
	)
	c.AbortWithStatusJSON(status, ErrorResponse{Error: info})
}
