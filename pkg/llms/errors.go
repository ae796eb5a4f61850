package llms

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// MissingCredentialsError is returned at configuration time when no
// credential was supplied and none of the provider's environment variables
// is set.
type MissingCredentialsError struct {
	Provider ProviderType
	// EnvVars lists the environment variables that would satisfy the provider.
	EnvVars []string
}

func (e *MissingCredentialsError) Error() string {
	msg := providerPrefix(e.Provider) + "missing credentials"
	if len(e.EnvVars) > 0 {
		msg += ", set it in the " + strings.Join(e.EnvVars, " or ") + " environment variable"
	}
	return msg
}

// InvalidOptionError is returned at configuration time when an option is
// outside of the domain accepted by the provider.
type InvalidOptionError struct {
	Provider ProviderType
	Option   string
	Value    any
	Reason   string
}

func (e *InvalidOptionError) Error() string {
	msg := fmt.Sprintf("%sinvalid option %s=%v", providerPrefix(e.Provider), e.Option, e.Value)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// UnsupportedInputError is returned before any network call when the request
// content has no mapping for the provider.
type UnsupportedInputError struct {
	Provider ProviderType
	// Input describes the rejected input, e.g. "image/png" or "empty content".
	Input  string
	Reason string
}

func (e *UnsupportedInputError) Error() string {
	msg := providerPrefix(e.Provider) + "unsupported input"
	if e.Input != "" {
		msg += " " + e.Input
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// TransportError is a network level failure: timeout, DNS, TLS or a broken
// connection. The provider did not produce a response.
type TransportError struct {
	Provider ProviderType
	Op       string
	URL      string
	Err      error
}

func (e *TransportError) Error() string {
	msg := providerPrefix(e.Provider) + "transport error"
	if e.Op != "" {
		msg += " on " + e.Op
	}
	if e.URL != "" {
		msg += " " + e.URL
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was caused by a deadline.
func (e *TransportError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// ProviderError is returned when the provider answered with a non-success
// status.
type ProviderError struct {
	Provider   ProviderType
	StatusCode int
	// Type is the provider specific error type or code, if any.
	Type    string
	Message string
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%sAPI returned unexpected status code: %d", providerPrefix(e.Provider), e.StatusCode)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// RateLimitError is a ProviderError signalling throttling.
// errors.As(err, **ProviderError) matches it as well.
type RateLimitError struct {
	ProviderError
	// RetryAfter is the delay suggested by the provider, zero if not provided.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	msg := e.ProviderError.Error()
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" (retry after %s)", e.RetryAfter)
	}
	return msg
}

// As allows RateLimitError to be treated as a ProviderError.
func (e *RateLimitError) As(target any) bool {
	if pe, ok := target.(**ProviderError); ok {
		*pe = &e.ProviderError
		return true
	}
	return false
}

// MalformedResponseError is returned when a successful response does not
// match the expected provider schema.
type MalformedResponseError struct {
	Provider ProviderType
	Reason   string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	msg := providerPrefix(e.Provider) + "malformed response"
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// NewRateLimitError returns a RateLimitError for the provider.
func NewRateLimitError(provider ProviderType, status int, message string, retryAfter time.Duration) *RateLimitError {
	return &RateLimitError{
		ProviderError: ProviderError{
			Provider:   provider,
			StatusCode: status,
			Type:       "rate_limit",
			Message:    message,
		},
		RetryAfter: retryAfter,
	}
}

// IsRateLimit returns true if the error signals provider throttling.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsRetryable returns true for errors a caller may reasonably retry:
// throttling, transport failures and provider side 5xx or 408 responses.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimit(err) {
		return true
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode >= 500 || pe.StatusCode == 408
	}
	return false
}

// StatusCode returns the provider status code carried by the error, or 0.
func StatusCode(err error) int {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.StatusCode
	}
	return 0
}

// RetryAfter returns the delay suggested by a RateLimitError, or 0.
func RetryAfter(err error) time.Duration {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.RetryAfter
	}
	return 0
}

func providerPrefix(p ProviderType) string {
	if p == "" {
		return ""
	}
	return strings.ToLower(string(p)) + ": "
}

// ClassifyHTTPStatus converts a non-success HTTP status into ProviderError,
// or RateLimitError for 429. It returns nil for 2xx status codes.
// The message is taken from the provider JSON error body when present.
func ClassifyHTTPStatus(provider ProviderType, status int, header http.Header, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	message, typ := parseErrorBody(body)
	if message == "" {
		message = http.StatusText(status)
	}
	if status == http.StatusTooManyRequests {
		rl := NewRateLimitError(provider, status, message, ParseRetryAfter(header, time.Now()))
		if typ != "" {
			rl.Type = typ
		}
		return rl
	}
	return &ProviderError{
		Provider:   provider,
		StatusCode: status,
		Type:       typ,
		Message:    message,
	}
}

// parseErrorBody extracts message and type from the common error shapes:
// {"error":{"message":"...","type":"..."}}, {"error":"..."},
// {"message":"..."} and {"detail":"..."}.
func parseErrorBody(body []byte) (message, typ string) {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body)), ""
	}
	res := gjson.ParseBytes(body)
	e := res.Get("error")
	if e.IsObject() {
		message = e.Get("message").String()
		typ = firstString(e, "type", "code", "status")
	} else if e.Type == gjson.String {
		message = e.String()
	}
	if message == "" {
		message = firstString(res, "message", "detail", "error_description")
	}
	if typ == "" {
		typ = firstString(res, "type", "code")
	}
	return message, typ
}

func firstString(res gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := res.Get(p); v.Exists() && v.Type != gjson.JSON {
			if s := v.String(); s != "" {
				return s
			}
		}
	}
	return ""
}

// ParseRetryAfter returns the delay from the Retry-After header,
// given either in seconds or as an HTTP date. It returns 0 if absent.
func ParseRetryAfter(header http.Header, now time.Time) time.Duration {
	if header == nil {
		return 0
	}
	v := strings.TrimSpace(header.Get("Retry-After"))
	if v == "" {
		// not standard, sent by OpenAI
		if ms, err := strconv.ParseInt(header.Get("Retry-After-Ms"), 10, 64); err == nil && ms > 0 {
			return time.Duration(ms) * time.Millisecond
		}
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
