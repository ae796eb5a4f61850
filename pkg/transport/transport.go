// Package transport performs HTTP calls to providers and classifies
// failures into the llms error taxonomy.
//
// Calls are never retried here: a failed call is surfaced to the caller
// as TransportError, ProviderError or RateLimitError.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/google/uuid"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit", "transport")

// HeaderRequestID is set on each outgoing request.
const HeaderRequestID = "X-Request-ID"

// MaxErrorBodySize limits how much of an error response is read.
const MaxErrorBodySize = 64 * 1024

// Doer performs HTTP requests, *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultDoer is used when nil Doer is provided.
var DefaultDoer Doer = http.DefaultClient

// NewRequest returns a request with headers and a request ID.
func NewRequest(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	if req.Header.Get(HeaderRequestID) == "" {
		id := RequestID(ctx)
		if id == "" {
			id = uuid.NewString()
		}
		req.Header.Set(HeaderRequestID, id)
	}
	return req, nil
}

type requestIDKey struct{}

// WithRequestID returns a context carrying the request ID,
// it is sent with requests made with the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the request ID of the context, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Do sends the request and returns the response for 2xx status codes.
// The caller must close the response body.
func Do(doer Doer, provider llms.ProviderType, req *http.Request) (*http.Response, error) {
	if doer == nil {
		doer = DefaultDoer
	}
	resp, err := doer.Do(req)
	if err != nil {
		logger.ContextKV(req.Context(), xlog.DEBUG,
			"status", "transport_failed",
			"provider", provider,
			"url", req.URL.Redacted(),
			"err", err.Error(),
		)
		return nil, &llms.TransportError{
			Provider: provider,
			Op:       req.Method,
			URL:      req.URL.Redacted(),
			Err:      err,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, MaxErrorBodySize))
		err = llms.ClassifyHTTPStatus(provider, resp.StatusCode, resp.Header, body)
		logger.ContextKV(req.Context(), xlog.DEBUG,
			"status", "provider_failed",
			"provider", provider,
			"url", req.URL.Redacted(),
			"code", resp.StatusCode,
			"request_id", req.Header.Get(HeaderRequestID),
			"err", err.Error(),
		)
		return nil, err
	}
	return resp, nil
}

// Post sends body to url and returns the response body of a 2xx response.
func Post(ctx context.Context, doer Doer, provider llms.ProviderType, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := NewRequest(ctx, http.MethodPost, url, bytes.NewReader(body), headers)
	if err != nil {
		return nil, err
	}
	resp, err := Do(doer, provider, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &llms.TransportError{
			Provider: provider,
			Op:       "read",
			URL:      req.URL.Redacted(),
			Err:      err,
		}
	}
	return raw, nil
}

// PostJSON marshals payload, unless it is already []byte or json.RawMessage,
// and posts it with JSON content type.
func PostJSON(ctx context.Context, doer Doer, provider llms.ProviderType, url string, headers map[string]string, payload any) ([]byte, error) {
	body, err := marshal(payload)
	if err != nil {
		return nil, err
	}
	return Post(ctx, doer, provider, url, jsonHeaders(headers, "application/json"), body)
}

// OpenStream posts payload and returns the body of a 2xx response
// for incremental reading. The caller must close it.
func OpenStream(ctx context.Context, doer Doer, provider llms.ProviderType, url string, headers map[string]string, payload any) (io.ReadCloser, error) {
	body, err := marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := NewRequest(ctx, http.MethodPost, url, bytes.NewReader(body), jsonHeaders(headers, "text/event-stream"))
	if err != nil {
		return nil, err
	}
	resp, err := Do(doer, provider, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func marshal(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case []byte:
		return v, nil
	case json.RawMessage:
		return v, nil
	default:
		js, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal payload")
		}
		return js, nil
	}
}

func jsonHeaders(headers map[string]string, accept string) map[string]string {
	h := make(map[string]string, len(headers)+2)
	h["Content-Type"] = "application/json"
	h["Accept"] = accept
	for k, v := range headers {
		h[k] = v
	}
	return h
}

// HTTPClient returns d as an *http.Client, for SDKs that take one.
func HTTPClient(d Doer) *http.Client {
	switch c := d.(type) {
	case nil:
		return http.DefaultClient
	case *http.Client:
		return c
	default:
		return &http.Client{Transport: doerTransport{d}}
	}
}

type doerTransport struct {
	Doer
}

func (t doerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	return t.Do(r)
}
