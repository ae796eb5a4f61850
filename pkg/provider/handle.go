package provider

import (
	"fmt"
	"time"

	"github.com/effective-security/llmkit/pkg/llms"
)

// Handle is a configured provider client handle.
// It is immutable and safe for concurrent use.
type Handle struct {
	provider       llms.ProviderType
	creds          Credentials
	endpoint       string
	model          string
	embeddingModel string
	apiVersion     string
	organization   string
	region         string
	timeout        time.Duration
	temperature    *float64
	extra          map[string]string
}

// Provider returns the provider type.
func (h *Handle) Provider() llms.ProviderType { return h.provider }

// Credentials returns a copy of the resolved credentials.
func (h *Handle) Credentials() Credentials { return h.creds }

// APIKey returns the resolved API key.
func (h *Handle) APIKey() string { return h.creds.APIKey }

// Endpoint returns the base URL without a trailing slash.
func (h *Handle) Endpoint() string { return h.endpoint }

// Model returns the default model.
func (h *Handle) Model() string { return h.model }

// EmbeddingModel returns the embedding model.
func (h *Handle) EmbeddingModel() string { return h.embeddingModel }

// APIVersion returns the API version.
func (h *Handle) APIVersion() string { return h.apiVersion }

// Organization returns the organization.
func (h *Handle) Organization() string { return h.organization }

// Region returns the region.
func (h *Handle) Region() string { return h.region }

// Timeout returns the invocation timeout, zero means none.
func (h *Handle) Timeout() time.Duration { return h.timeout }

// Temperature returns the default temperature, if configured.
func (h *Handle) Temperature() (float64, bool) {
	if h.temperature == nil {
		return 0, false
	}
	return *h.temperature, true
}

// Extra returns a provider specific setting.
func (h *Handle) Extra(key string) string {
	return h.extra[key]
}

// ExtraOr returns a provider specific setting, or def if not set.
func (h *Handle) ExtraOr(key, def string) string {
	if v := h.extra[key]; v != "" {
		return v
	}
	return def
}

// WithModel returns a copy of the handle with a different default model.
func (h *Handle) WithModel(model string) *Handle {
	c := *h
	c.model = model
	return &c
}

// CallOptions returns the handle defaults as call options.
func (h *Handle) CallOptions() llms.CallOptions {
	opts := llms.CallOptions{
		Model:   h.model,
		Timeout: h.timeout,
	}
	if h.temperature != nil {
		opts.Temperature = *h.temperature
	}
	return opts
}

// String returns a description of the handle without secrets.
func (h *Handle) String() string {
	return fmt.Sprintf("provider=%s endpoint=%s model=%s", h.provider, h.endpoint, h.model)
}
