package openaiclient

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit", "openai")

const (
	DefaultBaseURL    = "https://api.openai.com/v1"
	DefaultChatModel  = "gpt-4o-mini"
	DefaultMaxTokens  = 2 * 16384
	DefaultAPIVersion = "2024-10-21"

	defaultEmbeddingModel = "text-embedding-3-small"
)

// ErrEmptyResponse is returned when the OpenAI API returns an empty response.
var ErrEmptyResponse = errors.New("empty response")

// Client is a client for the OpenAI API and compatible APIs.
// It holds no per-call state and is safe for concurrent use.
type Client struct {
	Provider llms.ProviderType

	token        string
	baseURL      string
	organization string
	apiVersion   string
	httpClient   transport.Doer
}

// New returns a client for the configured handle.
func New(h *provider.Handle, httpClient transport.Doer) *Client {
	c := &Client{
		Provider:     h.Provider(),
		token:        h.APIKey(),
		baseURL:      strings.TrimSuffix(h.Endpoint(), "/"),
		organization: h.Organization(),
		apiVersion:   h.APIVersion(),
		httpClient:   httpClient,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.apiVersion == "" && IsAzure(c.Provider) {
		c.apiVersion = DefaultAPIVersion
	}
	if c.httpClient == nil {
		c.httpClient = transport.DefaultDoer
	}
	return c
}

// IsAzure returns true for Azure OpenAI deployments.
func IsAzure(p llms.ProviderType) bool {
	return p == llms.ProviderAzure || p == llms.ProviderAzureAD
}

// SupportsResponsesAPI returns true if the provider serves the /responses API.
func (c *Client) SupportsResponsesAPI() bool {
	if IsAzure(c.Provider) {
		// Azure API versions are dates like YYYY-MM-DD, optionally with a "-preview" suffix.
		apiVersion := c.apiVersion
		if idx := strings.Index(apiVersion, "-preview"); idx != -1 {
			apiVersion = apiVersion[:idx]
		}
		versionDate, err := time.Parse("2006-01-02", strings.TrimSpace(apiVersion))
		if err != nil {
			return false
		}
		thresholdDate := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		return !versionDate.Before(thresholdDate)
	}
	return c.Provider == llms.ProviderOpenAI
}

func (c *Client) headers() map[string]string {
	h := map[string]string{}
	if c.Provider == llms.ProviderAzure {
		h["api-key"] = c.token
	} else {
		h["Authorization"] = "Bearer " + c.token
	}
	if c.organization != "" {
		h["OpenAI-Organization"] = c.organization
	}
	return h
}

// BuildURL returns the URL of an API path for the model.
func (c *Client) BuildURL(suffix string, model string) string {
	if IsAzure(c.Provider) {
		return c.buildAzureURL(suffix, model)
	}
	return c.baseURL + suffix
}

func (c *Client) buildAzureURL(suffix string, model string) string {
	if suffix == "/responses" {
		// the responses API is not nested under deployments,
		// the deployment name goes in the model field of the body.
		return fmt.Sprintf("%s/openai/responses?api-version=%s", c.baseURL, c.apiVersion)
	}

	// /openai/deployments/{model}/chat/completions?api-version={api_version}
	return fmt.Sprintf("%s/openai/deployments/%s%s?api-version=%s",
		c.baseURL, model, suffix, c.apiVersion,
	)
}
