// Package provider configures provider client handles.
//
// Configure is the single place where credentials, the endpoint and
// provider options are resolved and validated. It never performs network
// I/O and never reads the process environment: the environment is
// captured once with Environ at process start and passed explicitly.
package provider

import (
	"maps"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit", "provider")

// ErrNotRegistered is returned by MustLookup for an unknown provider type.
var ErrNotRegistered = errors.New("provider is not registered")

// Credentials are the secrets used to authenticate with a provider.
type Credentials struct {
	// APIKey is the API key, or the access key ID for AWS.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	// Secret is the secret access key for providers with key pairs.
	Secret string `json:"secret,omitempty" yaml:"secret,omitempty"`
	// Token is a session or bearer token.
	Token string `json:"token,omitempty" yaml:"token,omitempty"`
}

// IsEmpty returns true if no credential is set.
func (c Credentials) IsEmpty() bool {
	return c.APIKey == "" && c.Secret == "" && c.Token == ""
}

// Options are provider specific tuning options.
type Options struct {
	Model          string `json:"model,omitempty" yaml:"model,omitempty" validate:"max=256"`
	EmbeddingModel string `json:"embedding_model,omitempty" yaml:"embedding_model,omitempty" validate:"max=256"`
	APIVersion     string `json:"api_version,omitempty" yaml:"api_version,omitempty"`
	Organization   string `json:"organization,omitempty" yaml:"organization,omitempty"`
	Region         string `json:"region,omitempty" yaml:"region,omitempty"`
	// Timeout bounds each invocation made with the handle, zero means no timeout.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty" validate:"gte=0"`
	// Temperature is the default sampling temperature.
	Temperature *float64 `json:"temperature,omitempty" yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	// Extra holds provider specific settings, e.g. response field paths.
	Extra map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Spec describes how a provider is configured.
type Spec struct {
	Type llms.ProviderType
	// EnvVars are checked in order for the API key.
	EnvVars []string
	// SecretEnvVars are checked in order for the secret.
	SecretEnvVars []string
	// TokenEnvVars are checked in order for the session token.
	TokenEnvVars []string
	// EndpointEnvVars are checked in order for the endpoint.
	EndpointEnvVars []string
	// ModelEnvVars are checked in order for the default model.
	ModelEnvVars []string
	// RegionEnvVars are checked in order for the region.
	RegionEnvVars []string
	// DefaultEndpoint is the public endpoint of the provider.
	DefaultEndpoint string
	// DefaultModel is used when no model is configured.
	DefaultModel string
	// RequiresCredentials is true if an API key must be present.
	RequiresCredentials bool
	// RequiresSecret is true if a secret must be present as well.
	RequiresSecret bool
	// RequiresEndpoint is true if the provider has no public endpoint.
	RequiresEndpoint bool
	// RequiresRegion is true for regional cloud providers.
	RequiresRegion bool
}

var (
	registry   = map[llms.ProviderType]*Spec{}
	registryMu sync.RWMutex
)

// Register adds or replaces the spec for its provider type.
func Register(spec *Spec) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[spec.Type] = spec
}

// Lookup returns the spec registered for the provider type.
func Lookup(typ llms.ProviderType) (*Spec, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	s, ok := registry[typ]
	return s, ok
}

// MustLookup returns the spec registered for the provider type,
// or ErrNotRegistered.
func MustLookup(typ llms.ProviderType) (*Spec, error) {
	s, ok := Lookup(typ)
	if !ok {
		return nil, errors.WithMessagef(ErrNotRegistered, "%q", typ)
	}
	return s, nil
}

// Registered returns the registered provider types, sorted.
func Registered() []llms.ProviderType {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(registry))
}

// Configure resolves credentials, endpoint and options for the provider
// and returns an immutable Handle.
//
// Values passed as arguments take precedence over env. A nil env means
// no environment fallback at all.
// Configure fails with MissingCredentialsError when the provider requires
// credentials and none is found, and with InvalidOptionError when an
// option is outside of the accepted domain.
func Configure(spec *Spec, creds Credentials, endpoint string, opts Options, env Env) (*Handle, error) {
	if spec == nil {
		return nil, errors.New("provider spec is required")
	}

	if creds.APIKey == "" {
		creds.APIKey = env.Get(spec.EnvVars...)
	}
	if creds.Secret == "" {
		creds.Secret = env.Get(spec.SecretEnvVars...)
	}
	if creds.Token == "" {
		creds.Token = env.Get(spec.TokenEnvVars...)
	}
	if spec.RequiresCredentials && creds.APIKey == "" {
		return nil, &llms.MissingCredentialsError{
			Provider: spec.Type,
			EnvVars:  spec.EnvVars,
		}
	}
	if spec.RequiresSecret && creds.Secret == "" {
		return nil, &llms.MissingCredentialsError{
			Provider: spec.Type,
			EnvVars:  spec.SecretEnvVars,
		}
	}

	if endpoint == "" {
		endpoint = env.Get(spec.EndpointEnvVars...)
	}
	if endpoint == "" {
		endpoint = spec.DefaultEndpoint
	}
	if endpoint == "" && spec.RequiresEndpoint {
		return nil, &llms.InvalidOptionError{
			Provider: spec.Type,
			Option:   "endpoint",
			Value:    "",
			Reason:   "is required, set it in the " + strings.Join(spec.EndpointEnvVars, " or ") + " environment variable",
		}
	}
	if endpoint != "" {
		if err := validateEndpoint(endpoint); err != nil {
			return nil, &llms.InvalidOptionError{
				Provider: spec.Type,
				Option:   "endpoint",
				Value:    endpoint,
				Reason:   err.Error(),
			}
		}
		endpoint = strings.TrimSuffix(endpoint, "/")
	}

	if opts.Model == "" {
		opts.Model = env.Get(spec.ModelEnvVars...)
	}
	if opts.Model == "" {
		opts.Model = spec.DefaultModel
	}
	if opts.Region == "" {
		opts.Region = env.Get(spec.RegionEnvVars...)
	}
	if spec.RequiresRegion && opts.Region == "" {
		return nil, &llms.InvalidOptionError{
			Provider: spec.Type,
			Option:   "region",
			Value:    "",
			Reason:   "is required, set it in the " + strings.Join(spec.RegionEnvVars, " or ") + " environment variable",
		}
	}

	if err := validateOptions(spec.Type, &opts); err != nil {
		return nil, err
	}

	h := &Handle{
		provider:       spec.Type,
		creds:          creds,
		endpoint:       endpoint,
		model:          opts.Model,
		embeddingModel: opts.EmbeddingModel,
		apiVersion:     opts.APIVersion,
		organization:   opts.Organization,
		region:         opts.Region,
		timeout:        opts.Timeout,
		extra:          maps.Clone(opts.Extra),
	}
	if opts.Temperature != nil {
		t := *opts.Temperature
		h.temperature = &t
	}

	logger.KV(xlog.DEBUG,
		"status", "configured",
		"provider", h.provider,
		"endpoint", h.endpoint,
		"model", h.model,
	)
	return h, nil
}

// ConfigureFromEnv configures the provider from env alone.
func ConfigureFromEnv(spec *Spec, env Env) (*Handle, error) {
	return Configure(spec, Credentials{}, "", Options{}, env)
}

func validateEndpoint(endpoint string) error {
	u, err := url.Parse(endpoint)
	if err != nil {
		return errors.New("must be a valid URL")
	}
	if !u.IsAbs() || u.Host == "" {
		return errors.New("must be an absolute URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf("unsupported scheme %q", u.Scheme)
	}
	return nil
}
