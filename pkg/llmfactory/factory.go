package llmfactory

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/callbacks"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/anthropic"
	"github.com/effective-security/llmkit/pkg/llms/bedrock"
	"github.com/effective-security/llmkit/pkg/llms/generic"
	"github.com/effective-security/llmkit/pkg/llms/googleai"
	"github.com/effective-security/llmkit/pkg/llms/openai"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg", "llmfactory")

// NewLLM is a wrapper for CreateLLM to allow for overriding the default implementation.
var NewLLM = CreateLLM

// ErrNoProviders is returned when the configuration has no providers.
var ErrNoProviders = errors.New("no providers configured")

//go:generate mockgen -source=factory.go -destination=../mocks/mockllmfactory/factory_mock.go -package mockllmfactory

// Factory is the interface for creating and managing LLM models.
type Factory interface {
	// DefaultModel returns the default LLM model.
	DefaultModel() (llms.Model, error)
	// ModelByType returns an LLM model by its provider type, e.g.
	// OPENAI, AZURE, AZURE_AD, ANTHROPIC, GOOGLEAI, BEDROCK, PERPLEXITY, GENERIC
	ModelByType(providerType string) (llms.Model, error)
	// ModelByName returns an LLM model by its name,
	// if the model is not found, it will return the default model.
	ModelByName(preferredModels ...string) (llms.Model, error)
	// RouteModel returns the model configured for the route.
	RouteModel(route string, preferredModels ...string) (llms.Model, error)
	// Embedder returns the embedder configured for the embeddings route.
	Embedder(preferredModels ...string) (llms.Embedder, error)
}

// Settings are shared by all models created by a factory.
type Settings struct {
	// Env is used for credentials not present in the configuration,
	// nil disables the environment fallback.
	Env        provider.Env
	HTTPClient transport.Doer
	Callbacks  callbacks.Handler

	envSet bool
}

// Option configures the factory.
type Option func(*Settings)

// WithEnv sets the environment used to resolve credentials.
func WithEnv(env provider.Env) Option {
	return func(s *Settings) {
		s.Env = env
		s.envSet = true
	}
}

// WithHTTPClient sets the HTTP client of created models.
func WithHTTPClient(client transport.Doer) Option {
	return func(s *Settings) {
		s.HTTPClient = client
	}
}

// WithCallbacks sets the invocation observer of created models.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(s *Settings) {
		s.Callbacks = handler
	}
}

// Load returns a factory for the configuration file
func Load(location string, opts ...Option) (Factory, error) {
	cfg, err := LoadConfig(location)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts...), nil
}

type factory struct {
	cfg      *Config
	settings Settings

	defaultProvider *ProviderConfig
	byType          map[llms.ProviderType]llms.Model
	byName          map[string]llms.Model
	lock            sync.Mutex
}

// environ reads the process environment.
var environ = provider.Environ

// New creates a new LLM factory.
// Models are created on first use and cached.
func New(cfg *Config, opts ...Option) Factory {
	f := &factory{
		cfg:    cfg,
		byType: make(map[llms.ProviderType]llms.Model),
		byName: make(map[string]llms.Model),
	}
	for _, opt := range opts {
		opt(&f.settings)
	}
	// the process environment is read only when the caller did not pass one
	if !f.settings.envSet {
		f.settings.Env = environ()
	}

	if cfg.DefaultProvider != "" {
		for _, p := range cfg.Providers {
			if p.Name == cfg.DefaultProvider {
				f.defaultProvider = p
				break
			}
		}
	}

	if f.defaultProvider == nil && len(f.cfg.Providers) > 0 {
		f.defaultProvider = f.cfg.Providers[0]
	}

	return f
}

// Handle configures the provider handle for the model.
func Handle(cfg *ProviderConfig, env provider.Env, preferredModels ...string) (*provider.Handle, error) {
	spec, err := provider.MustLookup(cfg.ProviderType())
	if err != nil {
		return nil, err
	}
	opts := cfg.Options
	if model := cfg.FindModel(preferredModels...); model != "" {
		opts.Model = model
	}
	return provider.Configure(spec, cfg.Credentials, cfg.Endpoint, opts, env)
}

// CreateLLM configures the provider and returns its model.
func CreateLLM(cfg *ProviderConfig, s Settings, preferredModels ...string) (llms.Model, error) {
	h, err := Handle(cfg, s.Env, preferredModels...)
	if err != nil {
		return nil, err
	}

	switch typ := cfg.ProviderType(); typ {
	case llms.ProviderOpenAI, llms.ProviderAzure, llms.ProviderAzureAD, llms.ProviderPerplexity:
		opts := []openai.Option{openai.WithCallbacks(s.Callbacks)}
		if s.HTTPClient != nil {
			opts = append(opts, openai.WithHTTPClient(s.HTTPClient))
		}
		return openai.New(h, opts...)
	case llms.ProviderAnthropic:
		opts := []anthropic.Option{anthropic.WithCallbacks(s.Callbacks)}
		if s.HTTPClient != nil {
			opts = append(opts, anthropic.WithHTTPClient(s.HTTPClient))
		}
		return anthropic.New(h, opts...)
	case llms.ProviderGoogleAI:
		opts := []googleai.Option{googleai.WithCallbacks(s.Callbacks)}
		if s.HTTPClient != nil {
			opts = append(opts, googleai.WithHTTPClient(s.HTTPClient))
		}
		return googleai.New(h, opts...)
	case llms.ProviderBedrock:
		opts := []bedrock.Option{bedrock.WithCallbacks(s.Callbacks)}
		if s.HTTPClient != nil {
			opts = append(opts, bedrock.WithHTTPClient(s.HTTPClient))
		}
		return bedrock.New(h, opts...)
	case llms.ProviderGeneric:
		opts := []generic.Option{generic.WithCallbacks(s.Callbacks)}
		if s.HTTPClient != nil {
			opts = append(opts, generic.WithHTTPClient(s.HTTPClient))
		}
		return generic.New(h, opts...)
	default:
		return nil, &llms.InvalidOptionError{
			Provider: typ,
			Option:   "type",
			Value:    cfg.Type,
			Reason:   "not a chat model provider",
		}
	}
}

// DefaultModel returns the default model of the default provider.
func (f *factory) DefaultModel() (llms.Model, error) {
	if len(f.cfg.Providers) == 0 || f.defaultProvider == nil {
		return nil, errors.WithStack(ErrNoProviders)
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	return f.byProvider(f.defaultProvider, f.defaultProvider.DefaultModel)
}

// byProvider returns the cached model, must be called under the lock.
func (f *factory) byProvider(cfg *ProviderConfig, model string) (llms.Model, error) {
	key := cfg.Name + "/" + model
	if m, ok := f.byName[key]; ok {
		return m, nil
	}
	m, err := NewLLM(cfg, f.settings, model)
	if err != nil {
		return nil, err
	}

	logger.KV(xlog.DEBUG,
		"status", "created_llm",
		"type", cfg.Type,
		"model", model,
		"name", cfg.Name)

	f.byName[key] = m
	return m, nil
}

func (f *factory) ModelByType(providerType string) (llms.Model, error) {
	typ := llms.ParseProviderType(providerType)

	f.lock.Lock()
	defer f.lock.Unlock()

	if client, ok := f.byType[typ]; ok {
		return client, nil
	}

	for _, cfg := range f.cfg.Providers {
		if cfg.ProviderType() == typ {
			model, err := f.byProvider(cfg, cfg.DefaultModel)
			if err != nil {
				return nil, err
			}
			f.byType[typ] = model
			return model, nil
		}
	}
	return nil, errors.Errorf("provider not found for type: %s", providerType)
}

func (f *factory) ModelByName(modelNames ...string) (llms.Model, error) {
	f.lock.Lock()
	for _, modelName := range modelNames {
		for _, cfg := range f.cfg.Providers {
			if !cfg.HasModel(modelName) {
				continue
			}
			model, err := f.byProvider(cfg, modelName)
			if err != nil {
				logger.KV(xlog.ERROR,
					"reason", "NewLLM",
					"type", cfg.Type,
					"name", cfg.Name,
					"model", modelName,
					"err", err.Error(),
				)
				continue
			}
			f.lock.Unlock()
			return model, nil
		}
	}
	f.lock.Unlock()

	return f.DefaultModel()
}

// RouteModel returns the model for the route,
// falls back to the `default` route and then to preferredModels.
func (f *factory) RouteModel(route string, preferredModels ...string) (llms.Model, error) {
	if modelNames, ok := f.cfg.Routes[route]; ok {
		return f.ModelByName(modelNames...)
	}
	if modelNames, ok := f.cfg.Routes[RouteDefault]; ok {
		return f.ModelByName(modelNames...)
	}
	return f.ModelByName(preferredModels...)
}

// Embedder returns the model of the embeddings route,
// it fails with UnsupportedInputError if the model has no embeddings.
func (f *factory) Embedder(preferredModels ...string) (llms.Embedder, error) {
	model, err := f.RouteModel(RouteEmbeddings, preferredModels...)
	if err != nil {
		return nil, err
	}
	e, ok := model.(llms.Embedder)
	if !ok {
		return nil, &llms.UnsupportedInputError{
			Provider: model.GetProviderType(),
			Input:    "embeddings",
			Reason:   strings.ToLower(string(model.GetProviderType())) + " does not create embeddings",
		}
	}
	return e, nil
}
