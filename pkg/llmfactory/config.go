package llmfactory

import (
	"slices"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/x/configloader"
)

// Well known route names.
const (
	RouteDefault    = "default"
	RouteGenerate   = "generate"
	RouteStream     = "stream"
	RouteEmbeddings = "embeddings"
)

// Config is the factory configuration.
type Config struct {
	// Providers specifies the list of providers to use
	Providers []*ProviderConfig `json:"providers" yaml:"providers"`
	// DefaultProvider specifies the default provider to use
	DefaultProvider string `json:"default_provider" yaml:"default_provider"`
	// Routes specifies the mapping of a use to preferred models.
	// Key is the route name, e.g. `generate` or `embeddings`,
	// value is the list of model names in order of preference.
	// Use `default: [<model_name>]` as the fallback for other routes.
	Routes map[string][]string `json:"routes" yaml:"routes"`
}

// ProviderConfig configures one provider.
type ProviderConfig struct {
	Name string `json:"name" yaml:"name"`
	// Type specifies the provider:
	// OPENAI|AZURE|AZURE_AD|PERPLEXITY|ANTHROPIC|GOOGLEAI|BEDROCK|GENERIC
	Type string `json:"type" yaml:"type"`
	// Endpoint overrides the provider endpoint.
	Endpoint        string               `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`
	Credentials     provider.Credentials `json:"credentials" yaml:"credentials"`
	DefaultModel    string               `json:"default_model,omitempty" yaml:"default_model,omitempty"`
	AvailableModels []string             `json:"available_models,omitempty" yaml:"available_models,omitempty"`
	Options         provider.Options     `json:"options" yaml:"options"`
}

// ProviderType returns the parsed provider type.
func (c *ProviderConfig) ProviderType() llms.ProviderType {
	return llms.ParseProviderType(c.Type)
}

// FindModel returns the first of models available with the provider,
// or the default model.
func (c *ProviderConfig) FindModel(models ...string) string {
	for _, model := range models {
		if slices.Contains(c.AvailableModels, model) {
			return model
		}
	}
	return c.DefaultModel
}

// HasModel returns true if the model is available with the provider.
func (c *ProviderConfig) HasModel(model string) bool {
	return model != "" && (model == c.DefaultModel || slices.Contains(c.AvailableModels, model))
}

// LoadConfig from file
func LoadConfig(file string) (*Config, error) {
	cfg := new(Config)
	if file == "" {
		return cfg, nil
	}

	err := configloader.UnmarshalAndExpand(file, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
