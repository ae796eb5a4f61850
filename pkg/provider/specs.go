package provider

import "github.com/effective-security/llmkit/pkg/llms"

// Built-in provider specs.
var (
	OpenAI = &Spec{
		Type:                llms.ProviderOpenAI,
		EnvVars:             []string{"OPENAI_API_KEY"},
		EndpointEnvVars:     []string{"OPENAI_BASE_URL", "OPENAI_API_BASE"},
		ModelEnvVars:        []string{"OPENAI_MODEL"},
		DefaultEndpoint:     "https://api.openai.com/v1",
		DefaultModel:        "gpt-4o-mini",
		RequiresCredentials: true,
	}

	Azure = &Spec{
		Type:                llms.ProviderAzure,
		EnvVars:             []string{"AZURE_OPENAI_API_KEY"},
		EndpointEnvVars:     []string{"AZURE_OPENAI_ENDPOINT"},
		ModelEnvVars:        []string{"AZURE_OPENAI_DEPLOYMENT"},
		RequiresCredentials: true,
		RequiresEndpoint:    true,
	}

	// AzureAD authenticates with a bearer token instead of an API key.
	AzureAD = &Spec{
		Type:                llms.ProviderAzureAD,
		EnvVars:             []string{"AZURE_OPENAI_AD_TOKEN"},
		EndpointEnvVars:     []string{"AZURE_OPENAI_ENDPOINT"},
		ModelEnvVars:        []string{"AZURE_OPENAI_DEPLOYMENT"},
		RequiresCredentials: true,
		RequiresEndpoint:    true,
	}

	Perplexity = &Spec{
		Type:                llms.ProviderPerplexity,
		EnvVars:             []string{"PERPLEXITY_API_KEY"},
		DefaultEndpoint:     "https://api.perplexity.ai",
		DefaultModel:        "sonar",
		RequiresCredentials: true,
	}

	Anthropic = &Spec{
		Type:                llms.ProviderAnthropic,
		EnvVars:             []string{"ANTHROPIC_API_KEY"},
		EndpointEnvVars:     []string{"ANTHROPIC_BASE_URL"},
		ModelEnvVars:        []string{"ANTHROPIC_MODEL"},
		DefaultEndpoint:     "https://api.anthropic.com",
		DefaultModel:        "claude-sonnet-4-5",
		RequiresCredentials: true,
	}

	Bedrock = &Spec{
		Type:                llms.ProviderBedrock,
		EnvVars:             []string{"AWS_ACCESS_KEY_ID"},
		SecretEnvVars:       []string{"AWS_SECRET_ACCESS_KEY"},
		TokenEnvVars:        []string{"AWS_SESSION_TOKEN"},
		EndpointEnvVars:     []string{"BEDROCK_ENDPOINT"},
		ModelEnvVars:        []string{"BEDROCK_MODEL"},
		RegionEnvVars:       []string{"AWS_REGION", "AWS_DEFAULT_REGION"},
		DefaultModel:        "anthropic.claude-3-5-haiku-20241022-v1:0",
		RequiresCredentials: true,
		RequiresSecret:      true,
		RequiresRegion:      true,
	}

	GoogleAI = &Spec{
		Type:                llms.ProviderGoogleAI,
		EnvVars:             []string{"GOOGLE_API_KEY", "GEMINI_API_KEY"},
		EndpointEnvVars:     []string{"GOOGLE_GEMINI_BASE_URL"},
		ModelEnvVars:        []string{"GOOGLE_MODEL"},
		DefaultModel:        "gemini-2.5-pro",
		RequiresCredentials: true,
	}

	// Generic is a JSON over HTTP endpoint, credentials are optional.
	Generic = &Spec{
		Type:             llms.ProviderGeneric,
		EnvVars:          []string{"LLM_API_KEY"},
		EndpointEnvVars:  []string{"LLM_ENDPOINT"},
		ModelEnvVars:     []string{"LLM_MODEL"},
		RequiresEndpoint: true,
	}

	Tavily = &Spec{
		Type:                llms.ProviderTavily,
		EnvVars:             []string{"TAVILY_API_KEY"},
		DefaultEndpoint:     "https://api.tavily.com",
		RequiresCredentials: true,
	}

	Unstructured = &Spec{
		Type:                llms.ProviderUnstructured,
		EnvVars:             []string{"UNSTRUCTURED_API_KEY"},
		EndpointEnvVars:     []string{"UNSTRUCTURED_API_URL"},
		DefaultEndpoint:     "https://api.unstructuredapp.io/general/v0/general",
		RequiresCredentials: true,
	}
)

func init() {
	for _, s := range []*Spec{
		OpenAI,
		Azure,
		AzureAD,
		Perplexity,
		Anthropic,
		Bedrock,
		GoogleAI,
		Generic,
		Tavily,
		Unstructured,
	} {
		Register(s)
	}
}
