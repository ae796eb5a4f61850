package openai

import (
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llms/openai/internal/openaiclient"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/openai/openai-go/v3/responses"
)

// requestCache returns the request cache policy of the call, or def when the
// call has none. Breakpoints do not apply to OpenAI and are ignored.
func requestCache(opts *llms.CallOptions, def *llms.PromptCacheRequestPolicy) llms.PromptCacheRequestPolicy {
	if opts.PromptCachePolicy != nil && opts.PromptCachePolicy.Request != nil {
		return *opts.PromptCachePolicy.Request
	}
	if def != nil {
		return *def
	}
	return llms.PromptCacheRequestPolicy{}
}

// cachesPrompts reports the providers that accept prompt_cache_key.
func cachesPrompts(pt llms.ProviderType) bool {
	return pt == llms.ProviderOpenAI || openaiclient.IsAzure(pt)
}

// wireRetention is the API spelling of the retention.
func wireRetention(r llms.PromptCacheRetention) string {
	if r == llms.PromptCacheRetentionInMemory {
		return "in_memory"
	}
	return string(r)
}

func setChatCache(req *ChatRequest, pt llms.ProviderType, policy llms.PromptCacheRequestPolicy) {
	if !cachesPrompts(pt) {
		return
	}
	req.PromptCacheKey = policy.Key
	req.PromptCacheRetention = wireRetention(policy.Retention)
}

// setResponsesCache sets the cache fields of a Responses API request.
// The SDK spells in-memory with a dash, the API expects an underscore.
func setResponsesCache(req *responses.ResponseNewParams, pt llms.ProviderType, policy llms.PromptCacheRequestPolicy) {
	if !cachesPrompts(pt) {
		return
	}
	if policy.Key != "" {
		req.PromptCacheKey = param.NewOpt(policy.Key)
	}
	if policy.Retention != "" {
		req.PromptCacheRetention = responses.ResponseNewParamsPromptCacheRetention(wireRetention(policy.Retention))
	}
}
