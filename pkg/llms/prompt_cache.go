package llms

// PromptCacheRetention is how long a provider keeps a cached prompt prefix.
type PromptCacheRetention string

const (
	PromptCacheRetentionInMemory PromptCacheRetention = "in-memory"
	PromptCacheRetention24h      PromptCacheRetention = "24h"
)

// PromptCacheTTL is the lifetime of a cache breakpoint.
type PromptCacheTTL string

const (
	PromptCacheTTL5m PromptCacheTTL = "5m"
	PromptCacheTTL1h PromptCacheTTL = "1h"
)

// PromptCacheTargetKind selects what a breakpoint marks.
type PromptCacheTargetKind string

const (
	PromptCacheTargetMessagePart PromptCacheTargetKind = "message_part"
	PromptCacheTargetTool        PromptCacheTargetKind = "tool"
)

// PromptCachePolicy describes prompt caching for a call.
// Providers apply the parts they support and ignore the rest.
type PromptCachePolicy struct {
	// Request holds request level settings, used by OpenAI.
	Request *PromptCacheRequestPolicy `json:"request,omitempty"`
	// Breakpoints mark cacheable blocks, used by Anthropic.
	Breakpoints []PromptCacheBreakpoint `json:"breakpoints,omitempty"`
}

// PromptCacheRequestPolicy is the request level cache key and retention.
type PromptCacheRequestPolicy struct {
	Key       string               `json:"key,omitempty"`
	Retention PromptCacheRetention `json:"retention,omitempty"`
}

// PromptCacheBreakpoint marks the end of a cacheable prefix.
type PromptCacheBreakpoint struct {
	Target PromptCacheTarget `json:"target"`
	TTL    PromptCacheTTL    `json:"ttl,omitempty"`
}

// PromptCacheTarget addresses a message part or a tool by index
// in the caller's messages and tools.
type PromptCacheTarget struct {
	Kind         PromptCacheTargetKind `json:"kind"`
	MessageIndex int                   `json:"message_index,omitempty"`
	PartIndex    int                   `json:"part_index,omitempty"`
	ToolIndex    int                   `json:"tool_index,omitempty"`
}

// WithPromptCachePolicy sets the prompt cache policy of the call.
func WithPromptCachePolicy(policy *PromptCachePolicy) CallOption {
	return func(o *CallOptions) {
		o.PromptCachePolicy = policy
	}
}
