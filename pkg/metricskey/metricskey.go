package metricskey

import "github.com/effective-security/metrics"

// Stats
var (
	// StatsInvocationsSucceeded is base for counter metric for succeeded provider invocations
	StatsInvocationsSucceeded = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_invocations_succeeded",
		Help:         "stats_invocations_succeeded provides total provider invocations succeeded",
		RequiredTags: []string{"provider", "operation"},
	}

	StatsInvocationsFailed = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_invocations_failed",
		Help:         "stats_invocations_failed provides total provider invocations failed",
		RequiredTags: []string{"provider", "operation"},
	}

	StatsInvocationsRateLimited = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_invocations_rate_limited",
		Help:         "stats_invocations_rate_limited provides total provider invocations rejected with rate limit",
		RequiredTags: []string{"provider", "operation"},
	}

	StatsStreamChunks = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_stream_chunks",
		Help:         "stats_stream_chunks provides total chunks received in streaming mode",
		RequiredTags: []string{"provider"},
	}

	StatsLLMBytesSent = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_sent",
		Help:         "stats_llm_bytes_sent provides total bytes sent to LLM",
		RequiredTags: []string{"provider", "model"},
	}

	StatsLLMBytesReceived = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_bytes_received",
		Help:         "stats_llm_bytes_received provides total bytes received from LLM",
		RequiredTags: []string{"provider", "model"},
	}

	StatsLLMInputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_input_tokens",
		Help:         "stats_llm_input_tokens provides total input tokens sent to LLM",
		RequiredTags: []string{"provider", "model"},
	}

	StatsLLMOutputTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_output_tokens",
		Help:         "stats_llm_output_tokens provides total output tokens received from LLM",
		RequiredTags: []string{"provider", "model"},
	}

	StatsLLMTotalTokens = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_llm_total_tokens",
		Help:         "stats_llm_total_tokens provides total tokens sent and received from LLM",
		RequiredTags: []string{"provider", "model"},
	}

	StatsRetries = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_retries",
		Help:         "stats_retries provides total caller side retries",
		RequiredTags: []string{"provider"},
	}

	StatsHTTPRequests = metrics.Describe{
		Type:         metrics.TypeCounter,
		Name:         "stats_http_requests",
		Help:         "stats_http_requests provides total requests served by the web entry point",
		RequiredTags: []string{"route", "status"},
	}
)

// Perf
var (
	PerfInvoke = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_invoke",
		Help:         "perf_invoke provides duration of provider invocation",
		RequiredTags: []string{"provider", "operation"},
	}

	PerfHTTPRequest = metrics.Describe{
		Type:         metrics.TypeSample,
		Name:         "perf_http_request",
		Help:         "perf_http_request provides duration of requests served by the web entry point",
		RequiredTags: []string{"route"},
	}
)

// Metrics returns slice of metrics from this repo
// keep sorted by name
var Metrics = []*metrics.Describe{
	&PerfHTTPRequest,
	&PerfInvoke,
	&StatsHTTPRequests,
	&StatsInvocationsFailed,
	&StatsInvocationsRateLimited,
	&StatsInvocationsSucceeded,
	&StatsLLMBytesReceived,
	&StatsLLMBytesSent,
	&StatsLLMInputTokens,
	&StatsLLMOutputTokens,
	&StatsLLMTotalTokens,
	&StatsRetries,
	&StatsStreamChunks,
}
