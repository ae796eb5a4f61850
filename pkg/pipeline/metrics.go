package pipeline

import (
	"time"

	"github.com/effective-security/llmkit/pkg/callbacks"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/llmutils"
	"github.com/effective-security/llmkit/pkg/metricskey"
)

func perfInvoke(started time.Time, provider, operation string) {
	metricskey.PerfInvoke.MeasureSince(started, provider, operation)
}

func countFailed(provider, operation string, err error) {
	metricskey.StatsInvocationsFailed.IncrCounter(1, provider, operation)
	if llms.IsRateLimit(err) {
		metricskey.StatsInvocationsRateLimited.IncrCounter(1, provider, operation)
	}
}

func countSucceeded(provider, operation, model string, usage llms.Usage) {
	metricskey.StatsInvocationsSucceeded.IncrCounter(1, provider, operation)
	if usage.IsZero() {
		return
	}
	metricskey.StatsLLMInputTokens.IncrCounter(float64(usage.InputTokens), provider, model)
	metricskey.StatsLLMOutputTokens.IncrCounter(float64(usage.OutputTokens), provider, model)
	metricskey.StatsLLMTotalTokens.IncrCounter(float64(usage.TotalTokens), provider, model)
}

func countChunk(provider string) {
	metricskey.StatsStreamChunks.IncrCounter(1, provider)
}

func countSent(inv *callbacks.Invocation, req any) {
	if r, ok := req.(*llms.Request); ok && r != nil {
		size := llmutils.CountMessagesContentSize(r.Messages)
		metricskey.StatsLLMBytesSent.IncrCounter(float64(size), string(inv.Provider), inv.Model)
	}
}

func countReceived(inv *callbacks.Invocation, res any) {
	if r, ok := res.(*llms.ContentResponse); ok && r != nil {
		size := llmutils.CountResponseContentSize(r)
		metricskey.StatsLLMBytesReceived.IncrCounter(float64(size), string(inv.Provider), inv.Model)
	}
}
