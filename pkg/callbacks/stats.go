package callbacks

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/effective-security/llmkit/pkg/llms"
)

// RunStats is a snapshot of the counters collected by Stats.
type RunStats struct {
	Invocations      uint32
	Succeeded        uint32
	Failed           uint32
	RateLimited      uint32
	StreamChunks     uint32
	StreamBytes      uint64
	LLMInputTokens   uint64
	LLMOutputTokens  uint64
	LLMTotalTokens   uint64
	LastError        string
	TotalDuration    time.Duration
	LastProvider     llms.ProviderType
	LastModel        string
	LastInvocationAt time.Time
}

// Stats accumulates invocation counters, for example for a CLI session
// or a test. It is safe for concurrent use.
type Stats struct {
	invocations  atomic.Uint32
	succeeded    atomic.Uint32
	failed       atomic.Uint32
	rateLimited  atomic.Uint32
	chunks       atomic.Uint32
	streamBytes  atomic.Uint64
	inputTokens  atomic.Uint64
	outputTokens atomic.Uint64
	totalTokens  atomic.Uint64
	durationNs   atomic.Int64

	last atomic.Pointer[lastCall]
}

type lastCall struct {
	provider llms.ProviderType
	model    string
	at       time.Time
	err      string
}

func NewStats() *Stats {
	return &Stats{}
}

func (l *Stats) OnInvokeStart(ctx context.Context, inv *Invocation) {
	l.invocations.Add(1)
	l.last.Store(&lastCall{provider: inv.Provider, model: inv.Model, at: inv.Started})
}

func (l *Stats) OnInvokeEnd(ctx context.Context, inv *Invocation, usage llms.Usage) {
	l.succeeded.Add(1)
	l.durationNs.Add(int64(time.Since(inv.Started)))
	l.inputTokens.Add(uint64(max(usage.InputTokens, 0)))
	l.outputTokens.Add(uint64(max(usage.OutputTokens, 0)))
	l.totalTokens.Add(uint64(max(usage.TotalTokens, 0)))
}

func (l *Stats) OnInvokeError(ctx context.Context, inv *Invocation, err error) {
	l.failed.Add(1)
	l.durationNs.Add(int64(time.Since(inv.Started)))
	if llms.IsRateLimit(err) {
		l.rateLimited.Add(1)
	}
	l.last.Store(&lastCall{provider: inv.Provider, model: inv.Model, at: inv.Started, err: err.Error()})
}

func (l *Stats) OnStreamChunk(ctx context.Context, inv *Invocation, chunk llms.Chunk) {
	l.chunks.Add(1)
	l.streamBytes.Add(uint64(len(chunk.Text)))
}

// Snapshot returns the current counters.
func (l *Stats) Snapshot() RunStats {
	s := RunStats{
		Invocations:     l.invocations.Load(),
		Succeeded:       l.succeeded.Load(),
		Failed:          l.failed.Load(),
		RateLimited:     l.rateLimited.Load(),
		StreamChunks:    l.chunks.Load(),
		StreamBytes:     l.streamBytes.Load(),
		LLMInputTokens:  l.inputTokens.Load(),
		LLMOutputTokens: l.outputTokens.Load(),
		LLMTotalTokens:  l.totalTokens.Load(),
		TotalDuration:   time.Duration(l.durationNs.Load()),
	}
	if last := l.last.Load(); last != nil {
		s.LastProvider = last.provider
		s.LastModel = last.model
		s.LastInvocationAt = last.at
		s.LastError = last.err
	}
	return s
}
