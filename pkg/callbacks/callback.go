// Package callbacks provides observers for provider invocations.
package callbacks

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
)

// ensure that the callbacks implement the correct interfaces
var (
	_ Handler = (*Noop)(nil)
	_ Handler = (*Printer)(nil)
	_ Handler = (*PackageLogger)(nil)
	_ Handler = (*Fanout)(nil)
	_ Handler = (*Stats)(nil)
)

// Invocation describes a single call to a provider.
type Invocation struct {
	Provider llms.ProviderType
	Model    string
	// Operation is the kind of call, e.g. "generate", "stream" or "embed".
	Operation string
	// Mode is the invocation mode: "sync", "async" or "stream".
	Mode    string
	Started time.Time
}

// Handler observes invocations. Handlers must not alter results
// and must be safe for concurrent use.
type Handler interface {
	OnInvokeStart(ctx context.Context, inv *Invocation)
	OnInvokeEnd(ctx context.Context, inv *Invocation, usage llms.Usage)
	OnInvokeError(ctx context.Context, inv *Invocation, err error)
	OnStreamChunk(ctx context.Context, inv *Invocation, chunk llms.Chunk)
}

// Mode defines the mode for callback printing
type Mode int

const (
	// ModeDefault is the default mode for callback printing
	ModeDefault Mode = iota
	// ModeVerbose is the verbose mode for callback printing
	ModeVerbose
)

// Fanout is a callback handler that forwards the events to multiple callbacks.
type Fanout struct {
	lock      sync.RWMutex
	callbacks []Handler
}

func NewFanout(callbacks ...Handler) *Fanout {
	return &Fanout{callbacks: callbacks}
}

func (l *Fanout) Add(callback Handler) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.callbacks = append(l.callbacks, callback)
}

func (l *Fanout) list() []Handler {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.callbacks
}

func (l *Fanout) OnInvokeStart(ctx context.Context, inv *Invocation) {
	for _, callback := range l.list() {
		callback.OnInvokeStart(ctx, inv)
	}
}

func (l *Fanout) OnInvokeEnd(ctx context.Context, inv *Invocation, usage llms.Usage) {
	for _, callback := range l.list() {
		callback.OnInvokeEnd(ctx, inv, usage)
	}
}

func (l *Fanout) OnInvokeError(ctx context.Context, inv *Invocation, err error) {
	for _, callback := range l.list() {
		callback.OnInvokeError(ctx, inv, err)
	}
}

func (l *Fanout) OnStreamChunk(ctx context.Context, inv *Invocation, chunk llms.Chunk) {
	for _, callback := range l.list() {
		callback.OnStreamChunk(ctx, inv, chunk)
	}
}

// Noop does nothing.
type Noop struct{}

func NewNoop() *Noop {
	return &Noop{}
}

func (l *Noop) OnInvokeStart(ctx context.Context, inv *Invocation) {}

func (l *Noop) OnInvokeEnd(ctx context.Context, inv *Invocation, usage llms.Usage) {}

func (l *Noop) OnInvokeError(ctx context.Context, inv *Invocation, err error) {}

func (l *Noop) OnStreamChunk(ctx context.Context, inv *Invocation, chunk llms.Chunk) {}

// Printer is a callback handler that prints to a writer.
type Printer struct {
	Out  io.Writer
	Mode Mode
	lock sync.Mutex
}

func NewPrinter(out io.Writer, mode Mode) *Printer {
	return &Printer{
		Out:  out,
		Mode: mode,
	}
}

func (l *Printer) OnInvokeStart(ctx context.Context, inv *Invocation) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Invoke Start: %s %s [%s]\n", inv.Provider, inv.Model, inv.Mode)
}

func (l *Printer) OnInvokeEnd(ctx context.Context, inv *Invocation, usage llms.Usage) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Invoke End: %s %s, duration: %s\n", inv.Provider, inv.Model, time.Since(inv.Started).Round(time.Millisecond))
	if l.Mode == ModeVerbose && !usage.IsZero() {
		fmt.Fprintf(l.Out, "Tokens: input=%d, output=%d, total=%d\n", usage.InputTokens, usage.OutputTokens, usage.TotalTokens)
	}
}

func (l *Printer) OnInvokeError(ctx context.Context, inv *Invocation, err error) {
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Invoke Error: %s %s: %s\n", inv.Provider, inv.Model, err.Error())
}

func (l *Printer) OnStreamChunk(ctx context.Context, inv *Invocation, chunk llms.Chunk) {
	if l.Mode != ModeVerbose {
		return
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	fmt.Fprintf(l.Out, "Chunk: %q\n", chunk.Text)
}

// PackageLogger is a callback handler that prints to the logger.
type PackageLogger struct {
	logger *xlog.PackageLogger
}

func NewPackageLogger(logger *xlog.PackageLogger) *PackageLogger {
	return &PackageLogger{logger: logger}
}

func (l *PackageLogger) OnInvokeStart(ctx context.Context, inv *Invocation) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "invoke_start",
		"provider", inv.Provider,
		"model", inv.Model,
		"operation", inv.Operation,
		"mode", inv.Mode,
	)
}

func (l *PackageLogger) OnInvokeEnd(ctx context.Context, inv *Invocation, usage llms.Usage) {
	l.logger.ContextKV(ctx, xlog.DEBUG,
		"event", "invoke_end",
		"provider", inv.Provider,
		"model", inv.Model,
		"operation", inv.Operation,
		"duration", time.Since(inv.Started).String(),
		"tokens", usage.TotalTokens,
	)
}

func (l *PackageLogger) OnInvokeError(ctx context.Context, inv *Invocation, err error) {
	l.logger.ContextKV(ctx, xlog.ERROR,
		"event", "invoke_error",
		"provider", inv.Provider,
		"model", inv.Model,
		"operation", inv.Operation,
		"err", err.Error(),
	)
}

func (l *PackageLogger) OnStreamChunk(ctx context.Context, inv *Invocation, chunk llms.Chunk) {
	l.logger.ContextKV(ctx, xlog.TRACE,
		"event", "stream_chunk",
		"provider", inv.Provider,
		"size", len(chunk.Text),
	)
}
