// Package pipeline runs a provider invocation as three stages: the request
// adapter builds the provider payload, the dispatcher performs the network
// call, and the response adapter maps the raw response into a result.
//
// A Pipeline is stateless between calls. Requests and the client handle are
// never modified, and failures are returned to the caller without retries.
package pipeline

import (
	"context"
	"iter"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/callbacks"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/xlog"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit", "pipeline")

// ErrStreamConsumed is returned by a stream that is iterated a second time.
var ErrStreamConsumed = errors.New("stream already consumed")

// Mode is the invocation mode.
type Mode string

const (
	// ModeSync blocks until the result is available.
	ModeSync Mode = "sync"
	// ModeAsync returns a Future immediately.
	ModeAsync Mode = "async"
	// ModeStream yields the result as a lazy sequence of chunks.
	ModeStream Mode = "stream"
)

// Operation names used in metrics and callbacks.
const (
	OperationGenerate = "generate"
	OperationStream   = "stream"
	OperationEmbed    = "embed"
)

// RequestAdapter maps a caller request into a provider payload.
// Adapt must be pure: it performs no I/O and does not modify req.
type RequestAdapter[Req, Payload any] interface {
	Adapt(req Req, h *provider.Handle) (Payload, error)
}

// Dispatcher sends a payload to the provider and returns the raw response.
// It makes exactly one network call.
type Dispatcher[Payload, Raw any] interface {
	Invoke(ctx context.Context, payload Payload, h *provider.Handle) (Raw, error)
}

// StreamDispatcher is implemented by dispatchers that can stream.
// The returned sequence must be lazy, finite, and must release the
// underlying connection when the caller stops iterating.
type StreamDispatcher[Payload any] interface {
	InvokeStream(ctx context.Context, payload Payload, h *provider.Handle) iter.Seq2[llms.Chunk, error]
}

// ResponseAdapter maps a raw provider response into a result.
// AdaptResponse must be pure and idempotent.
type ResponseAdapter[Raw, Res any] interface {
	AdaptResponse(raw Raw) (Res, error)
}

// Adapter combines the three stages of an invocation.
type Adapter[Req, Payload, Raw, Res any] interface {
	RequestAdapter[Req, Payload]
	Dispatcher[Payload, Raw]
	ResponseAdapter[Raw, Res]
}

// Option configures a Pipeline.
type Option func(*config)

type config struct {
	callbacks callbacks.Handler
	operation string
	timeout   time.Duration
}

// WithCallbacks sets the invocation observer.
func WithCallbacks(handler callbacks.Handler) Option {
	return func(c *config) {
		c.callbacks = handler
	}
}

// WithOperation sets the operation name reported in metrics, "generate" by default.
func WithOperation(operation string) Option {
	return func(c *config) {
		c.operation = operation
	}
}

// WithTimeout bounds every invocation of the pipeline.
// A timeout set on the request takes precedence.
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.timeout = timeout
	}
}

// Pipeline runs invocations against one configured provider.
// It is safe for concurrent use.
type Pipeline[Req, Payload, Raw, Res any] struct {
	handle  *provider.Handle
	adapter Adapter[Req, Payload, Raw, Res]
	cfg     config
}

// New returns a pipeline for the handle and adapter.
func New[Req, Payload, Raw, Res any](h *provider.Handle, adapter Adapter[Req, Payload, Raw, Res], opts ...Option) (*Pipeline[Req, Payload, Raw, Res], error) {
	if h == nil {
		return nil, errors.New("client handle is required")
	}
	if adapter == nil {
		return nil, errors.New("adapter is required")
	}
	cfg := config{
		operation: OperationGenerate,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.callbacks == nil {
		cfg.callbacks = callbacks.NewNoop()
	}
	return &Pipeline[Req, Payload, Raw, Res]{
		handle:  h,
		adapter: adapter,
		cfg:     cfg,
	}, nil
}

// Handle returns the client handle of the pipeline.
func (p *Pipeline[Req, Payload, Raw, Res]) Handle() *provider.Handle {
	return p.handle
}

// Run adapts the request, invokes the provider and adapts the response.
func (p *Pipeline[Req, Payload, Raw, Res]) Run(ctx context.Context, req Req) (Res, error) {
	return p.run(ctx, req, ModeSync)
}

func (p *Pipeline[Req, Payload, Raw, Res]) run(ctx context.Context, req Req, mode Mode) (res Res, err error) {
	inv := p.invocation(req, mode)
	p.cfg.callbacks.OnInvokeStart(ctx, inv)
	defer func() {
		p.observe(ctx, inv, usageOf(res, err), err)
		if err == nil {
			countReceived(inv, res)
		}
	}()

	payload, err := p.adapter.Adapt(req, p.handle)
	if err != nil {
		var zero Res
		return zero, err
	}
	countSent(inv, req)

	callCtx, cancel := p.withTimeout(ctx, req)
	defer cancel()

	raw, err := p.adapter.Invoke(callCtx, payload, p.handle)
	if err != nil {
		var zero Res
		return zero, err
	}
	return p.adapter.AdaptResponse(raw)
}

func (p *Pipeline[Req, Payload, Raw, Res]) invocation(req Req, mode Mode) *callbacks.Invocation {
	operation := p.cfg.operation
	if mode == ModeStream {
		operation = OperationStream
	}
	model := modelOf(req)
	if model == "" {
		model = p.handle.Model()
	}
	return &callbacks.Invocation{
		Provider:  p.handle.Provider(),
		Model:     model,
		Operation: operation,
		Mode:      string(mode),
		Started:   time.Now(),
	}
}

// withTimeout applies the first timeout set on the request, the pipeline or the handle.
func (p *Pipeline[Req, Payload, Raw, Res]) withTimeout(ctx context.Context, req Req) (context.Context, context.CancelFunc) {
	timeout := p.handle.Timeout()
	if p.cfg.timeout > 0 {
		timeout = p.cfg.timeout
	}
	if t, ok := any(req).(interface{ Timeout() time.Duration }); ok {
		if d := t.Timeout(); d > 0 {
			timeout = d
		}
	}
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (p *Pipeline[Req, Payload, Raw, Res]) observe(ctx context.Context, inv *callbacks.Invocation, usage llms.Usage, err error) {
	provider := string(inv.Provider)
	perfInvoke(inv.Started, provider, inv.Operation)

	if err != nil {
		countFailed(provider, inv.Operation, err)
		logger.ContextKV(ctx, xlog.DEBUG,
			"status", "invoke_failed",
			"provider", provider,
			"model", inv.Model,
			"mode", inv.Mode,
			"err", err.Error(),
		)
		p.cfg.callbacks.OnInvokeError(ctx, inv, err)
		return
	}

	countSucceeded(provider, inv.Operation, inv.Model, usage)
	p.cfg.callbacks.OnInvokeEnd(ctx, inv, usage)
}

func modelOf(req any) string {
	switch r := req.(type) {
	case *llms.Request:
		return r.Model()
	case *llms.EmbeddingRequest:
		if r != nil {
			return r.Model
		}
	}
	return ""
}

func usageOf(res any, err error) llms.Usage {
	if err != nil {
		return llms.Usage{}
	}
	switch r := res.(type) {
	case *llms.ContentResponse:
		return r.Usage()
	case *llms.EmbeddingResult:
		if r != nil {
			return r.Usage
		}
	}
	return llms.Usage{}
}
