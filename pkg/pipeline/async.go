package pipeline

import (
	"context"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Future is the pending result of an asynchronous invocation.
type Future[Res any] struct {
	done   chan struct{}
	cancel context.CancelFunc
	res    Res
	err    error
}

// Done is closed when the result is available.
func (f *Future[Res]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the result is available or ctx is done.
// Abandoning the wait does not cancel the invocation, use Cancel for that.
func (f *Future[Res]) Wait(ctx context.Context) (Res, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		var zero Res
		return zero, errors.WithStack(ctx.Err())
	}
}

// Cancel cancels the invocation. The result is the context error
// unless the invocation has already completed.
func (f *Future[Res]) Cancel() {
	f.cancel()
}

// Go starts the invocation in a goroutine and returns immediately.
func (p *Pipeline[Req, Payload, Raw, Res]) Go(ctx context.Context, req Req) *Future[Res] {
	ctx, cancel := context.WithCancel(ctx)
	f := &Future[Res]{
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go func() {
		defer close(f.done)
		defer cancel()
		f.res, f.err = p.run(ctx, req, ModeAsync)
	}()
	return f
}

// RunAll runs the requests concurrently, at most limit at a time when limit
// is positive. Results are returned in the request order. The first failure
// cancels the remaining invocations and is returned unchanged.
func (p *Pipeline[Req, Payload, Raw, Res]) RunAll(ctx context.Context, reqs []Req, limit int) ([]Res, error) {
	results := make([]Res, len(reqs))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			res, err := p.run(gctx, req, ModeAsync)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
