package pipeline

import (
	"context"
	"iter"
	"strings"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llms"
)

// Stream returns the response as a lazy sequence of chunks.
// Nothing is sent until the caller starts ranging over the sequence, and
// stopping early releases the connection. The sequence can be consumed once,
// a second iteration yields ErrStreamConsumed.
//
// If the adapter does not support streaming, the sequence yields a single
// UnsupportedInputError.
func (p *Pipeline[Req, Payload, Raw, Res]) Stream(ctx context.Context, req Req) iter.Seq2[llms.Chunk, error] {
	var used atomic.Bool
	return func(yield func(llms.Chunk, error) bool) {
		if !used.CompareAndSwap(false, true) {
			yield(llms.Chunk{}, errors.WithStack(ErrStreamConsumed))
			return
		}
		p.stream(ctx, req, yield)
	}
}

func (p *Pipeline[Req, Payload, Raw, Res]) stream(ctx context.Context, req Req, yield func(llms.Chunk, error) bool) {
	inv := p.invocation(req, ModeStream)
	p.cfg.callbacks.OnInvokeStart(ctx, inv)

	var usage llms.Usage
	var err error
	defer func() {
		p.observe(ctx, inv, usage, err)
	}()

	payload, err := p.adapter.Adapt(req, p.handle)
	if err != nil {
		yield(llms.Chunk{}, err)
		return
	}

	sd, ok := p.adapter.(StreamDispatcher[Payload])
	if !ok {
		err = &llms.UnsupportedInputError{
			Provider: p.handle.Provider(),
			Input:    "streaming",
			Reason:   "provider does not support streaming",
		}
		yield(llms.Chunk{}, err)
		return
	}
	countSent(inv, req)

	callCtx, cancel := p.withTimeout(ctx, req)
	defer cancel()

	provider := string(inv.Provider)
	for chunk, cerr := range sd.InvokeStream(callCtx, payload, p.handle) {
		if cerr != nil {
			err = cerr
			yield(llms.Chunk{}, err)
			return
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		countChunk(provider)
		p.cfg.callbacks.OnStreamChunk(ctx, inv, chunk)
		if !yield(chunk, nil) {
			return
		}
	}
}

// Collect concatenates the chunks of a stream. It returns the text received
// so far together with the first error, and the last usage reported.
func Collect(seq iter.Seq2[llms.Chunk, error]) (string, *llms.Usage, error) {
	var sb strings.Builder
	var usage *llms.Usage
	for chunk, err := range seq {
		if err != nil {
			return sb.String(), usage, err
		}
		sb.WriteString(chunk.Text)
		if chunk.Usage != nil {
			u := *chunk.Usage
			usage = &u
		}
	}
	return sb.String(), usage, nil
}

// CollectResponse concatenates a stream into a ContentResponse.
func CollectResponse(seq iter.Seq2[llms.Chunk, error]) (*llms.ContentResponse, error) {
	var sb strings.Builder
	choice := &llms.ContentChoice{}
	for chunk, err := range seq {
		if err != nil {
			return nil, err
		}
		sb.WriteString(chunk.Text)
		if chunk.StopReason != "" {
			choice.StopReason = chunk.StopReason
		}
		if chunk.Usage != nil {
			choice.GenerationInfo = chunk.Usage.GenerationInfo()
		}
	}
	choice.Content = sb.String()
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{choice}}, nil
}
