// Package llms defines the provider-neutral types used across llmkit:
// messages and their content parts, the caller Request, the normalized
// ContentResponse and streaming Chunk, call options, and the error taxonomy
// every provider maps its failures into.
//
// Providers live in subpackages and implement only the capability
// interfaces they support (Model, Streamer, Embedder). Callers should depend
// on those interfaces rather than on concrete provider types.
package llms
