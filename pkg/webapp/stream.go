package webapp

import (
	"iter"
	"net/http"
	"strings"

	"github.com/effective-security/llmkit/pkg/llmfactory"
	"github.com/effective-security/llmkit/pkg/llms"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
)

// Server-sent event names of POST /v1/stream.
const (
	EventChunk = "chunk"
	EventDone  = "done"
	EventError = "error"
)

// ChunkEvent is the data of a chunk event.
type ChunkEvent struct {
	Text string `json:"text"`
}

// stream sends the text deltas as server-sent events, followed by
// a done event with the full response, or an error event.
// Errors before the first chunk are returned with an error status.
func (s *Server) stream(c *gin.Context) {
	cl, err := s.prepare(c, llmfactory.RouteStream)
	if err != nil {
		respondWithError(c, err)
		return
	}
	streamer, ok := cl.model.(llms.Streamer)
	if !ok {
		respondWithError(c, &llms.UnsupportedInputError{
			Provider: cl.model.GetProviderType(),
			Input:    "stream",
			Reason:   "model " + cl.model.GetName() + " does not stream",
		})
		return
	}

	ctx := c.Request.Context()
	next, stop := iter.Pull2(streamer.StreamContent(ctx, cl.messages(), cl.req.CallOptions()...))
	defer stop()

	chunk, err, more := next()
	if err != nil {
		respondWithError(c, err)
		return
	}

	// Content-Type is set by the first SSEvent
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	done := GenerateResponse{
		Model:    cl.model.GetName(),
		Provider: strings.ToLower(string(cl.model.GetProviderType())),
	}
	var text strings.Builder
	for ; more; chunk, err, more = next() {
		if err != nil {
			_, info := Classify(err)
			logger.ContextKV(ctx, xlog.WARNING,
				"status", "stream_failed",
				"kind", info.Kind,
				"err", err.Error(),
			)
			c.SSEvent(EventError, ErrorResponse{Error: info})
			c.Writer.Flush()
			return
		}
		if chunk.StopReason != "" {
			done.StopReason = chunk.StopReason
		}
		if chunk.Usage != nil {
			done.Usage = *chunk.Usage
		}
		if chunk.Text == "" {
			continue
		}
		text.WriteString(chunk.Text)
		c.SSEvent(EventChunk, ChunkEvent{Text: chunk.Text})
		c.Writer.Flush()
	}

	done.Text = text.String()
	s.save(c, cl, done.Text)
	c.SSEvent(EventDone, done)
	c.Writer.Flush()
}
