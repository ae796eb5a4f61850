package webapp

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/effective-security/llmkit/pkg/transport"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Recovery recovers from panics and logs the stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.KV(xlog.ERROR,
					"reason", "panic",
					"err", fmt.Sprintf("%v", err),
					"path", c.Request.URL.Path,
					"method", c.Request.Method,
					"stack", string(debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{
					Error: ErrorInfo{Kind: KindInternal, Message: "internal server error"},
				})
			}
		}()
		c.Next()
	}
}

// RequestID takes the request ID from the request header or creates one,
// and returns it in the response. Provider calls made for the request
// carry the same ID.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(transport.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(transport.HeaderRequestID, id)
		c.Request = c.Request.WithContext(transport.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// RequestLogger logs completed requests, except health checks.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.URL.Path == "/healthz" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		logger.ContextKV(c.Request.Context(), levelForStatus(status),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"code", status,
			"latency", time.Since(start).String(),
			"request_id", transport.RequestID(c.Request.Context()),
			"client", c.ClientIP(),
		)
	}
}

// BodySizeLimit rejects bodies larger than maxSize.
func BodySizeLimit(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxSize > 0 && c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, ErrorResponse{
				Error: ErrorInfo{Kind: KindBadRequest, Message: "request body too large"},
			})
			return
		}
		if maxSize > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		}
		c.Next()
	}
}

func levelForStatus(status int) xlog.LogLevel {
	switch {
	case status >= 500:
		return xlog.ERROR
	case status >= 400:
		return xlog.WARNING
	default:
		return xlog.DEBUG
	}
}
