// Package webapp serves models of a factory over HTTP.
package webapp

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/effective-security/llmkit/pkg/llmfactory"
	"github.com/effective-security/llmkit/pkg/provider"
	"github.com/effective-security/llmkit/pkg/store"
	"github.com/effective-security/xlog"
	"github.com/gin-gonic/gin"
)

var logger = xlog.NewPackageLogger("github.com/effective-security/llmkit/pkg", "webapp")

// DefaultAddr is the default listen address.
const DefaultAddr = ":8000"

// ShutdownTimeout bounds the graceful shutdown.
const ShutdownTimeout = 5 * time.Second

// DefaultMaxBodySize is the default limit of request bodies.
const DefaultMaxBodySize int64 = 4 << 20

// Server routes HTTP requests to models of the factory.
type Server struct {
	factory llmfactory.Factory
	store   store.MessageStore
	engine  *gin.Engine
	maxBody int64
}

// Option configures the server.
type Option func(*Server)

// WithStore enables chat history for requests with a chat ID.
func WithStore(s store.MessageStore) Option {
	return func(srv *Server) {
		srv.store = s
	}
}

// WithMaxBodySize limits the size of request bodies.
func WithMaxBodySize(size int64) Option {
	return func(srv *Server) {
		srv.maxBody = size
	}
}

// New returns a server for the factory.
func New(f llmfactory.Factory, opts ...Option) *Server {
	if os.Getenv(gin.EnvGinMode) == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		factory: f,
		engine:  gin.New(),
		maxBody: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.engine.Use(Recovery(), RequestID(), RequestLogger(), BodySizeLimit(s.maxBody))
	s.engine.GET("/healthz", s.health)

	v1 := s.engine.Group("/v1")
	v1.POST("/generate", s.generate)
	v1.POST("/stream", s.stream)
	v1.POST("/embeddings", s.embeddings)
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// ListenAndServe serves on addr until ctx is done,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "failed to listen on %s", addr)
	}
	return s.Serve(ctx, listener)
}

// Serve serves on the listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.KV(xlog.INFO, "status", "server_started", "addr", listener.Addr().String())

	errc := make(chan error, 1)
	go func() {
		errc <- httpServer.Serve(listener)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.WithStack(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.KV(xlog.ERROR, "reason", "shutdown", "err", err.Error())
		return errors.Wrap(err, "server shutdown")
	}
	logger.KV(xlog.INFO, "status", "server_stopped", "addr", listener.Addr().String())
	return nil
}

// HealthResponse is returned by GET /healthz.
type HealthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

func (s *Server) health(c *gin.Context) {
	var names []string
	for _, typ := range provider.Registered() {
		names = append(names, string(typ))
	}
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Providers: names,
	})
}
