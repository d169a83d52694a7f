// Package api serves the cached read endpoints, the websocket
// entrypoint, and the operational surface (/health, /metrics). Read
// handlers go through the cache and never block on ingestion.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"launchpad-indexer/internal/cache"
	"launchpad-indexer/internal/observability"
	"launchpad-indexer/internal/storage"
)

// Options configures the API server. WS is mounted at /ws when set.
type Options struct {
	Addr   string
	Store  storage.Store
	Cache  *cache.Cache
	WS     http.Handler
	Logger *slog.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server is the HTTP read surface.
type Server struct {
	store  storage.Store
	cache  *cache.Cache
	logger *slog.Logger
	server *http.Server
}

// NewServer creates the server with all routes registered.
func NewServer(opts Options) *Server {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 15 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 15 * time.Second
	}
	if opts.IdleTimeout == 0 {
		opts.IdleTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Server{
		store:  opts.Store,
		cache:  opts.Cache,
		logger: opts.Logger.With("component", "api"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /tokens", s.handleTokens)
	mux.HandleFunc("GET /tokens/{address}", s.handleToken)
	mux.HandleFunc("GET /tokens/{address}/trades", s.handleTrades)
	mux.HandleFunc("GET /tokens/{address}/holders", s.handleHolders)
	mux.HandleFunc("GET /tokens/{address}/ohlcv", s.handleOHLCV)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", observability.Handler())
	if opts.WS != nil {
		mux.Handle("/ws", opts.WS)
	}

	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      mux,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		IdleTimeout:  opts.IdleTimeout,
	}
	return s
}

// Handler exposes the routed mux, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins listening. Blocks until the listener closes.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
