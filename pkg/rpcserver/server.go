// Package rpcserver implements the JSON-RPC-over-HTTP query server: a
// single POST /rpc endpoint with per-client rate limiting, global and
// per-client concurrency caps, and method dispatch through a handler
// registry.
//
// All JSON-RPC level failures are reported inside an HTTP 200 payload;
// only the initial route check produces a non-200 status (404). This
// keeps protocol errors in the protocol and transport errors in the
// transport, per JSON-RPC convention.
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"

	"github.com/getada/ada/pkg/connlimit"
	"github.com/getada/ada/pkg/jsonrpc"
	"github.com/getada/ada/pkg/logging"
	"github.com/getada/ada/pkg/ratelimit"
)

// rpcPath is the only route the server answers.
const rpcPath = "/rpc"

// Config bounds the load a Server accepts. Zero for any field means
// unlimited. Config is fixed at construction.
type Config struct {
	// MaxRequestsPerSecond caps the request rate per client address.
	MaxRequestsPerSecond int

	// MaxConcurrentPerAddr caps in-flight requests per client address.
	MaxConcurrentPerAddr int

	// MaxTotalConcurrent caps in-flight requests across all clients.
	MaxTotalConcurrent int
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxRequestsPerSecond: 2_000,
		MaxConcurrentPerAddr: 2_000,
		MaxTotalConcurrent:   20_000,
	}
}

// Server is the JSON-RPC query server. Create one with New, register
// handlers, then call Serve or ServeListener.
type Server struct {
	cfg      Config
	registry *Registry
	conns    *connlimit.Manager
	limiter  *ratelimit.Limiter
	log      *slog.Logger
}

// Option customizes a Server at construction.
type Option func(*Server)

// WithLogger sets the operational logger. The default discards output.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRegistry makes the server dispatch through an externally built
// registry instead of a fresh one.
func WithRegistry(reg *Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// New creates a Server with the given limits.
func New(cfg Config, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		limiter:  ratelimit.New(cfg.MaxRequestsPerSecond),
		conns: connlimit.New(connlimit.Config{
			MaxTotal:   cfg.MaxTotalConcurrent,
			MaxPerAddr: cfg.MaxConcurrentPerAddr,
		}),
		log: logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the server's limits.
func (s *Server) Config() Config {
	return s.cfg
}

// Registry returns the dispatch registry. This is the integration surface
// for collaborators: trace-query handlers, transcript handlers, and the
// rest of the toolkit register their methods here.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Register binds a handler to a method name on the server's registry.
func (s *Server) Register(method string, h Handler) {
	s.registry.Register(method, h)
}

// RegisterFunc binds a plain function to a method name.
func (s *Server) RegisterFunc(method string, fn HandlerFunc) {
	s.registry.RegisterFunc(method, fn)
}

// Serve binds addr and serves until ctx is cancelled. Failure to bind is
// the only fatal error; once listening, every request-level failure is
// converted to a well-formed response.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on a pre-bound listener until ctx is cancelled,
// then stops accepting and drains in-flight requests to completion.
// There is no per-request timeout; a hung handler occupies its slot until
// it returns.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{Handler: s}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log.Info("query server listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		s.log.Info("query server shutting down")
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// ServeHTTP runs the per-request pipeline: route check, rate limit,
// connection admission, body read, parse, validate, dispatch.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != rpcPath {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	addr := clientAddr(r)

	if !s.limiter.Allow(addr) {
		s.log.Warn("rate limit exceeded", "addr", addr)
		s.writeResponse(w, jsonrpc.Failure(nil, jsonrpc.RateLimited()))
		return
	}

	guard, err := s.conns.Acquire(addr)
	if err != nil {
		s.log.Warn("connection limit reached", "addr", addr, "error", err)
		s.writeResponse(w, jsonrpc.Failure(nil, jsonrpc.TooManyConnections()))
		return
	}
	// Held for the whole remaining pipeline, released exactly once no
	// matter which step fails.
	defer guard.Release()

	s.handleRPC(w, r, addr)
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request, addr string) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeResponse(w, jsonrpc.Failure(nil,
			jsonrpc.Internal("failed to read body: "+err.Error())))
		return
	}
	if len(body) == 0 {
		s.writeResponse(w, jsonrpc.Failure(nil, jsonrpc.InvalidRequest("empty body")))
		return
	}

	var probe any
	if err := json.Unmarshal(body, &probe); err != nil {
		s.writeResponse(w, jsonrpc.Failure(nil, jsonrpc.ParseError(err.Error())))
		return
	}
	if _, isBatch := probe.([]any); isBatch {
		s.writeResponse(w, jsonrpc.Failure(nil,
			jsonrpc.InvalidRequest("batch requests are not supported")))
		return
	}

	req, err := jsonrpc.DecodeRequest(body)
	if err != nil {
		s.writeResponse(w, jsonrpc.Failure(nil, jsonrpc.InvalidRequest(err.Error())))
		return
	}
	if verr := req.Validate(); verr != nil {
		s.writeResponse(w, jsonrpc.Failure(req.ID, verr))
		return
	}

	s.log.Debug("dispatching", "method", req.Method, "addr", addr,
		"notification", req.IsNotification())

	if req.IsNotification() {
		// The handler still runs; its outcome is discarded and the
		// response carries no JSON-RPC envelope at all.
		_, _ = s.registry.Call(r.Context(), req.Method, req.Params)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	result, rpcErr := s.registry.Call(r.Context(), req.Method, req.Params)
	if rpcErr != nil {
		s.writeResponse(w, jsonrpc.Failure(req.ID, rpcErr))
		return
	}
	s.writeResponse(w, jsonrpc.Success(req.ID, result))
}

func (s *Server) writeResponse(w http.ResponseWriter, resp *jsonrpc.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("failed to write response", "error", err)
	}
}

// clientAddr extracts the client host from RemoteAddr, stripping the port
// if present.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
