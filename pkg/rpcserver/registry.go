package rpcserver

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/getada/ada/pkg/jsonrpc"
)

// Handler processes a single JSON-RPC method call. Handlers may block on
// I/O; each request runs on its own goroutine, so a slow handler only
// occupies its own connection slot. Returning a *jsonrpc.Error produces an
// error response; otherwise the returned value is serialized as the result.
type Handler interface {
	Handle(ctx context.Context, params json.RawMessage) (any, *jsonrpc.Error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, *jsonrpc.Error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, params json.RawMessage) (any, *jsonrpc.Error) {
	return f(ctx, params)
}

// Registry maps method names to handlers. Registration may happen at any
// point before the registry is queried; re-registering a name replaces the
// prior handler. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register binds a handler to a method name, replacing any prior binding.
func (r *Registry) Register(method string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = h
}

// RegisterFunc binds a plain function to a method name.
func (r *Registry) RegisterFunc(method string, fn HandlerFunc) {
	r.Register(method, fn)
}

// Call invokes the handler registered for method. An exact-match lookup
// failure yields a method-not-found error carrying the method name.
func (r *Registry) Call(ctx context.Context, method string, params json.RawMessage) (any, *jsonrpc.Error) {
	r.mu.RLock()
	h := r.handlers[method]
	r.mu.RUnlock()

	if h == nil {
		return nil, jsonrpc.MethodNotFound(method)
	}
	return h.Handle(ctx, params)
}

// Contains reports whether a handler is registered for method.
func (r *Registry) Contains(method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[method]
	return ok
}

// Methods returns the registered method names, sorted.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	methods := make([]string, 0, len(r.handlers))
	for m := range r.handlers {
		methods = append(methods, m)
	}
	sort.Strings(methods)
	return methods
}
