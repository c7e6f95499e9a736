package core

import (
	"context"
	"fmt"

	"github.com/btoron/ofs-go/pkg/client"
)

// Invoker executes one named remote operation. Implementations are scoped to
// a single call: the factory acquires whatever resource the collaborator owns
// and Close releases it.
type Invoker interface {
	Invoke(ctx context.Context, operation string, args map[string]any) (any, error)
	Close() error
}

// InvokerFactory constructs a call-scoped Invoker.
type InvokerFactory func(ctx context.Context) (Invoker, error)

// httpInvoker executes operations against an OFS instance over a scoped
// session.
type httpInvoker struct {
	session  *client.Session
	registry *Registry
}

// NewHTTPInvokerFactory returns a factory that opens one client session per
// call and resolves operations through the given registry.
func NewHTTPInvokerFactory(cfg client.Config, registry *Registry) InvokerFactory {
	return func(ctx context.Context) (Invoker, error) {
		s, err := client.NewSession(cfg)
		if err != nil {
			return nil, fmt.Errorf("open session: %w", err)
		}
		return &httpInvoker{session: s, registry: registry}, nil
	}
}

// Invoke looks up the operation's descriptor, renders the request, and
// executes it. The decoded JSON document is returned as-is.
func (inv *httpInvoker) Invoke(ctx context.Context, operation string, args map[string]any) (any, error) {
	d, ok := inv.registry.Lookup(operation)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}

	path, query, err := d.buildRequest(args)
	if err != nil {
		return nil, err
	}

	var out any
	if err := inv.session.GetJSON(ctx, path, query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the session's connection pool.
func (inv *httpInvoker) Close() error {
	return inv.session.Close()
}
