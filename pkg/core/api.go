package core

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/btoron/ofs-go/pkg/bridge"
	"github.com/btoron/ofs-go/pkg/client"
	"github.com/btoron/ofs-go/pkg/pagination"
)

// Config holds the API facade configuration.
type Config struct {
	// Client is the OFS transport configuration.
	Client client.Config

	// Bridge configures the execution bridge. Zero value uses defaults.
	Bridge bridge.Config

	// Registry supplies the operation descriptors. Nil means CoreRegistry.
	Registry *Registry

	// Factory overrides the invoker factory. Nil means the HTTP factory
	// built from Client. Intended for tests.
	Factory InvokerFactory
}

// API is the blocking OFS facade. It owns one execution bridge, a shared
// transport for paginated listings, and one synthesized method per
// registered operation.
type API struct {
	bridge   *bridge.Bridge
	registry *Registry
	shared   *client.Client
	methods  map[string]*Method
}

// New creates the facade and synthesizes a method per registered operation.
func New(cfg Config) (*API, error) {
	shared, err := client.New(cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = CoreRegistry()
	}

	factory := cfg.Factory
	if factory == nil {
		factory = NewHTTPInvokerFactory(cfg.Client, registry)
	}

	b := bridge.New(cfg.Bridge)

	methods := make(map[string]*Method, len(registry.Operations()))
	for _, name := range registry.Operations() {
		d, _ := registry.Lookup(name)
		methods[name] = Synthesize(d, b, factory)
	}

	return &API{
		bridge:   b,
		registry: registry,
		shared:   shared,
		methods:  methods,
	}, nil
}

// Method returns the synthesized method for an operation name.
func (a *API) Method(operation string) (*Method, error) {
	m, ok := a.methods[operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, operation)
	}
	return m, nil
}

// Call invokes a registered operation with positional and keyword arguments.
func (a *API) Call(operation string, args []any, kwargs map[string]any) (any, error) {
	m, err := a.Method(operation)
	if err != nil {
		return nil, err
	}
	return m.Call(args, kwargs)
}

// Operations returns the registered operation names, sorted.
func (a *API) Operations() []string {
	return a.registry.Operations()
}

// ListAll drains a paginated collection endpoint through the bridge using
// the shared transport. Items are returned in ascending offset order.
func (a *API) ListAll(endpoint string, query url.Values, pageSize int, opts pagination.Options) (pagination.Result[json.RawMessage], error) {
	return bridge.Run(a.bridge, func(ctx context.Context) (pagination.Result[json.RawMessage], error) {
		return pagination.FetchAll(ctx, a.shared.Pages(endpoint, query), pageSize, opts)
	})
}

// Close shuts down the bridge, cancelling pending operations, and releases
// the shared transport. The next call transparently reinitializes the bridge.
func (a *API) Close() error {
	if err := a.bridge.Close(); err != nil {
		return err
	}
	return a.shared.Close()
}
