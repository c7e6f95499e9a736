package core

import (
	"context"

	"github.com/btoron/ofs-go/pkg/bridge"
	"github.com/rs/zerolog/log"
)

// Method is a blocking callable bound to one descriptor and one bridge. It
// holds no state beyond the descriptor reference, so a single Method may be
// called repeatedly; calls on the same client wrapper are serialized through
// the bridge.
type Method struct {
	desc    Descriptor
	bridge  *bridge.Bridge
	factory InvokerFactory
}

// Synthesize builds the blocking callable for a descriptor.
func Synthesize(d Descriptor, b *bridge.Bridge, factory InvokerFactory) *Method {
	return &Method{desc: d, bridge: b, factory: factory}
}

// Describe returns the descriptor's human-readable description.
func (m *Method) Describe() string {
	return m.desc.Description
}

// Call resolves positional and keyword arguments against the descriptor and
// executes the operation through the bridge. Argument errors are reported
// before any remote work begins. The call-scoped invoker is released on every
// exit path.
func (m *Method) Call(args []any, kwargs map[string]any) (any, error) {
	resolved, err := m.desc.resolveArgs(args, kwargs)
	if err != nil {
		return nil, err
	}

	return bridge.Run(m.bridge, func(ctx context.Context) (any, error) {
		inv, err := m.factory(ctx)
		if err != nil {
			return nil, err
		}
		defer func() {
			if cerr := inv.Close(); cerr != nil {
				log.Warn().
					Err(cerr).
					Str("operation", m.desc.Operation).
					Msg("Failed to release call-scoped invoker")
			}
		}()

		return inv.Invoke(ctx, m.desc.Operation, resolved)
	})
}
