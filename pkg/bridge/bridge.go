// Package bridge provides the execution bridge that lets blocking callers
// drive context-based operations on a per-client execution context.
//
// Each client wrapper owns exactly one Bridge. A call to Run either drives
// the operation directly (the common case) or, when the bridge is already
// driving another operation (a re-entrant call), routes it through a single
// dedicated escape-hatch worker with a bounded wait.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for bridge operations.
var (
	bridgeEscapeRoutedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ofs_bridge_escape_routed_total",
		Help: "Total operations routed through the escape-hatch worker",
	})

	bridgeReinitTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ofs_bridge_reinit_total",
		Help: "Total lazy reinitializations of a closed bridge",
	})

	bridgeEscapeTimeoutsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ofs_bridge_escape_timeouts_total",
		Help: "Total escape-hatch waits that exceeded their ceiling",
	})
)

// Common errors returned by the bridge.
var (
	// ErrWaitTimeout is returned when an escape-hatch wait exceeds its ceiling.
	ErrWaitTimeout = errors.New("escape-hatch wait timed out")

	// ErrBridgeClosed is returned when the bridge is closed while an
	// operation is queued or waiting on the escape-hatch worker.
	ErrBridgeClosed = errors.New("bridge closed")
)

// DefaultEscapeTimeout is the ceiling for escape-hatch waits.
const DefaultEscapeTimeout = 300 * time.Second

// Operation is a unit of work driven by the bridge. The context is cancelled
// when the bridge closes.
type Operation func(ctx context.Context) error

// Config holds bridge configuration.
type Config struct {
	// EscapeTimeout is the upper bound for a re-entrant call waiting on the
	// escape-hatch worker. Zero means DefaultEscapeTimeout.
	EscapeTimeout time.Duration

	// QueueSize is the escape-hatch task queue depth. Zero means 16.
	QueueSize int
}

// DefaultConfig returns safe default bridge configuration.
func DefaultConfig() Config {
	return Config{
		EscapeTimeout: DefaultEscapeTimeout,
		QueueSize:     16,
	}
}

type lifecycle int

const (
	stateUninitialized lifecycle = iota
	stateReady
	stateClosed
)

type task struct {
	op   Operation
	done chan error
}

// Bridge owns one execution context and a single escape-hatch worker.
// The zero value is not usable; use New.
type Bridge struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	state   lifecycle
	driving bool
	ctx     context.Context
	cancel  context.CancelFunc
	tasks   chan *task
}

// New creates a bridge in the uninitialized state. The execution context is
// created lazily on the first Run call.
func New(cfg Config) *Bridge {
	if cfg.EscapeTimeout <= 0 {
		cfg.EscapeTimeout = DefaultEscapeTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}
	return &Bridge{
		cfg:    cfg,
		logger: log.With().Str("component", "bridge").Logger(),
	}
}

// ensureReadyLocked transitions the bridge to ready, creating a fresh
// execution context and starting the escape-hatch worker. Caller holds mu.
func (b *Bridge) ensureReadyLocked() {
	if b.state == stateReady {
		return
	}
	if b.state == stateClosed {
		bridgeReinitTotal.Inc()
		b.logger.Debug().Msg("Reinitializing closed bridge")
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())
	b.tasks = make(chan *task, b.cfg.QueueSize)
	go worker(b.ctx, b.tasks)
	b.state = stateReady
}

// worker drains the escape-hatch queue one task at a time.
func worker(ctx context.Context, tasks <-chan *task) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-tasks:
			t.done <- t.op(ctx)
		}
	}
}

// Run drives op to completion and returns its error. If the bridge is not
// currently driving another operation, op runs directly on the calling
// goroutine. If it is (a re-entrant call), op is submitted to the
// escape-hatch worker and the caller blocks with a bounded wait.
//
// A closed bridge is transparently reinitialized before proceeding.
func (b *Bridge) Run(op Operation) error {
	b.mu.Lock()
	b.ensureReadyLocked()

	if !b.driving {
		b.driving = true
		ctx := b.ctx
		b.mu.Unlock()

		err := op(ctx)

		b.mu.Lock()
		b.driving = false
		b.mu.Unlock()
		return err
	}

	// Re-entrant call: the context is busy, hand off to the worker.
	ctx := b.ctx
	tasks := b.tasks
	b.mu.Unlock()

	bridgeEscapeRoutedTotal.Inc()
	b.logger.Debug().Msg("Routing re-entrant operation through escape-hatch worker")

	t := &task{op: op, done: make(chan error, 1)}
	timer := time.NewTimer(b.cfg.EscapeTimeout)
	defer timer.Stop()

	select {
	case tasks <- t:
	case <-ctx.Done():
		return fmt.Errorf("%w: closed while queueing operation", ErrBridgeClosed)
	case <-timer.C:
		bridgeEscapeTimeoutsTotal.Inc()
		return fmt.Errorf("%w after %s", ErrWaitTimeout, b.cfg.EscapeTimeout)
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: closed while waiting for operation", ErrBridgeClosed)
	case <-timer.C:
		bridgeEscapeTimeoutsTotal.Inc()
		b.logger.Warn().
			Dur("timeout", b.cfg.EscapeTimeout).
			Msg("Escape-hatch wait exceeded ceiling")
		return fmt.Errorf("%w after %s", ErrWaitTimeout, b.cfg.EscapeTimeout)
	}
}

// Close cancels all operations still tracked by the execution context and
// stops the escape-hatch worker without waiting for in-flight work.
// Close is idempotent. The next Run call reinitializes the bridge.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != stateReady {
		b.state = stateClosed
		return nil
	}

	b.cancel()
	b.state = stateClosed
	b.logger.Debug().Msg("Bridge closed")
	return nil
}

// Run executes op through b and returns its typed result. It exists because
// methods cannot have type parameters.
func Run[T any](b *Bridge, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := b.Run(func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}
