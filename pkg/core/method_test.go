package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/btoron/ofs-go/pkg/bridge"
)

// fakeInvoker records lifecycle calls and delegates Invoke.
type fakeInvoker struct {
	invoke func(ctx context.Context, operation string, args map[string]any) (any, error)
	closed *atomic.Int32
}

func (f *fakeInvoker) Invoke(ctx context.Context, operation string, args map[string]any) (any, error) {
	return f.invoke(ctx, operation, args)
}

func (f *fakeInvoker) Close() error {
	f.closed.Add(1)
	return nil
}

func newFakeFactory(invoke func(ctx context.Context, operation string, args map[string]any) (any, error)) (InvokerFactory, *atomic.Int32, *atomic.Int32) {
	var created, closed atomic.Int32
	factory := func(ctx context.Context) (Invoker, error) {
		created.Add(1)
		return &fakeInvoker{invoke: invoke, closed: &closed}, nil
	}
	return factory, &created, &closed
}

func TestMethod_Call_Success(t *testing.T) {
	b := bridge.New(bridge.DefaultConfig())
	defer b.Close()

	factory, created, closed := newFakeFactory(func(ctx context.Context, operation string, args map[string]any) (any, error) {
		if operation != "get_activities" {
			t.Errorf("Unexpected operation %q", operation)
		}
		if args["resources"] != "SUNRISE" {
			t.Errorf("Unexpected resources arg: %v", args["resources"])
		}
		return map[string]any{"totalResults": 0}, nil
	})

	m := Synthesize(testDescriptor(), b, factory)

	result, err := m.Call([]any{"SUNRISE"}, nil)
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	if result == nil {
		t.Error("Expected a result document")
	}
	if created.Load() != 1 {
		t.Errorf("Expected 1 invoker, got %d", created.Load())
	}
	if closed.Load() != 1 {
		t.Errorf("Expected invoker released once, got %d", closed.Load())
	}
}

func TestMethod_Call_ReleasesInvokerOnError(t *testing.T) {
	b := bridge.New(bridge.DefaultConfig())
	defer b.Close()

	remoteErr := errors.New("remote failure")
	factory, _, closed := newFakeFactory(func(ctx context.Context, operation string, args map[string]any) (any, error) {
		return nil, remoteErr
	})

	m := Synthesize(testDescriptor(), b, factory)

	_, err := m.Call([]any{"SUNRISE"}, nil)
	if !errors.Is(err, remoteErr) {
		t.Errorf("Expected remote error propagated unchanged, got %v", err)
	}
	if closed.Load() != 1 {
		t.Errorf("Expected invoker released on error path, got %d", closed.Load())
	}
}

func TestMethod_Call_MissingArgumentFailsBeforeRemoteWork(t *testing.T) {
	b := bridge.New(bridge.DefaultConfig())
	defer b.Close()

	factory, created, _ := newFakeFactory(func(ctx context.Context, operation string, args map[string]any) (any, error) {
		return nil, nil
	})

	m := Synthesize(testDescriptor(), b, factory)

	_, err := m.Call(nil, nil)
	if !errors.Is(err, ErrMissingArgument) {
		t.Fatalf("Expected ErrMissingArgument, got %v", err)
	}
	if created.Load() != 0 {
		t.Errorf("Expected no invoker construction before argument validation, got %d", created.Load())
	}
}

func TestMethod_Call_ReentrantCallCompletes(t *testing.T) {
	b := bridge.New(bridge.DefaultConfig())
	defer b.Close()

	innerFactory, _, innerClosed := newFakeFactory(func(ctx context.Context, operation string, args map[string]any) (any, error) {
		return "inner", nil
	})
	inner := Synthesize(Descriptor{
		Operation: "get_subscriptions",
		Path:      "/rest/ofscCore/v1/events/subscriptions",
		Params:    []string{},
	}, b, innerFactory)

	// The outer operation invokes another synthesized method while the
	// bridge is driving it; the inner call must route through the
	// escape-hatch worker instead of deadlocking.
	outerFactory, _, _ := newFakeFactory(func(ctx context.Context, operation string, args map[string]any) (any, error) {
		return inner.Call(nil, nil)
	})
	outer := Synthesize(testDescriptor(), b, outerFactory)

	result, err := outer.Call([]any{"SUNRISE"}, nil)
	if err != nil {
		t.Fatalf("Nested call failed: %v", err)
	}
	if result != "inner" {
		t.Errorf("Expected inner result, got %v", result)
	}
	if innerClosed.Load() != 1 {
		t.Errorf("Expected inner invoker released, got %d", innerClosed.Load())
	}
}

func TestMethod_Call_FactoryErrorPropagated(t *testing.T) {
	b := bridge.New(bridge.DefaultConfig())
	defer b.Close()

	factoryErr := errors.New("session unavailable")
	factory := func(ctx context.Context) (Invoker, error) {
		return nil, factoryErr
	}

	m := Synthesize(testDescriptor(), b, factory)

	_, err := m.Call([]any{"SUNRISE"}, nil)
	if !errors.Is(err, factoryErr) {
		t.Errorf("Expected factory error, got %v", err)
	}
}
