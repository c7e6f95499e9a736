package pagination

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

var paginationInFlight = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ofs_pagination_in_flight",
	Help: "Number of page fetches currently holding a concurrency permit",
})

// DefaultMaxConcurrent is the default concurrency budget for bounded fetches.
const DefaultMaxConcurrent = 10

// Budget caps the number of simultaneously in-flight page fetches.
type Budget struct {
	sem *semaphore.Weighted
	max int64
}

// NewBudget creates a budget of maxConcurrent permits. Non-positive values
// fall back to DefaultMaxConcurrent.
func NewBudget(maxConcurrent int) *Budget {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrent
	}
	return &Budget{
		sem: semaphore.NewWeighted(int64(maxConcurrent)),
		max: int64(maxConcurrent),
	}
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (b *Budget) Acquire(ctx context.Context) error {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire fetch permit: %w", err)
	}
	paginationInFlight.Inc()
	return nil
}

// Release returns a permit. Must be called exactly once per successful Acquire.
func (b *Budget) Release() {
	paginationInFlight.Dec()
	b.sem.Release(1)
}

// Max returns the permit count the budget was created with.
func (b *Budget) Max() int {
	return int(b.max)
}
