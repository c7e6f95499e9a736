package pagination

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Prometheus metrics for paginated fetches.
var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ofs_pagination_pages_fetched_total",
		Help: "Total pages fetched successfully by strategy",
	}, []string{"strategy"})

	pagesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ofs_pagination_pages_skipped_total",
		Help: "Total pages skipped under the tolerant policy",
	})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ofs_pagination_fetch_duration_seconds",
		Help:    "Duration of full collection fetches in seconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})
)

// DefaultPageTimeout bounds a single page fetch.
const DefaultPageTimeout = 15 * time.Second

// Page is one slice of a remote collection together with the collection's
// total size as reported by the server.
type Page[T any] struct {
	Items      []T
	TotalCount int
}

// PageFunc fetches a single page at the given offset.
type PageFunc[T any] func(ctx context.Context, offset, limit int) (Page[T], error)

// Strategy selects how remaining pages are retrieved after the first.
type Strategy int

const (
	// StrategySequential fetches remaining pages one at a time in ascending
	// offset order.
	StrategySequential Strategy = iota

	// StrategyParallel issues all remaining pages concurrently with no cap.
	StrategyParallel

	// StrategyBounded issues remaining pages concurrently, each under the
	// concurrency budget.
	StrategyBounded
)

// String implements fmt.Stringer.
func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "sequential"
	case StrategyParallel:
		return "parallel"
	case StrategyBounded:
		return "bounded"
	default:
		return "unknown"
	}
}

// Options configures a FetchAll call.
type Options struct {
	// Strategy selects the retrieval strategy. Zero value is sequential.
	Strategy Strategy

	// MaxConcurrent caps in-flight fetches for StrategyBounded.
	// Zero means DefaultMaxConcurrent.
	MaxConcurrent int

	// Tolerant skips failed pages instead of aborting the fetch. The first
	// page (which resolves the total count) is never tolerated.
	Tolerant bool

	// CountProbe fetches the first page with limit=1 to cheaply resolve the
	// total count, then fills offsets 1, 1+pageSize, 1+2*pageSize, ...
	CountProbe bool

	// PageTimeout bounds each page fetch. Zero means DefaultPageTimeout.
	PageTimeout time.Duration
}

// Result is the reassembled collection. Items are in ascending offset order
// regardless of the completion order of concurrent fetches.
type Result[T any] struct {
	Items          []T
	TotalCount     int
	SkippedOffsets []int
}

// Skipped returns the number of pages skipped under the tolerant policy.
func (r Result[T]) Skipped() int {
	return len(r.SkippedOffsets)
}

// PartialFetchError reports pages skipped by a tolerant fetch. It accompanies
// an otherwise usable Result; callers decide whether partial data suffices.
type PartialFetchError struct {
	Offsets []int
}

// Error implements the error interface.
func (e *PartialFetchError) Error() string {
	return fmt.Sprintf("%d pages skipped (offsets %v)", len(e.Offsets), e.Offsets)
}

// outcome is the tagged result of one page fetch worker. Errors are data at
// this layer so the aggregator applies a uniform skip policy.
type outcome[T any] struct {
	offset int
	page   Page[T]
	err    error
}

// fetchWorker executes exactly one page request and converts failures into a
// tagged outcome. It never reports errors through control flow.
func fetchWorker[T any](ctx context.Context, fetch PageFunc[T], offset, limit int, timeout time.Duration) outcome[T] {
	pageCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := fetch(pageCtx, offset, limit)
	if err != nil {
		log.Warn().
			Err(err).
			Int("offset", offset).
			Msg("Page fetch failed")
		return outcome[T]{offset: offset, err: err}
	}
	return outcome[T]{offset: offset, page: page}
}

// remainingOffsets computes the offsets still to fetch after the first page.
// Offset 0 (or the probe request) is never included.
func remainingOffsets(pageSize, totalCount int, countProbe bool) []int {
	start := pageSize
	if countProbe {
		start = 1
	}
	var offsets []int
	for off := start; off < totalCount; off += pageSize {
		offsets = append(offsets, off)
	}
	return offsets
}

// FetchAll retrieves a full paginated collection. The first page resolves the
// total count; remaining pages are fetched per opts.Strategy and reassembled
// in ascending offset order.
//
// Fail-fast mode (the default) aborts on the first page failure, requesting
// best-effort cancellation of in-flight siblings. Tolerant mode skips failed
// pages and returns the partial result together with a *PartialFetchError.
func FetchAll[T any](ctx context.Context, fetch PageFunc[T], pageSize int, opts Options) (Result[T], error) {
	var zero Result[T]
	if pageSize <= 0 {
		return zero, fmt.Errorf("page size must be positive (got %d)", pageSize)
	}
	if opts.PageTimeout <= 0 {
		opts.PageTimeout = DefaultPageTimeout
	}

	start := time.Now()
	defer func() {
		fetchDuration.Observe(time.Since(start).Seconds())
	}()

	firstLimit := pageSize
	if opts.CountProbe {
		firstLimit = 1
	}

	first := fetchWorker(ctx, fetch, 0, firstLimit, opts.PageTimeout)
	if first.err != nil {
		return zero, fmt.Errorf("fetch first page: %w", first.err)
	}

	total := first.page.TotalCount
	if total <= 0 {
		return Result[T]{TotalCount: 0}, nil
	}

	offsets := remainingOffsets(pageSize, total, opts.CountProbe)

	log.Info().
		Str("strategy", opts.Strategy.String()).
		Int("total_count", total).
		Int("remaining_pages", len(offsets)).
		Bool("tolerant", opts.Tolerant).
		Msg("Starting paginated fetch")

	result := Result[T]{
		Items:      append([]T(nil), first.page.Items...),
		TotalCount: total,
	}
	pagesFetchedTotal.WithLabelValues(opts.Strategy.String()).Inc()

	if len(offsets) == 0 {
		log.Info().
			Int("items", len(result.Items)).
			Dur("duration", time.Since(start)).
			Msg("Fetch complete (single page)")
		return result, nil
	}

	outcomes := make([]outcome[T], len(offsets))

	switch opts.Strategy {
	case StrategySequential:
		for i, off := range offsets {
			out := fetchWorker(ctx, fetch, off, pageSize, opts.PageTimeout)
			if out.err != nil && !opts.Tolerant {
				return zero, fmt.Errorf("fetch page at offset %d: %w", off, out.err)
			}
			outcomes[i] = out
		}

	case StrategyParallel, StrategyBounded:
		var budget *Budget
		if opts.Strategy == StrategyBounded {
			budget = NewBudget(opts.MaxConcurrent)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i, off := range offsets {
			i, off := i, off
			g.Go(func() error {
				if budget != nil {
					if err := budget.Acquire(gctx); err != nil {
						outcomes[i] = outcome[T]{offset: off, err: err}
						if opts.Tolerant {
							return nil
						}
						return err
					}
					defer budget.Release()
				}

				out := fetchWorker(gctx, fetch, off, pageSize, opts.PageTimeout)
				outcomes[i] = out
				if out.err != nil && !opts.Tolerant {
					// Failing the group cancels gctx, which is the
					// best-effort cancellation of sibling fetches.
					return out.err
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return zero, fmt.Errorf("parallel fetch aborted: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("fetch cancelled: %w", err)
		}

	default:
		return zero, fmt.Errorf("unknown fetch strategy %d", opts.Strategy)
	}

	// Reassemble in ascending offset order. Each slot was written by exactly
	// one worker, so concurrent completions never raced on it.
	for _, out := range outcomes {
		if out.err != nil {
			result.SkippedOffsets = append(result.SkippedOffsets, out.offset)
			pagesSkippedTotal.Inc()
			continue
		}
		result.Items = append(result.Items, out.page.Items...)
		pagesFetchedTotal.WithLabelValues(opts.Strategy.String()).Inc()
	}

	log.Info().
		Str("strategy", opts.Strategy.String()).
		Int("items", len(result.Items)).
		Int("skipped_pages", result.Skipped()).
		Dur("duration", time.Since(start)).
		Msg("Fetch complete")

	if result.Skipped() > 0 {
		return result, &PartialFetchError{Offsets: result.SkippedOffsets}
	}
	return result, nil
}
