// Package pagination retrieves full paginated collections from offset/limit
// APIs such as OFS core (items + totalResults envelopes).
//
// The first page resolves the collection's total count; remaining pages are
// fetched sequentially, fully in parallel, or in parallel under a concurrency
// budget, and are reassembled in ascending offset order regardless of
// completion order.
//
// Example usage:
//
//	result, err := pagination.FetchAll(ctx, client.ActivityPages(query), 100, pagination.Options{
//		Strategy:      pagination.StrategyBounded,
//		MaxConcurrent: 5,
//		Tolerant:      true,
//	})
//
// Under the tolerant policy a failed page contributes zero items and is
// reported through *PartialFetchError alongside the partial result; the
// fail-fast default aborts on the first failed page and cancels in-flight
// siblings best-effort.
//
// The CountProbe option resolves the total with a limit=1 request first,
// then fills offsets 1, 1+pageSize, 1+2*pageSize, ... in parallel. This is
// cheaper when the first full page would be discarded anyway (count-only
// callers that decide afterwards whether to materialize).
package pagination
