package domain

import "errors"

var (
	// ErrClassificationTimeout signals that the reasoning service did not
	// answer within the bounded timeout. Treated identically to a parse
	// failure: the pipeline degrades to an unresolved result.
	ErrClassificationTimeout = errors.New("classification timeout")
	// ErrClassificationParse signals that the reasoning service reply did
	// not match the strict ClassificationResult shape.
	ErrClassificationParse = errors.New("classification parse error")
	// ErrCacheUnavailable signals that the persistent cache tier is
	// unreachable. Never fatal: callers degrade to the in-process tier.
	ErrCacheUnavailable = errors.New("cache unavailable")
	// ErrEmbeddingUnavailable signals a missing current-model vector for an
	// entity. Per-entity: the entity is excluded from ranking.
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	// ErrInvalidFilterKey signals a filter key outside the target's
	// filterable fields. The executor drops filters and falls back to the
	// default order for the page.
	ErrInvalidFilterKey = errors.New("invalid filter key")
	// ErrStorageQuery signals a hard storage failure on the candidate
	// retrieval path. The only error that surfaces to the caller.
	ErrStorageQuery = errors.New("storage query failed")
	// ErrTargetNotFound signals a navigation target missing from the
	// registry. A configuration error, not a runtime fault.
	ErrTargetNotFound = errors.New("navigation target not found")
	// ErrEmbeddingProvider signals an embedding provider failure.
	ErrEmbeddingProvider = errors.New("embedding provider error")
	// ErrBudgetExhausted signals that the provider token budget is spent
	// and the tracker is configured to reject further calls.
	ErrBudgetExhausted = errors.New("provider token budget exhausted")
)
