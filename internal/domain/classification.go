package domain

// Intent is the closed set of query interpretations the classifier may emit.
type Intent string

const (
	// IntentNavigate routes to a page without entity filtering.
	IntentNavigate Intent = "navigate"
	// IntentFilter routes to a page with structured filters applied.
	IntentFilter Intent = "filter"
	// IntentSearch routes to a page and additionally ranks entities,
	// semantically when requested.
	IntentSearch Intent = "search"
	// IntentUnresolved is the fail-closed interpretation: no automatic
	// navigation. Synthesized on any classifier failure.
	IntentUnresolved Intent = "unresolved"
)

// KnownIntent reports whether the intent belongs to the closed set.
func KnownIntent(i Intent) bool {
	switch i {
	case IntentNavigate, IntentFilter, IntentSearch, IntentUnresolved:
		return true
	}
	return false
}

// ClassificationResult is the classifier's structured interpretation of a
// free-text query. Created by the classifier; semantic enforcement may only
// set RequiresSemantic/SemanticQuery, never unset them.
type ClassificationResult struct {
	Intent           Intent            `json:"intent"`
	TargetPage       string            `json:"target_page"` // page key, empty = no target
	Filters          map[string]string `json:"filters"`
	RequiresSemantic bool              `json:"requires_semantic"`
	SemanticQuery    string            `json:"semantic_query"`
	Confidence       float64           `json:"confidence"`
}

// Unresolved returns the fail-closed result used when classification
// times out, fails to parse, or the query is empty.
func Unresolved() ClassificationResult {
	return ClassificationResult{
		Intent:     IntentUnresolved,
		Confidence: 0,
	}
}

// IsUnresolved reports whether the result carries no usable interpretation.
func (r ClassificationResult) IsUnresolved() bool {
	return r.Intent == IntentUnresolved || r.TargetPage == ""
}

// Usage records reasoning-service consumption for one classification call,
// kept independent of success or failure for the search log.
type Usage struct {
	PromptTokens int
	TotalTokens  int
	LatencyMS    int64
}
