package db

// Condition is a single structured pre-filter clause: an exact tag match or
// a numeric range over an indexed field.
type Condition struct {
	Field string
	// Tag match (exclusive with range bounds)
	Match string
	// Numeric range bounds; nil means unbounded.
	Min *float64
	Max *float64
}

// IsMatch reports whether this is an exact tag condition.
func (c Condition) IsMatch() bool { return c.Match != "" }

// KNNQuery is the input for vector similarity search with structured pre-filtering.
type KNNQuery struct {
	IndexName    string
	Conditions   []Condition
	Vector       []float32
	K            int
	ReturnFields []string
}

// ListQuery is the input for a structured filter query with deterministic ordering.
type ListQuery struct {
	IndexName    string
	Conditions   []Condition
	SortBy       string // numeric field to order by; empty = index order
	SortDesc     bool
	Offset       int
	Limit        int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}
