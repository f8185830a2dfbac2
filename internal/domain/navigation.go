package domain

// KeyPrefix namespaces every Redis key written by navsearch.
const KeyPrefix = "navsearch:"

// NavigationTarget describes one navigable portal page: where it lives,
// which entity type backs it, and which fields a query may filter on.
// Targets are read-mostly; the set is loaded at startup and refreshed only
// when the registry configuration changes.
type NavigationTarget struct {
	PageKey          string   `yaml:"page_key"`
	DisplayName      string   `yaml:"display_name"`
	Path             string   `yaml:"path"`
	EntityType       string   `yaml:"entity_type"`
	FilterableFields []string `yaml:"filterable_fields"`
	ExampleQueries   []string `yaml:"example_queries"`
	Searchable       bool     `yaml:"searchable"`
}

// AllowsFilter reports whether the target accepts a filter on the given field.
func (t NavigationTarget) AllowsFilter(field string) bool {
	for _, f := range t.FilterableFields {
		if f == field {
			return true
		}
	}
	return false
}

// LiveContext is a fresh snapshot of portal state the classifier reasons
// over, assembled per call so prompts never go stale.
type LiveContext struct {
	CurrentRelease string
	Modules        []string
	Scope          string
}

// Response is the composed navigation answer for one query. It is always
// produced: unresolved classifications yield an empty EntityIDs slice and
// zero confidence rather than an error.
type Response struct {
	NavigateTo     string            `json:"navigate_to"`
	QueryParams    map[string]string `json:"query_params"`
	EntityIDs      []string          `json:"entity_ids"`
	Message        string            `json:"message"`
	Confidence     float64           `json:"confidence"`
	Cached         bool              `json:"cached"`
	ResponseTimeMS int64             `json:"response_time_ms"`
}
