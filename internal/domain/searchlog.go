package domain

import "time"

// SearchLogEntry is the append-only audit record for one search request.
// Written once, consumed only for observability; the pipeline never reads it.
type SearchLogEntry struct {
	ID           string    `json:"id"`
	Query        string    `json:"query"`
	Scope        string    `json:"scope,omitempty"`
	Intent       Intent    `json:"intent"`
	CacheHit     bool      `json:"cache_hit"`
	PromptTokens int       `json:"prompt_tokens,omitempty"`
	TotalTokens  int       `json:"total_tokens,omitempty"`
	ResultCount  int       `json:"result_count"`
	LatencyMS    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}
