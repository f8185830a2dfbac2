// Package searchlog persists the append-only search audit log.
package searchlog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/caseflow/navsearch/internal/domain"
)

var logKey = domain.KeyPrefix + "search_log"

// store is the consumer interface for the search log.
type store interface {
	LPush(ctx context.Context, key string, values ...string) error
	LTrim(ctx context.Context, key string, start, stop int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Repo appends SearchLogEntries to a capped Redis list. Entries are
// write-once; the pipeline never reads them back.
type Repo struct {
	store store
	cap   int64
}

// New creates a search log repository capped at the given entry count.
func New(s store, capEntries int) *Repo {
	return &Repo{store: s, cap: int64(capEntries)}
}

// Append writes one entry and trims the log to its cap.
func (r *Repo) Append(ctx context.Context, entry domain.SearchLogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal search log entry: %w", err)
	}
	if err := r.store.LPush(ctx, logKey, string(data)); err != nil {
		return fmt.Errorf("append search log: %w", err)
	}
	if err := r.store.LTrim(ctx, logKey, 0, r.cap-1); err != nil {
		return fmt.Errorf("trim search log: %w", err)
	}
	return nil
}

// Recent returns the newest n entries, most recent first. Observability
// only; malformed entries are skipped.
func (r *Repo) Recent(ctx context.Context, n int) ([]domain.SearchLogEntry, error) {
	raw, err := r.store.LRange(ctx, logKey, 0, int64(n)-1)
	if err != nil {
		return nil, fmt.Errorf("read search log: %w", err)
	}

	entries := make([]domain.SearchLogEntry, 0, len(raw))
	for _, s := range raw {
		var e domain.SearchLogEntry
		if json.Unmarshal([]byte(s), &e) == nil {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
