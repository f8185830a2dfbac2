// Package cache is the persistent tier of the classification cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/caseflow/navsearch/internal/db"
	"github.com/caseflow/navsearch/internal/domain"
)

var keyPrefix = domain.KeyPrefix + "clf_cache:"

// store is the consumer interface for the persistent cache tier.
type store interface {
	HSetWithTTL(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HIncrBy(ctx context.Context, key, field string, val int64) error
	Del(ctx context.Context, key string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Store persists classification results keyed by query hash. Entries expire
// via the key TTL; expires_at is stored alongside so a reader never trusts
// an entry the server has not reaped yet.
type Store struct {
	store store
	now   func() time.Time
}

// New creates a persistent cache store.
func New(s store) *Store {
	return &Store{store: s, now: time.Now}
}

// Get returns the cached classification for the key together with its
// stored expiry, or found=false on miss or expiry. Every successful read
// increments the entry's hit counter atomically; a failed increment does
// not fail the read.
func (s *Store) Get(ctx context.Context, key string) (domain.ClassificationResult, time.Time, bool, error) {
	redisKey := keyPrefix + key

	fields, err := s.store.HGetAll(ctx, redisKey)
	if err != nil {
		return domain.ClassificationResult{}, time.Time{}, false, wrapTierError("cache get", key, err)
	}
	if len(fields) == 0 {
		return domain.ClassificationResult{}, time.Time{}, false, nil
	}

	expiresUnix, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	expiresAt := time.Unix(expiresUnix, 0)
	if err != nil || !s.now().Before(expiresAt) {
		return domain.ClassificationResult{}, time.Time{}, false, nil
	}

	var result domain.ClassificationResult
	if err := json.Unmarshal([]byte(fields["payload"]), &result); err != nil {
		return domain.ClassificationResult{}, time.Time{}, false, fmt.Errorf("cache payload %s: %w", key, err)
	}

	_ = s.store.HIncrBy(ctx, redisKey, "hits", 1)

	return result, expiresAt, true, nil
}

// Put replaces the entry for the key atomically with a fresh TTL.
func (s *Store) Put(ctx context.Context, key string, result domain.ClassificationResult, ttl time.Duration) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal classification: %w", err)
	}

	now := s.now()
	fields := map[string]string{
		"payload":    string(payload),
		"created_at": strconv.FormatInt(now.Unix(), 10),
		"expires_at": strconv.FormatInt(now.Add(ttl).Unix(), 10),
		"hits":       "0",
	}

	if err := s.store.HSetWithTTL(ctx, keyPrefix+key, fields, ttl); err != nil {
		return wrapTierError("cache put", key, err)
	}
	return nil
}

// Touch increments the hit counter for a key served from the in-process
// tier, keeping the persistent counter authoritative across workers.
func (s *Store) Touch(ctx context.Context, key string) error {
	if err := s.store.HIncrBy(ctx, keyPrefix+key, "hits", 1); err != nil {
		return fmt.Errorf("cache touch %s: %w", key, err)
	}
	return nil
}

// Invalidate removes the entry for the key.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	if err := s.store.Del(ctx, keyPrefix+key); err != nil {
		return fmt.Errorf("cache invalidate %s: %w", key, err)
	}
	return nil
}

// Purge removes every cached classification. Used when the registry
// configuration changes and cached interpretations may reference targets
// that no longer exist.
func (s *Store) Purge(ctx context.Context) error {
	keys, err := s.store.Scan(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("cache purge scan: %w", err)
	}
	for _, k := range keys {
		if err := s.store.Del(ctx, k); err != nil {
			return fmt.Errorf("cache purge %s: %w", k, err)
		}
	}
	return nil
}

// Unavailable reports whether err indicates the persistent tier cannot be
// reached (as opposed to a malformed entry).
func Unavailable(err error) bool {
	var dbErr *db.Error
	return errors.As(err, &dbErr)
}

// wrapTierError marks driver failures with the cache-unavailable sentinel
// so callers can tell an unreachable tier from a corrupt entry.
func wrapTierError(op, key string, err error) error {
	if Unavailable(err) {
		return fmt.Errorf("%s %s: %w: %w", op, key, domain.ErrCacheUnavailable, err)
	}
	return fmt.Errorf("%s %s: %w", op, key, err)
}
