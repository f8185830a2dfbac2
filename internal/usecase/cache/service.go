// Package cache implements the two-tier classification cache: a per-process
// LRU in front of the shared persistent tier.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
	"github.com/caseflow/navsearch/internal/metrics"
)

// PersistentStore is the durable tier contract. Get reports the stored
// expiry so the in-process copy inherits the remaining lifetime, never a
// fresh one.
type PersistentStore interface {
	Get(ctx context.Context, key string) (domain.ClassificationResult, time.Time, bool, error)
	Put(ctx context.Context, key string, result domain.ClassificationResult, ttl time.Duration) error
	Touch(ctx context.Context, key string) error
	Invalidate(ctx context.Context, key string) error
	Purge(ctx context.Context) error
}

// touchTimeout bounds the detached hit-counter increment.
const touchTimeout = 2 * time.Second

type memEntry struct {
	result    domain.ClassificationResult
	expiresAt time.Time
}

// Service is the two-tier cache. The in-process tier is per worker, so hit
// rates differ across processes; the persistent tier provides eventual
// cross-process consistency. Safe for concurrent use.
type Service struct {
	memory     *expirable.LRU[string, memEntry]
	persistent PersistentStore
	ttl        time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// New creates a cache service. memEntries bounds the in-process tier; ttl
// applies to both tiers.
func New(persistent PersistentStore, memEntries int, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{
		memory:     expirable.NewLRU[string, memEntry](memEntries, nil, ttl),
		persistent: persistent,
		ttl:        ttl,
		logger:     logger,
		now:        time.Now,
	}
}

// Get returns the cached classification for (query, scope), or found=false.
// The in-process tier is consulted first (no I/O); a persistent hit
// repopulates it. A persistent tier failure degrades to in-process-only and
// never fails the caller.
func (s *Service) Get(ctx context.Context, query, scope string) (domain.ClassificationResult, bool) {
	key := Key(query, scope)

	if entry, ok := s.memory.Get(key); ok {
		if s.now().Before(entry.expiresAt) {
			metrics.CacheLookupsTotal.WithLabelValues("memory", "hit").Inc()
			// Keep the shared hit counter accurate without putting a
			// persistent-tier round-trip on the memory hit path.
			go func() {
				touchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
				defer cancel()
				_ = s.persistent.Touch(touchCtx, key)
			}()
			return entry.result, true
		}
		s.memory.Remove(key)
	}
	metrics.CacheLookupsTotal.WithLabelValues("memory", "miss").Inc()

	result, expiresAt, found, err := s.persistent.Get(ctx, key)
	if err != nil {
		metrics.CacheLookupsTotal.WithLabelValues("persistent", "error").Inc()
		if errors.Is(err, domain.ErrCacheUnavailable) {
			s.logger.Warn("persistent cache tier unavailable, serving in-process only",
				zap.String("key", key), zap.Error(err))
		} else {
			s.logger.Warn("persistent cache entry unreadable",
				zap.String("key", key), zap.Error(err))
		}
		return domain.ClassificationResult{}, false
	}
	if !found {
		metrics.CacheLookupsTotal.WithLabelValues("persistent", "miss").Inc()
		return domain.ClassificationResult{}, false
	}

	metrics.CacheLookupsTotal.WithLabelValues("persistent", "hit").Inc()
	// The in-process copy inherits the stored expiry, so an entry evicted
	// and repopulated cannot outlive its persistent lifetime.
	s.memory.Add(key, memEntry{result: result, expiresAt: expiresAt})
	return result, true
}

// Put stores a classification for (query, scope): persistent tier durably
// first, then in-process. A persistent write failure is logged and the
// in-process tier still serves the entry.
func (s *Service) Put(ctx context.Context, query, scope string, result domain.ClassificationResult) {
	key := Key(query, scope)

	if err := s.persistent.Put(ctx, key, result, s.ttl); err != nil {
		s.logger.Warn("persistent cache write failed",
			zap.String("key", key), zap.Error(err))
	}

	s.memory.Add(key, memEntry{result: result, expiresAt: s.now().Add(s.ttl)})
}

// Invalidate drops the entry for (query, scope) from both tiers.
func (s *Service) Invalidate(ctx context.Context, query, scope string) {
	key := Key(query, scope)
	s.memory.Remove(key)
	if err := s.persistent.Invalidate(ctx, key); err != nil {
		s.logger.Warn("persistent cache invalidate failed",
			zap.String("key", key), zap.Error(err))
	}
}

// Purge drops every cached classification from both tiers. Used when the
// target registry changes, since cached results may reference retired pages.
func (s *Service) Purge(ctx context.Context) error {
	s.memory.Purge()
	if err := s.persistent.Purge(ctx); err != nil {
		s.logger.Warn("persistent cache purge failed", zap.Error(err))
		return err
	}
	return nil
}
