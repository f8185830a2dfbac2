// Package navigate orchestrates one search request end to end: cache
// lookup, classification, semantic enforcement, hybrid search, and response
// composition. Every request terminates in a composed response; internal
// failures degrade into a low-confidence answer instead of an error, with
// the single exception of storage faults.
package navigate

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
	"github.com/caseflow/navsearch/internal/logger"
)

// Classifier interprets a query through the reasoning service.
type Classifier interface {
	Classify(ctx context.Context, query, scope string) (domain.ClassificationResult, domain.Usage, error)
}

// Enforcer applies the deterministic semantic safety net.
type Enforcer interface {
	Apply(rawQuery string, result domain.ClassificationResult) domain.ClassificationResult
}

// Cache is the two-tier classification cache.
type Cache interface {
	Get(ctx context.Context, query, scope string) (domain.ClassificationResult, bool)
	Put(ctx context.Context, query, scope string, result domain.ClassificationResult)
}

// Executor resolves the ordered entity ids for a classification.
type Executor interface {
	Execute(ctx context.Context, target domain.NavigationTarget, filters map[string]string, requiresSemantic bool, semanticQuery string, limit int) ([]string, error)
}

// TargetLookup resolves a cached page key back to its target.
type TargetLookup interface {
	ByPage(pageKey string) (domain.NavigationTarget, error)
}

// AuditLog records search log entries.
type AuditLog interface {
	Append(ctx context.Context, entry domain.SearchLogEntry) error
}

// Service is the request pipeline.
type Service struct {
	cache      Cache
	classifier Classifier
	enforcer   Enforcer
	executor   Executor
	targets    TargetLookup
	audit      AuditLog
	logger     *zap.Logger
	now        func() time.Time
}

// New assembles the pipeline.
func New(
	cache Cache, classifier Classifier, enforcer Enforcer,
	executor Executor, targets TargetLookup, audit AuditLog,
	log *zap.Logger,
) *Service {
	return &Service{
		cache:      cache,
		classifier: classifier,
		enforcer:   enforcer,
		executor:   executor,
		targets:    targets,
		audit:      audit,
		logger:     log,
		now:        time.Now,
	}
}

// Search handles one query. The returned error is non-nil only for storage
// faults; every other failure mode composes a valid unresolved response.
func (s *Service) Search(ctx context.Context, query, scope string, limit int) (domain.Response, error) {
	start := s.now()

	if isBlank(query) {
		resp := composeUnresolved(s.elapsed(start))
		s.emitLog(ctx, query, scope, domain.Unresolved(), domain.Usage{}, false, 0, resp.ResponseTimeMS)
		return resp, nil
	}

	var usage domain.Usage
	result, cached := s.cache.Get(ctx, query, scope)
	if !cached {
		var err error
		result, usage, err = s.classifier.Classify(ctx, query, scope)
		if err != nil || result.IsUnresolved() {
			// Unresolved interpretations are never cached so the next
			// identical query gets a fresh classification attempt.
			resp := composeUnresolved(s.elapsed(start))
			s.emitLog(ctx, query, scope, result, usage, false, 0, resp.ResponseTimeMS)
			return resp, nil
		}
		result = s.enforcer.Apply(query, result)
		s.cache.Put(ctx, query, scope, result)
	}

	target, err := s.targets.ByPage(result.TargetPage)
	if err != nil {
		// A cached result can outlive a registry change.
		logger.FromContext(ctx).Warn("cached target no longer registered",
			zap.String("page", result.TargetPage), zap.Error(err))
		resp := composeUnresolved(s.elapsed(start))
		s.emitLog(ctx, query, scope, result, usage, cached, 0, resp.ResponseTimeMS)
		return resp, nil
	}

	ids, err := s.executor.Execute(ctx, target,
		result.Filters, result.RequiresSemantic, result.SemanticQuery, limit)
	if err != nil {
		if errors.Is(err, domain.ErrStorageQuery) {
			return domain.Response{}, err
		}
		logger.FromContext(ctx).Warn("search execution degraded", zap.Error(err))
		ids = []string{}
	}

	resp := compose(target, result, ids, cached, s.elapsed(start))
	s.emitLog(ctx, query, scope, result, usage, cached, len(ids), resp.ResponseTimeMS)
	return resp, nil
}

func (s *Service) elapsed(start time.Time) int64 {
	return s.now().Sub(start).Milliseconds()
}

// emitLog records the audit entry off the request path. Emission can never
// block or fail the response; the goroutine uses a detached context so
// request cancellation does not lose the entry.
func (s *Service) emitLog(
	ctx context.Context, query, scope string,
	result domain.ClassificationResult, usage domain.Usage,
	cacheHit bool, resultCount int, latencyMS int64,
) {
	entry := domain.SearchLogEntry{
		ID:           uuid.NewString(),
		Query:        query,
		Scope:        scope,
		Intent:       result.Intent,
		CacheHit:     cacheHit,
		PromptTokens: usage.PromptTokens,
		TotalTokens:  usage.TotalTokens,
		ResultCount:  resultCount,
		LatencyMS:    latencyMS,
		Timestamp:    s.now(),
	}

	go func() {
		logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.audit.Append(logCtx, entry); err != nil {
			s.logger.Warn("search log append failed", zap.Error(err))
		}
	}()
}

func isBlank(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}
