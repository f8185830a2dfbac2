// Package search executes the hybrid retrieval step: structured filtering
// against the entity store, optionally followed by vector ranking over the
// precomputed embedding records.
package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/caseflow/navsearch/internal/db"
	"github.com/caseflow/navsearch/internal/domain"
	"github.com/caseflow/navsearch/internal/metrics"
)

// EntityStore answers structured queries over the portal entities.
type EntityStore interface {
	Candidates(ctx context.Context, entityType string, conditions []db.Condition, limit int) ([]string, int, error)
	Count(ctx context.Context, entityType string, conditions []db.Condition) (int, error)
}

// VectorStore ranks entities by similarity over current-model embedding
// records sharing the structured attributes.
type VectorStore interface {
	SearchKNN(ctx context.Context, entityType, modelID string, vector []float32, conditions []db.Condition, k int) ([]domain.RankedEntity, error)
	CountCurrent(ctx context.Context, entityType, modelID string, conditions []db.Condition) (int, error)
}

// Service is the hybrid search executor.
type Service struct {
	entities EntityStore
	vectors  VectorStore
	embedder domain.Embedder
	modelID  string

	minSimilarity float64
	defaultLimit  int
	maxLimit      int

	logger *zap.Logger
}

// New creates a search executor bound to the active embedding model.
func New(
	entities EntityStore, vectors VectorStore, embedder domain.Embedder,
	modelID string, minSimilarity float64, defaultLimit, maxLimit int,
	logger *zap.Logger,
) *Service {
	return &Service{
		entities:      entities,
		vectors:       vectors,
		embedder:      embedder,
		modelID:       modelID,
		minSimilarity: minSimilarity,
		defaultLimit:  defaultLimit,
		maxLimit:      maxLimit,
		logger:        logger,
	}
}

// Execute resolves the ordered entity ids for a classified query. Filters
// with a key outside the target's filterable fields cause the whole filter
// set to be dropped in favor of the unfiltered default order. Only storage
// failures are returned as errors; everything else degrades.
func (s *Service) Execute(
	ctx context.Context,
	target domain.NavigationTarget,
	filters map[string]string,
	requiresSemantic bool,
	semanticQuery string,
	limit int,
) ([]string, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if limit > s.maxLimit {
		limit = s.maxLimit
	}

	conditions, err := s.buildConditions(target, filters)
	if err != nil {
		metrics.InvalidFilterDropsTotal.WithLabelValues(target.PageKey).Inc()
		s.logger.Warn("dropping filters, falling back to default order",
			zap.String("page", target.PageKey), zap.Error(err))
		conditions = nil
	}

	if !requiresSemantic || semanticQuery == "" || !target.Searchable {
		ids, _, err := s.entities.Candidates(ctx, target.EntityType, conditions, limit)
		return ids, err
	}
	return s.executeSemantic(ctx, target, conditions, semanticQuery, limit)
}

// executeSemantic ranks the filtered candidates by vector similarity. The
// structured total, the current-model coverage, and the KNN ranking run
// concurrently since they touch independent indexes.
func (s *Service) executeSemantic(
	ctx context.Context,
	target domain.NavigationTarget,
	conditions []db.Condition,
	semanticQuery string,
	limit int,
) ([]string, error) {
	emb, err := s.embedder.Embed(ctx, semanticQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w: %w", domain.ErrEmbeddingUnavailable, err)
	}

	var (
		total, covered int
		ranked         []domain.RankedEntity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		total, err = s.entities.Count(gctx, target.EntityType, conditions)
		return err
	})
	g.Go(func() error {
		var err error
		covered, err = s.vectors.CountCurrent(gctx, target.EntityType, s.modelID, conditions)
		return err
	})
	g.Go(func() error {
		var err error
		ranked, err = s.vectors.SearchKNN(gctx, target.EntityType, s.modelID, emb.Embedding, conditions, limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("semantic search %s: %w: %w", target.EntityType, domain.ErrStorageQuery, err)
	}

	if total == 0 {
		return []string{}, nil
	}
	if gap := total - covered; gap > 0 {
		metrics.VectorCoverageGapTotal.WithLabelValues(target.EntityType).Add(float64(gap))
		s.logger.Debug("candidates lack a current-model vector",
			zap.String("entity_type", target.EntityType), zap.Int("gap", gap))
	}

	kept := ranked[:0]
	for _, r := range ranked {
		if r.Similarity >= s.minSimilarity {
			kept = append(kept, r)
		}
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].Similarity != kept[j].Similarity {
			return kept[i].Similarity > kept[j].Similarity
		}
		return kept[i].ID < kept[j].ID
	})
	if len(kept) > limit {
		kept = kept[:limit]
	}

	ids := make([]string, len(kept))
	for i, r := range kept {
		ids[i] = r.ID
	}
	return ids, nil
}

// buildConditions turns validated filters into equality conditions. A single
// key outside the target's filterable fields invalidates the whole set.
func (s *Service) buildConditions(target domain.NavigationTarget, filters map[string]string) ([]db.Condition, error) {
	for k := range filters {
		if !target.AllowsFilter(k) {
			return nil, fmt.Errorf("%w: %q on page %s", domain.ErrInvalidFilterKey, k, target.PageKey)
		}
	}

	conditions := make([]db.Condition, 0, len(filters))
	for k, v := range filters {
		if v == "" {
			continue
		}
		conditions = append(conditions, db.Condition{Field: k, Match: v})
	}
	return conditions, nil
}
