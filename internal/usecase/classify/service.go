// Package classify turns a free-text query into a ClassificationResult via
// the external reasoning service, failing closed to unresolved.
package classify

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
)

// Service assembles the classification prompt, invokes the reasoning
// service, and parses its reply against the strict result shape.
type Service struct {
	client   ReasoningClient
	registry TargetRegistry
	logger   *zap.Logger
}

// New creates a classification service.
func New(client ReasoningClient, registry TargetRegistry, logger *zap.Logger) *Service {
	return &Service{client: client, registry: registry, logger: logger}
}

// Classify interprets the query. On any reasoning-service failure (timeout,
// transport, malformed reply) it returns the unresolved result together
// with the causing error so the caller can skip the cache write; usage is
// reported in every case for the search log.
func (s *Service) Classify(ctx context.Context, query, scope string) (domain.ClassificationResult, domain.Usage, error) {
	system := buildSystemPrompt(s.registry.AllTargets())
	user := buildUserPrompt(query, s.registry.LiveContext(ctx, scope))

	raw, usage, err := s.client.Complete(ctx, system, user)
	if err != nil {
		if errors.Is(err, domain.ErrClassificationTimeout) {
			s.logger.Warn("classification timed out", zap.String("query", query))
		} else {
			s.logger.Warn("classification call failed", zap.String("query", query), zap.Error(err))
		}
		return domain.Unresolved(), usage, err
	}

	result, dropped, err := parseReply(raw, s.registry.ByPage)
	if err != nil {
		s.logger.Warn("classification reply rejected",
			zap.String("query", query), zap.Error(err))
		return domain.Unresolved(), usage, err
	}
	if len(dropped) > 0 {
		s.logger.Warn("classifier proposed filters outside the target's fields",
			zap.String("page", result.TargetPage), zap.Strings("dropped", dropped))
	}

	return result, usage, nil
}
