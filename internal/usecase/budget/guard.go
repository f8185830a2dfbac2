package budget

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
	"github.com/caseflow/navsearch/internal/metrics"
)

// Checker is the narrow tracker contract the guards depend on.
type Checker interface {
	Check(ctx context.Context) error
	Record(tokens int64)
	RemainingDaily() int64
	RemainingMonthly() int64
}

// GuardedEmbedder wraps an embedding provider with budget enforcement. The
// guard sits below the embedding cache, so cache hits never touch the
// budget.
type GuardedEmbedder struct {
	inner    domain.Embedder
	provider string
	budget   Checker
	logger   *zap.Logger
}

// NewGuardedEmbedder wraps an embedder.
func NewGuardedEmbedder(inner domain.Embedder, provider string, budget Checker, logger *zap.Logger) *GuardedEmbedder {
	return &GuardedEmbedder{inner: inner, provider: provider, budget: budget, logger: logger}
}

// Embed checks the budget, delegates, and records consumed tokens.
func (g *GuardedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	if err := g.budget.Check(ctx); err != nil {
		g.logger.Warn("embedding call rejected by budget",
			zap.String("provider", g.provider), zap.Error(err))
		return domain.EmbeddingResult{}, fmt.Errorf("budget check: %w", err)
	}

	result, err := g.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, err
	}

	g.record(result.TotalTokens)
	return result, nil
}

func (g *GuardedEmbedder) record(tokens int) {
	if tokens <= 0 {
		return
	}
	g.budget.Record(int64(tokens))
	gauge := metrics.ProviderBudgetTokensRemaining
	gauge.WithLabelValues(g.provider, "daily").Set(float64(g.budget.RemainingDaily()))
	gauge.WithLabelValues(g.provider, "monthly").Set(float64(g.budget.RemainingMonthly()))
}

// ReasoningClient matches the reasoning transport surface.
type ReasoningClient interface {
	Complete(ctx context.Context, system, user string) (string, domain.Usage, error)
}

// GuardedReasoner wraps the reasoning client with budget enforcement. A
// rejection reads as a provider failure upstream, so the pipeline degrades
// to an unresolved classification instead of erroring.
type GuardedReasoner struct {
	inner    ReasoningClient
	provider string
	budget   Checker
	logger   *zap.Logger
}

// NewGuardedReasoner wraps a reasoning client.
func NewGuardedReasoner(inner ReasoningClient, provider string, budget Checker, logger *zap.Logger) *GuardedReasoner {
	return &GuardedReasoner{inner: inner, provider: provider, budget: budget, logger: logger}
}

// Complete checks the budget, delegates, and records consumed tokens.
// Usage is recorded even on a failed call since the provider billed it.
func (g *GuardedReasoner) Complete(ctx context.Context, system, user string) (string, domain.Usage, error) {
	if err := g.budget.Check(ctx); err != nil {
		g.logger.Warn("reasoning call rejected by budget",
			zap.String("provider", g.provider), zap.Error(err))
		return "", domain.Usage{}, fmt.Errorf("budget check: %w", err)
	}

	content, usage, err := g.inner.Complete(ctx, system, user)

	if usage.TotalTokens > 0 {
		g.budget.Record(int64(usage.TotalTokens))
		gauge := metrics.ProviderBudgetTokensRemaining
		gauge.WithLabelValues(g.provider, "daily").Set(float64(g.budget.RemainingDaily()))
		gauge.WithLabelValues(g.provider, "monthly").Set(float64(g.budget.RemainingMonthly()))
	}

	return content, usage, err
}
