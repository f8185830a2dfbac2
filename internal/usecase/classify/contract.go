package classify

import (
	"context"

	"github.com/caseflow/navsearch/internal/domain"
)

// ReasoningClient invokes the external reasoning service. The reply is raw
// text expected (but not trusted) to be a JSON object.
type ReasoningClient interface {
	Complete(ctx context.Context, system, user string) (string, domain.Usage, error)
}

// TargetRegistry supplies the navigable targets and live portal context the
// prompt is assembled from.
type TargetRegistry interface {
	AllTargets() []domain.NavigationTarget
	ByPage(pageKey string) (domain.NavigationTarget, error)
	LiveContext(ctx context.Context, scope string) domain.LiveContext
}
