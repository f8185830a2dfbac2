package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/caseflow/navsearch/internal/domain"
)

// wireResult mirrors the reply shape with pointers on required fields so a
// missing field is distinguishable from a zero value.
type wireResult struct {
	Intent           *string           `json:"intent"`
	TargetPage       *string           `json:"target_page"`
	Filters          map[string]string `json:"filters"`
	RequiresSemantic *bool             `json:"requires_semantic"`
	SemanticQuery    string            `json:"semantic_query"`
	Confidence       *float64          `json:"confidence"`
}

// parseReply validates the raw reasoning-service reply against the strict
// ClassificationResult shape. Any violation is a parse error; the caller
// synthesizes the unresolved result.
func parseReply(raw string, lookup func(pageKey string) (domain.NavigationTarget, error)) (domain.ClassificationResult, []string, error) {
	raw = stripFences(raw)

	var w wireResult
	if err := json.Unmarshal([]byte(raw), &w); err != nil {
		return domain.ClassificationResult{}, nil, fmt.Errorf("%w: %w", domain.ErrClassificationParse, err)
	}

	if w.Intent == nil || w.Confidence == nil || w.RequiresSemantic == nil {
		return domain.ClassificationResult{}, nil, fmt.Errorf("%w: missing required field", domain.ErrClassificationParse)
	}

	intent := domain.Intent(*w.Intent)
	if !domain.KnownIntent(intent) {
		return domain.ClassificationResult{}, nil, fmt.Errorf("%w: unknown intent %q", domain.ErrClassificationParse, *w.Intent)
	}

	if *w.Confidence < 0 || *w.Confidence > 1 {
		return domain.ClassificationResult{}, nil, fmt.Errorf("%w: confidence %g outside [0,1]", domain.ErrClassificationParse, *w.Confidence)
	}

	result := domain.ClassificationResult{
		Intent:           intent,
		Filters:          map[string]string{},
		RequiresSemantic: *w.RequiresSemantic,
		SemanticQuery:    w.SemanticQuery,
		Confidence:       *w.Confidence,
	}

	if intent == domain.IntentUnresolved {
		return domain.Unresolved(), nil, nil
	}

	if w.TargetPage == nil || *w.TargetPage == "" {
		return domain.ClassificationResult{}, nil, fmt.Errorf("%w: intent %q without target page", domain.ErrClassificationParse, intent)
	}

	target, err := lookup(*w.TargetPage)
	if err != nil {
		return domain.ClassificationResult{}, nil, fmt.Errorf("%w: %w", domain.ErrClassificationParse, err)
	}
	result.TargetPage = target.PageKey

	// Filter keys must be a subset of the target's filterable fields.
	// Offending keys are dropped, not fatal: the interpretation is still
	// usable and the executor re-validates before querying.
	var dropped []string
	for k, v := range w.Filters {
		if target.AllowsFilter(k) {
			result.Filters[k] = v
		} else {
			dropped = append(dropped, k)
		}
	}

	return result, dropped, nil
}

// stripFences removes a markdown code fence the model may wrap the JSON in.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
