// Package enforce applies a deterministic safety net over the classifier:
// queries that plainly need semantic matching get the semantic flag set even
// when the classifier missed it. Enforcement only ever widens the result.
package enforce

import (
	"strings"

	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
)

// Enforcer upgrades a classification to require semantic search when the
// raw query contains a trigger phrase or a domain keyword. It never unsets
// the flag and never touches the target, filters, or confidence.
type Enforcer struct {
	phrases  []string
	keywords []string
	logger   *zap.Logger
}

// New creates an enforcer from lowercased trigger lists.
func New(triggerPhrases, domainKeywords []string, logger *zap.Logger) *Enforcer {
	return &Enforcer{
		phrases:  lowerAll(triggerPhrases),
		keywords: lowerAll(domainKeywords),
		logger:   logger,
	}
}

// Apply returns the classification with the semantic flag enforced. The
// semantic query falls back to the raw query text when the classifier did
// not extract one.
func (e *Enforcer) Apply(rawQuery string, result domain.ClassificationResult) domain.ClassificationResult {
	if result.RequiresSemantic || result.IsUnresolved() {
		return result
	}

	trigger := e.match(rawQuery)
	if trigger == "" {
		return result
	}

	result.RequiresSemantic = true
	if result.SemanticQuery == "" {
		result.SemanticQuery = rawQuery
	}
	e.logger.Debug("semantic search enforced",
		zap.String("trigger", trigger), zap.String("page", result.TargetPage))
	return result
}

// match returns the first trigger found in the query, or "".
func (e *Enforcer) match(rawQuery string) string {
	q := strings.ToLower(rawQuery)
	for _, p := range e.phrases {
		if strings.Contains(q, p) {
			return p
		}
	}
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, w := range words {
		for _, k := range e.keywords {
			if w == k {
				return k
			}
		}
	}
	return ""
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
