package navigate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/caseflow/navsearch/internal/domain"
)

// compose builds the navigation response from a resolved classification and
// the executed search result. Filter values substitute into the target's
// path template where a placeholder exists and become query parameters
// otherwise.
func compose(
	target domain.NavigationTarget,
	result domain.ClassificationResult,
	entityIDs []string,
	cached bool,
	latencyMS int64,
) domain.Response {
	path := target.Path
	params := make(map[string]string, len(result.Filters))

	keys := make([]string, 0, len(result.Filters))
	for k := range result.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		placeholder := "{" + k + "}"
		if strings.Contains(path, placeholder) {
			path = strings.ReplaceAll(path, placeholder, result.Filters[k])
		} else {
			params[k] = result.Filters[k]
		}
	}

	if entityIDs == nil {
		entityIDs = []string{}
	}

	return domain.Response{
		NavigateTo:     path,
		QueryParams:    params,
		EntityIDs:      entityIDs,
		Message:        message(target, result, len(entityIDs)),
		Confidence:     result.Confidence,
		Cached:         cached,
		ResponseTimeMS: latencyMS,
	}
}

// composeUnresolved is the fail-closed response: no navigation, no
// entities, zero confidence.
func composeUnresolved(latencyMS int64) domain.Response {
	return domain.Response{
		QueryParams:    map[string]string{},
		EntityIDs:      []string{},
		Message:        "Could not determine where to navigate for this query.",
		Confidence:     0,
		ResponseTimeMS: latencyMS,
	}
}

func message(target domain.NavigationTarget, result domain.ClassificationResult, count int) string {
	switch {
	case result.Intent == domain.IntentNavigate:
		return fmt.Sprintf("Navigating to %s.", target.DisplayName)
	case count == 0 && (result.RequiresSemantic || len(result.Filters) > 0):
		return fmt.Sprintf("No matching results on %s.", target.DisplayName)
	case count > 0:
		return fmt.Sprintf("Found %d matching results on %s.", count, target.DisplayName)
	default:
		return fmt.Sprintf("Navigating to %s.", target.DisplayName)
	}
}
