package classify

import (
	"strings"

	"github.com/caseflow/navsearch/internal/domain"
)

const systemHeader = `You classify free-text queries against a test-management portal and answer with a single JSON object, nothing else.

The object has exactly these fields:
  "intent": one of "navigate", "filter", "search", "unresolved"
  "target_page": the page_key of the matching page, or null
  "filters": object mapping filterable field names to values (may be empty)
  "requires_semantic": boolean, true when the query asks for conceptually related entities rather than exact attribute matches
  "semantic_query": the free-text portion to rank semantically, or ""
  "confidence": number between 0 and 1

Rules:
- filters keys must come from the page's filterable fields, values are exact strings.
- When no page fits, answer {"intent":"unresolved","target_page":null,"filters":{},"requires_semantic":false,"semantic_query":"","confidence":0}.
- Never invent pages or fields.`

const fewShot = `Examples:
Q: show API test cases
A: {"intent":"filter","target_page":"test-cases","filters":{"tag":"api"},"requires_semantic":false,"semantic_query":"","confidence":0.95}
Q: test cases related to ACH payments
A: {"intent":"search","target_page":"test-cases","filters":{},"requires_semantic":true,"semantic_query":"ACH payments","confidence":0.9}
Q: failed runs in release 2.4
A: {"intent":"filter","target_page":"test-runs","filters":{"status":"failed","release":"2.4"},"requires_semantic":false,"semantic_query":"","confidence":0.92}
Q: what is the weather like
A: {"intent":"unresolved","target_page":null,"filters":{},"requires_semantic":false,"semantic_query":"","confidence":0}`

// buildSystemPrompt serializes the navigable pages into the classifier's
// system instructions.
func buildSystemPrompt(targets []domain.NavigationTarget) string {
	var b strings.Builder
	b.WriteString(systemHeader)
	b.WriteString("\n\nPages:\n")

	for _, t := range targets {
		b.WriteString("- page_key: ")
		b.WriteString(t.PageKey)
		b.WriteString(" (")
		b.WriteString(t.DisplayName)
		b.WriteString(")")
		if t.EntityType != "" {
			b.WriteString(", entity type: ")
			b.WriteString(t.EntityType)
		}
		if len(t.FilterableFields) > 0 {
			b.WriteString(", filterable fields: ")
			b.WriteString(strings.Join(t.FilterableFields, ", "))
		}
		if len(t.ExampleQueries) > 0 {
			b.WriteString(", example queries: ")
			b.WriteString(strings.Join(t.ExampleQueries, "; "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(fewShot)
	return b.String()
}

// buildUserPrompt combines the query with the fresh portal snapshot.
func buildUserPrompt(query string, lc domain.LiveContext) string {
	var b strings.Builder

	if lc.CurrentRelease != "" {
		b.WriteString("Current release: ")
		b.WriteString(lc.CurrentRelease)
		b.WriteString("\n")
	}
	if len(lc.Modules) > 0 {
		b.WriteString("Modules: ")
		b.WriteString(strings.Join(lc.Modules, ", "))
		b.WriteString("\n")
	}

	b.WriteString("Query: ")
	b.WriteString(query)
	return b.String()
}
