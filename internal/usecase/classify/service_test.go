package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
)

// --- Mocks ---

type mockReasoner struct {
	reply  string
	usage  domain.Usage
	err    error
	system string
	user   string
}

func (m *mockReasoner) Complete(_ context.Context, system, user string) (string, domain.Usage, error) {
	m.system = system
	m.user = user
	return m.reply, m.usage, m.err
}

type mockRegistry struct {
	targets []domain.NavigationTarget
	live    domain.LiveContext
}

func (m *mockRegistry) AllTargets() []domain.NavigationTarget { return m.targets }

func (m *mockRegistry) ByPage(pageKey string) (domain.NavigationTarget, error) {
	for _, t := range m.targets {
		if t.PageKey == pageKey {
			return t, nil
		}
	}
	return domain.NavigationTarget{}, domain.ErrTargetNotFound
}

func (m *mockRegistry) LiveContext(_ context.Context, scope string) domain.LiveContext {
	lc := m.live
	lc.Scope = scope
	return lc
}

func newTestRegistry() *mockRegistry {
	return &mockRegistry{
		targets: []domain.NavigationTarget{
			{
				PageKey:          "test-cases",
				DisplayName:      "Test Cases",
				EntityType:       "test_case",
				FilterableFields: []string{"tag", "module"},
				Searchable:       true,
			},
		},
		live: domain.LiveContext{CurrentRelease: "2.4", Modules: []string{"payments"}},
	}
}

// --- Tests ---

func TestClassify_Success(t *testing.T) {
	reasoner := &mockReasoner{
		reply: `{"intent":"filter","target_page":"test-cases","filters":{"tag":"api"},"requires_semantic":false,"semantic_query":"","confidence":0.95}`,
		usage: domain.Usage{PromptTokens: 120, TotalTokens: 150, LatencyMS: 420},
	}
	svc := New(reasoner, newTestRegistry(), zap.NewNop())

	result, usage, err := svc.Classify(context.Background(), "show API test cases", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TargetPage != "test-cases" || result.Filters["tag"] != "api" {
		t.Errorf("unexpected result %+v", result)
	}
	if usage.TotalTokens != 150 {
		t.Errorf("expected usage passthrough, got %+v", usage)
	}
}

func TestClassify_PromptCarriesTargetsAndContext(t *testing.T) {
	reasoner := &mockReasoner{
		reply: `{"intent":"navigate","target_page":"test-cases","requires_semantic":false,"confidence":0.9}`,
	}
	svc := New(reasoner, newTestRegistry(), zap.NewNop())

	if _, _, err := svc.Classify(context.Background(), "open test cases", "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(reasoner.system, "page_key: test-cases") {
		t.Error("system prompt missing target page")
	}
	if !strings.Contains(reasoner.system, "filterable fields: tag, module") {
		t.Error("system prompt missing filterable fields")
	}
	if !strings.Contains(reasoner.user, "Current release: 2.4") {
		t.Error("user prompt missing current release")
	}
	if !strings.Contains(reasoner.user, "Query: open test cases") {
		t.Error("user prompt missing query")
	}
}

func TestClassify_TransportError(t *testing.T) {
	reasoner := &mockReasoner{
		err:   domain.ErrClassificationTimeout,
		usage: domain.Usage{LatencyMS: 8000},
	}
	svc := New(reasoner, newTestRegistry(), zap.NewNop())

	result, usage, err := svc.Classify(context.Background(), "anything", "")
	if !errors.Is(err, domain.ErrClassificationTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if !result.IsUnresolved() {
		t.Errorf("expected unresolved result, got %+v", result)
	}
	if usage.LatencyMS != 8000 {
		t.Errorf("expected usage passthrough on failure, got %+v", usage)
	}
}

func TestClassify_MalformedReply(t *testing.T) {
	reasoner := &mockReasoner{reply: "I think you want the test cases page."}
	svc := New(reasoner, newTestRegistry(), zap.NewNop())

	result, _, err := svc.Classify(context.Background(), "show tests", "")
	if !errors.Is(err, domain.ErrClassificationParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
	if !result.IsUnresolved() {
		t.Errorf("expected unresolved result, got %+v", result)
	}
	if result.Confidence != 0 {
		t.Errorf("expected zero confidence, got %g", result.Confidence)
	}
}
