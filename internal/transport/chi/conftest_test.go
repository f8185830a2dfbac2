package chi

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
	healthuc "github.com/caseflow/navsearch/internal/usecase/health"
)

// --- Mocks ---

type mockNavigator struct {
	searchFn func(ctx context.Context, query, scope string, limit int) (domain.Response, error)
}

func (m *mockNavigator) Search(ctx context.Context, query, scope string, limit int) (domain.Response, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query, scope, limit)
	}
	return domain.Response{}, nil
}

type mockCatalog struct {
	targets []domain.NavigationTarget
}

func (m *mockCatalog) AllTargets() []domain.NavigationTarget { return m.targets }

func (m *mockCatalog) Describe(entityType string) (domain.NavigationTarget, error) {
	for _, t := range m.targets {
		if t.EntityType == entityType {
			return t, nil
		}
	}
	return domain.NavigationTarget{}, fmt.Errorf("no target for entity type %q", entityType)
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

type mockReindexer struct {
	enqueued []domain.EntityRef
}

func (m *mockReindexer) Enqueue(ref domain.EntityRef) {
	m.enqueued = append(m.enqueued, ref)
}

type mockPurger struct {
	purges int
	err    error
}

func (m *mockPurger) Purge(context.Context) error {
	m.purges++
	return m.err
}

type testServer struct {
	*Server
	navigator *mockNavigator
	catalog   *mockCatalog
	reindexer *mockReindexer
	purger    *mockPurger
	router    chi.Router
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	nav := &mockNavigator{}
	catalog := &mockCatalog{targets: []domain.NavigationTarget{
		{
			PageKey:          "test-cases",
			DisplayName:      "Test Cases",
			Path:             "/test-cases",
			EntityType:       "test_case",
			FilterableFields: []string{"status", "priority"},
			Searchable:       true,
		},
		{
			PageKey:     "reports",
			DisplayName: "Reports",
			Path:        "/reports",
		},
	}}
	reindexer := &mockReindexer{}
	purger := &mockPurger{}

	srv := NewServer(nav, catalog, reindexer, purger, healthuc.New(okPinger{}, nil, nil), 100, zap.NewNop())
	r := chi.NewRouter()
	srv.Routes(r)

	return &testServer{
		Server:    srv,
		navigator: nav,
		catalog:   catalog,
		reindexer: reindexer,
		purger:    purger,
		router:    r,
	}
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}
