// Package registry describes the navigable portal pages and their
// filterable attributes, and assembles fresh live context for the classifier.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/caseflow/navsearch/internal/domain"
)

// LiveSource supplies the current portal state (release in flight, module
// list). Queried fresh on every LiveContext call so the classifier never
// reasons over stale prompt text.
type LiveSource interface {
	CurrentRelease(ctx context.Context) (string, error)
	Modules(ctx context.Context) ([]string, error)
}

// Registry holds the navigation target set. Read-mostly: built at startup,
// replaced wholesale when configuration changes.
type Registry struct {
	targets  []domain.NavigationTarget
	byPage   map[string]domain.NavigationTarget
	byEntity map[string]domain.NavigationTarget
	live     LiveSource
}

// New builds a registry from the given targets. A duplicate page key or
// entity type, or a searchable target without an entity type, is a
// configuration error.
func New(targets []domain.NavigationTarget, live LiveSource) (*Registry, error) {
	if len(targets) == 0 {
		return nil, fmt.Errorf("at least one navigation target is required")
	}

	r := &Registry{
		targets:  targets,
		byPage:   make(map[string]domain.NavigationTarget, len(targets)),
		byEntity: make(map[string]domain.NavigationTarget, len(targets)),
		live:     live,
	}

	for _, t := range targets {
		if t.PageKey == "" || t.Path == "" {
			return nil, fmt.Errorf("target %q: page_key and path are required", t.PageKey)
		}
		if _, dup := r.byPage[t.PageKey]; dup {
			return nil, fmt.Errorf("duplicate page key %q", t.PageKey)
		}
		r.byPage[t.PageKey] = t

		if t.EntityType != "" {
			if _, dup := r.byEntity[t.EntityType]; dup {
				return nil, fmt.Errorf("duplicate entity type %q", t.EntityType)
			}
			r.byEntity[t.EntityType] = t
		} else if t.Searchable {
			return nil, fmt.Errorf("searchable target %q requires an entity type", t.PageKey)
		}
	}

	return r, nil
}

// Load reads targets from a YAML file and builds a registry. A missing file
// falls back to the built-in portal target set.
func Load(path string, live LiveSource) (*Registry, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if os.IsNotExist(err) {
		return New(DefaultTargets(), live)
	}
	if err != nil {
		return nil, fmt.Errorf("read targets %s: %w", path, err)
	}

	var doc struct {
		Targets []domain.NavigationTarget `yaml:"targets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse targets %s: %w", path, err)
	}

	return New(doc.Targets, live)
}

// Describe returns the target backing the given entity type.
func (r *Registry) Describe(entityType string) (domain.NavigationTarget, error) {
	t, ok := r.byEntity[entityType]
	if !ok {
		return domain.NavigationTarget{}, fmt.Errorf("entity type %q: %w", entityType, domain.ErrTargetNotFound)
	}
	return t, nil
}

// ByPage returns the target for the given page key.
func (r *Registry) ByPage(pageKey string) (domain.NavigationTarget, error) {
	t, ok := r.byPage[pageKey]
	if !ok {
		return domain.NavigationTarget{}, fmt.Errorf("page %q: %w", pageKey, domain.ErrTargetNotFound)
	}
	return t, nil
}

// AllTargets returns every navigation target in declaration order.
func (r *Registry) AllTargets() []domain.NavigationTarget {
	out := make([]domain.NavigationTarget, len(r.targets))
	copy(out, r.targets)
	return out
}

// LiveContext assembles a fresh domain snapshot for one classification call.
// Live source failures degrade to an empty snapshot: prompt context is
// advisory and must not fail the request.
func (r *Registry) LiveContext(ctx context.Context, scope string) domain.LiveContext {
	lc := domain.LiveContext{Scope: scope}
	if r.live == nil {
		return lc
	}
	if rel, err := r.live.CurrentRelease(ctx); err == nil {
		lc.CurrentRelease = rel
	}
	if mods, err := r.live.Modules(ctx); err == nil {
		lc.Modules = mods
	}
	return lc
}

// DefaultTargets is the built-in navigation set for the Caseflow portal.
func DefaultTargets() []domain.NavigationTarget {
	return []domain.NavigationTarget{
		{
			PageKey:          "test-cases",
			DisplayName:      "Test Cases",
			Path:             "/test-cases",
			EntityType:       "test_case",
			FilterableFields: []string{"tag", "module", "priority", "status", "automated"},
			ExampleQueries: []string{
				"show API test cases",
				"smoke tests for the payments module",
			},
			Searchable: true,
		},
		{
			PageKey:          "test-runs",
			DisplayName:      "Test Runs",
			Path:             "/test-runs",
			EntityType:       "test_run",
			FilterableFields: []string{"release", "status", "executor"},
			ExampleQueries: []string{
				"failed runs in the current release",
			},
			Searchable: true,
		},
		{
			PageKey:          "releases",
			DisplayName:      "Releases",
			Path:             "/releases",
			EntityType:       "release",
			FilterableFields: []string{"status"},
			ExampleQueries: []string{
				"open releases",
			},
			Searchable: false,
		},
		{
			PageKey:          "defects",
			DisplayName:      "Defects",
			Path:             "/defects",
			EntityType:       "defect",
			FilterableFields: []string{"severity", "status", "module"},
			ExampleQueries: []string{
				"critical defects in onboarding",
			},
			Searchable: true,
		},
		{
			PageKey:          "users",
			DisplayName:      "Users",
			Path:             "/users",
			EntityType:       "user",
			FilterableFields: []string{"role"},
			ExampleQueries: []string{
				"show QA leads",
			},
			Searchable: false,
		},
		{
			PageKey:          "reports",
			DisplayName:      "Reports",
			Path:             "/reports",
			EntityType:       "",
			FilterableFields: nil,
			ExampleQueries: []string{
				"release readiness report",
			},
			Searchable: false,
		},
	}
}
