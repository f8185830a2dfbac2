package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/caseflow/navsearch/internal/domain"
)

// --- Mocks ---

type fakeLive struct {
	release string
	modules []string
	err     error
}

func (f *fakeLive) CurrentRelease(_ context.Context) (string, error) {
	return f.release, f.err
}

func (f *fakeLive) Modules(_ context.Context) ([]string, error) {
	return f.modules, f.err
}

// --- Tests ---

func TestNew_Validation(t *testing.T) {
	cases := []struct {
		name    string
		targets []domain.NavigationTarget
	}{
		{"empty set", nil},
		{"missing page key", []domain.NavigationTarget{{Path: "/x"}}},
		{"missing path", []domain.NavigationTarget{{PageKey: "x"}}},
		{"duplicate page key", []domain.NavigationTarget{
			{PageKey: "a", Path: "/a"},
			{PageKey: "a", Path: "/b"},
		}},
		{"duplicate entity type", []domain.NavigationTarget{
			{PageKey: "a", Path: "/a", EntityType: "thing"},
			{PageKey: "b", Path: "/b", EntityType: "thing"},
		}},
		{"searchable without entity type", []domain.NavigationTarget{
			{PageKey: "a", Path: "/a", Searchable: true},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.targets, nil); err == nil {
				t.Error("expected configuration error")
			}
		})
	}
}

func TestLookups(t *testing.T) {
	reg, err := New(DefaultTargets(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	byPage, err := reg.ByPage("test-cases")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byPage.EntityType != "test_case" {
		t.Errorf("unexpected target %+v", byPage)
	}

	byEntity, err := reg.Describe("defect")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byEntity.PageKey != "defects" {
		t.Errorf("unexpected target %+v", byEntity)
	}

	if _, err := reg.ByPage("nope"); !errors.Is(err, domain.ErrTargetNotFound) {
		t.Errorf("expected ErrTargetNotFound, got %v", err)
	}
	if _, err := reg.Describe("nope"); !errors.Is(err, domain.ErrTargetNotFound) {
		t.Errorf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestLoad_FileAndFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.yaml")
	data := `targets:
  - page_key: "things"
    display_name: "Things"
    path: "/things"
    entity_type: "thing"
    filterable_fields: ["kind"]
    searchable: true
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	reg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.AllTargets()) != 1 {
		t.Errorf("expected one target, got %d", len(reg.AllTargets()))
	}
	target, err := reg.Describe("thing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !target.AllowsFilter("kind") || target.AllowsFilter("color") {
		t.Errorf("unexpected filterable fields %v", target.FilterableFields)
	}

	// A missing file falls back to the built-in set.
	reg, err = Load(filepath.Join(dir, "absent.yaml"), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reg.AllTargets()) != len(DefaultTargets()) {
		t.Error("expected built-in targets for a missing file")
	}
}

func TestLiveContext(t *testing.T) {
	reg, err := New(DefaultTargets(), &fakeLive{release: "2.4", modules: []string{"payments", "onboarding"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lc := reg.LiveContext(context.Background(), "u1")
	if lc.CurrentRelease != "2.4" {
		t.Errorf("expected release 2.4, got %q", lc.CurrentRelease)
	}
	if len(lc.Modules) != 2 {
		t.Errorf("expected two modules, got %v", lc.Modules)
	}
	if lc.Scope != "u1" {
		t.Errorf("expected scope passthrough, got %q", lc.Scope)
	}
}

func TestLiveContext_DegradesOnFailure(t *testing.T) {
	reg, err := New(DefaultTargets(), &fakeLive{err: errors.New("down")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lc := reg.LiveContext(context.Background(), "")
	if lc.CurrentRelease != "" || len(lc.Modules) != 0 {
		t.Errorf("expected empty snapshot on live failure, got %+v", lc)
	}
}
