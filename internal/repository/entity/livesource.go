package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/caseflow/navsearch/internal/db"
)

// liveStore is the consumer interface for live context reads.
type liveStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
}

// Keys the portal maintains for its current state.
const (
	currentReleaseKey = "caseflow:release:current"
	modulesKey        = "caseflow:modules"
)

// LiveSource reads the portal's current release and module list so the
// classifier prompt reflects present state, implementing registry.LiveSource.
type LiveSource struct {
	store liveStore
}

// NewLiveSource creates a live context source.
func NewLiveSource(s liveStore) *LiveSource {
	return &LiveSource{store: s}
}

// CurrentRelease returns the name of the release in flight, empty when none.
func (l *LiveSource) CurrentRelease(ctx context.Context) (string, error) {
	data, err := l.store.Get(ctx, currentReleaseKey)
	if errors.Is(err, db.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("current release: %w", err)
	}
	return string(data), nil
}

// Modules returns the portal's module list.
func (l *LiveSource) Modules(ctx context.Context) ([]string, error) {
	mods, err := l.store.LRange(ctx, modulesKey, 0, -1)
	if err != nil {
		return nil, fmt.Errorf("modules: %w", err)
	}
	return mods, nil
}
