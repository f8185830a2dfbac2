package budget

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/caseflow/navsearch/internal/db"
)

// --- Mocks ---

type fakeKV struct {
	values map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	v, ok := f.values[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return []byte(strconv.FormatInt(v, 10)), nil
}

func (f *fakeKV) IncrBy(_ context.Context, key string, val int64) error {
	if f.err != nil {
		return f.err
	}
	f.values[key] += val
	return nil
}

func (f *fakeKV) Expire(_ context.Context, key string, ttl time.Duration, nx bool) error {
	if f.err != nil {
		return f.err
	}
	if _, set := f.ttls[key]; set && nx {
		return nil
	}
	f.ttls[key] = ttl
	return nil
}

// --- Tests ---

func TestIncrBy_ArmsWindowTTLOnce(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, 48*time.Hour, 62*24*time.Hour)
	key := "navsearch:budget:openai:daily:2026-08-29"

	if err := s.IncrBy(context.Background(), key, 100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.IncrBy(context.Background(), key, 50); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if kv.values[key] != 150 {
		t.Errorf("counter: got %d, want 150", kv.values[key])
	}
	if kv.ttls[key] != 48*time.Hour {
		t.Errorf("daily ttl: got %v", kv.ttls[key])
	}
}

func TestIncrBy_MonthlyKeyTTL(t *testing.T) {
	kv := newFakeKV()
	s := New(kv, 48*time.Hour, 62*24*time.Hour)
	key := "navsearch:budget:openai:monthly:2026-08"

	if err := s.IncrBy(context.Background(), key, 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kv.ttls[key] != 62*24*time.Hour {
		t.Errorf("monthly ttl: got %v", kv.ttls[key])
	}
}

func TestGet_MissingKeyIsZero(t *testing.T) {
	s := New(newFakeKV(), 48*time.Hour, 62*24*time.Hour)

	val, err := s.Get(context.Background(), "navsearch:budget:openai:daily:2026-08-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 0 {
		t.Errorf("expected 0 for missing window, got %d", val)
	}
}

func TestGet_ReadsCounter(t *testing.T) {
	kv := newFakeKV()
	kv.values["navsearch:budget:openai:daily:2026-08-29"] = 1234
	s := New(kv, 48*time.Hour, 62*24*time.Hour)

	val, err := s.Get(context.Background(), "navsearch:budget:openai:daily:2026-08-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != 1234 {
		t.Errorf("got %d, want 1234", val)
	}
}
