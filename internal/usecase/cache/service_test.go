package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/domain"
)

// --- Mocks ---

type fakeEntry struct {
	result    domain.ClassificationResult
	expiresAt time.Time
}

type fakePersistent struct {
	entries map[string]fakeEntry
	err     error
	puts    int

	// touched receives the key of every hit-counter increment; touchGate,
	// when set, stalls Touch until released.
	touched   chan string
	touchGate chan struct{}
}

func newFakePersistent() *fakePersistent {
	return &fakePersistent{
		entries: map[string]fakeEntry{},
		touched: make(chan string, 8),
	}
}

func (f *fakePersistent) Get(_ context.Context, key string) (domain.ClassificationResult, time.Time, bool, error) {
	if f.err != nil {
		return domain.ClassificationResult{}, time.Time{}, false, f.err
	}
	e, ok := f.entries[key]
	return e.result, e.expiresAt, ok, nil
}

func (f *fakePersistent) Put(_ context.Context, key string, result domain.ClassificationResult, ttl time.Duration) error {
	if f.err != nil {
		return f.err
	}
	f.puts++
	f.entries[key] = fakeEntry{result: result, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (f *fakePersistent) Touch(_ context.Context, key string) error {
	if f.touchGate != nil {
		<-f.touchGate
	}
	select {
	case f.touched <- key:
	default:
	}
	return nil
}

func (f *fakePersistent) Invalidate(_ context.Context, key string) error {
	delete(f.entries, key)
	return f.err
}

func (f *fakePersistent) Purge(_ context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.entries = map[string]fakeEntry{}
	return nil
}

func waitTouched(t *testing.T, f *fakePersistent) string {
	t.Helper()
	select {
	case key := <-f.touched:
		return key
	case <-time.After(2 * time.Second):
		t.Fatal("expected a hit-counter touch")
		return ""
	}
}

func sampleResult() domain.ClassificationResult {
	return domain.ClassificationResult{
		Intent:     domain.IntentFilter,
		TargetPage: "test-cases",
		Filters:    map[string]string{"tag": "api"},
		Confidence: 0.9,
	}
}

// --- Tests ---

func TestKey_Deterministic(t *testing.T) {
	a := Key("Show API test cases", "u1")
	b := Key("  show   api TEST cases ", "u1")
	if a != b {
		t.Errorf("normalized variants must share a key: %s vs %s", a, b)
	}

	if Key("show api test cases", "u1") == Key("show api test cases", "u2") {
		t.Error("different scopes must produce different keys")
	}
	if Key("show api test cases", "") == Key("show api test cases", "u1") {
		t.Error("global scope must differ from an actor scope")
	}
	if len(a) != 64 {
		t.Errorf("expected fixed-length hex key, got %d chars", len(a))
	}
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  Show   API tests ": "show api tests",
		"UPPER":               "upper",
		"one\ttwo\nthree":     "one two three",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetPut_RoundTrip(t *testing.T) {
	persistent := newFakePersistent()
	svc := New(persistent, 16, time.Hour, zap.NewNop())

	if _, found := svc.Get(context.Background(), "show tests", "u1"); found {
		t.Fatal("expected miss on empty cache")
	}

	svc.Put(context.Background(), "show tests", "u1", sampleResult())

	got, found := svc.Get(context.Background(), "show tests", "u1")
	if !found {
		t.Fatal("expected hit after put")
	}
	if got.TargetPage != "test-cases" || got.Filters["tag"] != "api" {
		t.Errorf("unexpected cached result %+v", got)
	}
	if persistent.puts != 1 {
		t.Errorf("expected durable write, got %d", persistent.puts)
	}
	if key := waitTouched(t, persistent); key != Key("show tests", "u1") {
		t.Errorf("memory hit touched the wrong key %s", key)
	}
}

func TestGet_MemoryHitDoesNotWaitForTouch(t *testing.T) {
	persistent := newFakePersistent()
	persistent.touchGate = make(chan struct{})
	svc := New(persistent, 16, time.Hour, zap.NewNop())

	svc.Put(context.Background(), "show tests", "", sampleResult())

	// The stalled Touch must not delay the read; Get returning at all
	// proves the increment is off the request path.
	if _, found := svc.Get(context.Background(), "show tests", ""); !found {
		t.Fatal("expected in-process hit")
	}

	close(persistent.touchGate)
	waitTouched(t, persistent)
}

func TestGet_PersistentHitRepopulatesMemory(t *testing.T) {
	persistent := newFakePersistent()
	persistent.entries[Key("show tests", "")] = fakeEntry{
		result:    sampleResult(),
		expiresAt: time.Now().Add(time.Hour),
	}
	svc := New(persistent, 16, time.Hour, zap.NewNop())

	if _, found := svc.Get(context.Background(), "show tests", ""); !found {
		t.Fatal("expected persistent hit")
	}

	// The second read serves from memory even with the tier unreachable.
	persistent.err = errors.New("now unreachable")
	if _, found := svc.Get(context.Background(), "show tests", ""); !found {
		t.Fatal("expected in-process hit after repopulation")
	}
}

func TestGet_RepopulatedEntryInheritsStoredExpiry(t *testing.T) {
	persistent := newFakePersistent()
	base := time.Now()
	persistent.entries[Key("show tests", "")] = fakeEntry{
		result:    sampleResult(),
		expiresAt: base.Add(time.Hour),
	}
	svc := New(persistent, 16, time.Hour, zap.NewNop())

	// Late persistent hit: one minute of lifetime left when the in-process
	// copy is (re)populated.
	svc.now = func() time.Time { return base.Add(59 * time.Minute) }
	if _, found := svc.Get(context.Background(), "show tests", ""); !found {
		t.Fatal("expected persistent hit before expiry")
	}

	// Past the stored expires_at the entry must be gone from both tiers;
	// the repopulated copy must not have gained a fresh lifetime.
	delete(persistent.entries, Key("show tests", ""))
	svc.now = func() time.Time { return base.Add(90 * time.Minute) }
	if _, found := svc.Get(context.Background(), "show tests", ""); found {
		t.Error("in-process copy served past the stored expires_at")
	}
}

func TestGet_MemoryEntryExpires(t *testing.T) {
	persistent := newFakePersistent()
	svc := New(persistent, 16, time.Hour, zap.NewNop())

	base := time.Now()
	svc.now = func() time.Time { return base }
	svc.Put(context.Background(), "show tests", "", sampleResult())

	// Past TTL both tiers must report a miss; the fake persistent tier has
	// the entry but the in-process copy is stale.
	svc.now = func() time.Time { return base.Add(2 * time.Hour) }
	delete(persistent.entries, Key("show tests", ""))

	if _, found := svc.Get(context.Background(), "show tests", ""); found {
		t.Error("expected miss after expiry")
	}
}

func TestGet_PersistentFailureDegrades(t *testing.T) {
	persistent := newFakePersistent()
	persistent.err = errors.New("connection refused")
	svc := New(persistent, 16, time.Hour, zap.NewNop())

	if _, found := svc.Get(context.Background(), "show tests", ""); found {
		t.Fatal("expected miss when persistent tier is down")
	}

	// Writes still land in the in-process tier.
	svc.Put(context.Background(), "show tests", "", sampleResult())
	if _, found := svc.Get(context.Background(), "show tests", ""); !found {
		t.Error("expected in-process-only hit while persistent tier is down")
	}
}

func TestInvalidate(t *testing.T) {
	persistent := newFakePersistent()
	svc := New(persistent, 16, time.Hour, zap.NewNop())

	svc.Put(context.Background(), "show tests", "u1", sampleResult())
	svc.Invalidate(context.Background(), "show tests", "u1")

	if _, found := svc.Get(context.Background(), "show tests", "u1"); found {
		t.Error("expected miss after invalidation")
	}
}

func TestPurge(t *testing.T) {
	persistent := newFakePersistent()
	svc := New(persistent, 16, time.Hour, zap.NewNop())

	svc.Put(context.Background(), "show tests", "u1", sampleResult())
	svc.Put(context.Background(), "failed runs", "u2", sampleResult())

	if err := svc.Purge(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, found := svc.Get(context.Background(), "show tests", "u1"); found {
		t.Error("expected miss after purge")
	}
	if len(persistent.entries) != 0 {
		t.Errorf("persistent tier not purged: %d entries", len(persistent.entries))
	}
}

func TestPurge_PersistentFailure(t *testing.T) {
	persistent := newFakePersistent()
	svc := New(persistent, 16, time.Hour, zap.NewNop())
	svc.Put(context.Background(), "show tests", "u1", sampleResult())

	persistent.err = errors.New("connection refused")
	if err := svc.Purge(context.Background()); err == nil {
		t.Fatal("expected error when persistent tier is down")
	}

	// In-process tier is cleared even when the persistent purge fails.
	if _, found := svc.Get(context.Background(), "show tests", "u1"); found {
		t.Error("expected in-process miss after failed purge")
	}
}
