package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/caseflow/navsearch/internal/db"
	"github.com/caseflow/navsearch/internal/domain"
)

// --- Mocks ---

type fakeStore struct {
	data   map[string][]byte
	getErr error
	setErr error
	sets   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) Set(_ context.Context, key string, value []byte) error {
	f.sets++
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

type fakeEmbedder struct {
	calls  int
	result domain.EmbeddingResult
	err    error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	f.calls++
	if f.err != nil {
		return domain.EmbeddingResult{}, f.err
	}
	return f.result, nil
}

func newTestEmbedder(inner *fakeEmbedder, store *fakeStore) *CachedEmbedder {
	return New(inner, store, "text-embedding-3-small", nil, zap.NewNop())
}

// --- Tests ---

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &fakeEmbedder{result: domain.EmbeddingResult{
		Embedding:   []float32{0.5, -1.25, 2},
		TotalTokens: 7,
	}}
	store := newFakeStore()
	emb := newTestEmbedder(inner, store)

	first, err := emb.Embed(context.Background(), "failed payment tests")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("expected one provider call, got %d", inner.calls)
	}
	if first.TotalTokens != 7 {
		t.Errorf("miss must report provider tokens, got %d", first.TotalTokens)
	}

	second, err := emb.Embed(context.Background(), "failed payment tests")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("hit must not call the provider, calls=%d", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit must report zero tokens, got %d", second.TotalTokens)
	}
	if len(second.Embedding) != 3 || second.Embedding[1] != -1.25 {
		t.Errorf("unexpected cached vector %v", second.Embedding)
	}
}

func TestEmbed_KeyIsModelScoped(t *testing.T) {
	inner := &fakeEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	store := newFakeStore()

	a := New(inner, store, "model-a", nil, zap.NewNop())
	b := New(inner, store, "model-b", nil, zap.NewNop())

	if _, err := a.Embed(context.Background(), "query"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := b.Embed(context.Background(), "query"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if inner.calls != 2 {
		t.Errorf("same text under a different model must miss, calls=%d", inner.calls)
	}
	if len(store.data) != 2 {
		t.Errorf("expected two distinct cache entries, got %d", len(store.data))
	}
	for k := range store.data {
		if !strings.HasPrefix(k, cacheKeyPrefix) {
			t.Errorf("key %q missing prefix", k)
		}
	}
}

func TestEmbed_StoreFailuresDegrade(t *testing.T) {
	inner := &fakeEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1, 2}}}
	store := newFakeStore()
	store.getErr = errors.New("read timeout")
	store.setErr = errors.New("write timeout")
	emb := newTestEmbedder(inner, store)

	result, err := emb.Embed(context.Background(), "query")
	if err != nil {
		t.Fatalf("cache failures must not fail the embed, got %v", err)
	}
	if len(result.Embedding) != 2 {
		t.Errorf("unexpected result %v", result.Embedding)
	}
	if inner.calls != 1 {
		t.Errorf("expected provider fallback, calls=%d", inner.calls)
	}
}

func TestEmbed_ProviderError(t *testing.T) {
	inner := &fakeEmbedder{err: errors.New("rate limited")}
	store := newFakeStore()
	emb := newTestEmbedder(inner, store)

	if _, err := emb.Embed(context.Background(), "query"); err == nil {
		t.Fatal("expected error")
	}
	if store.sets != 0 {
		t.Error("failed embeds must not be cached")
	}
}

func TestEmbed_CorruptCacheEntryFallsThrough(t *testing.T) {
	inner := &fakeEmbedder{result: domain.EmbeddingResult{Embedding: []float32{3}}}
	store := newFakeStore()
	emb := newTestEmbedder(inner, store)

	store.data[emb.cacheKey("query")] = []byte{1, 2, 3} // not a multiple of 4

	result, err := emb.Embed(context.Background(), "query")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("corrupt entry must fall through to the provider, calls=%d", inner.calls)
	}
	if len(result.Embedding) != 1 || result.Embedding[0] != 3 {
		t.Errorf("unexpected result %v", result.Embedding)
	}
}

func TestVectorCodec_RoundTrip(t *testing.T) {
	in := []float32{0, -0.5, 1.5, 1e6}
	out, err := bytesToVector(vectorToCacheBytes(in))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d vs %d", len(out), len(in))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("component %d: got %v, want %v", i, out[i], in[i])
		}
	}
}
