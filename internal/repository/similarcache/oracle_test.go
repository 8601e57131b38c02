package similarcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lookalike/internal/db"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
)

func TestFindSimilar_CacheMiss(t *testing.T) {
	inner := &mockOracle{ranking: testRanking(t)}
	co, ms := newTestCachedOracle(t, inner)

	var setKey string
	var setTTL time.Duration
	ms.setFn = func(_ context.Context, key string, _ []byte, ttl time.Duration) error {
		setKey, setTTL = key, ttl
		return nil
	}

	ranking, err := co.FindSimilar(context.Background(), "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ranking.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(ranking.Products))
	}
	if inner.similarCalls != 1 {
		t.Errorf("expected 1 inner call, got %d", inner.similarCalls)
	}
	if setKey != "lookalike:similar:7" {
		t.Errorf("unexpected cache key: %s", setKey)
	}
	if setTTL != time.Minute {
		t.Errorf("unexpected ttl: %v", setTTL)
	}
}

func TestFindSimilar_CacheHit(t *testing.T) {
	cached, err := encodeRanking(testRanking(t))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	inner := &mockOracle{err: errors.New("must not be called")}
	co, ms := newTestCachedOracle(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return cached, nil
	}

	ranking, err := co.FindSimilar(context.Background(), "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.similarCalls != 0 {
		t.Errorf("expected no inner call, got %d", inner.similarCalls)
	}
	if ranking.ReferenceImage != "images/target.jpg" {
		t.Errorf("reference image = %q", ranking.ReferenceImage)
	}
	p := ranking.Products[0]
	if p.ID() != "1" || p.Subcategory() != "sneakers" || p.Price() != 59.9 || p.Similarity() != 91 {
		t.Errorf("unexpected cached product: %+v", p)
	}
}

func TestFindSimilar_InnerErrorNotCached(t *testing.T) {
	inner := &mockOracle{err: errors.New("oracle down")}
	co, ms := newTestCachedOracle(t, inner)

	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		t.Error("failed response must not be cached")
		return nil
	}

	if _, err := co.FindSimilar(context.Background(), "7"); err == nil {
		t.Fatal("expected error")
	}
}

func TestFindSimilar_StoreErrorsFallThrough(t *testing.T) {
	inner := &mockOracle{ranking: testRanking(t)}
	co, ms := newTestCachedOracle(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return nil, errors.New("connection refused")
	}
	ms.setFn = func(_ context.Context, _ string, _ []byte, _ time.Duration) error {
		return errors.New("connection refused")
	}

	ranking, err := co.FindSimilar(context.Background(), "7")
	if err != nil {
		t.Fatalf("store failures must not fail the request: %v", err)
	}
	if len(ranking.Products) != 2 {
		t.Errorf("expected 2 products, got %d", len(ranking.Products))
	}
}

func TestFindSimilar_CorruptEntryIsMiss(t *testing.T) {
	inner := &mockOracle{ranking: testRanking(t)}
	co, ms := newTestCachedOracle(t, inner)

	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		return []byte(`{"products":[{"id":"","price":-1}]}`), nil
	}

	if _, err := co.FindSimilar(context.Background(), "7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.similarCalls != 1 {
		t.Errorf("corrupt entry should fall back to the oracle")
	}
}

func TestSearch_Bypasses(t *testing.T) {
	inner := &mockOracle{ranking: testRanking(t)}
	co, ms := newTestCachedOracle(t, inner)
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		t.Error("image search must not read the cache")
		return nil, db.ErrKeyNotFound
	}

	if _, err := co.Search(context.Background(), query.NewURL("https://x/y.jpg")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.searchCalls != 1 {
		t.Errorf("expected 1 search call, got %d", inner.searchCalls)
	}
}

func TestCacheCounter(t *testing.T) {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_cache_total"}, []string{"result"})
	inner := &mockOracle{ranking: testRanking(t)}
	ms := &mockKVStore{}
	co := New(inner, ms, 0, counter, zap.NewNop())

	var stored []byte
	ms.setFn = func(_ context.Context, _ string, v []byte, _ time.Duration) error {
		stored = v
		return nil
	}
	ms.getFn = func(_ context.Context, _ string) ([]byte, error) {
		if stored == nil {
			return nil, db.ErrKeyNotFound
		}
		return stored, nil
	}

	for range 3 {
		if _, err := co.FindSimilar(context.Background(), "7"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if co.ttl != DefaultTTL {
		t.Errorf("ttl = %v, want default", co.ttl)
	}
}
