package similarcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookalike/internal/db"
	"github.com/kailas-cloud/lookalike/internal/domain/product"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
)

type mockOracle struct {
	ranking      result.Ranking
	err          error
	similarCalls int
	searchCalls  int
}

func (m *mockOracle) Search(_ context.Context, _ query.Query) (result.Ranking, error) {
	m.searchCalls++
	return m.ranking, m.err
}

func (m *mockOracle) FindSimilar(_ context.Context, _ string) (result.Ranking, error) {
	m.similarCalls++
	return m.ranking, m.err
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	getFn func(ctx context.Context, key string) ([]byte, error)
	setFn func(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

func (m *mockKVStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockKVStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func newTestCachedOracle(t *testing.T, inner *mockOracle) (*CachedOracle, *mockKVStore) {
	t.Helper()
	ms := &mockKVStore{}
	co := New(inner, ms, time.Minute, nil, zap.NewNop())
	return co, ms
}

func testRanking(t *testing.T) result.Ranking {
	t.Helper()
	a, err := product.New("1", "Runner", "shoes", "sneakers", "d", 59.9, "images/1.jpg", 91)
	if err != nil {
		t.Fatalf("product.New: %v", err)
	}
	b, err := product.New("2", "Tote", "bags", "", "d", 20, "images/2.jpg", 40)
	if err != nil {
		t.Fatalf("product.New: %v", err)
	}
	return result.Ranking{Products: []product.Product{a, b}, ReferenceImage: "images/target.jpg"}
}
