// Package similarcache caches find-similar rankings keyed by product id.
package similarcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lookalike/internal/db"
	"github.com/kailas-cloud/lookalike/internal/domain"
	"github.com/kailas-cloud/lookalike/internal/domain/product"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
)

var cacheKeyPrefix = domain.KeyPrefix + "similar:"

// DefaultTTL is used when New receives a non-positive ttl.
const DefaultTTL = 10 * time.Minute

// oracle is the ranking oracle being decorated.
type oracle interface {
	Search(ctx context.Context, q query.Query) (result.Ranking, error)
	FindSimilar(ctx context.Context, productID string) (result.Ranking, error)
}

// store is the consumer interface for the cache backend (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CachedOracle serves repeated find-similar requests from a key-value store.
// Image searches always go to the inner oracle.
type CachedOracle struct {
	inner      oracle
	store      store
	ttl        time.Duration
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"), passed explicitly.
func New(
	inner oracle,
	s store,
	ttl time.Duration,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedOracle {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedOracle{
		inner:      inner,
		store:      s,
		ttl:        ttl,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Search delegates to the inner oracle.
func (c *CachedOracle) Search(ctx context.Context, q query.Query) (result.Ranking, error) {
	ranking, err := c.inner.Search(ctx, q)
	if err != nil {
		return result.Ranking{}, fmt.Errorf("search: %w", err)
	}
	return ranking, nil
}

// FindSimilar returns a cached ranking or asks the inner oracle and caches its answer.
// Failures are never cached.
func (c *CachedOracle) FindSimilar(ctx context.Context, productID string) (result.Ranking, error) {
	key := cacheKeyPrefix + productID

	if ranking, ok := c.getFromCache(ctx, key); ok {
		c.incCache("hit")
		return ranking, nil
	}

	c.incCache("miss")

	ranking, err := c.inner.FindSimilar(ctx, productID)
	if err != nil {
		return result.Ranking{}, fmt.Errorf("find similar: %w", err)
	}

	c.putToCache(ctx, key, ranking)
	return ranking, nil
}

func (c *CachedOracle) incCache(res string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(res).Inc()
	}
}

func (c *CachedOracle) getFromCache(ctx context.Context, key string) (result.Ranking, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached ranking", zap.String("key", key), zap.Error(err))
		}
		return result.Ranking{}, false
	}
	if len(data) == 0 {
		return result.Ranking{}, false
	}

	ranking, err := decodeRanking(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached ranking", zap.String("key", key), zap.Error(err))
		return result.Ranking{}, false
	}
	return ranking, true
}

func (c *CachedOracle) putToCache(ctx context.Context, key string, ranking result.Ranking) {
	data, err := encodeRanking(ranking)
	if err != nil {
		c.logger.Warn("Failed to encode ranking", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.SetWithTTL(ctx, key, data, c.ttl); err != nil {
		c.logger.Warn("Failed to cache ranking", zap.String("key", key), zap.Error(err))
	}
}

type cachedProduct struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Similarity  int     `json:"similarity"`
}

type cachedRanking struct {
	Products       []cachedProduct `json:"products"`
	ReferenceImage string          `json:"reference_image"`
}

func encodeRanking(r result.Ranking) ([]byte, error) {
	cr := cachedRanking{
		Products:       make([]cachedProduct, 0, len(r.Products)),
		ReferenceImage: r.ReferenceImage,
	}
	for i := range r.Products {
		p := &r.Products[i]
		cr.Products = append(cr.Products, cachedProduct{
			ID:          p.ID(),
			Name:        p.Name(),
			Category:    p.Category(),
			Subcategory: p.Subcategory(),
			Description: p.Description(),
			Price:       p.Price(),
			Image:       p.Image(),
			Similarity:  p.Similarity(),
		})
	}
	data, err := json.Marshal(cr)
	if err != nil {
		return nil, fmt.Errorf("marshal ranking: %w", err)
	}
	return data, nil
}

func decodeRanking(data []byte) (result.Ranking, error) {
	var cr cachedRanking
	if err := json.Unmarshal(data, &cr); err != nil {
		return result.Ranking{}, fmt.Errorf("unmarshal ranking: %w", err)
	}
	products := make([]product.Product, 0, len(cr.Products))
	for _, cp := range cr.Products {
		p, err := product.New(cp.ID, cp.Name, cp.Category, cp.Subcategory, cp.Description,
			cp.Price, cp.Image, cp.Similarity)
		if err != nil {
			return result.Ranking{}, fmt.Errorf("cached product %q: %w", cp.ID, err)
		}
		products = append(products, p)
	}
	return result.Ranking{Products: products, ReferenceImage: cr.ReferenceImage}, nil
}
