package lookalike

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	dbRedis "github.com/kailas-cloud/lookalike/internal/db/redis"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
	"github.com/kailas-cloud/lookalike/internal/metrics"
	"github.com/kailas-cloud/lookalike/internal/repository/similarcache"
	"github.com/kailas-cloud/lookalike/internal/transport/oracle"
	"github.com/kailas-cloud/lookalike/internal/usecase/session"
	"github.com/kailas-cloud/lookalike/internal/usecase/view"
)

const defaultReadinessTimeout = 10 * time.Second

// Client is the lookalike SDK entry point. It is safe for concurrent use and
// can host any number of sessions.
type Client struct {
	oracle    *oracle.Client
	ranker    session.Oracle
	presenter *view.Presenter
	store     *dbRedis.Store
	timeout   time.Duration
	obs       *observer
}

// New creates a Client. When a cache is configured, ctx bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &clientConfig{}
	for _, o := range opts {
		o.apply(cfg)
	}

	if strings.TrimSpace(cfg.oracleURL) == "" {
		return nil, errors.New("lookalike: oracle address required (use WithOracleURL)")
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	oc := oracle.NewClient(&oracle.Config{
		BaseURL:    cfg.oracleURL,
		RatePerSec: cfg.ratePerSec,
		Burst:      cfg.burst,
		HTTPClient: cfg.httpClient,
	})

	c := &Client{
		oracle:  oc,
		timeout: cfg.timeout,
		obs:     obs,
	}
	c.ranker = &instrumentedOracle{inner: oc, obs: obs}

	if len(cfg.cacheAddrs) > 0 {
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:    cfg.cacheAddrs,
			Password: cfg.cachePassword,
		})
		if err != nil {
			return nil, fmt.Errorf("lookalike: create cache store: %w", err)
		}
		if err := store.WaitForReady(ctx, defaultReadinessTimeout); err != nil {
			store.Close()
			return nil, fmt.Errorf("lookalike: cache not ready: %w", err)
		}
		c.store = store
		c.ranker = similarcache.New(c.ranker, store, cfg.cacheTTL, metrics.SimilarCacheTotal, nil)
	}

	publicURL := cfg.publicURL
	if publicURL == "" {
		publicURL = oc.BaseURL()
	}
	c.presenter = view.NewPresenter(publicURL)

	return c, nil
}

// NewSession starts an idle session with default filters.
func (c *Client) NewSession() *Session {
	return newSession(session.New(c.ranker, nil).WithTimeout(c.timeout), c.presenter, c.obs)
}

// Categories lists the catalog categories known to the oracle.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	start := time.Now()
	cats, err := c.oracle.Categories(ctx)
	c.obs.observe("categories", start, err)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	return cats, nil
}

// Ping checks that the oracle and, when configured, the cache answer.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.oracle.HealthCheck(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if c.store != nil {
		if err := c.store.Ping(ctx); err != nil {
			return fmt.Errorf("ping cache: %w", err)
		}
	}
	return nil
}

// ResolveImage turns an oracle image path into an absolute URL.
func (c *Client) ResolveImage(path string) string {
	return c.presenter.ResolveImage(path)
}

// Close releases the cache connection. Sessions must be closed separately.
func (c *Client) Close() {
	if c.store != nil {
		c.store.Close()
	}
}

// instrumentedOracle records every oracle round trip.
type instrumentedOracle struct {
	inner session.Oracle
	obs   *observer
}

func (o *instrumentedOracle) Search(ctx context.Context, q query.Query) (result.Ranking, error) {
	start := time.Now()
	r, err := o.inner.Search(ctx, q)
	o.obs.observe("search", start, err)
	return r, err //nolint:wrapcheck // decorator
}

func (o *instrumentedOracle) FindSimilar(ctx context.Context, productID string) (result.Ranking, error) {
	start := time.Now()
	r, err := o.inner.FindSimilar(ctx, productID)
	o.obs.observe("find_similar", start, err)
	return r, err //nolint:wrapcheck // decorator
}
