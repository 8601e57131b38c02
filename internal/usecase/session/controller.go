package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookalike/internal/domain"
	"github.com/kailas-cloud/lookalike/internal/domain/history"
	"github.com/kailas-cloud/lookalike/internal/domain/product"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
	"github.com/kailas-cloud/lookalike/internal/metrics"
)

// DefaultTimeout bounds a single oracle call.
const DefaultTimeout = 60 * time.Second

// Controller owns one search session: its lifecycle state and bounded history.
// At most one oracle request is in flight; a submit while Searching fails with domain.ErrBusy.
type Controller struct {
	oracle  Oracle
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time

	// emitMu serializes "mutate + notify" so observers see transitions in order.
	emitMu sync.Mutex

	mu        sync.Mutex
	state     State
	history   history.History
	inflight  bool
	gen       uint64
	cancel    context.CancelFunc
	done      chan struct{}
	closed    bool
	observers []Observer
}

// New creates an idle controller.
func New(oracle Oracle, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		oracle:  oracle,
		logger:  logger,
		timeout: DefaultTimeout,
		now:     time.Now,
		state:   State{Status: Idle},
		history: history.New(domain.HistoryCapacity),
	}
}

// WithTimeout sets the per-request oracle timeout (non-positive keeps the default).
func (c *Controller) WithTimeout(d time.Duration) *Controller {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithClock overrides the time source used for result and history timestamps.
func (c *Controller) WithClock(now func() time.Time) *Controller {
	if now != nil {
		c.now = now
	}
	return c
}

// Subscribe registers an observer for all subsequent events.
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Snapshot returns a copy of the current state and history.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// StartSearch validates q and dispatches it to the oracle asynchronously.
// Invalid queries move the session to Failed without contacting the oracle.
func (c *Controller) StartSearch(ctx context.Context, q query.Query) error {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrClosed
	}
	if c.inflight {
		c.mu.Unlock()
		metrics.SessionSearchesTotal.WithLabelValues(string(q.Kind()), "busy").Inc()
		c.logger.Debug("Search rejected: request in flight", zap.String("kind", string(q.Kind())))
		return domain.ErrBusy
	}

	if err := q.Validate(); err != nil {
		c.state = State{Status: Failed, Message: domain.UserMessage(err, domain.MsgSearchFailed)}
		snap := c.snapshotLocked()
		observers := c.observersLocked()
		c.mu.Unlock()

		metrics.SessionSearchesTotal.WithLabelValues(string(q.Kind()), "rejected").Inc()
		c.logger.Info("Search rejected by validation",
			zap.String("kind", string(q.Kind())),
			zap.String("reason", snap.State.Message),
		)
		emit(observers, Event{Kind: EventTransition, Snapshot: snap})
		return err
	}

	prev := c.state
	c.gen++
	gen := c.gen
	// The request outlives the caller's context (e.g. an HTTP handler) but keeps its values.
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	done := make(chan struct{})
	c.inflight = true
	c.cancel = cancel
	c.done = done
	c.state = State{Status: Searching}
	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	c.logger.Info("Search started", zap.String("kind", string(q.Kind())), zap.Uint64("gen", gen))
	emit(observers, Event{Kind: EventTransition, Snapshot: snap})

	go c.run(reqCtx, cancel, done, gen, q, prev)
	return nil
}

// FindSimilarTo searches using a catalog product as the new reference image.
func (c *Controller) FindSimilarTo(ctx context.Context, productID string) error {
	return c.StartSearch(ctx, query.NewProductRef(productID))
}

// Reset returns to Idle from any state, dropping the current result and abandoning
// any in-flight request. History is kept.
func (c *Controller) Reset() {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.abandonLocked()
	c.state = State{Status: Idle}
	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	c.logger.Debug("Session reset")
	emit(observers, Event{Kind: EventTransition, Snapshot: snap})
}

// Await blocks until no request is in flight or ctx is done.
func (c *Controller) Await(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close tears the session down: the in-flight request is cancelled, observers are
// dropped and every later command fails with domain.ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.abandonLocked()
	c.closed = true
	c.observers = nil
}

func (c *Controller) run(
	ctx context.Context, cancel context.CancelFunc, done chan struct{},
	gen uint64, q query.Query, prev State,
) {
	defer close(done)
	defer cancel()

	start := time.Now()
	var (
		ranking result.Ranking
		err     error
	)
	if q.Kind() == query.ProductRef {
		ranking, err = c.oracle.FindSimilar(ctx, q.ProductID())
	} else {
		ranking, err = c.oracle.Search(ctx, q)
	}
	metrics.SessionSearchDuration.WithLabelValues(string(q.Kind())).Observe(time.Since(start).Seconds())

	c.complete(gen, q, prev, ranking, err)
}

// complete applies the outcome of request gen, unless it was superseded by Reset or Close.
func (c *Controller) complete(gen uint64, q query.Query, prev State, ranking result.Ranking, err error) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	kind := string(q.Kind())

	c.mu.Lock()
	if c.closed || !c.inflight || gen != c.gen {
		c.mu.Unlock()
		metrics.SessionSearchesTotal.WithLabelValues(kind, "discarded").Inc()
		c.logger.Debug("Discarding superseded search response", zap.Uint64("gen", gen))
		return
	}
	c.inflight = false
	c.cancel = nil
	c.done = nil

	var notice string
	switch {
	case err != nil:
		msg := domain.UserMessage(err, fallbackMessage(q.Kind(), err))
		c.state = State{Status: Failed, Message: msg}
		metrics.SessionSearchesTotal.WithLabelValues(kind, "error").Inc()
		c.logger.Warn("Search failed", zap.String("kind", kind), zap.String("message", msg), zap.Error(err))

	case q.Kind() == query.ProductRef && len(ranking.Products) == 0:
		// Soft failure: keep showing whatever was on screen before.
		c.state = prev
		notice = domain.MsgNoSimilarFound
		metrics.SessionSearchesTotal.WithLabelValues(kind, "soft_fail").Inc()
		c.logger.Info("Find similar returned no products", zap.String("product_id", q.ProductID()))

	default:
		now := c.now()
		uploaded := ranking.ReferenceImage
		if uploaded == "" {
			switch q.Kind() {
			case query.URL:
				uploaded = q.URI()
			case query.ProductRef:
				uploaded = c.productImageLocked(prev, q.ProductID())
			}
		}
		res := result.New(ranking.Products, uploaded, now, q.Kind())
		c.state = State{Status: Ready, Result: res}
		c.history = c.history.Prepend(history.Entry{Result: res, Timestamp: now})
		metrics.SessionSearchesTotal.WithLabelValues(kind, "ready").Inc()
		c.logger.Info("Search completed",
			zap.String("kind", kind),
			zap.Int("products", res.Len()),
			zap.Int("history", c.history.Len()),
		)
	}

	snap := c.snapshotLocked()
	observers := c.observersLocked()
	c.mu.Unlock()

	if notice != "" {
		emit(observers, Event{Kind: EventNotice, Snapshot: snap, Notice: notice})
	}
	emit(observers, Event{Kind: EventTransition, Snapshot: snap})
}

// abandonLocked drops the in-flight request, if any. Its late response is ignored.
func (c *Controller) abandonLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	c.inflight = false
	c.cancel = nil
	c.done = nil
}

// productImageLocked finds the image of a product the user re-anchored on: first in
// the result it was clicked from, then in history.
func (c *Controller) productImageLocked(prev State, productID string) string {
	if prev.Status == Ready {
		if img := imageOf(prev.Result.Products(), productID); img != "" {
			return img
		}
	}
	for _, e := range c.history.Entries() {
		if img := imageOf(e.Result.Products(), productID); img != "" {
			return img
		}
	}
	return ""
}

func imageOf(products []product.Product, productID string) string {
	for _, p := range products {
		if p.ID() == productID {
			return p.Image()
		}
	}
	return ""
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{State: c.state, History: c.history.Entries()}
}

func (c *Controller) observersLocked() []Observer {
	out := make([]Observer, len(c.observers))
	copy(out, c.observers)
	return out
}

func emit(observers []Observer, e Event) {
	for _, o := range observers {
		o.Notify(e)
	}
}

// fallbackMessage picks the message for oracle failures that carry none.
func fallbackMessage(kind query.Kind, err error) string {
	if kind == query.ProductRef {
		return domain.MsgSimilarFailed
	}
	var oe *domain.OracleError
	if errors.As(err, &oe) && oe.Status >= http.StatusOK && oe.Status < http.StatusMultipleChoices {
		return domain.MsgSearchFailed
	}
	return domain.MsgServerError
}
