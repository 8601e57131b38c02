// Package workspace owns the live search sessions of a gateway process.
// Each session pairs a controller with its filter settings and last notice.
package workspace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lookalike/internal/domain"
	"github.com/kailas-cloud/lookalike/internal/domain/filter"
	"github.com/kailas-cloud/lookalike/internal/domain/history"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/metrics"
	"github.com/kailas-cloud/lookalike/internal/usecase/session"
	"github.com/kailas-cloud/lookalike/internal/usecase/view"
)

// Defaults applied by New for zero config values.
const (
	DefaultIdleTTL     = 30 * time.Minute
	DefaultMaxSessions = 1000
)

// Config tunes session lifetime and capacity.
type Config struct {
	IdleTTL        time.Duration
	MaxSessions    int
	RequestTimeout time.Duration
}

// Info describes a live session.
type Info struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
}

type entry struct {
	id        string
	ctrl      *session.Controller
	overlay   *view.Overlay
	createdAt time.Time

	mu         sync.Mutex
	lastAccess time.Time
}

func (e *entry) touch(now time.Time) {
	e.mu.Lock()
	e.lastAccess = now
	e.mu.Unlock()
}

// Workspace is a registry of sessions keyed by random ids.
type Workspace struct {
	oracle    session.Oracle
	presenter Presenter
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

// New creates an empty workspace.
func New(oracle session.Oracle, presenter Presenter, cfg Config, logger *zap.Logger) *Workspace {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.MaxSessions <= 0 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Workspace{
		oracle:    oracle,
		presenter: presenter,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		sessions:  make(map[string]*entry),
	}
}

// WithClock overrides the time source used for idle tracking.
func (w *Workspace) WithClock(now func() time.Time) *Workspace {
	if now != nil {
		w.now = now
	}
	return w
}

// Create starts a new idle session with default filters.
func (w *Workspace) Create() (Info, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.sessions) >= w.cfg.MaxSessions {
		return Info{}, fmt.Errorf("create session: %w", domain.ErrSessionLimit)
	}

	now := w.now()
	id := uuid.NewString()
	e := &entry{
		id:         id,
		overlay:    view.NewOverlay(),
		createdAt:  now,
		lastAccess: now,
	}
	e.ctrl = session.New(w.oracle, w.logger.With(zap.String("session_id", id))).
		WithTimeout(w.cfg.RequestTimeout)
	e.ctrl.Subscribe(session.ObserverFunc(e.overlay.Observe))

	w.sessions[id] = e
	metrics.WorkspaceSessions.Set(float64(len(w.sessions)))
	w.logger.Debug("Session created", zap.String("session_id", id))

	return Info{ID: id, CreatedAt: now, LastAccess: now}, nil
}

// Get describes a live session.
func (w *Workspace) Get(id string) (Info, error) {
	e, err := w.lookup(id)
	if err != nil {
		return Info{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return Info{ID: e.id, CreatedAt: e.createdAt, LastAccess: e.lastAccess}, nil
}

// Delete tears a session down.
func (w *Workspace) Delete(id string) error {
	w.mu.Lock()
	e, ok := w.sessions[id]
	if ok {
		delete(w.sessions, id)
		metrics.WorkspaceSessions.Set(float64(len(w.sessions)))
	}
	w.mu.Unlock()

	if !ok {
		return fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	e.ctrl.Close()
	w.logger.Debug("Session deleted", zap.String("session_id", id))
	return nil
}

// Search submits an image query to a session.
func (w *Workspace) Search(ctx context.Context, id string, q query.Query) error {
	e, err := w.lookup(id)
	if err != nil {
		return err
	}
	if err := e.ctrl.Dispatch(ctx, session.Search{Query: q}); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	return nil
}

// FindSimilar re-anchors a session on a catalog product.
func (w *Workspace) FindSimilar(ctx context.Context, id, productID string) error {
	e, err := w.lookup(id)
	if err != nil {
		return err
	}
	if err := e.ctrl.Dispatch(ctx, session.FindSimilar{ProductID: productID}); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	return nil
}

// Reset returns a session to Idle; filters and history are kept.
func (w *Workspace) Reset(ctx context.Context, id string) error {
	e, err := w.lookup(id)
	if err != nil {
		return err
	}
	if err := e.ctrl.Dispatch(ctx, session.Reset{}); err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}
	return nil
}

// Await blocks until the session has no request in flight or ctx is done.
func (w *Workspace) Await(ctx context.Context, id string) error {
	e, err := w.lookup(id)
	if err != nil {
		return err
	}
	if err := e.ctrl.Await(ctx); err != nil {
		return fmt.Errorf("await session %s: %w", id, err)
	}
	return nil
}

// View renders the session with its current filters and pending notice.
func (w *Workspace) View(id string) (view.Model, error) {
	e, err := w.lookup(id)
	if err != nil {
		return view.Model{}, err
	}
	return e.overlay.Render(w.presenter, e.ctrl.Snapshot()), nil
}

// Filters returns the session's filter settings.
func (w *Workspace) Filters(id string) (filter.Settings, error) {
	e, err := w.lookup(id)
	if err != nil {
		return filter.Settings{}, err
	}
	return e.overlay.Filters(), nil
}

// UpdateFilters applies a partial update. An invalid sort key leaves settings untouched.
func (w *Workspace) UpdateFilters(id string, p FilterPatch) (filter.Settings, error) {
	e, err := w.lookup(id)
	if err != nil {
		return filter.Settings{}, err
	}
	s, err := e.overlay.UpdateFilters(p.apply)
	if err != nil {
		return s, fmt.Errorf("update filters: %w", domain.NewValidation(err.Error()))
	}
	return s, nil
}

// ResetFilters restores the default filter settings.
func (w *Workspace) ResetFilters(id string) (filter.Settings, error) {
	e, err := w.lookup(id)
	if err != nil {
		return filter.Settings{}, err
	}
	return e.overlay.ResetFilters(), nil
}

// History returns the session's recent searches, most recent first.
func (w *Workspace) History(id string) ([]history.Entry, error) {
	e, err := w.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.ctrl.Snapshot().History, nil
}

// Len returns the number of live sessions.
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sessions)
}

// Reap closes sessions idle for longer than the configured TTL and returns how many were removed.
// Sessions with a request in flight are kept until it completes.
func (w *Workspace) Reap() int {
	cutoff := w.now().Add(-w.cfg.IdleTTL)

	w.mu.Lock()
	var expired []*entry
	for id, e := range w.sessions {
		e.mu.Lock()
		idle := e.lastAccess.Before(cutoff)
		e.mu.Unlock()
		if idle && e.ctrl.Snapshot().State.Status != session.Searching {
			expired = append(expired, e)
			delete(w.sessions, id)
		}
	}
	metrics.WorkspaceSessions.Set(float64(len(w.sessions)))
	w.mu.Unlock()

	for _, e := range expired {
		e.ctrl.Close()
	}
	if len(expired) > 0 {
		w.logger.Info("Reaped idle sessions", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Run reaps idle sessions periodically until ctx is done.
func (w *Workspace) Run(ctx context.Context) {
	interval := w.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Reap()
		}
	}
}

// Close tears down every session.
func (w *Workspace) Close() {
	w.mu.Lock()
	sessions := w.sessions
	w.sessions = make(map[string]*entry)
	metrics.WorkspaceSessions.Set(0)
	w.mu.Unlock()

	for _, e := range sessions {
		e.ctrl.Close()
	}
}

func (w *Workspace) lookup(id string) (*entry, error) {
	w.mu.Lock()
	e, ok := w.sessions[id]
	w.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrNotFound)
	}
	e.touch(w.now())
	return e, nil
}
