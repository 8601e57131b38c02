package lookalike

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kailas-cloud/lookalike/internal/domain"
	"github.com/kailas-cloud/lookalike/internal/domain/filter"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/usecase/session"
	"github.com/kailas-cloud/lookalike/internal/usecase/view"
)

// View is the renderable state of a session.
type View = view.Model

// Card is one product in a View.
type Card = view.Card

// HistoryItem summarizes a past search in a View.
type HistoryItem = view.HistoryItem

// SortKey selects the product ordering of a View.
type SortKey = filter.SortKey

// Sort keys.
const (
	SortBySimilarity = filter.BySimilarity
	SortByPrice      = filter.ByPrice
)

// Session statuses as reported in View.Status.
const (
	StatusIdle      = string(session.Idle)
	StatusSearching = string(session.Searching)
	StatusError     = string(session.Failed)
	StatusReady     = string(session.Ready)
)

// Session is one search lifecycle with its own history and filter settings.
// All methods are safe for concurrent use.
type Session struct {
	ctrl      *session.Controller
	presenter *view.Presenter
	obs       *observer
	overlay   *view.Overlay

	mu        sync.Mutex
	listeners []func(View)
}

func newSession(ctrl *session.Controller, presenter *view.Presenter, obs *observer) *Session {
	s := &Session{
		ctrl:      ctrl,
		presenter: presenter,
		obs:       obs,
		overlay:   view.NewOverlay(),
	}
	ctrl.Subscribe(session.ObserverFunc(s.onEvent))
	return s
}

// OnChange registers fn to receive a fresh View after every state change and notice.
// fn runs synchronously on the goroutine that caused the change. It must not block
// or issue commands on the same session.
func (s *Session) OnChange(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

// SearchFile submits image bytes. mimeType must be JPEG, PNG or WebP; files over 5 MB are rejected.
func (s *Session) SearchFile(ctx context.Context, filename string, data []byte, mimeType string) error {
	return s.dispatch(ctx, "search", session.Search{Query: query.NewFile(filename, data, mimeType)})
}

// SearchURL submits an image address for the oracle to fetch.
func (s *Session) SearchURL(ctx context.Context, imageURL string) error {
	return s.dispatch(ctx, "search", session.Search{Query: query.NewURL(imageURL)})
}

// FindSimilar searches again using a catalog product's own image.
// When nothing matches, the current result stays and View.Notice explains why.
func (s *Session) FindSimilar(ctx context.Context, productID string) error {
	return s.dispatch(ctx, "find_similar", session.FindSimilar{ProductID: productID})
}

// Reset abandons any running search and returns to idle. History and filters are kept.
func (s *Session) Reset() {
	s.ctrl.Reset()
}

// Await blocks until no search is running or ctx is done.
func (s *Session) Await(ctx context.Context) error {
	if err := s.ctrl.Await(ctx); err != nil {
		return fmt.Errorf("await: %w", err)
	}
	return nil
}

// View renders the current state under the session's filter settings.
func (s *Session) View() View {
	return s.overlay.Render(s.presenter, s.ctrl.Snapshot())
}

// SetCategory shows only products of category; "all" clears the filter.
func (s *Session) SetCategory(category string) {
	_, _ = s.overlay.UpdateFilters(func(f filter.Settings) (filter.Settings, error) {
		return f.WithCategory(category), nil
	})
}

// SetMinSimilarity hides products below v percent. Values are clamped to 0..100.
func (s *Session) SetMinSimilarity(v int) {
	_, _ = s.overlay.UpdateFilters(func(f filter.Settings) (filter.Settings, error) {
		return f.WithMinSimilarity(v), nil
	})
}

// SetSort changes the product ordering. Unknown keys are rejected with ErrValidation.
func (s *Session) SetSort(key SortKey) error {
	_, err := s.overlay.UpdateFilters(func(f filter.Settings) (filter.Settings, error) {
		return f.WithSortKey(key)
	})
	if err != nil {
		return fmt.Errorf("set sort: %w", domain.NewValidation(err.Error()))
	}
	return nil
}

// ResetFilters restores category "all", no minimum similarity and similarity order.
func (s *Session) ResetFilters() {
	s.overlay.ResetFilters()
}

// Close abandons any running search. Later commands return ErrClosed.
func (s *Session) Close() {
	s.ctrl.Close()
}

func (s *Session) dispatch(ctx context.Context, op string, cmd session.Command) error {
	start := time.Now()
	if err := s.ctrl.Dispatch(ctx, cmd); err != nil {
		s.obs.observe(op, start, err)
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// onEvent runs inside the controller's notification path.
func (s *Session) onEvent(ev session.Event) {
	s.overlay.Observe(ev)

	s.mu.Lock()
	listeners := append([]func(View){}, s.listeners...)
	s.mu.Unlock()

	var v View
	if len(listeners) > 0 {
		v = s.overlay.Render(s.presenter, ev.Snapshot)
	}

	if ev.Kind == session.EventNotice {
		s.obs.notice(ev.Notice)
	}
	for _, fn := range listeners {
		fn(v)
	}
}
