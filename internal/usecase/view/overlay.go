package view

import (
	"sync"

	"github.com/kailas-cloud/lookalike/internal/domain/filter"
	"github.com/kailas-cloud/lookalike/internal/usecase/session"
)

// Renderer turns a snapshot and filter settings into a Model.
type Renderer interface {
	Render(snap session.Snapshot, s filter.Settings) Model
}

// Overlay is the per-session state layered over a controller for display:
// the filter settings and the pending notice. It is safe for concurrent use.
type Overlay struct {
	mu      sync.Mutex
	filters filter.Settings
	notice  string
}

// NewOverlay creates an overlay with default filters and no notice.
func NewOverlay() *Overlay {
	return &Overlay{filters: filter.Default()}
}

// Observe records a notice, or clears it once a new search starts or the session resets.
// A notice survives the transition that restores the previous state.
func (o *Overlay) Observe(ev session.Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case ev.Kind == session.EventNotice:
		o.notice = ev.Notice
	case ev.Snapshot.State.Status == session.Searching, ev.Snapshot.State.Status == session.Idle:
		o.notice = ""
	}
}

// Notice returns the pending notice, if any.
func (o *Overlay) Notice() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.notice
}

// Filters returns the current filter settings.
func (o *Overlay) Filters() filter.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filters
}

// UpdateFilters applies fn atomically. When fn fails the settings are kept and
// returned unchanged alongside the error.
func (o *Overlay) UpdateFilters(fn func(filter.Settings) (filter.Settings, error)) (filter.Settings, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	next, err := fn(o.filters)
	if err != nil {
		return o.filters, err
	}
	o.filters = next
	return next, nil
}

// ResetFilters restores the defaults.
func (o *Overlay) ResetFilters() filter.Settings {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filters = filter.Default()
	return o.filters
}

// Render draws snap with the overlay's filters and notice.
func (o *Overlay) Render(r Renderer, snap session.Snapshot) Model {
	o.mu.Lock()
	settings, notice := o.filters, o.notice
	o.mu.Unlock()

	m := r.Render(snap, settings)
	m.Notice = notice
	return m
}
