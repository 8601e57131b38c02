package session

import (
	"github.com/kailas-cloud/lookalike/internal/domain/history"
	"github.com/kailas-cloud/lookalike/internal/domain/product"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
)

// Status is the lifecycle phase of a session.
type Status string

// Session statuses.
const (
	Idle      Status = "idle"
	Searching Status = "searching"
	Failed    Status = "error"
	Ready     Status = "ready"
)

// State is the current phase plus its payload: Message for Failed, Result for Ready.
type State struct {
	Status  Status
	Message string
	Result  result.Result
}

// Products returns the current result set; empty unless Ready.
func (s State) Products() []product.Product {
	if s.Status != Ready {
		return []product.Product{}
	}
	return s.Result.Products()
}

// Snapshot is an immutable copy of everything the controller owns.
type Snapshot struct {
	State   State
	History []history.Entry
}

// EventKind distinguishes transitions from transient notices.
type EventKind string

// Event kinds.
const (
	// EventTransition is emitted after every state change.
	EventTransition EventKind = "transition"
	// EventNotice is a transient user message that leaves the displayed state alone.
	EventNotice EventKind = "notice"
)

// Event is delivered to observers.
type Event struct {
	Kind     EventKind
	Snapshot Snapshot
	Notice   string
}
