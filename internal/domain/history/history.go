package history

import (
	"time"

	"github.com/kailas-cloud/lookalike/internal/domain"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
)

// Entry is one past search.
type Entry struct {
	Result    result.Result
	Timestamp time.Time
}

// History is a bounded, most-recent-first list of past searches.
// The zero value has capacity domain.HistoryCapacity.
type History struct {
	capacity int
	entries  []Entry
}

// New creates an empty history. Non-positive capacity falls back to domain.HistoryCapacity.
func New(capacity int) History {
	if capacity <= 0 {
		capacity = domain.HistoryCapacity
	}
	return History{capacity: capacity}
}

// Prepend returns a new history with e at the head, evicting the oldest entry
// when capacity would be exceeded. The receiver is not modified.
func (h History) Prepend(e Entry) History {
	capacity := h.Capacity()
	n := min(len(h.entries), capacity-1)

	entries := make([]Entry, 0, n+1)
	entries = append(entries, e)
	entries = append(entries, h.entries[:n]...)
	return History{capacity: capacity, entries: entries}
}

// Entries returns a copy of the entries, most recent first.
func (h History) Entries() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries.
func (h History) Len() int { return len(h.entries) }

// Capacity returns the maximum number of entries.
func (h History) Capacity() int {
	if h.capacity <= 0 {
		return domain.HistoryCapacity
	}
	return h.capacity
}
