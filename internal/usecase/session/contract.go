package session

import (
	"context"

	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
)

// Oracle ranks catalog products by visual similarity.
// Failures are classified with domain.ErrTransport or *domain.OracleError.
type Oracle interface {
	// Search ranks products against an uploaded file or an image URL.
	Search(ctx context.Context, q query.Query) (result.Ranking, error)
	// FindSimilar ranks products against a catalog product's own image.
	FindSimilar(ctx context.Context, productID string) (result.Ranking, error)
}

// Observer receives every state transition and notice, synchronously and in order.
// Notify must not send commands to the same controller.
type Observer interface {
	Notify(e Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(e Event)

// Notify calls f(e).
func (f ObserverFunc) Notify(e Event) { f(e) }
