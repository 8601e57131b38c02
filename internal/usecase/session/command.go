package session

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/lookalike/internal/domain/query"
)

// Command is a user intent routed into the controller.
type Command interface {
	command()
}

// Search submits an image (file or URL) query.
type Search struct {
	Query query.Query
}

// FindSimilar re-queries using a product from the current result as the reference image.
type FindSimilar struct {
	ProductID string
}

// Reset returns the session to idle, keeping history.
type Reset struct{}

func (Search) command()      {}
func (FindSimilar) command() {}
func (Reset) command()       {}

// Dispatch routes a command to the matching controller operation.
func (c *Controller) Dispatch(ctx context.Context, cmd Command) error {
	switch cmd := cmd.(type) {
	case Search:
		return c.StartSearch(ctx, cmd.Query)
	case FindSimilar:
		return c.FindSimilarTo(ctx, cmd.ProductID)
	case Reset:
		c.Reset()
		return nil
	default:
		return fmt.Errorf("unsupported command %T", cmd)
	}
}
