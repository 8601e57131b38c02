package lookalike

import "github.com/kailas-cloud/lookalike/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrValidation      = domain.ErrValidation
	ErrTransport       = domain.ErrTransport
	ErrOracle          = domain.ErrOracle
	ErrBusy            = domain.ErrBusy
	ErrClosed          = domain.ErrClosed
	ErrProductNotFound = domain.ErrProductNotFound
)
