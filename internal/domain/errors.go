package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation signals a query rejected before dispatch (bad file type/size, missing input).
	ErrValidation = errors.New("validation failed")
	// ErrTransport signals that the ranking oracle could not be reached or did not answer in time.
	ErrTransport = errors.New("oracle unreachable")
	// ErrOracle signals a business failure reported by the ranking oracle.
	ErrOracle = errors.New("oracle error")
	// ErrBusy signals a search submitted while another one is in flight.
	ErrBusy = errors.New("search already in progress")
	// ErrNoResults signals a find-similar request that matched nothing.
	ErrNoResults = errors.New("no similar products found")
	// ErrClosed signals a command sent to a torn-down session.
	ErrClosed = errors.New("session closed")
	// ErrNotFound signals a missing resource (session, cache entry).
	ErrNotFound = errors.New("not found")
	// ErrProductNotFound signals an unknown product id on the oracle side.
	ErrProductNotFound = errors.New("product not found")
	// ErrSessionLimit signals that the workspace cannot hold another session.
	ErrSessionLimit = errors.New("session limit reached")
)

// Session-facing messages, shown verbatim to the user.
const (
	MsgNoResponse     = "No response from server. Please check if the backend is running."
	MsgServerError    = "Server error occurred"
	MsgSearchFailed   = "Search failed"
	MsgSimilarFailed  = "Failed to find similar products"
	MsgNoSimilarFound = "No similar products found"
)

// ValidationError carries the user-facing reason a query was rejected.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidation creates a validation error with a user-facing message.
func NewValidation(msg string) error {
	return &ValidationError{Message: msg}
}

// OracleError wraps ErrOracle with the HTTP status and the oracle-provided message.
// Message is empty when the oracle sent none.
type OracleError struct {
	Status  int
	Message string
}

func (e *OracleError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", ErrOracle.Error(), e.Status)
	}
	return fmt.Sprintf("%s: status %d: %s", ErrOracle.Error(), e.Status, e.Message)
}

func (e *OracleError) Unwrap() error { return ErrOracle }

// UserMessage maps any search failure to the single message a session shows.
// fallback is used for oracle failures that carry no message of their own.
func UserMessage(err error, fallback string) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var oe *OracleError
	if errors.As(err, &oe) {
		if oe.Message != "" {
			return oe.Message
		}
		return fallback
	}
	if errors.Is(err, ErrTransport) {
		return MsgNoResponse
	}
	if errors.Is(err, ErrOracle) {
		return fallback
	}
	return "Error: " + err.Error()
}
