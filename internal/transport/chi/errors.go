package chi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/lookalike/internal/domain"
	logpkg "github.com/kailas-cloud/lookalike/internal/logger"
)

// ErrorCode is the machine-readable code of an error response.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodePayloadTooLarge   ErrorCode = "payload_too_large"
	CodeSessionNotFound   ErrorCode = "session_not_found"
	CodeProductNotFound   ErrorCode = "product_not_found"
	CodeSearchInProgress  ErrorCode = "search_in_progress"
	CodeSessionClosed     ErrorCode = "session_closed"
	CodeSessionLimit      ErrorCode = "session_limit_reached"
	CodeOracleUnavailable ErrorCode = "oracle_unavailable"
	CodeOracleError       ErrorCode = "oracle_error"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrProductNotFound, http.StatusNotFound, CodeProductNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeSessionNotFound),
		sentinelHandler(domain.ErrBusy, http.StatusConflict, CodeSearchInProgress),
		sentinelHandler(domain.ErrClosed, http.StatusGone, CodeSessionClosed),
		sentinelHandler(domain.ErrSessionLimit, http.StatusServiceUnavailable, CodeSessionLimit),
		sentinelHandler(domain.ErrTransport, http.StatusBadGateway, CodeOracleUnavailable),
		sentinelHandler(domain.ErrOracle, http.StatusBadGateway, CodeOracleError),
	}
}

// safeDomainMessage returns a client-safe message without exposing internals.
// Validation and oracle messages are already user-facing.
func safeDomainMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var oe *domain.OracleError
	if errors.As(err, &oe) && oe.Message != "" {
		return oe.Message
	}
	if errors.Is(err, domain.ErrTransport) {
		return domain.MsgNoResponse
	}

	sentinels := []error{
		domain.ErrValidation,
		domain.ErrProductNotFound,
		domain.ErrNotFound,
		domain.ErrBusy,
		domain.ErrClosed,
		domain.ErrSessionLimit,
		domain.ErrOracle,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logpkg.FromContextOr(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
