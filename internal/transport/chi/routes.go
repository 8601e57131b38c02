package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/oapi-codegen/runtime"

	logpkg "github.com/kailas-cloud/lookalike/internal/logger"
)

// SearchParams are the query parameters of the search endpoints.
type SearchParams struct {
	// Wait blocks until the oracle answers instead of returning 202 immediately.
	Wait *bool `form:"wait,omitempty" json:"wait,omitempty"`
}

// ParamErrorHandler writes the response for an unparsable path or query parameter.
type ParamErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// RouterOptions configures Handler.
type RouterOptions struct {
	BaseRouter       chi.Router
	ErrorHandlerFunc ParamErrorHandler
}

type paramWrapper struct {
	server       *Server
	handleErrors ParamErrorHandler
}

// Handler mounts the gateway routes on opts.BaseRouter (a new router when nil).
func Handler(s *Server, opts RouterOptions) http.Handler {
	r := opts.BaseRouter
	if r == nil {
		r = chi.NewRouter()
	}
	if opts.ErrorHandlerFunc == nil {
		opts.ErrorHandlerFunc = func(w http.ResponseWriter, _ *http.Request, err error) {
			writeError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		}
	}
	pw := &paramWrapper{server: s, handleErrors: opts.ErrorHandlerFunc}

	r.Post("/sessions", s.CreateSession)
	r.Route("/sessions/{sessionId}", func(r chi.Router) {
		r.Get("/", pw.withSession(s.GetSession))
		r.Delete("/", pw.withSession(s.DeleteSession))
		r.Post("/search", pw.Search)
		r.Post("/similar/{productId}", pw.FindSimilar)
		r.Post("/reset", pw.withSession(s.ResetSession))
		r.Get("/filters", pw.withSession(s.GetFilters))
		r.Patch("/filters", pw.withSession(s.PatchFilters))
		r.Delete("/filters", pw.withSession(s.ResetFilters))
		r.Get("/history", pw.withSession(s.GetHistory))
	})
	r.Get("/categories", s.ListCategories)
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	return r
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, sessionID string)

func (pw *paramWrapper) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID, err := bindSessionID(r)
		if err != nil {
			pw.handleErrors(w, r, err)
			return
		}
		h(w, withSessionLogger(r, sessionID), sessionID)
	}
}

// withSessionLogger tags the request logger with the session id.
func withSessionLogger(r *http.Request, sessionID string) *http.Request {
	return r.WithContext(logpkg.WithSession(r.Context(), sessionID))
}

// Search binds parameters for POST /sessions/{sessionId}/search.
func (pw *paramWrapper) Search(w http.ResponseWriter, r *http.Request) {
	sessionID, err := bindSessionID(r)
	if err != nil {
		pw.handleErrors(w, r, err)
		return
	}
	params, err := bindSearchParams(r)
	if err != nil {
		pw.handleErrors(w, r, err)
		return
	}
	pw.server.Search(w, withSessionLogger(r, sessionID), sessionID, params)
}

// FindSimilar binds parameters for POST /sessions/{sessionId}/similar/{productId}.
func (pw *paramWrapper) FindSimilar(w http.ResponseWriter, r *http.Request) {
	sessionID, err := bindSessionID(r)
	if err != nil {
		pw.handleErrors(w, r, err)
		return
	}

	var productID string
	err = runtime.BindStyledParameterWithOptions("simple", "productId", chi.URLParam(r, "productId"), &productID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		pw.handleErrors(w, r, &InvalidParamFormatError{ParamName: "productId", Err: err})
		return
	}

	params, err := bindSearchParams(r)
	if err != nil {
		pw.handleErrors(w, r, err)
		return
	}
	pw.server.FindSimilar(w, withSessionLogger(r, sessionID), sessionID, productID, params)
}

func bindSessionID(r *http.Request) (string, error) {
	var sessionID string
	err := runtime.BindStyledParameterWithOptions("simple", "sessionId", chi.URLParam(r, "sessionId"), &sessionID,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		return "", &InvalidParamFormatError{ParamName: "sessionId", Err: err}
	}
	if err := uuid.Validate(sessionID); err != nil {
		return "", &InvalidParamFormatError{ParamName: "sessionId", Err: err}
	}
	return sessionID, nil
}

func bindSearchParams(r *http.Request) (SearchParams, error) {
	var params SearchParams
	if err := runtime.BindQueryParameter("form", true, false, "wait", r.URL.Query(), &params.Wait); err != nil {
		return SearchParams{}, &InvalidParamFormatError{ParamName: "wait", Err: err}
	}
	return params, nil
}

// InvalidParamFormatError reports a path or query parameter that failed to bind.
type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return "Invalid format for parameter " + e.ParamName + ": " + e.Err.Error()
}

func (e *InvalidParamFormatError) Unwrap() error { return e.Err }
