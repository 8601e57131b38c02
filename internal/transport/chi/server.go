package chi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/lookalike/internal/domain"
	"github.com/kailas-cloud/lookalike/internal/domain/filter"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	logpkg "github.com/kailas-cloud/lookalike/internal/logger"
	healthuc "github.com/kailas-cloud/lookalike/internal/usecase/health"
	"github.com/kailas-cloud/lookalike/internal/usecase/view"
	"github.com/kailas-cloud/lookalike/internal/usecase/workspace"
	"github.com/kailas-cloud/lookalike/internal/version"
)

// maxUploadBytes bounds a search request body: the image limit plus multipart overhead.
// Files between the image limit and this bound reach the query validator and get its message.
const maxUploadBytes = domain.MaxImageBytes + 1<<20

// CategoryLister lists catalog categories.
type CategoryLister interface {
	Categories(ctx context.Context) ([]string, error)
}

// Server serves the session gateway API.
type Server struct {
	sessions      *workspace.Workspace
	categories    CategoryLister
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	sessions *workspace.Workspace,
	categories CategoryLister,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	return &Server{
		sessions:      sessions,
		categories:    categories,
		health:        health,
		logger:        logger,
		errorHandlers: defaultErrorHandlers(),
	}
}

// SearchURLRequest is the JSON body of an image URL search.
type SearchURLRequest struct {
	ImageURL string `json:"image_url"`
}

// PatchFiltersRequest is a partial filter update.
type PatchFiltersRequest struct {
	Category      *string `json:"category,omitempty"`
	MinSimilarity *int    `json:"min_similarity,omitempty"`
	SortBy        *string `json:"sort_by,omitempty"`
}

// HistoryResponse lists recent searches, most recent first.
type HistoryResponse struct {
	Items []view.HistoryItem `json:"items"`
}

// CategoriesResponse lists catalog categories.
type CategoriesResponse struct {
	Categories []string `json:"categories"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// CreateSession handles POST /sessions.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.sessions.Create()
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	logpkg.FromContextOr(r.Context(), s.logger).Debug("Session created", zap.String("session_id", info.ID))
	writeJSON(w, http.StatusCreated, info)
}

// GetSession handles GET /sessions/{sessionId}.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	s.writeView(w, r, http.StatusOK, sessionID)
}

// DeleteSession handles DELETE /sessions/{sessionId}.
func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.Delete(sessionID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Search handles POST /sessions/{sessionId}/search.
// A multipart body carries an "image" file (or an "imageUrl" field); a JSON body carries image_url.
func (s *Server) Search(w http.ResponseWriter, r *http.Request, sessionID string, params SearchParams) {
	q, ok := s.decodeSearchQuery(w, r, sessionID)
	if !ok {
		return
	}

	if err := s.sessions.Search(r.Context(), sessionID, q); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.respondAfterDispatch(w, r, sessionID, params.Wait)
}

// FindSimilar handles POST /sessions/{sessionId}/similar/{productId}.
func (s *Server) FindSimilar(
	w http.ResponseWriter,
	r *http.Request,
	sessionID string,
	productID string,
	params SearchParams,
) {
	if err := s.sessions.FindSimilar(r.Context(), sessionID, productID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.respondAfterDispatch(w, r, sessionID, params.Wait)
}

// ResetSession handles POST /sessions/{sessionId}/reset.
func (s *Server) ResetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := s.sessions.Reset(r.Context(), sessionID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	s.writeView(w, r, http.StatusOK, sessionID)
}

// GetFilters handles GET /sessions/{sessionId}/filters.
func (s *Server) GetFilters(w http.ResponseWriter, r *http.Request, sessionID string) {
	settings, err := s.sessions.Filters(sessionID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filtersToView(settings))
}

// PatchFilters handles PATCH /sessions/{sessionId}/filters.
func (s *Server) PatchFilters(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req PatchFiltersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	patch := workspace.FilterPatch{Category: req.Category, MinSimilarity: req.MinSimilarity}
	if req.SortBy != nil {
		key := filter.SortKey(*req.SortBy)
		patch.SortBy = &key
	}

	settings, err := s.sessions.UpdateFilters(sessionID, patch)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filtersToView(settings))
}

// ResetFilters handles DELETE /sessions/{sessionId}/filters.
func (s *Server) ResetFilters(w http.ResponseWriter, r *http.Request, sessionID string) {
	settings, err := s.sessions.ResetFilters(sessionID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, filtersToView(settings))
}

// GetHistory handles GET /sessions/{sessionId}/history.
func (s *Server) GetHistory(w http.ResponseWriter, r *http.Request, sessionID string) {
	m, err := s.sessions.View(sessionID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Items: m.History})
}

// ListCategories handles GET /categories.
func (s *Server) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.Categories(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	writeJSON(w, http.StatusOK, CategoriesResponse{Categories: cats})
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status:  string(report.Status),
		Version: version.Version,
		Checks:  checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// respondAfterDispatch answers 202 with the searching view, or waits for the
// outcome when wait=true and answers 200.
func (s *Server) respondAfterDispatch(w http.ResponseWriter, r *http.Request, sessionID string, wait *bool) {
	if wait == nil || !*wait {
		s.writeView(w, r, http.StatusAccepted, sessionID)
		return
	}
	if err := s.sessions.Await(r.Context(), sessionID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.handleDomainError(w, r, err)
			return
		}
		// Client gave up; report whatever state the session is in.
		s.writeView(w, r, http.StatusAccepted, sessionID)
		return
	}
	s.writeView(w, r, http.StatusOK, sessionID)
}

func (s *Server) writeView(w http.ResponseWriter, r *http.Request, status int, sessionID string) {
	m, err := s.sessions.View(sessionID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, status, m)
}

// decodeSearchQuery builds a query from a multipart or JSON body. It writes the
// error response itself and reports false when the body is unusable. An oversize
// upload is still recorded on the session as a rejected file search.
func (s *Server) decodeSearchQuery(w http.ResponseWriter, r *http.Request, sessionID string) (query.Query, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req SearchURLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
			return query.Query{}, false
		}
		return query.NewURL(req.ImageURL), true
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rejected := query.NewRejected(query.File, query.MsgTooLarge)
			if err := s.sessions.Search(r.Context(), sessionID, rejected); err != nil &&
				!errors.Is(err, domain.ErrValidation) {
				s.handleDomainError(w, r, err)
				return query.Query{}, false
			}
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge, query.MsgTooLarge)
			return query.Query{}, false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart body: "+err.Error())
		return query.Query{}, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, hdr, err := r.FormFile("image")
	if err != nil {
		// No file: fall back to a URL field; an empty one fails validation with the file message.
		if uri := r.FormValue("imageUrl"); uri != "" {
			return query.NewURL(uri), true
		}
		return query.NewFile("", nil, ""), true
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Failed to read image: "+err.Error())
		return query.Query{}, false
	}

	mimeType := hdr.Header.Get("Content-Type")
	if mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream") {
		mimeType = http.DetectContentType(data)
	}
	return query.NewFile(hdr.Filename, data, mimeType), true
}

func filtersToView(s filter.Settings) view.Filters {
	return view.Filters{
		Category:      s.Category(),
		MinSimilarity: s.MinSimilarity(),
		SortBy:        string(s.SortKey()),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}
