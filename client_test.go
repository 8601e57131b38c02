package lookalike

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeOracle serves the ranking oracle API from fixed data.
type fakeOracle struct {
	mu          sync.Mutex
	similar     []map[string]any
	gate        chan struct{}
	searchCalls int
}

func newFakeOracle(t *testing.T) (*fakeOracle, *httptest.Server) {
	t.Helper()
	f := &fakeOracle{
		similar: []map[string]any{
			{"id": 9, "name": "Loafer", "category": "shoes", "description": "d", "price": 40, "image": "images/9.jpg", "similarity": 91.2},
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searchCalls++
		gate := f.gate
		f.mu.Unlock()
		if gate != nil {
			<-gate
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("imageUrl") == "" {
			if _, _, err := r.FormFile("image"); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"success":false,"message":"No image provided"}`))
				return
			}
		}
		writeBody(w, map[string]any{
			"success":       true,
			"uploadedImage": "uploads/q.jpg",
			"results": []map[string]any{
				{"id": "1", "name": "Sneaker", "category": "shoes", "description": "d", "price": 80, "image": "images/1.jpg", "similarity": 82.4},
				{"id": "2", "name": "Tote", "category": "bags", "description": "d", "price": 30, "image": "https://cdn.test/2.jpg", "similarity": 45},
				{"id": "3", "name": "Boot", "category": "shoes", "description": "d", "price": 60, "image": "/images/3.jpg", "similarity": 64.6},
			},
		})
	})
	mux.HandleFunc("GET /api/products/{id}/similar", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"success":false,"message":"Product not found"}`))
			return
		}
		f.mu.Lock()
		results := f.similar
		f.mu.Unlock()
		writeBody(w, map[string]any{
			"success":       true,
			"results":       results,
			"targetProduct": map[string]any{"id": r.PathValue("id"), "name": "T", "category": "shoes", "description": "d", "price": 1, "image": "images/target.jpg"},
		})
	})
	mux.HandleFunc("GET /api/categories", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, map[string]any{"success": true, "categories": []string{"bags", "shoes"}})
	})
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, map[string]any{"status": "ok"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, opts ...Option) (*Client, *fakeOracle) {
	t.Helper()
	f, srv := newFakeOracle(t)
	c, err := New(context.Background(), append([]Option{WithOracleURL(srv.URL)}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(c.Close)
	return c, f
}

func awaitSession(t *testing.T, s *Session) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Await(ctx); err != nil {
		t.Fatalf("Await: %v", err)
	}
}

func TestNew_NoOracleURL(t *testing.T) {
	if _, err := New(context.Background()); err == nil {
		t.Fatal("expected error when no oracle address provided")
	}
}

func TestSession_SearchURL(t *testing.T) {
	c, _ := newTestClient(t)
	s := c.NewSession()
	defer s.Close()

	if v := s.View(); v.Status != StatusIdle {
		t.Fatalf("initial status = %q", v.Status)
	}
	if err := s.SearchURL(context.Background(), "https://example.com/q.jpg"); err != nil {
		t.Fatalf("SearchURL: %v", err)
	}
	awaitSession(t, s)

	v := s.View()
	if v.Status != StatusReady {
		t.Fatalf("status = %q (%s)", v.Status, v.Message)
	}
	if v.Count != 3 {
		t.Fatalf("count = %d, want 3", v.Count)
	}
	if v.Products[0].ID != "1" || v.Products[1].ID != "3" || v.Products[2].ID != "2" {
		t.Errorf("order = %s,%s,%s; want 1,3,2", v.Products[0].ID, v.Products[1].ID, v.Products[2].ID)
	}
	if v.Products[1].Similarity != 65 {
		t.Errorf("similarity = %d, want 65 (rounded)", v.Products[1].Similarity)
	}
	if !strings.HasSuffix(v.UploadedImage, "/uploads/q.jpg") {
		t.Errorf("uploaded image = %q", v.UploadedImage)
	}
	if v.Products[2].Image != "https://cdn.test/2.jpg" {
		t.Errorf("absolute image rewritten: %q", v.Products[2].Image)
	}
	if len(v.History) != 1 || v.History[0].Source != "url" {
		t.Errorf("history = %+v", v.History)
	}
}

func TestSession_SearchFileValidation(t *testing.T) {
	c, f := newTestClient(t)
	s := c.NewSession()
	defer s.Close()

	err := s.SearchFile(context.Background(), "a.gif", []byte("GIF89a"), "image/gif")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	v := s.View()
	if v.Status != StatusError || v.Message != "Only JPEG, PNG, and WebP images are supported" {
		t.Errorf("status/message = %q/%q", v.Status, v.Message)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.searchCalls != 0 {
		t.Errorf("oracle called %d times for an invalid query", f.searchCalls)
	}
}

func TestSession_Busy(t *testing.T) {
	c, f := newTestClient(t)
	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	s := c.NewSession()
	defer s.Close()

	if err := s.SearchURL(context.Background(), "https://example.com/a.jpg"); err != nil {
		t.Fatalf("first search: %v", err)
	}
	if err := s.SearchURL(context.Background(), "https://example.com/b.jpg"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second search err = %v, want ErrBusy", err)
	}
	if v := s.View(); v.Status != StatusSearching || !v.Loading {
		t.Errorf("status = %q loading=%v", v.Status, v.Loading)
	}
	close(gate)
	awaitSession(t, s)
	if v := s.View(); v.Status != StatusReady {
		t.Errorf("status after completion = %q", v.Status)
	}
}

func TestSession_FiltersPersistAcrossSearches(t *testing.T) {
	c, _ := newTestClient(t)
	s := c.NewSession()
	defer s.Close()

	s.SetCategory("shoes")
	s.SetMinSimilarity(150)
	if err := s.SetSort(SortByPrice); err != nil {
		t.Fatalf("SetSort: %v", err)
	}
	if err := s.SetSort("name"); !errors.Is(err, ErrValidation) {
		t.Errorf("SetSort(name) err = %v, want ErrValidation", err)
	}

	_ = s.SearchURL(context.Background(), "https://example.com/q.jpg")
	awaitSession(t, s)

	v := s.View()
	if v.Filters.MinSimilarity != 100 || v.Filters.SortBy != "price" || v.Filters.Category != "shoes" {
		t.Errorf("filters = %+v", v.Filters)
	}
	if v.Count != 0 || v.Total != 3 {
		t.Errorf("count/total = %d/%d, want 0/3", v.Count, v.Total)
	}

	s.SetMinSimilarity(0)
	v = s.View()
	if v.Count != 2 || v.Products[0].ID != "3" {
		t.Errorf("price order: count=%d first=%s", v.Count, v.Products[0].ID)
	}

	s.ResetFilters()
	if v := s.View(); v.Count != 3 || v.Filters.SortBy != "similarity" {
		t.Errorf("after reset: count=%d sort=%s", v.Count, v.Filters.SortBy)
	}
}

func TestSession_FindSimilar(t *testing.T) {
	c, _ := newTestClient(t)
	s := c.NewSession()
	defer s.Close()

	_ = s.SearchURL(context.Background(), "https://example.com/q.jpg")
	awaitSession(t, s)

	if err := s.FindSimilar(context.Background(), "1"); err != nil {
		t.Fatalf("FindSimilar: %v", err)
	}
	awaitSession(t, s)

	v := s.View()
	if v.Status != StatusReady || v.Count != 1 || v.Products[0].ID != "9" {
		t.Fatalf("view = %+v", v)
	}
	if !strings.HasSuffix(v.UploadedImage, "/images/target.jpg") {
		t.Errorf("uploaded image = %q, want the target product image", v.UploadedImage)
	}
	if len(v.History) != 2 || v.History[0].Source != "productRef" {
		t.Errorf("history = %+v", v.History)
	}
}

func TestSession_FindSimilarNoResultsKeepsResult(t *testing.T) {
	c, f := newTestClient(t)
	s := c.NewSession()
	defer s.Close()

	_ = s.SearchURL(context.Background(), "https://example.com/q.jpg")
	awaitSession(t, s)

	f.mu.Lock()
	f.similar = []map[string]any{}
	f.mu.Unlock()

	var (
		mu      sync.Mutex
		notices []string
	)
	s.OnChange(func(v View) {
		mu.Lock()
		defer mu.Unlock()
		if v.Notice != "" {
			notices = append(notices, v.Notice)
		}
	})

	_ = s.FindSimilar(context.Background(), "1")
	awaitSession(t, s)

	v := s.View()
	if v.Status != StatusReady || v.Count != 3 {
		t.Errorf("previous result not restored: status=%q count=%d", v.Status, v.Count)
	}
	if v.Notice != "No similar products found" {
		t.Errorf("notice = %q", v.Notice)
	}
	if len(v.History) != 1 {
		t.Errorf("history len = %d, want 1", len(v.History))
	}
	mu.Lock()
	defer mu.Unlock()
	if len(notices) == 0 {
		t.Error("listener did not receive the notice")
	}
}

func TestSession_FindSimilarUnknownProduct(t *testing.T) {
	c, _ := newTestClient(t)
	s := c.NewSession()
	defer s.Close()

	_ = s.FindSimilar(context.Background(), "missing")
	awaitSession(t, s)

	v := s.View()
	if v.Status != StatusError || v.Message != "Product not found" {
		t.Errorf("status/message = %q/%q", v.Status, v.Message)
	}
}

func TestSession_ResetAndClose(t *testing.T) {
	c, _ := newTestClient(t)
	s := c.NewSession()

	_ = s.SearchURL(context.Background(), "https://example.com/q.jpg")
	awaitSession(t, s)
	s.Reset()

	v := s.View()
	if v.Status != StatusIdle || v.Count != 0 {
		t.Errorf("after reset: status=%q count=%d", v.Status, v.Count)
	}
	if len(v.History) != 1 {
		t.Errorf("reset must keep history, got %d", len(v.History))
	}

	s.Close()
	if err := s.SearchURL(context.Background(), "https://example.com/q.jpg"); !errors.Is(err, ErrClosed) {
		t.Errorf("err after close = %v, want ErrClosed", err)
	}
}

func TestClient_CategoriesAndPing(t *testing.T) {
	c, _ := newTestClient(t)

	cats, err := c.Categories(context.Background())
	if err != nil {
		t.Fatalf("Categories: %v", err)
	}
	if len(cats) != 2 || cats[0] != "bags" {
		t.Errorf("categories = %v", cats)
	}
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestClient_PingUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(context.Background(), WithOracleURL(url), WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := c.Ping(context.Background()); !errors.Is(err, ErrTransport) {
		t.Errorf("err = %v, want ErrTransport", err)
	}
}

func TestClient_ResolveImage(t *testing.T) {
	c, err := New(context.Background(),
		WithOracleURL("http://oracle.internal:5000"),
		WithPublicURL("https://images.example.com/"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.ResolveImage("/images/1.jpg"); got != "https://images.example.com/images/1.jpg" {
		t.Errorf("ResolveImage = %q", got)
	}
}

func TestObserver_MetricsAndLogging(t *testing.T) {
	reg := prometheus.NewRegistry()
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	c, _ := newTestClient(t, WithPrometheus(reg), WithLogger(logger))
	s := c.NewSession()
	defer s.Close()

	_ = s.SearchURL(context.Background(), "https://example.com/q.jpg")
	awaitSession(t, s)
	_ = s.SearchURL(context.Background(), "")
	_ = s.FindSimilar(context.Background(), "missing")
	awaitSession(t, s)

	m := c.obs.metrics
	if got := testutil.ToFloat64(m.operations.WithLabelValues("search", "ok")); got != 1 {
		t.Errorf("search ok = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("search", "rejected")); got != 1 {
		t.Errorf("search rejected = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues("find_similar", "oracle_error")); got != 1 {
		t.Errorf("find_similar oracle_error = %v, want 1", got)
	}
	if !strings.Contains(buf.String(), "operation failed") {
		t.Errorf("expected failure log, got %q", buf.String())
	}
}

func TestObserver_SharedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("first observer: %v", err)
	}
	if _, err := newObserver(nil, reg); err != nil {
		t.Fatalf("second observer on the same registry: %v", err)
	}
}

func TestObserver_NilIsNoop(t *testing.T) {
	var o *observer
	o.observe("search", time.Now(), errors.New("x"))
	o.notice("x")
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrValidation, "rejected"},
		{ErrBusy, "busy"},
		{ErrClosed, "closed"},
		{ErrTransport, "transport_error"},
		{ErrOracle, "oracle_error"},
		{errors.New("boom"), "error"},
	}
	for _, tc := range tests {
		if got := outcome(tc.err); got != tc.want {
			t.Errorf("outcome(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
