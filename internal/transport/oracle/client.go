package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/lookalike/internal/domain"
	"github.com/kailas-cloud/lookalike/internal/domain/product"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
	"github.com/kailas-cloud/lookalike/internal/metrics"
)

// Endpoint labels for metrics.
const (
	endpointSearch     = "search"
	endpointSimilar    = "similar"
	endpointCategories = "categories"
	endpointHealth     = "health"
)

// maxResponseBytes caps how much of an oracle response is read.
const maxResponseBytes = 16 << 20

// Config holds ranking oracle client settings.
type Config struct {
	BaseURL string
	// Timeout is a transport-level safety net; the session applies its own per-request deadline.
	Timeout time.Duration
	// RatePerSec limits outgoing requests; 0 disables limiting.
	RatePerSec float64
	Burst      int
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the ranking oracle over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates an oracle client.
func NewClient(cfg *Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 90 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    hc,
		limiter: limiter,
		logger:  logger,
	}
}

// BaseURL returns the oracle origin without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Search ranks the catalog against an uploaded file or an image URL (POST /api/search).
func (c *Client) Search(ctx context.Context, q query.Query) (result.Ranking, error) {
	body, contentType, err := encodeSearchForm(q)
	if err != nil {
		return result.Ranking{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/search", body)
	if err != nil {
		return result.Ranking{}, fmt.Errorf("build search request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	var resp searchResponse
	status, err := c.do(req, endpointSearch, &resp)
	if err != nil {
		return result.Ranking{}, fmt.Errorf("search: %w", err)
	}
	if !resp.Success {
		c.observe(endpointSearch, "oracle_error")
		return result.Ranking{}, &domain.OracleError{Status: status, Message: resp.Message}
	}

	return result.Ranking{
		Products:       c.toProducts(resp.Results),
		ReferenceImage: resp.UploadedImage,
	}, nil
}

// FindSimilar ranks the catalog against a product's own image (GET /api/products/{id}/similar).
func (c *Client) FindSimilar(ctx context.Context, productID string) (result.Ranking, error) {
	endpoint := c.baseURL + "/api/products/" + url.PathEscape(productID) + "/similar"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return result.Ranking{}, fmt.Errorf("build similar request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var resp similarResponse
	status, err := c.do(req, endpointSimilar, &resp)
	if err != nil {
		var oe *domain.OracleError
		if errors.As(err, &oe) && oe.Status == http.StatusNotFound {
			return result.Ranking{}, fmt.Errorf("find similar %s: %w: %w", productID, domain.ErrProductNotFound, err)
		}
		return result.Ranking{}, fmt.Errorf("find similar %s: %w", productID, err)
	}
	if !resp.Success {
		c.observe(endpointSimilar, "oracle_error")
		return result.Ranking{}, &domain.OracleError{Status: status, Message: resp.Message}
	}

	ranking := result.Ranking{Products: c.toProducts(resp.Results)}
	if resp.TargetProduct != nil {
		ranking.ReferenceImage = resp.TargetProduct.Image
	}
	return ranking, nil
}

// Categories lists the catalog categories known to the oracle (GET /api/categories).
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/categories", http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build categories request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var resp categoriesResponse
	status, err := c.do(req, endpointCategories, &resp)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	if !resp.Success {
		return nil, &domain.OracleError{Status: status, Message: resp.Message}
	}
	return resp.Categories, nil
}

// HealthCheck verifies the oracle answers GET /api/health.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	if _, err := c.do(req, endpointHealth, nil); err != nil {
		return fmt.Errorf("oracle health: %w", err)
	}
	return nil
}

// do sends req and decodes a 2xx JSON body into out (nil skips decoding).
// Transport failures wrap domain.ErrTransport; non-2xx answers become *domain.OracleError.
func (c *Client) do(req *http.Request, endpoint string, out any) (int, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		c.observe(endpoint, "transport_error")
		return 0, fmt.Errorf("rate limit wait: %w: %w", domain.ErrTransport, err)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	metrics.OracleRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		c.observe(endpoint, "transport_error")
		c.logger.Warn("Oracle request failed", zap.String("endpoint", endpoint), zap.Error(err))
		return 0, fmt.Errorf("%s %s: %w: %w", req.Method, req.URL.Path, domain.ErrTransport, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.observe(endpoint, "transport_error")
		return resp.StatusCode, fmt.Errorf("read %s response: %w: %w", endpoint, domain.ErrTransport, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.observe(endpoint, "oracle_error")
		var eb errorBody
		_ = json.Unmarshal(data, &eb)
		c.logger.Warn("Oracle returned error status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode),
			zap.String("message", eb.Message),
		)
		return resp.StatusCode, &domain.OracleError{Status: resp.StatusCode, Message: eb.Message}
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			c.observe(endpoint, "oracle_error")
			return resp.StatusCode, fmt.Errorf("decode %s response: %w: %w", endpoint, domain.ErrOracle, err)
		}
	}

	c.observe(endpoint, "ok")
	return resp.StatusCode, nil
}

func (c *Client) observe(endpoint, status string) {
	metrics.OracleRequestsTotal.WithLabelValues(endpoint, status).Inc()
}

// toProducts converts oracle products, skipping entries that violate product invariants.
func (c *Client) toProducts(dtos []productDTO) []product.Product {
	out := make([]product.Product, 0, len(dtos))
	for i := range dtos {
		p, err := dtos[i].toDomain()
		if err != nil {
			c.logger.Warn("Skipping invalid oracle product", zap.Error(err))
			continue
		}
		out = append(out, p)
	}
	return out
}

// encodeSearchForm builds the multipart body: an "image" file part or an "imageUrl" field.
func encodeSearchForm(q query.Query) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	switch q.Kind() {
	case query.File:
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, uploadName(q)))
		h.Set("Content-Type", q.MIMEType())
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(q.Data()); err != nil {
			return nil, "", fmt.Errorf("write image part: %w", err)
		}
	case query.URL:
		if err := w.WriteField("imageUrl", q.URI()); err != nil {
			return nil, "", fmt.Errorf("write imageUrl field: %w", err)
		}
	default:
		return nil, "", fmt.Errorf("query kind %q cannot be sent to /api/search: %w", q.Kind(), domain.ErrValidation)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

// uploadName returns the client file name, or one derived from the MIME type.
// The oracle only accepts names with an image extension.
func uploadName(q query.Query) string {
	if name := q.Filename(); name != "" && strings.Contains(name, ".") {
		return name
	}
	switch q.MIMEType() {
	case "image/png":
		return "upload.png"
	case "image/webp":
		return "upload.webp"
	default:
		return "upload.jpg"
	}
}
