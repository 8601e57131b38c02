// Package view maps session state and filter settings to a renderable model.
// It holds no business logic: filtering and ordering come from the pipeline.
package view

import (
	"strings"
	"time"

	"github.com/kailas-cloud/lookalike/internal/domain/filter"
	"github.com/kailas-cloud/lookalike/internal/usecase/pipeline"
	"github.com/kailas-cloud/lookalike/internal/usecase/session"
)

// Band colours used by product badges and similarity bars.
var bandColors = map[pipeline.Band]string{
	pipeline.High:   "#10b981",
	pipeline.Medium: "#f59e0b",
	pipeline.Low:    "#ef4444",
}

// Model is everything a client needs to draw one session.
type Model struct {
	Status        string        `json:"status"`
	Loading       bool          `json:"loading"`
	Message       string        `json:"message,omitempty"`
	Notice        string        `json:"notice,omitempty"`
	UploadedImage string        `json:"uploaded_image,omitempty"`
	Categories    []string      `json:"categories"`
	Filters       Filters       `json:"filters"`
	Total         int           `json:"total"`
	Count         int           `json:"count"`
	Products      []Card        `json:"products"`
	History       []HistoryItem `json:"history"`
}

// Filters echoes the settings the products were rendered with.
type Filters struct {
	Category      string `json:"category"`
	MinSimilarity int    `json:"min_similarity"`
	SortBy        string `json:"sort_by"`
}

// Card is one rendered product.
type Card struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	Image       string  `json:"image"`
	Similarity  int     `json:"similarity"`
	Band        string  `json:"band"`
	Color       string  `json:"color"`
}

// HistoryItem summarizes a past search.
type HistoryItem struct {
	UploadedImage string    `json:"uploaded_image"`
	Source        string    `json:"source"`
	Count         int       `json:"count"`
	Timestamp     time.Time `json:"timestamp"`
}

// Presenter renders models and resolves image paths against the oracle address.
type Presenter struct {
	baseURL string
}

// NewPresenter creates a presenter. baseURL is the oracle origin used for relative image paths.
func NewPresenter(baseURL string) *Presenter {
	return &Presenter{baseURL: strings.TrimRight(baseURL, "/")}
}

// Render builds the model for a snapshot under the given filter settings.
func (p *Presenter) Render(snap session.Snapshot, s filter.Settings) Model {
	st := snap.State
	products := st.Products()
	out := pipeline.Run(products, s)

	m := Model{
		Status:     string(st.Status),
		Loading:    st.Status == session.Searching,
		Message:    st.Message,
		Categories: out.Categories,
		Filters: Filters{
			Category:      s.Category(),
			MinSimilarity: s.MinSimilarity(),
			SortBy:        string(s.SortKey()),
		},
		Total:    len(products),
		Count:    len(out.Items),
		Products: make([]Card, 0, len(out.Items)),
		History:  make([]HistoryItem, 0, len(snap.History)),
	}
	if st.Status == session.Ready {
		m.UploadedImage = p.ResolveImage(st.Result.UploadedImage())
	}

	for _, it := range out.Items {
		m.Products = append(m.Products, Card{
			ID:          it.Product.ID(),
			Name:        it.Product.Name(),
			Category:    it.Product.Category(),
			Subcategory: it.Product.Subcategory(),
			Description: it.Product.Description(),
			Price:       it.Product.Price(),
			Image:       p.ResolveImage(it.Product.Image()),
			Similarity:  it.Product.Similarity(),
			Band:        string(it.Band),
			Color:       bandColors[it.Band],
		})
	}

	for _, e := range snap.History {
		m.History = append(m.History, HistoryItem{
			UploadedImage: p.ResolveImage(e.Result.UploadedImage()),
			Source:        string(e.Result.Source()),
			Count:         e.Result.Len(),
			Timestamp:     e.Timestamp,
		})
	}
	return m
}

// ResolveImage returns absolute URLs verbatim and prefixes anything else with the
// oracle base address and exactly one leading slash.
func (p *Presenter) ResolveImage(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http") {
		return path
	}
	return p.baseURL + "/" + strings.TrimLeft(path, "/")
}
