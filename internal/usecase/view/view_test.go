package view

import (
	"testing"
	"time"

	"github.com/kailas-cloud/lookalike/internal/domain/filter"
	"github.com/kailas-cloud/lookalike/internal/domain/history"
	"github.com/kailas-cloud/lookalike/internal/domain/product"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
	"github.com/kailas-cloud/lookalike/internal/domain/result"
	"github.com/kailas-cloud/lookalike/internal/usecase/session"
)

func makeProduct(t *testing.T, id, category string, similarity int, price float64) product.Product {
	t.Helper()
	p, err := product.New(id, "name-"+id, category, "", "desc", price, "images/"+id+".jpg", similarity)
	if err != nil {
		t.Fatalf("product.New: %v", err)
	}
	return p
}

func readySnapshot(t *testing.T) session.Snapshot {
	t.Helper()
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	res := result.New([]product.Product{
		makeProduct(t, "1", "shoes", 80, 50),
		makeProduct(t, "2", "bags", 40, 20),
		makeProduct(t, "3", "shoes", 55, 30),
	}, "uploads/a.png", at, query.File)
	return session.Snapshot{
		State:   session.State{Status: session.Ready, Result: res},
		History: []history.Entry{{Result: res, Timestamp: at}},
	}
}

func TestResolveImage(t *testing.T) {
	p := NewPresenter("http://localhost:5000/")
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"https://cdn.example.com/x.jpg", "https://cdn.example.com/x.jpg"},
		{"http://cdn.example.com/x.jpg", "http://cdn.example.com/x.jpg"},
		{"images/x.jpg", "http://localhost:5000/images/x.jpg"},
		{"/images/x.jpg", "http://localhost:5000/images/x.jpg"},
		{"//images/x.jpg", "http://localhost:5000/images/x.jpg"},
	}
	for _, tc := range tests {
		if got := p.ResolveImage(tc.in); got != tc.want {
			t.Errorf("ResolveImage(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRender_Ready(t *testing.T) {
	p := NewPresenter("http://oracle")
	s, err := filter.New("shoes", 0, filter.ByPrice)
	if err != nil {
		t.Fatalf("filter.New: %v", err)
	}

	m := p.Render(readySnapshot(t), s)

	if m.Status != "ready" || m.Loading {
		t.Errorf("status = %q loading=%v", m.Status, m.Loading)
	}
	if m.UploadedImage != "http://oracle/uploads/a.png" {
		t.Errorf("uploaded image = %q", m.UploadedImage)
	}
	if m.Total != 3 || m.Count != 2 {
		t.Errorf("total/count = %d/%d, want 3/2", m.Total, m.Count)
	}
	if len(m.Categories) != 3 || m.Categories[0] != "all" {
		t.Errorf("categories = %v", m.Categories)
	}
	if m.Products[0].ID != "3" || m.Products[1].ID != "1" {
		t.Errorf("order = %s, %s; want 3, 1 (by price)", m.Products[0].ID, m.Products[1].ID)
	}
	if m.Products[1].Band != "high" || m.Products[1].Color != "#10b981" {
		t.Errorf("card 1 band/color = %q/%q", m.Products[1].Band, m.Products[1].Color)
	}
	if m.Products[0].Band != "medium" || m.Products[0].Color != "#f59e0b" {
		t.Errorf("card 3 band/color = %q/%q", m.Products[0].Band, m.Products[0].Color)
	}
	if m.Products[0].Image != "http://oracle/images/3.jpg" {
		t.Errorf("card image = %q", m.Products[0].Image)
	}
	if m.Filters.Category != "shoes" || m.Filters.SortBy != "price" {
		t.Errorf("filters = %+v", m.Filters)
	}
	if len(m.History) != 1 || m.History[0].Count != 3 || m.History[0].Source != "file" {
		t.Errorf("history = %+v", m.History)
	}
}

func TestRender_LowBandColor(t *testing.T) {
	m := NewPresenter("http://oracle").Render(readySnapshot(t), filter.Default())
	for _, c := range m.Products {
		if c.ID == "2" && (c.Band != "low" || c.Color != "#ef4444") {
			t.Errorf("card 2 band/color = %q/%q", c.Band, c.Color)
		}
	}
}

func TestRender_ErrorShowsNoResults(t *testing.T) {
	snap := session.Snapshot{State: session.State{Status: session.Failed, Message: "Search failed"}}
	m := NewPresenter("http://oracle").Render(snap, filter.Default())

	if m.Status != "error" || m.Message != "Search failed" {
		t.Errorf("status/message = %q/%q", m.Status, m.Message)
	}
	if m.Products == nil || len(m.Products) != 0 {
		t.Errorf("products = %v, want empty", m.Products)
	}
	if m.UploadedImage != "" {
		t.Errorf("uploaded image = %q", m.UploadedImage)
	}
	if m.History == nil {
		t.Error("history must be an empty list, not nil")
	}
}

func TestRender_Searching(t *testing.T) {
	snap := session.Snapshot{State: session.State{Status: session.Searching}}
	m := NewPresenter("").Render(snap, filter.Default())
	if !m.Loading || m.Status != "searching" {
		t.Errorf("status/loading = %q/%v", m.Status, m.Loading)
	}
}
