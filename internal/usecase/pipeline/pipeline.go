// Package pipeline filters, sorts and classifies the products of a search result.
// Every function is pure: the same products and settings always yield the same output.
package pipeline

import (
	"slices"

	"github.com/kailas-cloud/lookalike/internal/domain/filter"
	"github.com/kailas-cloud/lookalike/internal/domain/product"
)

// Band is the display classification of a similarity score.
type Band string

// Similarity bands.
const (
	High   Band = "high"
	Medium Band = "medium"
	Low    Band = "low"
)

// Band thresholds (inclusive lower bounds), in percent.
const (
	highThreshold   = 70
	mediumThreshold = 50
)

// BandOf classifies a similarity score: >=70 high, 50-69 medium, <50 low.
func BandOf(similarity int) Band {
	switch {
	case similarity >= highThreshold:
		return High
	case similarity >= mediumThreshold:
		return Medium
	default:
		return Low
	}
}

// Item is a product that survived filtering, with its display band.
type Item struct {
	Product product.Product
	Band    Band
}

// Output is the full pipeline result for one render.
type Output struct {
	Categories []string
	Items      []Item
}

// Run computes categories over all products, then filters, sorts and classifies.
func Run(products []product.Product, s filter.Settings) Output {
	return Output{
		Categories: Categories(products),
		Items:      Apply(products, s),
	}
}

// Categories returns "all" followed by each distinct category in first-seen order.
func Categories(products []product.Product) []string {
	out := []string{filter.AllCategories}
	seen := make(map[string]struct{}, len(products))
	for i := range products {
		c := products[i].Category()
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

// Apply keeps products matching the category and minimum similarity, orders them
// by the sort key (stable) and attaches a similarity band. The input is not modified.
func Apply(products []product.Product, s filter.Settings) []Item {
	items := make([]Item, 0, len(products))
	for _, p := range products {
		if !matches(&p, s) {
			continue
		}
		items = append(items, Item{Product: p, Band: BandOf(p.Similarity())})
	}

	switch s.SortKey() {
	case filter.ByPrice:
		slices.SortStableFunc(items, func(a, b Item) int {
			return cmpFloat(a.Product.Price(), b.Product.Price())
		})
	default:
		slices.SortStableFunc(items, func(a, b Item) int {
			return b.Product.Similarity() - a.Product.Similarity()
		})
	}
	return items
}

func matches(p *product.Product, s filter.Settings) bool {
	if s.Category() != filter.AllCategories && p.Category() != s.Category() {
		return false
	}
	return p.Similarity() >= s.MinSimilarity()
}

func cmpFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
