package filter

import (
	"fmt"

	"github.com/kailas-cloud/lookalike/internal/domain/product"
)

// AllCategories matches every product category.
const AllCategories = "all"

// SortKey selects the result ordering.
type SortKey string

// Sort keys.
const (
	// BySimilarity orders by similarity, highest first.
	BySimilarity SortKey = "similarity"
	// ByPrice orders by price, lowest first.
	ByPrice SortKey = "price"
)

// IsValid checks if the key is one of the supported values.
func (k SortKey) IsValid() bool {
	return k == BySimilarity || k == ByPrice
}

// Settings are the view-side filter and sort options applied to the current result.
// Values are always in range: MinSimilarity is clamped on every mutation.
type Settings struct {
	category      string
	minSimilarity int
	sortKey       SortKey
}

// Default returns category=all, minSimilarity=0, sort=similarity.
func Default() Settings {
	return Settings{category: AllCategories, minSimilarity: 0, sortKey: BySimilarity}
}

// New validates and normalizes filter settings.
// Empty category means all; empty sort key means similarity; minSimilarity is clamped to [0, 100].
func New(category string, minSimilarity int, sortKey SortKey) (Settings, error) {
	if sortKey == "" {
		sortKey = BySimilarity
	}
	if !sortKey.IsValid() {
		return Settings{}, fmt.Errorf("invalid sort key: %q", sortKey)
	}
	return Default().
		WithCategory(category).
		WithMinSimilarity(minSimilarity).
		withSort(sortKey), nil
}

// WithCategory returns a copy filtered to category ("" or "all" clears the filter).
func (s Settings) WithCategory(category string) Settings {
	if category == "" {
		category = AllCategories
	}
	s.category = category
	return s
}

// WithMinSimilarity returns a copy with the threshold clamped to [0, 100].
func (s Settings) WithMinSimilarity(v int) Settings {
	s.minSimilarity = max(product.MinSimilarity, min(v, product.MaxSimilarity))
	return s
}

// WithSortKey returns a copy ordered by key.
func (s Settings) WithSortKey(key SortKey) (Settings, error) {
	if !key.IsValid() {
		return s, fmt.Errorf("invalid sort key: %q", key)
	}
	return s.withSort(key), nil
}

func (s Settings) withSort(key SortKey) Settings {
	s.sortKey = key
	return s
}

// Category returns the category filter ("all" when unfiltered).
func (s Settings) Category() string {
	if s.category == "" {
		return AllCategories
	}
	return s.category
}

// MinSimilarity returns the inclusive similarity threshold.
func (s Settings) MinSimilarity() int { return s.minSimilarity }

// SortKey returns the ordering.
func (s Settings) SortKey() SortKey {
	if s.sortKey == "" {
		return BySimilarity
	}
	return s.sortKey
}
