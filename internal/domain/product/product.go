package product

import (
	"fmt"
	"math"
)

// Similarity bounds, in percent.
const (
	MinSimilarity = 0
	MaxSimilarity = 100
)

// Product is a catalog item as ranked inside one search result.
// Similarity is relative to that result's reference image, not an intrinsic property.
type Product struct {
	id          string
	name        string
	category    string
	subcategory string
	description string
	price       float64
	image       string
	similarity  int
}

// New validates and creates a ranked product. subcategory may be empty.
func New(
	id, name, category, subcategory, description string,
	price float64, image string, similarity int,
) (Product, error) {
	if id == "" {
		return Product{}, fmt.Errorf("product id is required")
	}
	if price < 0 || math.IsNaN(price) {
		return Product{}, fmt.Errorf("product %s: price must be >= 0, got %v", id, price)
	}
	if similarity < MinSimilarity || similarity > MaxSimilarity {
		return Product{}, fmt.Errorf("product %s: similarity must be between %d and %d, got %d",
			id, MinSimilarity, MaxSimilarity, similarity)
	}
	return Product{
		id:          id,
		name:        name,
		category:    category,
		subcategory: subcategory,
		description: description,
		price:       price,
		image:       image,
		similarity:  similarity,
	}, nil
}

// NormalizeSimilarity rounds a percentage score to the nearest integer within [0, 100].
func NormalizeSimilarity(score float64) int {
	if math.IsNaN(score) {
		return MinSimilarity
	}
	r := math.Round(score)
	if r <= MinSimilarity {
		return MinSimilarity
	}
	if r >= MaxSimilarity {
		return MaxSimilarity
	}
	return int(r)
}

// ID returns the catalog identifier.
func (p *Product) ID() string { return p.id }

// Name returns the display name.
func (p *Product) Name() string { return p.name }

// Category returns the top-level category.
func (p *Product) Category() string { return p.category }

// Subcategory returns the optional subcategory ("" if absent).
func (p *Product) Subcategory() string { return p.subcategory }

// Description returns the product description.
func (p *Product) Description() string { return p.description }

// Price returns the non-negative price.
func (p *Product) Price() float64 { return p.price }

// Image returns the image path or absolute URL as sent by the oracle.
func (p *Product) Image() string { return p.image }

// Similarity returns the score in percent (0-100) within the owning result.
func (p *Product) Similarity() int { return p.similarity }
