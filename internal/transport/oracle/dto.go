package oracle

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/lookalike/internal/domain/product"
)

// productID accepts both string and numeric ids ("7" and 7 decode to "7").
type productID string

func (id *productID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("product id: %w", err)
		}
		*id = productID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id: %w", err)
	}
	*id = productID(n.String())
	return nil
}

// productDTO mirrors a product as returned by the ranking oracle.
type productDTO struct {
	ID          productID `json:"id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory,omitempty"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	Similarity  float64   `json:"similarity"`
}

func (d *productDTO) toDomain() (product.Product, error) {
	return product.New(
		string(d.ID), d.Name, d.Category, d.Subcategory, d.Description,
		d.Price, d.Image, product.NormalizeSimilarity(d.Similarity),
	)
}

// searchResponse mirrors POST /api/search.
type searchResponse struct {
	Success       bool         `json:"success"`
	Count         int          `json:"count"`
	Results       []productDTO `json:"results"`
	UploadedImage string       `json:"uploadedImage"`
	Message       string       `json:"message,omitempty"`
}

// similarResponse mirrors GET /api/products/{id}/similar.
type similarResponse struct {
	Success       bool         `json:"success"`
	Count         int          `json:"count"`
	Results       []productDTO `json:"results"`
	TargetProduct *productDTO  `json:"targetProduct,omitempty"`
	Message       string       `json:"message,omitempty"`
}

// categoriesResponse mirrors GET /api/categories.
type categoriesResponse struct {
	Success    bool     `json:"success"`
	Categories []string `json:"categories"`
	Message    string   `json:"message,omitempty"`
}

// errorBody is the shape of any failed oracle response.
type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
