package result

import (
	"slices"
	"time"

	"github.com/kailas-cloud/lookalike/internal/domain/product"
	"github.com/kailas-cloud/lookalike/internal/domain/query"
)

// Result is the immutable output of one completed search.
type Result struct {
	products      []product.Product
	uploadedImage string
	queriedAt     time.Time
	source        query.Kind
}

// New creates a search result. products is copied; ordering is preserved as ranked by the oracle.
func New(products []product.Product, uploadedImage string, queriedAt time.Time, source query.Kind) Result {
	return Result{
		products:      slices.Clone(products),
		uploadedImage: uploadedImage,
		queriedAt:     queriedAt,
		source:        source,
	}
}

// Products returns a copy of the ranked products.
func (r *Result) Products() []product.Product { return slices.Clone(r.products) }

// Len returns the number of products.
func (r *Result) Len() int { return len(r.products) }

// UploadedImage returns the reference image the ranking was computed against.
func (r *Result) UploadedImage() string { return r.uploadedImage }

// QueriedAt returns when the search completed.
func (r *Result) QueriedAt() time.Time { return r.queriedAt }

// Source returns the kind of query that produced this result.
func (r *Result) Source() query.Kind { return r.source }

// Ranking is a successful oracle answer before the session turns it into a Result.
// ReferenceImage is the image the oracle ranked against: the stored upload, the
// submitted URL or, for find-similar, the target product's own image.
type Ranking struct {
	Products       []product.Product
	ReferenceImage string
}
