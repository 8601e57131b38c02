package query

import (
	"slices"
	"strings"

	"github.com/kailas-cloud/lookalike/internal/domain"
)

// Kind identifies which variant of a Query is populated.
type Kind string

// Query kinds.
const (
	File       Kind = "file"
	URL        Kind = "url"
	ProductRef Kind = "productRef"
)

// IsValid checks if the kind is one of the supported values.
func (k Kind) IsValid() bool {
	return k == File || k == URL || k == ProductRef
}

// User-facing validation messages.
const (
	MsgNoFile      = "Please select an image file"
	MsgNoURL       = "Please enter an image URL"
	MsgTooLarge    = "File size must be less than 5MB"
	MsgBadType     = "Only JPEG, PNG, and WebP images are supported"
	MsgNoProductID = "Please choose a product"
	MsgBadKind     = "Unsupported search input"
)

// Query is the input of a search: an uploaded file, an image URL or a catalog product.
// Exactly one variant is populated, selected by Kind.
type Query struct {
	kind      Kind
	data      []byte
	filename  string
	mimeType  string
	uri       string
	productID string
	rejection string
}

// NewFile creates a file query. Validation happens in Validate, so that a rejected
// upload still surfaces through the session as an error state.
func NewFile(filename string, data []byte, mimeType string) Query {
	return Query{kind: File, filename: filename, data: data, mimeType: normalizeMIME(mimeType)}
}

// NewRejected creates a query of the given kind that always fails validation with msg.
// It lets an input refused at the transport layer (e.g. an upload cut off by a body
// limit) still move the session to its error state.
func NewRejected(kind Kind, msg string) Query {
	return Query{kind: kind, rejection: msg}
}

// NewURL creates an image URL query.
func NewURL(uri string) Query {
	return Query{kind: URL, uri: strings.TrimSpace(uri)}
}

// NewProductRef creates a "find similar to this product" query.
func NewProductRef(productID string) Query {
	return Query{kind: ProductRef, productID: strings.TrimSpace(productID)}
}

// Validate enforces the pre-dispatch rules: size and MIME allow-list for files,
// non-empty URL and product id.
func (q *Query) Validate() error {
	if q.rejection != "" {
		return domain.NewValidation(q.rejection)
	}
	switch q.kind {
	case File:
		if len(q.data) == 0 {
			return domain.NewValidation(MsgNoFile)
		}
		if q.SizeBytes() > domain.MaxImageBytes {
			return domain.NewValidation(MsgTooLarge)
		}
		if !slices.Contains(domain.AllowedImageTypes, q.mimeType) {
			return domain.NewValidation(MsgBadType)
		}
	case URL:
		if q.uri == "" {
			return domain.NewValidation(MsgNoURL)
		}
	case ProductRef:
		if q.productID == "" {
			return domain.NewValidation(MsgNoProductID)
		}
	default:
		return domain.NewValidation(MsgBadKind)
	}
	return nil
}

// Kind returns the populated variant.
func (q *Query) Kind() Kind { return q.kind }

// Data returns the raw file bytes (file variant only).
func (q *Query) Data() []byte { return q.data }

// Filename returns the original file name, if known (file variant only).
func (q *Query) Filename() string { return q.filename }

// MIMEType returns the normalized content type (file variant only).
func (q *Query) MIMEType() string { return q.mimeType }

// SizeBytes returns the file size (file variant only).
func (q *Query) SizeBytes() int { return len(q.data) }

// URI returns the image URL (url variant only).
func (q *Query) URI() string { return q.uri }

// ProductID returns the reference product (productRef variant only).
func (q *Query) ProductID() string { return q.productID }

// normalizeMIME lower-cases a content type and drops parameters ("image/png; q=1").
func normalizeMIME(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
