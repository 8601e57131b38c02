package workspace

import (
	"github.com/kailas-cloud/lookalike/internal/domain/filter"
	"github.com/kailas-cloud/lookalike/internal/usecase/view"
)

// Presenter renders a session snapshot under filter settings.
type Presenter = view.Renderer

// FilterPatch is a partial filter update; nil fields are left unchanged.
type FilterPatch struct {
	Category      *string
	MinSimilarity *int
	SortBy        *filter.SortKey
}

// apply layers the set fields over s. An unknown sort key fails the whole patch.
func (p FilterPatch) apply(s filter.Settings) (filter.Settings, error) {
	if p.Category != nil {
		s = s.WithCategory(*p.Category)
	}
	if p.MinSimilarity != nil {
		s = s.WithMinSimilarity(*p.MinSimilarity)
	}
	if p.SortBy != nil {
		return s.WithSortKey(*p.SortBy)
	}
	return s, nil
}
