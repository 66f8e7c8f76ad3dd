package filter

import (
	"tsgate/internal/storemodel"
	apperrors "tsgate/pkg/errors"
)

// Build is the "dynamic filter polymorphism" builder spec.md section 9's
// design notes call for: a closed sum of filter kinds plus a builder from
// the wire-level request map to a composite predicate. Unknown filter
// names are rejected rather than silently ignored, since the predicate
// kind set is closed by spec.md section 4.7.
func Build(params map[string]storemodel.FilterParam) (*Pipeline, error) {
	filters := make([]Filter, 0, len(params))
	for name, p := range params {
		kind := Kind(name)
		if !kind.Valid() {
			return nil, apperrors.ErrInvalidRequest.WithDetail("filter", name)
		}
		filters = append(filters, Filter{
			Kind:     kind,
			Negative: p.Negative,
			Conjunct: p.Conjunct,
			Values:   p.Values,
		})
	}
	return NewPipeline(filters), nil
}
