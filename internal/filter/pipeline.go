package filter

// Pipeline is the FilterPipeline of spec.md section 4.7: an ordered set of
// filters, all of which must pass (logical AND across filters; conjunct/
// disjunct only governs a single filter's own value list).
type Pipeline struct {
	filters []Filter
}

func NewPipeline(filters []Filter) *Pipeline {
	return &Pipeline{filters: filters}
}

func (p *Pipeline) Len() int {
	return len(p.filters)
}

// NeedsBody reports whether any filter in the pipeline requires a
// materialized body, so the caller can skip decoding/loading it otherwise.
func (p *Pipeline) NeedsBody() bool {
	for _, f := range p.filters {
		if f.NeedsBody() {
			return true
		}
	}
	return false
}

// NeedsKind reports whether some filter in the pipeline addresses k, so a
// caller can skip a cross-reference store lookup that only feeds k's
// dimension when nothing asked for it.
func (p *Pipeline) NeedsKind(k Kind) bool {
	for _, f := range p.filters {
		if f.Kind == k {
			return true
		}
	}
	return false
}

// Apply runs every filter against el, short-circuiting on the first
// rejection.
func (p *Pipeline) Apply(el Element) bool {
	for _, f := range p.filters {
		if !f.Apply(el) {
			return false
		}
	}
	return true
}

// ApplyByKind runs every filter against el without short-circuiting and
// returns each one's individual verdict keyed by its Kind, for
// internal/filterpreset's CEL boolean composition over named filter
// results (SPEC_FULL.md section 3.1). A kind absent from the pipeline is
// simply absent from the result map.
func (p *Pipeline) ApplyByKind(el Element) map[Kind]bool {
	results := make(map[Kind]bool, len(p.filters))
	for _, f := range p.filters {
		results[f.Kind] = f.Apply(el)
	}
	return results
}

// AllPass folds a per-kind result map with AND, the same verdict Apply
// would give for the filters that produced it.
func AllPass(results map[Kind]bool) bool {
	for _, v := range results {
		if !v {
			return false
		}
	}
	return true
}
