package cluster

import (
	"strings"

	"github.com/ppiankov/labelsort/internal/model"
	"github.com/ppiankov/labelsort/internal/similarity"
)

// aggregateFields merges a label into the first open cluster whose seed
// agrees with it on every structured field either of them carries. Labels
// without structured fields stay alone. Text is never consulted.
func (e *Engine) aggregateFields(labels []model.Label) []group {
	var groups []group
	for i, l := range labels {
		joined := false
		if l.HasStructuredFields() {
			for g := range groups {
				if e.fieldsAgree(labels[groups[g].members[0]], l) {
					groups[g].members = append(groups[g].members, i)
					joined = true
					break
				}
			}
		}
		if !joined {
			groups = append(groups, group{members: []int{i}, primary: len(groups)})
		}
	}
	return groups
}

func (e *Engine) fieldsAgree(a, b model.Label) bool {
	if !a.HasStructuredFields() {
		return false
	}
	if (a.DateRange == nil) != (b.DateRange == nil) ||
		(a.Collector == nil) != (b.Collector == nil) ||
		(a.Location == nil) != (b.Location == nil) {
		return false
	}

	fuzzy := e.opts.FieldMatch == model.FieldMatchFuzzy
	if a.DateRange != nil {
		if fuzzy && !a.DateRange.Overlaps(*b.DateRange) {
			return false
		}
		if !fuzzy && !a.DateRange.Equal(*b.DateRange) {
			return false
		}
	}
	if a.Collector != nil && !e.textAgrees(*a.Collector, *b.Collector, fuzzy) {
		return false
	}
	if a.Location != nil && !e.textAgrees(*a.Location, *b.Location, fuzzy) {
		return false
	}
	return true
}

func (e *Engine) textAgrees(a, b string, fuzzy bool) bool {
	fa := similarity.Fold(strings.TrimSpace(a))
	fb := similarity.Fold(strings.TrimSpace(b))
	if !fuzzy {
		return fa == fb
	}
	return similarity.EditSimilarity(fa, fb) >= e.opts.FieldFuzzyMin
}
