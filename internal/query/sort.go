package query

import (
	"sort"

	"fabricmcp/internal/api"
	"fabricmcp/internal/filter"
)

// ApplySort orders records by the spec's field using the same type-aware
// comparison as the filter evaluator. The sort is stable: ties, missing
// pairs, and non-comparable pairs keep their snapshot order. Records missing
// the field sort after all records that have it, for both directions.
//
// A nil spec preserves the snapshot's natural order. The input slice is not
// modified.
func ApplySort(records []api.Record, spec *api.SortSpec) []api.Record {
	if spec == nil || spec.Field == "" {
		return records
	}

	out := make([]api.Record, len(records))
	copy(out, records)

	desc := spec.Descending()
	sort.SliceStable(out, func(i, j int) bool {
		vi, pi := out[i][spec.Field]
		vj, pj := out[j][spec.Field]

		// Missing-last holds regardless of direction, so presence is
		// decided before the direction flip.
		if pi != pj {
			return pi
		}
		if !pi {
			return false
		}

		cmp, comparable := filter.Compare(vi, vj)
		if !comparable {
			return false
		}
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
	return out
}

// Paginate returns the window of records starting at offset, at most limit
// entries. A negative offset is clamped to zero; limit <= 0 returns the
// whole remainder.
func Paginate(records []api.Record, limit, offset int) []api.Record {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(records) {
		return nil
	}
	records = records[offset:]
	if limit > 0 && limit < len(records) {
		records = records[:limit]
	}
	return records
}

// ApplyFilter keeps the records matching expr. A nil expression keeps
// everything.
func ApplyFilter(records []api.Record, expr filter.Expression) []api.Record {
	if len(expr) == 0 {
		return records
	}
	out := make([]api.Record, 0, len(records))
	for _, r := range records {
		if filter.Evaluate(r, expr) {
			out = append(out, r)
		}
	}
	return out
}
