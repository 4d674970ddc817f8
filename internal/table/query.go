package table

import (
	"fmt"

	"github.com/segadb/segadb/internal/record"
	"github.com/segadb/segadb/pkg"
	"golang.org/x/exp/slices"
)

// Select returns live references to every record matching the predicate,
// in table order. Callers must not mutate through them while other reads
// are in flight.
func (t *Table) Select(predicate func(*record.Record) bool) []*record.Record {
	return pkg.Filter(t.Records, predicate)
}

// SelectIndexed resolves an exact-value lookup through a named index,
// bypassing the scan, then maps ids back to live record references.
func (t *Table) SelectIndexed(indexName string, value any) ([]*record.Record, error) {
	idx, ok := t.GetIndex(indexName)
	if !ok {
		return nil, &IndexNotFoundError{Name: indexName}
	}
	ids := idx.Find(value)
	found := make([]*record.Record, 0, len(ids))
	for _, id := range ids {
		if rec, ok := t.byID[id]; ok {
			found = append(found, rec)
		}
	}
	return found, nil
}

// Filter builds a new table with the same schema holding copies of the
// matching records, relative order preserved, ids freshly assigned.
func (t *Table) Filter(predicate func(*record.Record) bool) (*Table, error) {
	out, err := New(t.Name+"_filtered", t.Columns)
	if err != nil {
		return nil, err
	}
	for _, rec := range t.Records {
		if !predicate(rec) {
			continue
		}
		if err := out.Insert(copyRow(rec.Data)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Sort returns a new table with record copies reordered by the column's
// value. The sort is stable; ties keep their original relative order.
func (t *Table) Sort(column string, ascending bool) (*Table, error) {
	if !t.hasColumn(column) {
		return nil, &ColumnNotFoundError{Name: column}
	}
	ordered := append([]*record.Record{}, t.Records...)
	slices.SortStableFunc(ordered, func(a, b *record.Record) int {
		av, bv := a.Data.Get(column), b.Data.Get(column)
		cmp := 0
		switch {
		case valueLess(av, bv):
			cmp = -1
		case valueLess(bv, av):
			cmp = 1
		}
		if !ascending {
			cmp = -cmp
		}
		return cmp
	})

	out, err := New(t.Name+"_sorted", t.Columns)
	if err != nil {
		return nil, err
	}
	for _, rec := range ordered {
		if err := out.Insert(copyRow(rec.Data)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Join performs an inner equality join: nested loop, t as the outer table.
// Matching rows merge both payloads with t's values winning on key
// collision. The output schema is the ordered, de-duplicated union of both
// column lists; output rows get fresh sequential ids.
func (t *Table) Join(other *Table, onColumn, otherColumn string) (*Table, error) {
	if !t.hasColumn(onColumn) {
		return nil, &ColumnNotFoundError{Name: onColumn}
	}
	if !other.hasColumn(otherColumn) {
		return nil, &ColumnNotFoundError{Name: otherColumn}
	}

	columns := append([]string{}, t.Columns...)
	for _, c := range other.Columns {
		if !slices.Contains(columns, c) {
			columns = append(columns, c)
		}
	}

	out, err := New(fmt.Sprintf("%s_join_%s", t.Name, other.Name), columns)
	if err != nil {
		return nil, err
	}
	for _, rec := range t.Records {
		for _, otherRec := range other.Records {
			if !ValueEqual(rec.Data.Get(onColumn), otherRec.Data.Get(otherColumn)) {
				continue
			}
			merged := copyRow(otherRec.Data)
			for k, v := range rec.Data {
				merged[k] = v
			}
			delete(merged, "id")
			if err := out.Insert(merged); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
