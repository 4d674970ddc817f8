package table

import (
	"fmt"

	"github.com/segadb/segadb/pkg"
)

type AggFunc string

const (
	AggMin           AggFunc = "MIN"
	AggMax           AggFunc = "MAX"
	AggCount         AggFunc = "COUNT"
	AggSum           AggFunc = "SUM"
	AggAvg           AggFunc = "AVG"
	AggCountDistinct AggFunc = "COUNT_DISTINCT"
)

type aggGroup struct {
	key    any
	values []any
}

// AggregateBy reduces column per distinct value of groupColumn and
// materializes one row per group, groups ordered by first appearance.
// Nil cell values do not contribute to the reduction.
func (t *Table) AggregateBy(groupColumn, column string, fn AggFunc) (*Table, error) {
	if !t.hasColumn(groupColumn) {
		return nil, &ColumnNotFoundError{Name: groupColumn}
	}
	if !t.hasColumn(column) {
		return nil, &ColumnNotFoundError{Name: column}
	}
	name := fmt.Sprintf("%s_agg_%s_%s_%s", t.Name, groupColumn, column, fn)
	return t.aggregate(name, []string{groupColumn, column}, func(rec pkg.Map[string, any]) any {
		return rec.Get(groupColumn)
	}, groupColumn, column, fn)
}

// Aggregate is the ungrouped form: the whole table reduces as one implicit
// group and the result table holds a single row.
func (t *Table) Aggregate(column string, fn AggFunc) (*Table, error) {
	if !t.hasColumn(column) {
		return nil, &ColumnNotFoundError{Name: column}
	}
	name := fmt.Sprintf("%s_agg_%s_%s", t.Name, column, fn)
	return t.aggregate(name, []string{column}, func(pkg.Map[string, any]) any {
		return nil
	}, "", column, fn)
}

func (t *Table) aggregate(
	name string, columns []string,
	groupKey func(pkg.Map[string, any]) any,
	groupColumn, column string, fn AggFunc,
) (*Table, error) {
	groups := pkg.NewInsertSortMap[string, *aggGroup]()
	for _, rec := range t.Records {
		key := groupKey(rec.Data)
		ks := valueKey(key)
		if !groups.Has(ks) {
			groups.Push(ks, &aggGroup{key: key})
		}
		if v := rec.Data.Get(column); v != nil {
			g := groups.Get(ks)
			g.values = append(g.values, v)
		}
	}

	out, err := New(name, columns)
	if err != nil {
		return nil, err
	}
	if groups.Len() == 0 && groupColumn == "" {
		// ungrouped aggregation of an empty table still yields one row
		groups.Push("", &aggGroup{})
	}
	for _, ks := range groups.Sorted {
		g := groups.Get(ks)
		result, err := reduce(g.values, fn)
		if err != nil {
			return nil, err
		}
		row := map[string]any{column: result}
		if groupColumn != "" {
			row[groupColumn] = g.key
		}
		if err := out.Insert(row); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func reduce(values []any, fn AggFunc) (any, error) {
	switch fn {
	case AggMin:
		return extreme(values, valueLess), nil
	case AggMax:
		return extreme(values, func(a, b any) bool { return valueLess(b, a) }), nil
	case AggCount:
		return len(values), nil
	case AggSum:
		return sumFloats(values)
	case AggAvg:
		// average of empty input is 0 by contract
		if len(values) == 0 {
			return 0.0, nil
		}
		sum, err := sumFloats(values)
		if err != nil {
			return nil, err
		}
		return sum / float64(len(values)), nil
	case AggCountDistinct:
		seen := map[string]bool{}
		for _, v := range values {
			seen[valueKey(v)] = true
		}
		return len(seen), nil
	}
	return nil, fmt.Errorf("unsupported aggregation function: %s", fn)
}

func extreme(values []any, less func(a, b any) bool) any {
	if len(values) == 0 {
		return nil
	}
	best := values[0]
	for _, v := range values[1:] {
		if less(v, best) {
			best = v
		}
	}
	return best
}

func sumFloats(values []any) (float64, error) {
	sum := 0.0
	for _, v := range values {
		f, ok := pkg.NumToFloat(v)
		if !ok {
			return 0, fmt.Errorf("cannot sum non-numeric value %v", v)
		}
		sum += f
	}
	return sum, nil
}
