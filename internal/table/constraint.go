package table

import "fmt"

type ConstraintKind string

const (
	ConstraintUnique     ConstraintKind = "UNIQUE"
	ConstraintForeignKey ConstraintKind = "FOREIGN_KEY"
	ConstraintCheck      ConstraintKind = "CHECK"
)

// Constraint is a tagged predicate attached to one column. The three
// variants are evaluated through the same check call so registration order
// is the only thing that decides which violation wins.
type Constraint struct {
	Kind      ConstraintKind
	RefTable  *Table
	RefColumn string
	Check     func(any) bool
}

// ConstraintDecl is the serializable description of a registered
// constraint, used by the persistence codec. Check constraints serialize by
// kind only; their predicate cannot be represented.
type ConstraintDecl struct {
	Column    string         `json:"column"`
	Kind      ConstraintKind `json:"kind"`
	RefTable  string         `json:"reference_table,omitempty"`
	RefColumn string         `json:"reference_column,omitempty"`
}

func (c *Constraint) holds(t *Table, column string, value any) bool {
	switch c.Kind {
	case ConstraintUnique:
		for _, rec := range t.Records {
			if ValueEqual(rec.Data.Get(column), value) {
				return false
			}
		}
		return true
	case ConstraintForeignKey:
		for _, rec := range c.RefTable.Records {
			if ValueEqual(rec.Data.Get(c.RefColumn), value) {
				return true
			}
		}
		return false
	case ConstraintCheck:
		return c.Check(value)
	}
	return false
}

// AddUnique registers a uniqueness constraint on column.
func (t *Table) AddUnique(column string) error {
	return t.addConstraint(column, Constraint{Kind: ConstraintUnique})
}

// AddForeignKey requires values of column to exist among ref's refColumn
// values at the moment of insertion. Later changes to ref are not
// retroactively checked.
func (t *Table) AddForeignKey(column string, ref *Table, refColumn string) error {
	if ref == nil || refColumn == "" {
		return fmt.Errorf("foreign key constraints require a reference table and column")
	}
	return t.addConstraint(column, Constraint{
		Kind:      ConstraintForeignKey,
		RefTable:  ref,
		RefColumn: refColumn,
	})
}

// AddCheck registers an arbitrary predicate on column.
func (t *Table) AddCheck(column string, check func(any) bool) error {
	if check == nil {
		return fmt.Errorf("check constraint requires a predicate")
	}
	return t.addConstraint(column, Constraint{Kind: ConstraintCheck, Check: check})
}

func (t *Table) addConstraint(column string, c Constraint) error {
	if !t.hasColumn(column) {
		return &ColumnNotFoundError{Name: column}
	}
	t.constraints[column] = append(t.constraints[column], c)
	return nil
}

// ConstraintDecls enumerates registered constraints in column order, for
// re-serialization by the persistence layer.
func (t *Table) ConstraintDecls() []ConstraintDecl {
	decls := []ConstraintDecl{}
	for _, column := range t.Columns {
		for _, c := range t.constraints[column] {
			decl := ConstraintDecl{Column: column, Kind: c.Kind}
			if c.Kind == ConstraintForeignKey {
				decl.RefTable = c.RefTable.Name
				decl.RefColumn = c.RefColumn
			}
			decls = append(decls, decl)
		}
	}
	return decls
}

// checkConstraints runs every registered predicate against the prospective
// payload, per column in schema order, per constraint in registration
// order. The first failure aborts the whole write.
func (t *Table) checkConstraints(data map[string]any) error {
	for _, column := range t.Columns {
		for _, c := range t.constraints[column] {
			if !c.holds(t, column, data[column]) {
				return &ConstraintError{Column: column, Value: data[column]}
			}
		}
	}
	return nil
}
