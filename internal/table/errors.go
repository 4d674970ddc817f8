package table

import "fmt"

// ConstraintError reports the first predicate that rejected a prospective
// write. The mutation it aborted never partially applies.
type ConstraintError struct {
	Column string
	Value  any
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("constraint violation on column %s for value %v", e.Column, e.Value)
}

type DuplicateIDError struct {
	ID uint64
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("id %d is already in use", e.ID)
}

type ColumnNotFoundError struct {
	Name string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %s does not exist", e.Name)
}

type IndexNotFoundError struct {
	Name string
}

func (e *IndexNotFoundError) Error() string {
	return fmt.Sprintf("index %s does not exist", e.Name)
}
