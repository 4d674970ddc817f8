// Package table implements the storage core: ordered records sharing a
// column schema, a per-column constraint pipeline, auto-maintained secondary
// indexes and the query operators over them.
package table

import (
	"fmt"

	"github.com/segadb/segadb/internal/index"
	"github.com/segadb/segadb/internal/record"
	"github.com/segadb/segadb/pkg"
)

// Deferrer queues a mutation instead of executing it. *database.Transaction
// satisfies this; a nil Deferrer means the mutation applies immediately.
type Deferrer interface {
	Defer(op func() error)
}

type Table struct {
	Name    string
	Columns []string
	// Records in insertion order; deletions preserve the relative order of
	// survivors. Iteration over Records is the canonical table order.
	Records []*record.Record
	// NextID is monotonically non-decreasing and always exceeds the highest
	// id ever used, including explicit gapped ids.
	NextID uint64

	constraints map[string][]Constraint
	indexes     *pkg.InsertSortMap[string, *index.Index]
	byID        pkg.Map[uint64, *record.Record]
}

func New(name string, columns []string) (*Table, error) {
	seen := map[string]bool{}
	for _, c := range columns {
		if seen[c] {
			return nil, fmt.Errorf("duplicate column %s in table %s", c, name)
		}
		seen[c] = true
	}
	return &Table{
		Name:        name,
		Columns:     append([]string{}, columns...),
		Records:     []*record.Record{},
		NextID:      1,
		constraints: map[string][]Constraint{},
		indexes:     pkg.NewInsertSortMap[string, *index.Index](),
		byID:        pkg.Map[uint64, *record.Record]{},
	}, nil
}

func (t *Table) hasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

func (t *Table) Len() int { return len(t.Records) }

// Get resolves a record by id through the id map, not a scan.
func (t *Table) Get(id uint64) (*record.Record, bool) {
	rec, ok := t.byID[id]
	return rec, ok
}

// Insert validates data against the constraint pipeline, resolves the
// record id and appends. An explicit "id" key in data is used as the record
// id (and stripped from the stored payload) after checking it is unused.
func (t *Table) Insert(data map[string]any) error {
	return t.InsertTx(data, nil)
}

// InsertTx is Insert with the append deferred onto tx when tx is non-nil.
// Constraint checks and id resolution still happen at call time; only the
// append runs at commit.
func (t *Table) InsertTx(data map[string]any, tx Deferrer) error {
	if err := t.checkConstraints(data); err != nil {
		return err
	}

	payload := make(pkg.Map[string, any], len(data))
	for k, v := range data {
		payload[k] = v
	}

	id := t.NextID
	if raw, ok := payload["id"]; ok {
		id = pkg.NumToID(raw)
		if t.byID.Has(id) {
			return &DuplicateIDError{ID: id}
		}
		payload.Delete("id")
	}

	rec := record.New(id, payload)
	if tx != nil {
		tx.Defer(func() error { return t.attach(rec) })
	} else if err := t.attach(rec); err != nil {
		return err
	}

	if id+1 > t.NextID {
		t.NextID = id + 1
	}
	return nil
}

// attach appends a resolved record and maintains every registered index.
// Unique-index conflicts are checked before anything mutates so a rejected
// attach leaves the table untouched.
func (t *Table) attach(rec *record.Record) error {
	if t.byID.Has(rec.ID) {
		return &DuplicateIDError{ID: rec.ID}
	}
	if err := t.checkIndexConflicts(rec.Data, rec.ID); err != nil {
		return err
	}
	t.Records = append(t.Records, rec)
	t.byID.Set(rec.ID, rec)
	for _, name := range t.indexes.Sorted {
		idx := t.indexes.Get(name)
		if rec.Data.Has(idx.Column) {
			idx.Add(rec.Data.Get(idx.Column), rec.ID)
		}
	}
	return nil
}

func (t *Table) checkIndexConflicts(data pkg.Map[string, any], id uint64) error {
	for _, name := range t.indexes.Sorted {
		idx := t.indexes.Get(name)
		if !idx.Unique || !data.Has(idx.Column) {
			continue
		}
		for _, held := range idx.Find(data.Get(idx.Column)) {
			if held != id {
				return &index.UniqueViolationError{
					Index:  idx.Name,
					Column: idx.Column,
					Key:    data.Get(idx.Column),
				}
			}
		}
	}
	return nil
}

// TryInsert is best-effort Insert: failures are logged, never propagated.
func (t *Table) TryInsert(data map[string]any) {
	if err := t.Insert(data); err != nil {
		pkg.ErrorLog("error on insert:", err)
	}
}

// BulkInsert appends rows with sequential allocator ids. Explicit "id" keys
// are ignored. Each row still runs the constraint pipeline; the first
// failure aborts with rows inserted so far kept (callers wanting
// all-or-nothing wrap this in a transaction or a fresh table).
func (t *Table) BulkInsert(rows []map[string]any) error {
	for _, row := range rows {
		if _, ok := row["id"]; ok {
			row = copyRow(row)
			delete(row, "id")
		}
		if err := t.Insert(row); err != nil {
			return err
		}
	}
	return nil
}

// Update replaces a record's entire payload after checking constraints
// against the new data. Partial-field update is not supported; callers
// merge fields themselves. A missing id is a silent no-op.
func (t *Table) Update(id uint64, data map[string]any) error {
	return t.UpdateTx(id, data, nil)
}

func (t *Table) UpdateTx(id uint64, data map[string]any, tx Deferrer) error {
	if err := t.checkConstraints(data); err != nil {
		return err
	}
	if tx != nil {
		tx.Defer(func() error { return t.applyUpdate(id, data) })
		return nil
	}
	return t.applyUpdate(id, data)
}

func (t *Table) applyUpdate(id uint64, data map[string]any) error {
	rec, ok := t.byID[id]
	if !ok {
		return nil
	}
	payload := make(pkg.Map[string, any], len(data))
	for k, v := range data {
		payload[k] = v
	}
	if err := t.checkIndexConflicts(payload, id); err != nil {
		return err
	}
	for _, name := range t.indexes.Sorted {
		idx := t.indexes.Get(name)
		hadOld := rec.Data.Has(idx.Column)
		hasNew := payload.Has(idx.Column)
		switch {
		case hadOld && hasNew:
			if err := idx.Update(rec.Data.Get(idx.Column), payload.Get(idx.Column), id); err != nil {
				return err
			}
		case hadOld:
			idx.Remove(rec.Data.Get(idx.Column), id)
		case hasNew:
			idx.Add(payload.Get(idx.Column), id)
		}
	}
	rec.Data = payload
	return nil
}

// Delete removes the record with the given id. Unknown ids are a no-op.
func (t *Table) Delete(id uint64) error {
	return t.DeleteTx(id, nil)
}

func (t *Table) DeleteTx(id uint64, tx Deferrer) error {
	if tx != nil {
		tx.Defer(func() error { return t.applyDelete(id) })
		return nil
	}
	return t.applyDelete(id)
}

func (t *Table) applyDelete(id uint64) error {
	rec, ok := t.byID[id]
	if !ok {
		return nil
	}
	for i, r := range t.Records {
		if r.ID == id {
			t.Records = append(t.Records[:i], t.Records[i+1:]...)
			break
		}
	}
	t.byID.Delete(id)
	for _, name := range t.indexes.Sorted {
		idx := t.indexes.Get(name)
		if rec.Data.Has(idx.Column) {
			idx.Remove(rec.Data.Get(idx.Column), id)
		}
	}
	return nil
}

// CreateIndex builds a secondary index over column from the current records
// and keeps it maintained by insert/update/delete from then on. A unique
// index over data that already violates uniqueness fails without
// registering anything.
//
// Known caveat: mutating a record's ID field directly after insertion does
// not reconcile index entries made under the old id.
func (t *Table) CreateIndex(name, column string, unique bool) error {
	if !t.hasColumn(column) {
		return &ColumnNotFoundError{Name: column}
	}
	if t.indexes.Has(name) {
		return fmt.Errorf("index %s already exists", name)
	}
	idx := index.New(name, column, unique)
	for _, rec := range t.Records {
		if !rec.Data.Has(column) {
			continue
		}
		if err := idx.Add(rec.Data.Get(column), rec.ID); err != nil {
			return err
		}
	}
	t.indexes.Push(name, idx)
	return nil
}

func (t *Table) GetIndex(name string) (*index.Index, bool) {
	if !t.indexes.Has(name) {
		return nil, false
	}
	return t.indexes.Get(name), true
}

func (t *Table) DropIndex(name string) {
	t.indexes.Delete(name)
}

// IndexNames returns registered index names in creation order.
func (t *Table) IndexNames() []string {
	return t.indexes.Keys()
}

// GetIDByColumn returns the id of the first record whose column equals
// value, in table order.
func (t *Table) GetIDByColumn(column string, value any) (uint64, bool) {
	for _, rec := range t.Records {
		if ValueEqual(rec.Data.Get(column), value) {
			return rec.ID, true
		}
	}
	return 0, false
}

// Copy returns a structurally independent clone: records, allocator state,
// indexes and constraint registrations. Foreign-key constraints keep
// pointing at the original reference table; the database-level snapshot
// rebinds them.
func (t *Table) Copy() *Table {
	clone := &Table{
		Name:        t.Name,
		Columns:     append([]string{}, t.Columns...),
		Records:     make([]*record.Record, 0, len(t.Records)),
		NextID:      t.NextID,
		constraints: make(map[string][]Constraint, len(t.constraints)),
		indexes:     pkg.NewInsertSortMap[string, *index.Index](),
		byID:        make(pkg.Map[uint64, *record.Record], len(t.byID)),
	}
	for _, rec := range t.Records {
		c := rec.Copy()
		clone.Records = append(clone.Records, c)
		clone.byID.Set(c.ID, c)
	}
	for column, cs := range t.constraints {
		clone.constraints[column] = append([]Constraint{}, cs...)
	}
	for _, name := range t.indexes.Sorted {
		clone.indexes.Push(name, t.indexes.Get(name).Copy())
	}
	return clone
}

// RestoreFrom adopts src's content wholesale: records, allocator state,
// constraints and indexes. The receiver keeps its identity, so references
// and closures bound to it stay valid. src is consumed and must not be
// used afterwards.
func (t *Table) RestoreFrom(src *Table) {
	t.Name = src.Name
	t.Columns = src.Columns
	t.Records = src.Records
	t.NextID = src.NextID
	t.constraints = src.constraints
	t.indexes = src.indexes
	t.byID = src.byID
}

// RebindForeignKeys redirects foreign-key constraints that reference oldRef
// to newRef. Used when a whole database is cloned or restored.
func (t *Table) RebindForeignKeys(oldRef, newRef *Table) {
	for column, cs := range t.constraints {
		for i, c := range cs {
			if c.Kind == ConstraintForeignKey && c.RefTable == oldRef {
				t.constraints[column][i].RefTable = newRef
			}
		}
	}
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
