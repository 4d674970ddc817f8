// Package database ties tables into a named registry and layers the
// snapshot/rollback transaction machinery on top. It assumes a single
// logical writer; callers sharing a Database across goroutines serialize
// access themselves (the server does so through the embedded locker).
package database

import (
	"fmt"
	"sync"

	"github.com/segadb/segadb/internal/record"
	"github.com/segadb/segadb/internal/table"
	"github.com/segadb/segadb/pkg"
)

type TableNotFoundError struct {
	Name string
}

func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table %s does not exist", e.Name)
}

type Database struct {
	Name   string
	Tables *pkg.InsertSortMap[string, *table.Table]

	views      *pkg.InsertSortMap[string, *View]
	matViews   *pkg.InsertSortMap[string, *MaterializedView]
	procedures *pkg.InsertSortMap[string, Procedure]
	triggers   map[TriggerWhen]map[string][]TriggerHook

	// shadow is the outstanding transaction snapshot; at most one exists.
	shadow *Database
	locker sync.RWMutex
}

func New(name string) *Database {
	return &Database{
		Name:       name,
		Tables:     pkg.NewInsertSortMap[string, *table.Table](),
		views:      pkg.NewInsertSortMap[string, *View](),
		matViews:   pkg.NewInsertSortMap[string, *MaterializedView](),
		procedures: pkg.NewInsertSortMap[string, Procedure](),
		triggers: map[TriggerWhen]map[string][]TriggerHook{
			TriggerBefore: {},
			TriggerAfter:  {},
		},
	}
}

func (db *Database) GetLocker() *sync.RWMutex { return &db.locker }

func (db *Database) CreateTable(name string, columns []string) (*table.Table, error) {
	if db.Tables.Has(name) {
		return nil, fmt.Errorf("table %s already exists", name)
	}
	t, err := table.New(name, columns)
	if err != nil {
		return nil, err
	}
	db.Tables.Push(name, t)
	return t, nil
}

func (db *Database) GetTable(name string) (*table.Table, error) {
	if !db.Tables.Has(name) {
		return nil, &TableNotFoundError{Name: name}
	}
	return db.Tables.Get(name), nil
}

func (db *Database) DropTable(name string) error {
	if !db.Tables.Has(name) {
		return &TableNotFoundError{Name: name}
	}
	db.Tables.Delete(name)
	return nil
}

// AddConstraint registers a declared constraint by kind, resolving
// foreign-key references against this database. Check constraints cannot be
// added this way; they carry a predicate and use Table.AddCheck directly.
func (db *Database) AddConstraint(tableName, column string, kind table.ConstraintKind, refTable, refColumn string) error {
	t, err := db.GetTable(tableName)
	if err != nil {
		return err
	}
	switch kind {
	case table.ConstraintUnique:
		return t.AddUnique(column)
	case table.ConstraintForeignKey:
		ref, err := db.GetTable(refTable)
		if err != nil {
			return err
		}
		return t.AddForeignKey(column, ref, refColumn)
	}
	return fmt.Errorf("unsupported constraint kind: %s", kind)
}

// JoinTables inner-joins two named tables. The result is returned, not
// registered in the database.
func (db *Database) JoinTables(name1, name2, onColumn, otherColumn string) (*table.Table, error) {
	t1, err := db.GetTable(name1)
	if err != nil {
		return nil, err
	}
	t2, err := db.GetTable(name2)
	if err != nil {
		return nil, err
	}
	return t1.Join(t2, onColumn, otherColumn)
}

func (db *Database) AggregateTable(tableName, groupColumn, column string, fn table.AggFunc) (*table.Table, error) {
	t, err := db.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	if groupColumn == "" {
		return t.Aggregate(column, fn)
	}
	return t.AggregateBy(groupColumn, column, fn)
}

func (db *Database) FilterTable(tableName string, predicate func(*record.Record) bool) (*table.Table, error) {
	t, err := db.GetTable(tableName)
	if err != nil {
		return nil, err
	}
	return t.Filter(predicate)
}

// Copy returns a structural deep clone: every table, record payload, index
// and constraint registration, with foreign-key references rebound to the
// cloned tables. Cost is O(size of the database).
func (db *Database) Copy() *Database {
	clone := New(db.Name)
	originals := make([]*table.Table, 0, db.Tables.Len())
	clones := make([]*table.Table, 0, db.Tables.Len())
	for _, name := range db.Tables.Sorted {
		orig := db.Tables.Get(name)
		c := orig.Copy()
		clone.Tables.Push(name, c)
		originals = append(originals, orig)
		clones = append(clones, c)
	}
	for _, c := range clones {
		for i, orig := range originals {
			c.RebindForeignKeys(orig, clones[i])
		}
	}
	return clone
}

// Restore pours the snapshot's content back into the live table objects
// without replacing them, so table references held by callers stay valid
// across a rollback. Tables created since the snapshot are dropped, tables
// missing from the live set are adopted from the snapshot, and registry
// order reverts to the snapshot's. The snapshot is consumed.
func (db *Database) Restore(snapshot *Database) {
	db.Name = snapshot.Name
	tables := pkg.NewInsertSortMap[string, *table.Table]()
	for _, name := range snapshot.Tables.Sorted {
		src := snapshot.Tables.Get(name)
		if db.Tables.Has(name) {
			live := db.Tables.Get(name)
			live.RestoreFrom(src)
			tables.Push(name, live)
		} else {
			tables.Push(name, src)
		}
	}
	db.Tables = tables
	// adopted constraints reference the snapshot's clones; point them back
	// at the live tables
	for _, name := range db.Tables.Sorted {
		live := db.Tables.Get(name)
		for _, refName := range snapshot.Tables.Sorted {
			live.RebindForeignKeys(snapshot.Tables.Get(refName), db.Tables.Get(refName))
		}
	}
}
