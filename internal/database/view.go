package database

import (
	"fmt"

	"github.com/segadb/segadb/internal/table"
)

// ViewQuery produces a view's rows against the current database state.
type ViewQuery func(db *Database) (*table.Table, error)

type ViewNotFoundError struct {
	Name string
}

func (e *ViewNotFoundError) Error() string {
	return fmt.Sprintf("view %s does not exist", e.Name)
}

// View is a named query re-evaluated on every read.
type View struct {
	Name  string
	query ViewQuery
}

func (v *View) Data(db *Database) (*table.Table, error) { return v.query(db) }

// MaterializedView caches its query result. Reads serve the cache until
// Refresh re-evaluates the query.
type MaterializedView struct {
	Name  string
	query ViewQuery
	data  *table.Table
}

func (v *MaterializedView) Data() *table.Table { return v.data }

func (v *MaterializedView) Refresh(db *Database) error {
	data, err := v.query(db)
	if err != nil {
		return err
	}
	v.data = data
	return nil
}

func (db *Database) CreateView(name string, query ViewQuery) (*View, error) {
	if db.views.Has(name) {
		return nil, fmt.Errorf("view %s already exists", name)
	}
	v := &View{Name: name, query: query}
	db.views.Push(name, v)
	return v, nil
}

func (db *Database) GetView(name string) (*View, error) {
	if !db.views.Has(name) {
		return nil, &ViewNotFoundError{Name: name}
	}
	return db.views.Get(name), nil
}

func (db *Database) DropView(name string) error {
	if !db.views.Has(name) {
		return &ViewNotFoundError{Name: name}
	}
	db.views.Delete(name)
	return nil
}

// CreateMaterializedView evaluates query immediately and caches the result.
func (db *Database) CreateMaterializedView(name string, query ViewQuery) (*MaterializedView, error) {
	if db.matViews.Has(name) {
		return nil, fmt.Errorf("materialized view %s already exists", name)
	}
	v := &MaterializedView{Name: name, query: query}
	if err := v.Refresh(db); err != nil {
		return nil, err
	}
	db.matViews.Push(name, v)
	return v, nil
}

func (db *Database) GetMaterializedView(name string) (*MaterializedView, error) {
	if !db.matViews.Has(name) {
		return nil, &ViewNotFoundError{Name: name}
	}
	return db.matViews.Get(name), nil
}

func (db *Database) RefreshMaterializedView(name string) error {
	v, err := db.GetMaterializedView(name)
	if err != nil {
		return err
	}
	return v.Refresh(db)
}

func (db *Database) DropMaterializedView(name string) error {
	if !db.matViews.Has(name) {
		return &ViewNotFoundError{Name: name}
	}
	db.matViews.Delete(name)
	return nil
}
