package database_test

import (
	"testing"

	"github.com/segadb/segadb/internal/database"
	"github.com/segadb/segadb/internal/record"
	"github.com/segadb/segadb/internal/table"
	"gotest.tools/assert"
)

func adultsQuery(db *database.Database) (*table.Table, error) {
	return db.FilterTable("users", func(r *record.Record) bool {
		age, _ := r.Data.Get("age").(int)
		return age >= 18
	})
}

func newViewDB(t *testing.T) *database.Database {
	t.Helper()
	db := database.New("TestDB")
	users, err := db.CreateTable("users", []string{"name", "age"})
	assert.NilError(t, err)
	assert.NilError(t, users.Insert(map[string]any{"name": "john", "age": 30}))
	assert.NilError(t, users.Insert(map[string]any{"name": "tim", "age": 12}))
	return db
}

func TestView(t *testing.T) {
	db := newViewDB(t)
	v, err := db.CreateView("adults", adultsQuery)
	assert.NilError(t, err)

	data, err := v.Data(db)
	assert.NilError(t, err)
	assert.Equal(t, data.Len(), 1)
	assert.Equal(t, data.Records[0].Data.Get("name"), "john")

	t.Run("reads follow the base table", func(t *testing.T) {
		users, _ := db.GetTable("users")
		assert.NilError(t, users.Insert(map[string]any{"name": "jane", "age": 25}))

		data, err := v.Data(db)
		assert.NilError(t, err)
		assert.Equal(t, data.Len(), 2)
	})

	t.Run("duplicate name rejected", func(t *testing.T) {
		_, err := db.CreateView("adults", adultsQuery)
		assert.ErrorContains(t, err, "already exists")
	})

	t.Run("get and drop", func(t *testing.T) {
		got, err := db.GetView("adults")
		assert.NilError(t, err)
		assert.Equal(t, got.Name, "adults")

		assert.NilError(t, db.DropView("adults"))
		_, err = db.GetView("adults")
		_, ok := err.(*database.ViewNotFoundError)
		assert.Assert(t, ok)
		assert.Assert(t, db.DropView("adults") != nil)
	})
}

func TestMaterializedView(t *testing.T) {
	db := newViewDB(t)
	v, err := db.CreateMaterializedView("adults", adultsQuery)
	assert.NilError(t, err)
	assert.Equal(t, v.Data().Len(), 1)

	t.Run("reads serve the cache until refresh", func(t *testing.T) {
		users, _ := db.GetTable("users")
		assert.NilError(t, users.Insert(map[string]any{"name": "jane", "age": 25}))
		assert.Equal(t, v.Data().Len(), 1)

		assert.NilError(t, db.RefreshMaterializedView("adults"))
		assert.Equal(t, v.Data().Len(), 2)
	})

	t.Run("failing query blocks creation", func(t *testing.T) {
		_, err := db.CreateMaterializedView("broken", func(db *database.Database) (*table.Table, error) {
			return db.FilterTable("missing", func(*record.Record) bool { return true })
		})
		_, ok := err.(*database.TableNotFoundError)
		assert.Assert(t, ok)
		_, err = db.GetMaterializedView("broken")
		assert.Assert(t, err != nil)
	})

	t.Run("drop", func(t *testing.T) {
		assert.NilError(t, db.DropMaterializedView("adults"))
		assert.Assert(t, db.RefreshMaterializedView("adults") != nil)
	})
}
