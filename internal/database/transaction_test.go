package database_test

import (
	"testing"

	"github.com/segadb/segadb/internal/database"
	"gotest.tools/assert"
)

func newTxDB(t *testing.T) *database.Database {
	t.Helper()
	db := database.New("TestDB")
	_, err := db.CreateTable("users", []string{"name", "email"})
	assert.NilError(t, err)
	users, _ := db.GetTable("users")
	assert.NilError(t, users.Insert(map[string]any{"name": "john", "email": "john@example.com"}))
	return db
}

func TestCommit(t *testing.T) {
	db := newTxDB(t)
	users, _ := db.GetTable("users")

	tx := database.NewTransaction(db)
	assert.NilError(t, tx.Begin())

	assert.NilError(t, users.InsertTx(map[string]any{"name": "jane"}, tx))
	assert.NilError(t, users.UpdateTx(1, map[string]any{"name": "johnny"}, tx))

	// nothing applied before commit
	assert.Equal(t, users.Len(), 1)
	assert.Equal(t, users.Records[0].Data.Get("name"), "john")

	assert.NilError(t, tx.Commit())
	assert.Equal(t, users.Len(), 2)
	assert.Equal(t, users.Records[0].Data.Get("name"), "johnny")
	assert.Equal(t, users.Records[1].Data.Get("name"), "jane")
}

func TestCommitOrderPreserved(t *testing.T) {
	db := newTxDB(t)
	users, _ := db.GetTable("users")

	tx := database.NewTransaction(db)
	assert.NilError(t, tx.Begin())

	// op1 inserts id 2, op2 updates it; order matters
	assert.NilError(t, users.InsertTx(map[string]any{"id": 2, "name": "first"}, tx))
	assert.NilError(t, users.UpdateTx(2, map[string]any{"name": "second"}, tx))

	assert.NilError(t, tx.Commit())
	rec, ok := users.Get(2)
	assert.Assert(t, ok)
	assert.Equal(t, rec.Data.Get("name"), "second")
}

func TestRollbackRestoresContent(t *testing.T) {
	db := newTxDB(t)
	users, _ := db.GetTable("users")

	before := dbContent(db)

	tx := database.NewTransaction(db)
	assert.NilError(t, tx.Begin())
	assert.NilError(t, users.InsertTx(map[string]any{"name": "jane"}, tx))
	assert.NilError(t, users.DeleteTx(1, tx))
	assert.NilError(t, tx.Rollback())

	assert.DeepEqual(t, dbContent(db), before)
}

func TestRollbackDiscardsQueueUnexecuted(t *testing.T) {
	db := newTxDB(t)
	users, _ := db.GetTable("users")

	tx := database.NewTransaction(db)
	assert.NilError(t, tx.Begin())
	assert.NilError(t, users.InsertTx(map[string]any{"name": "jane"}, tx))
	assert.NilError(t, tx.Rollback())

	after, _ := db.GetTable("users")
	assert.Equal(t, after.Len(), 1)
}

func TestRollbackKeepsTableIdentity(t *testing.T) {
	db := newTxDB(t)
	users, _ := db.GetTable("users")

	tx := database.NewTransaction(db)
	assert.NilError(t, tx.Begin())
	assert.NilError(t, users.InsertTx(map[string]any{"name": "jane"}, tx))
	assert.NilError(t, tx.Rollback())

	// a reference held across the rollback still addresses the live table
	after, err := db.GetTable("users")
	assert.NilError(t, err)
	assert.Assert(t, after == users)

	assert.NilError(t, users.Insert(map[string]any{"name": "mary"}))
	assert.Equal(t, after.Len(), 2)
}

func TestRollbackRevertsTableSet(t *testing.T) {
	t.Run("created table is dropped", func(t *testing.T) {
		db := newTxDB(t)
		tx := database.NewTransaction(db)
		assert.NilError(t, tx.Begin())

		_, err := db.CreateTable("orders", []string{"product"})
		assert.NilError(t, err)
		assert.NilError(t, tx.Rollback())

		_, err = db.GetTable("orders")
		assert.Assert(t, err != nil)
	})

	t.Run("dropped table comes back", func(t *testing.T) {
		db := newTxDB(t)
		tx := database.NewTransaction(db)
		assert.NilError(t, tx.Begin())

		assert.NilError(t, db.DropTable("users"))
		assert.NilError(t, tx.Rollback())

		users, err := db.GetTable("users")
		assert.NilError(t, err)
		assert.Equal(t, users.Len(), 1)
	})
}

func TestPreview(t *testing.T) {
	db := newTxDB(t)
	users, _ := db.GetTable("users")

	tx := database.NewTransaction(db)
	assert.NilError(t, tx.Begin())
	assert.NilError(t, users.InsertTx(map[string]any{"name": "jane"}, tx))

	before := dbContent(db)
	preview, err := tx.Preview()
	assert.NilError(t, err)

	previewUsers, err := preview.GetTable("users")
	assert.NilError(t, err)
	assert.Equal(t, previewUsers.Len(), 2)

	// live state untouched, queue still pending
	assert.DeepEqual(t, dbContent(db), before)
	assert.NilError(t, tx.Commit())
	assert.Equal(t, users.Len(), 2)
}

func TestStateErrors(t *testing.T) {
	t.Run("commit without begin", func(t *testing.T) {
		tx := database.NewTransaction(newTxDB(t))
		err := tx.Commit()
		_, ok := err.(*database.StateError)
		assert.Assert(t, ok)
	})

	t.Run("rollback without begin", func(t *testing.T) {
		tx := database.NewTransaction(newTxDB(t))
		err := tx.Rollback()
		_, ok := err.(*database.StateError)
		assert.Assert(t, ok)
	})

	t.Run("nested begin rejected", func(t *testing.T) {
		tx := database.NewTransaction(newTxDB(t))
		assert.NilError(t, tx.Begin())
		err := tx.Begin()
		_, ok := err.(*database.StateError)
		assert.Assert(t, ok)
	})

	t.Run("second transaction while one is active", func(t *testing.T) {
		db := newTxDB(t)
		tx1 := database.NewTransaction(db)
		assert.NilError(t, tx1.Begin())

		tx2 := database.NewTransaction(db)
		err := tx2.Begin()
		_, ok := err.(*database.StateError)
		assert.Assert(t, ok)

		// released after rollback
		assert.NilError(t, tx1.Rollback())
		assert.NilError(t, tx2.Begin())
		assert.NilError(t, tx2.Rollback())
	})

	t.Run("begin again after commit", func(t *testing.T) {
		tx := database.NewTransaction(newTxDB(t))
		assert.NilError(t, tx.Begin())
		assert.NilError(t, tx.Commit())
		assert.NilError(t, tx.Begin())
		assert.NilError(t, tx.Rollback())
	})
}

func TestCommitStopsAtFirstFailure(t *testing.T) {
	db := newTxDB(t)
	users, _ := db.GetTable("users")
	assert.NilError(t, users.CreateIndex("idx_email", "email", true))

	tx := database.NewTransaction(db)
	assert.NilError(t, tx.Begin())

	// queued against stale assumptions: the live insert below takes the
	// email first, so the queued op collides at commit time
	assert.NilError(t, users.InsertTx(map[string]any{"name": "a", "email": "x@x.com"}, tx))
	assert.NilError(t, users.InsertTx(map[string]any{"name": "b"}, tx))

	assert.NilError(t, users.Insert(map[string]any{"name": "live", "email": "x@x.com"}))

	err := tx.Commit()
	assert.ErrorContains(t, err, "commit operation 1 of 2")
	// second op never ran
	assert.Equal(t, users.Len(), 2)
}
