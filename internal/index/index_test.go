package index_test

import (
	"testing"

	"github.com/segadb/segadb/internal/index"
	"gotest.tools/assert"
)

func TestAddAndFind(t *testing.T) {
	idx := index.New("idx_name", "name", false)

	assert.NilError(t, idx.Add("ada", 1))
	assert.NilError(t, idx.Add("ada", 3))
	assert.NilError(t, idx.Add("ada", 2))

	assert.DeepEqual(t, idx.Find("ada"), []uint64{1, 2, 3})
	assert.DeepEqual(t, idx.Find("missing"), []uint64{})

	t.Run("add is idempotent", func(t *testing.T) {
		assert.NilError(t, idx.Add("ada", 2))
		assert.DeepEqual(t, idx.Find("ada"), []uint64{1, 2, 3})
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		found := idx.Find("ada")
		found[0] = 99
		assert.DeepEqual(t, idx.Find("ada"), []uint64{1, 2, 3})
	})
}

func TestUniqueViolation(t *testing.T) {
	idx := index.New("idx_email", "email", true)

	assert.NilError(t, idx.Add("a@x.com", 1))

	err := idx.Add("a@x.com", 2)
	assert.Assert(t, err != nil)
	uerr, ok := err.(*index.UniqueViolationError)
	assert.Assert(t, ok)
	assert.Equal(t, uerr.Index, "idx_email")
	assert.Equal(t, uerr.Column, "email")
	assert.Equal(t, uerr.Key, "a@x.com")

	// state unchanged after the rejected add
	assert.DeepEqual(t, idx.Find("a@x.com"), []uint64{1})

	// re-adding the same id is still fine
	assert.NilError(t, idx.Add("a@x.com", 1))
}

func TestRemove(t *testing.T) {
	idx := index.New("idx", "c", false)
	idx.Add("k", 1)
	idx.Add("k", 2)

	idx.Remove("k", 1)
	assert.DeepEqual(t, idx.Find("k"), []uint64{2})

	// key disappears with its last id
	idx.Remove("k", 2)
	assert.Equal(t, idx.Len(), 0)

	// removing a pairing that never existed is a no-op
	idx.Remove("k", 5)
	idx.Remove("other", 1)
}

func TestUpdate(t *testing.T) {
	t.Run("moves id between keys", func(t *testing.T) {
		idx := index.New("idx", "c", true)
		idx.Add("old", 1)

		assert.NilError(t, idx.Update("old", "new", 1))
		assert.DeepEqual(t, idx.Find("old"), []uint64{})
		assert.DeepEqual(t, idx.Find("new"), []uint64{1})
	})

	t.Run("same key is a no-op", func(t *testing.T) {
		idx := index.New("idx", "c", true)
		idx.Add("k", 1)
		assert.NilError(t, idx.Update("k", "k", 1))
		assert.DeepEqual(t, idx.Find("k"), []uint64{1})
	})

	t.Run("conflicting target leaves state untouched", func(t *testing.T) {
		idx := index.New("idx", "c", true)
		idx.Add("a", 1)
		idx.Add("b", 2)

		err := idx.Update("a", "b", 1)
		assert.ErrorContains(t, err, "unique violation")
		assert.DeepEqual(t, idx.Find("a"), []uint64{1})
		assert.DeepEqual(t, idx.Find("b"), []uint64{2})
	})
}

func TestClearAndKeys(t *testing.T) {
	idx := index.New("idx", "c", false)
	idx.Add("x", 1)
	idx.Add("y", 2)

	assert.Equal(t, idx.Len(), 2)
	assert.Equal(t, len(idx.Keys()), 2)

	idx.Clear()
	assert.Equal(t, idx.Len(), 0)
	assert.DeepEqual(t, idx.Find("x"), []uint64{})
}

func TestCopy(t *testing.T) {
	idx := index.New("idx", "c", true)
	idx.Add("k", 1)

	clone := idx.Copy()
	clone.Add("k2", 2)
	idx.Remove("k", 1)

	assert.DeepEqual(t, clone.Find("k"), []uint64{1})
	assert.DeepEqual(t, clone.Find("k2"), []uint64{2})
	assert.Equal(t, idx.Len(), 0)
}
