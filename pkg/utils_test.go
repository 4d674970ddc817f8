package pkg_test

import (
	"testing"

	"github.com/segadb/segadb/pkg"
	"gotest.tools/assert"
)

func TestFilter(t *testing.T) {
	nums := []int{1, 2, 3, 4, 5, 6}
	even := pkg.Filter(nums, func(n int) bool { return n%2 == 0 })
	assert.DeepEqual(t, even, []int{2, 4, 6})
}

func TestNumToID(t *testing.T) {
	assert.Equal(t, pkg.NumToID(42), uint64(42))
	assert.Equal(t, pkg.NumToID(float64(42)), uint64(42))
	assert.Equal(t, pkg.NumToID("nope"), uint64(0))
}

func TestInsertSortMap(t *testing.T) {
	m := pkg.NewInsertSortMap[string, int]()
	m.Push("b", 2)
	m.Push("a", 1)
	m.Push("c", 3)

	assert.DeepEqual(t, m.Keys(), []string{"b", "a", "c"})

	// pushing an existing key must not duplicate it
	m.Push("a", 10)
	assert.Equal(t, m.Len(), 3)
	assert.Equal(t, m.Get("a"), 10)

	m.Delete("b")
	assert.DeepEqual(t, m.Keys(), []string{"a", "c"})
}
