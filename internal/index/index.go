// Package index implements secondary lookup structures owned by a table:
// one column, value -> set of record ids, optionally uniqueness-enforcing.
package index

import (
	"fmt"

	sorted "github.com/tobshub/go-sortedmap"
)

type UniqueViolationError struct {
	Index  string
	Column string
	Key    any
}

func (e *UniqueViolationError) Error() string {
	return fmt.Sprintf("unique violation on index %s (column %s) for key %v", e.Index, e.Column, e.Key)
}

// idSet keeps record ids in ascending order so Find results are deterministic.
type idSet = sorted.SortedMap[uint64, uint64]

func newIDSet() *idSet {
	return sorted.New[uint64, uint64](0, func(a, b uint64) bool { return a < b })
}

type Index struct {
	Name    string
	Column  string
	Unique  bool
	entries map[string]*idSet
}

func New(name, column string, unique bool) *Index {
	return &Index{Name: name, Column: column, Unique: unique, entries: map[string]*idSet{}}
}

// Index keys are formatted with %v, same as row values are compared
// everywhere else in the engine.
func keyString(v any) string {
	return fmt.Sprintf("%v", v)
}

// Add registers id under key. Adding the same pairing twice is a no-op.
// On a unique index, a key already held by a different id is rejected
// before any state changes.
func (idx *Index) Add(key any, id uint64) error {
	k := keyString(key)
	set, ok := idx.entries[k]
	if ok && idx.Unique && set.Len() > 0 && !set.Has(id) {
		return &UniqueViolationError{Index: idx.Name, Column: idx.Column, Key: key}
	}
	if !ok {
		set = newIDSet()
		idx.entries[k] = set
	}
	set.Insert(id, id)
	return nil
}

// Remove drops the key/id pairing. The key itself is dropped once its id set
// is empty. Removing a pairing that does not exist is a silent no-op.
func (idx *Index) Remove(key any, id uint64) {
	k := keyString(key)
	set, ok := idx.entries[k]
	if !ok {
		return
	}
	set.Delete(id)
	if set.Len() == 0 {
		delete(idx.entries, k)
	}
}

// Find returns a copy of the id set for key, in ascending id order.
// Callers can never reach index internals through the returned slice.
func (idx *Index) Find(key any) []uint64 {
	set, ok := idx.entries[keyString(key)]
	if !ok {
		return []uint64{}
	}
	return setIDs(set)
}

// Update moves id from oldKey to newKey. Equal keys are a no-op. Uniqueness
// of newKey is checked before anything mutates; if the add step still fails
// the removed entry is restored before the error propagates.
func (idx *Index) Update(oldKey, newKey any, id uint64) error {
	if keyString(oldKey) == keyString(newKey) {
		return nil
	}
	if set, ok := idx.entries[keyString(newKey)]; ok && idx.Unique && set.Len() > 0 && !set.Has(id) {
		return &UniqueViolationError{Index: idx.Name, Column: idx.Column, Key: newKey}
	}
	idx.Remove(oldKey, id)
	if err := idx.Add(newKey, id); err != nil {
		idx.Add(oldKey, id)
		return err
	}
	return nil
}

func (idx *Index) Clear() {
	idx.entries = map[string]*idSet{}
}

// Keys returns every indexed key. Order is unspecified.
func (idx *Index) Keys() []string {
	keys := make([]string, 0, len(idx.entries))
	for k := range idx.entries {
		keys = append(keys, k)
	}
	return keys
}

// Len is the number of distinct keys in the index.
func (idx *Index) Len() int { return len(idx.entries) }

// Copy returns a structurally independent clone of the index.
func (idx *Index) Copy() *Index {
	clone := New(idx.Name, idx.Column, idx.Unique)
	for k, set := range idx.entries {
		cs := newIDSet()
		for _, id := range setIDs(set) {
			cs.Insert(id, id)
		}
		clone.entries[k] = cs
	}
	return clone
}

func setIDs(set *idSet) []uint64 {
	ids := make([]uint64, 0, set.Len())
	iterCh, err := set.IterCh()
	if err != nil {
		// only fails on an empty map
		return ids
	}
	defer iterCh.Close()
	for rec := range iterCh.Records() {
		ids = append(ids, rec.Val)
	}
	return ids
}
