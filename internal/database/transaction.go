package database

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

type StateError struct {
	Op     string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid transaction %s: %s", e.Op, e.Reason)
}

// Transaction is a deferred-operation queue bound to one database, paired
// with a snapshot of that database taken at Begin. Queued mutations do not
// touch live state until Commit; Rollback restores the whole database from
// the snapshot. Only one transaction may be outstanding per database.
type Transaction struct {
	id        uuid.UUID
	db        *Database
	ops       []func() error
	snapshot  *Database
	startTime time.Time
}

func NewTransaction(db *Database) *Transaction {
	return &Transaction{id: uuid.Must(uuid.NewV7()), db: db}
}

func (tx *Transaction) ID() string { return tx.id.String() }

// Begin snapshots the database. A second Begin before Commit or Rollback is
// rejected: overwriting the snapshot would silently drop the only rollback
// point.
func (tx *Transaction) Begin() error {
	if tx.snapshot != nil {
		return &StateError{Op: "begin", Reason: "transaction already active"}
	}
	if tx.db.shadow != nil {
		return &StateError{Op: "begin", Reason: "another transaction holds the database snapshot"}
	}
	tx.ops = nil
	tx.snapshot = tx.db.Copy()
	tx.db.shadow = tx.snapshot
	tx.startTime = time.Now()
	return nil
}

// Defer queues a mutation. Satisfies table.Deferrer, so table mutation
// methods can hand their apply step here.
func (tx *Transaction) Defer(op func() error) {
	tx.ops = append(tx.ops, op)
}

// Commit executes the queued operations in queue order against the current
// live state, which may have moved on since the operations were queued.
// Execution stops at the first failing operation; the queue and snapshot
// are discarded either way.
func (tx *Transaction) Commit() error {
	if tx.snapshot == nil {
		return &StateError{Op: "commit", Reason: "no transaction begun"}
	}
	defer tx.clear()
	for i, op := range tx.ops {
		if err := op(); err != nil {
			return errors.Wrapf(err, "commit operation %d of %d", i+1, len(tx.ops))
		}
	}
	return nil
}

// Rollback discards the queue unexecuted and restores the whole database
// from the snapshot. Calling it without an active snapshot is a programming
// error and is reported, never ignored.
func (tx *Transaction) Rollback() error {
	if tx.snapshot == nil {
		return &StateError{Op: "rollback", Reason: "no transaction begun"}
	}
	tx.db.Restore(tx.snapshot)
	tx.clear()
	return nil
}

// Preview applies the queue to a throwaway copy and returns it, leaving the
// live database and the pending queue intact. The queued closures are bound
// to live table objects, so the live state is briefly mutated and then
// restored from a baseline copy taken on entry; table identities survive,
// keeping the queue valid for a later Commit.
func (tx *Transaction) Preview() (*Database, error) {
	if tx.snapshot == nil {
		return nil, &StateError{Op: "preview", Reason: "no transaction begun"}
	}
	base := tx.db.Copy()
	var opErr error
	for i, op := range tx.ops {
		if err := op(); err != nil {
			opErr = errors.Wrapf(err, "preview operation %d of %d", i+1, len(tx.ops))
			break
		}
	}
	preview := tx.db.Copy()
	tx.db.Restore(base)
	if opErr != nil {
		return nil, opErr
	}
	return preview, nil
}

func (tx *Transaction) clear() {
	tx.ops = nil
	tx.snapshot = nil
	tx.db.shadow = nil
}
