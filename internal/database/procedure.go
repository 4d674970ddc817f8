package database

import "fmt"

// Procedure is a named routine invoked through CallProcedure.
type Procedure func(db *Database, args ...any) (any, error)

// TriggerHook runs around a procedure call. A before hook returning an
// error aborts the call.
type TriggerHook func(db *Database, procedure string, args ...any) error

type TriggerWhen string

const (
	TriggerBefore TriggerWhen = "before"
	TriggerAfter  TriggerWhen = "after"
)

type ProcedureNotFoundError struct {
	Name string
}

func (e *ProcedureNotFoundError) Error() string {
	return fmt.Sprintf("stored procedure %s does not exist", e.Name)
}

func (db *Database) AddProcedure(name string, proc Procedure) error {
	if db.procedures.Has(name) {
		return fmt.Errorf("stored procedure %s already exists", name)
	}
	db.procedures.Push(name, proc)
	return nil
}

func (db *Database) GetProcedure(name string) (Procedure, error) {
	if !db.procedures.Has(name) {
		return nil, &ProcedureNotFoundError{Name: name}
	}
	return db.procedures.Get(name), nil
}

// DropProcedure removes the procedure and any triggers hooked onto it.
func (db *Database) DropProcedure(name string) error {
	if !db.procedures.Has(name) {
		return &ProcedureNotFoundError{Name: name}
	}
	db.procedures.Delete(name)
	delete(db.triggers[TriggerBefore], name)
	delete(db.triggers[TriggerAfter], name)
	return nil
}

// AddTrigger hooks a function to run before or after the named procedure.
// Hooks for the same slot run in registration order.
func (db *Database) AddTrigger(procedure string, when TriggerWhen, hook TriggerHook) error {
	if when != TriggerBefore && when != TriggerAfter {
		return fmt.Errorf("trigger slot must be %q or %q", TriggerBefore, TriggerAfter)
	}
	if !db.procedures.Has(procedure) {
		return &ProcedureNotFoundError{Name: procedure}
	}
	db.triggers[when][procedure] = append(db.triggers[when][procedure], hook)
	return nil
}

// DropTriggers clears every hook in one slot of the named procedure.
func (db *Database) DropTriggers(procedure string, when TriggerWhen) {
	delete(db.triggers[when], procedure)
}

// CallProcedure runs the named procedure between its before and after
// triggers. A failing before trigger skips the procedure; a failing after
// trigger reports its error but the procedure's effects stand.
func (db *Database) CallProcedure(name string, args ...any) (any, error) {
	proc, err := db.GetProcedure(name)
	if err != nil {
		return nil, err
	}
	if err := db.runTriggers(name, TriggerBefore, args...); err != nil {
		return nil, err
	}
	result, err := proc(db, args...)
	if err != nil {
		return nil, err
	}
	if err := db.runTriggers(name, TriggerAfter, args...); err != nil {
		return result, err
	}
	return result, nil
}

func (db *Database) runTriggers(procedure string, when TriggerWhen, args ...any) error {
	for _, hook := range db.triggers[when][procedure] {
		if err := hook(db, procedure, args...); err != nil {
			return err
		}
	}
	return nil
}
