package record

import (
	"fmt"

	"github.com/segadb/segadb/pkg"
)

// Record is an identity plus a schema-less column->value payload.
// Variant types embed Record and interpret the payload under a reserved key;
// they never change the identity/storage contract.
type Record struct {
	ID   uint64
	Data pkg.Map[string, any]
}

func New(id uint64, data map[string]any) *Record {
	if data == nil {
		data = map[string]any{}
	}
	return &Record{ID: id, Data: data}
}

func (r *Record) Type() string { return "record" }

// Copy returns a record with a fresh payload map. Slice and map values
// are copied one level deep so a snapshot does not alias the live payload.
func (r *Record) Copy() *Record {
	data := make(pkg.Map[string, any], len(r.Data))
	for k, v := range r.Data {
		data[k] = copyValue(v)
	}
	return &Record{ID: r.ID, Data: data}
}

func copyValue(v any) any {
	switch v := v.(type) {
	case []float64:
		out := make([]float64, len(v))
		copy(out, v)
		return out
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = copyValue(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = copyValue(e)
		}
		return out
	}
	return v
}

// DecryptionError reports a failed decrypt on an encrypted record.
type DecryptionError struct {
	RecordID uint64
	Cause    error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed for record %d: %v", e.RecordID, e.Cause)
}

func (e *DecryptionError) Unwrap() error { return e.Cause }

func toFloats(v any) ([]float64, error) {
	switch v := v.(type) {
	case []float64:
		return v, nil
	case []any:
		out := make([]float64, len(v))
		for i, e := range v {
			f, ok := pkg.NumToFloat(e)
			if !ok {
				return nil, fmt.Errorf("element %d is not numeric: %v", i, e)
			}
			out[i] = f
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected a numeric sequence, got %T", v)
}
