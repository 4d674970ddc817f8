package pkg

func Filter[T any](items []T, predicate func(T) bool) []T {
	filtered := []T{}
	for _, item := range items {
		if predicate(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// Converts a value suspected to be a numeric type to a uint64 record id.
// Needed because json decoding turns all numbers into float64.
func NumToID(num any) uint64 {
	switch num := num.(type) {
	case uint64:
		return num
	case int:
		return uint64(num)
	case int64:
		return uint64(num)
	case float64:
		return uint64(num)
	}
	return 0
}

// NumToFloat converts any numeric value to a float64.
// The second return is false when the value is not numeric.
func NumToFloat(num any) (float64, bool) {
	switch num := num.(type) {
	case int:
		return float64(num), true
	case int8:
		return float64(num), true
	case int16:
		return float64(num), true
	case int32:
		return float64(num), true
	case int64:
		return float64(num), true
	case uint:
		return float64(num), true
	case uint64:
		return float64(num), true
	case float32:
		return float64(num), true
	case float64:
		return num, true
	}
	return 0, false
}
