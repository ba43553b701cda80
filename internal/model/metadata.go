package model

import "fmt"

// Copier is the explicit copy contract for metadata values that are not
// plain scalars.
type Copier interface {
	Copy() (any, error)
}

// CopyValue deep-copies a metadata value. Scalars, strings and the common
// slice and map shapes are copied directly; anything else must implement
// Copier.
func CopyValue(v any) (any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string, bool, int, int32, int64, uint, uint32, uint64, float32, float64:
		return t, nil
	case []float64:
		return append([]float64(nil), t...), nil
	case []int:
		return append([]int(nil), t...), nil
	case []string:
		return append([]string(nil), t...), nil
	case map[string]string:
		out := make(map[string]string, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out, nil
	case map[string]float64:
		out := make(map[string]float64, len(t))
		for k, val := range t {
			out[k] = val
		}
		return out, nil
	case Copier:
		return t.Copy()
	default:
		return nil, fmt.Errorf("%w: %T", ErrNotCopyable, v)
	}
}
