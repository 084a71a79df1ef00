package types

// Coercion helpers used when appending dynamically-typed values into a typed
// column. Each returns ok=false when the value cannot represent the target
// type; callers surface that as a type mismatch rather than converting.

// AsInt64 coerces integer-kinded values to int64.
func AsInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	default:
		return 0, false
	}
}

// AsFloat64 coerces numeric values to float64. Integers are accepted since
// JSON decoding loses the distinction for whole numbers.
func AsFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	default:
		if i, ok := AsInt64(v); ok {
			return float64(i), true
		}
		return 0, false
	}
}

// AsComplex coerces complex-kinded values to complex128.
func AsComplex(v interface{}) (complex128, bool) {
	switch c := v.(type) {
	case complex128:
		return c, true
	case complex64:
		return complex128(c), true
	default:
		return 0, false
	}
}

// AsVector coerces slice values to a []float64 vector.
func AsVector(v interface{}) ([]float64, bool) {
	switch s := v.(type) {
	case []float64:
		return s, true
	case []float32:
		out := make([]float64, len(s))
		for i, f := range s {
			out[i] = float64(f)
		}
		return out, true
	case []interface{}:
		out := make([]float64, len(s))
		for i, elem := range s {
			f, ok := AsFloat64(elem)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	default:
		return nil, false
	}
}

// AsString coerces v to a string.
func AsString(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
