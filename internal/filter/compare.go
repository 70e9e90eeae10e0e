package filter

import "reflect"

// numeric converts the supported scalar number representations to float64.
// Records decoded from JSON carry float64, but records built in tests or by
// the upstream client may carry native integer types.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// Equal performs type-aware equality: numbers compare across representations,
// strings and bools compare directly, and composite values fall back to deep
// equality.
func Equal(a, b any) bool {
	if an, ok := numeric(a); ok {
		if bn, ok := numeric(b); ok {
			return an == bn
		}
		return false
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		return ok && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok := b.(bool)
		return ok && ab == bb
	}
	return reflect.DeepEqual(a, b)
}

// Compare orders two values. It returns -1, 0, or 1 and whether the pair is
// comparable at all: both numeric, or both strings (byte-wise ordinal).
// Mixed or composite types are not comparable.
func Compare(a, b any) (int, bool) {
	if an, ok := numeric(a); ok {
		bn, ok := numeric(b)
		if !ok {
			return 0, false
		}
		switch {
		case an < bn:
			return -1, true
		case an > bn:
			return 1, true
		}
		return 0, true
	}
	if as, ok := a.(string); ok {
		bs, ok := b.(string)
		if !ok {
			return 0, false
		}
		switch {
		case as < bs:
			return -1, true
		case as > bs:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
