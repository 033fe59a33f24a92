package crypto

import (
	"encoding/json"
	"math"
	"reflect"
)

// CanonicalSerialize converts a JSON-like value (objects, arrays, strings,
// numbers, booleans, nil) to UTF-8 JSON bytes.
//
// Non-finite numbers (NaN, +Inf, -Inf) collapse to null. This is
// intentional, documented lossy behavior of the canonical format and must
// be preserved by implementations in other languages. Absent map fields
// simply never appear in the output; nil values are preserved as null.
// Self-referential values are a format error; shared non-cyclic nodes
// serialize independently at each occurrence.
func CanonicalSerialize(v interface{}) ([]byte, error) {
	sanitized, err := sanitizeValue(reflect.ValueOf(v), make(map[uintptr]bool))
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(sanitized)
	if err != nil {
		return nil, WrapError(KindFormat, "CanonicalSerialize", "value is not serializable", err)
	}
	return data, nil
}

// CanonicalDeserialize is the inverse of CanonicalSerialize.
func CanonicalDeserialize(data []byte) (interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, WrapError(KindFormat, "CanonicalDeserialize", "invalid canonical data", err)
	}
	return v, nil
}

// sanitizeValue walks a JSON-like tree replacing non-finite floats with
// nil so encoding/json never sees them. inPath tracks the pointers of the
// containers currently being walked: revisiting one means the value
// refers back into itself, which is reported as a format error rather
// than recursing until the stack blows. Values outside the tree shape
// (structs, channels) pass through untouched and fail in json.Marshal if
// they are unserializable.
func sanitizeValue(v reflect.Value, inPath map[uintptr]bool) (interface{}, error) {
	const op = "CanonicalSerialize"

	if !v.IsValid() {
		return nil, nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return sanitizeValue(v.Elem(), inPath)

	case reflect.Ptr:
		if v.IsNil() {
			return nil, nil
		}
		ptr := v.Pointer()
		if inPath[ptr] {
			return nil, NewError(KindFormat, op, "value contains a cycle")
		}
		inPath[ptr] = true
		defer delete(inPath, ptr)
		return sanitizeValue(v.Elem(), inPath)

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, nil
		}
		return f, nil

	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		ptr := v.Pointer()
		if inPath[ptr] {
			return nil, NewError(KindFormat, op, "value contains a cycle")
		}
		inPath[ptr] = true
		defer delete(inPath, ptr)

		out := make(map[string]interface{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			key := iter.Key()
			if key.Kind() != reflect.String {
				// Non-string keys fall back to json.Marshal's own handling.
				return v.Interface(), nil
			}
			val, err := sanitizeValue(iter.Value(), inPath)
			if err != nil {
				return nil, err
			}
			out[key.String()] = val
		}
		return out, nil

	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		// []byte keeps json's native base64 encoding.
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return v.Interface(), nil
		}
		ptr := v.Pointer()
		if inPath[ptr] {
			return nil, NewError(KindFormat, op, "value contains a cycle")
		}
		inPath[ptr] = true
		defer delete(inPath, ptr)

		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			val, err := sanitizeValue(v.Index(i), inPath)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil

	case reflect.Array:
		out := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			val, err := sanitizeValue(v.Index(i), inPath)
			if err != nil {
				return nil, err
			}
			out[i] = val
		}
		return out, nil

	default:
		return v.Interface(), nil
	}
}
