// Package deepequal provides structural equality over nested values with
// cycle handling, a bounded recursion depth and nil-handling options.
package deepequal

import (
	"bytes"
	"fmt"
	"reflect"
	"regexp"
	"time"
)

// DefaultMaxDepth bounds recursion when no option is given.
const DefaultMaxDepth = 100

// Options configures a comparison.
type Options struct {
	// MaxDepth bounds recursion; exceeding it returns an error rather than
	// overflowing the stack. Zero means DefaultMaxDepth.
	MaxDepth int
	// IgnoreNilFields skips map entries whose value is nil, so a map with
	// an explicit nil entry compares equal to one without the key.
	IgnoreNilFields bool
	// NilEqualsAbsent treats a nil value and a missing map entry as
	// equivalent on the other side.
	NilEqualsAbsent bool
}

// ErrMaxDepth is the error type returned when recursion exceeds MaxDepth.
type ErrMaxDepth struct {
	Depth int
}

func (e *ErrMaxDepth) Error() string {
	return fmt.Sprintf("deepequal: max recursion depth %d exceeded", e.Depth)
}

// Equal reports structural equality between a and b.
func Equal(a, b interface{}, opts *Options) (bool, error) {
	c := &comparer{opts: Options{MaxDepth: DefaultMaxDepth}}
	if opts != nil {
		c.opts = *opts
		if c.opts.MaxDepth <= 0 {
			c.opts.MaxDepth = DefaultMaxDepth
		}
	}
	c.visited = make(map[visit]bool)
	return c.equal(reflect.ValueOf(a), reflect.ValueOf(b), 0)
}

// visit tracks in-progress pointer pairs so cyclic structures terminate.
type visit struct {
	a, b uintptr
	typ  reflect.Type
}

type comparer struct {
	opts    Options
	visited map[visit]bool
}

func (c *comparer) equal(a, b reflect.Value, depth int) (bool, error) {
	if depth > c.opts.MaxDepth {
		return false, &ErrMaxDepth{Depth: c.opts.MaxDepth}
	}

	if !a.IsValid() || !b.IsValid() {
		return a.IsValid() == b.IsValid(), nil
	}

	// Unwrap interfaces before comparing types.
	if a.Kind() == reflect.Interface {
		if a.IsNil() {
			return isNilValue(b), nil
		}
		a = a.Elem()
	}
	if b.Kind() == reflect.Interface {
		if b.IsNil() {
			return isNilValue(a), nil
		}
		b = b.Elem()
	}

	if a.Type() != b.Type() {
		return false, nil
	}

	// Cycle detection for reference kinds that can self-reference.
	switch a.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if a.IsNil() != b.IsNil() {
			return false, nil
		}
		if a.IsNil() {
			return true, nil
		}
		if a.Pointer() == b.Pointer() {
			return true, nil
		}
		v := visit{a: a.Pointer(), b: b.Pointer(), typ: a.Type()}
		if c.visited[v] {
			// Both sides loop back along the same path; treat as equal to
			// terminate instead of recursing forever.
			return true, nil
		}
		c.visited[v] = true
	}

	// Well-known structured types get semantic comparison.
	switch a.Type() {
	case reflect.TypeOf(time.Time{}):
		return a.Interface().(time.Time).Equal(b.Interface().(time.Time)), nil
	case reflect.TypeOf(&regexp.Regexp{}):
		ra := a.Interface().(*regexp.Regexp)
		rb := b.Interface().(*regexp.Regexp)
		if ra == nil || rb == nil {
			return ra == rb, nil
		}
		return ra.String() == rb.String(), nil
	case reflect.TypeOf([]byte(nil)):
		return bytes.Equal(a.Interface().([]byte), b.Interface().([]byte)), nil
	}

	switch a.Kind() {
	case reflect.Ptr:
		return c.equal(a.Elem(), b.Elem(), depth+1)

	case reflect.Slice, reflect.Array:
		if a.Len() != b.Len() {
			return false, nil
		}
		for i := 0; i < a.Len(); i++ {
			ok, err := c.equal(a.Index(i), b.Index(i), depth+1)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case reflect.Map:
		return c.equalMaps(a, b, depth)

	case reflect.Struct:
		for i := 0; i < a.NumField(); i++ {
			if !a.Type().Field(i).IsExported() {
				continue
			}
			ok, err := c.equal(a.Field(i), b.Field(i), depth+1)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil

	case reflect.Func, reflect.Chan:
		return a.IsNil() && b.IsNil(), nil

	default:
		return a.Interface() == b.Interface(), nil
	}
}

func (c *comparer) equalMaps(a, b reflect.Value, depth int) (bool, error) {
	keys := make(map[interface{}]struct{})
	for _, k := range a.MapKeys() {
		keys[k.Interface()] = struct{}{}
	}
	for _, k := range b.MapKeys() {
		keys[k.Interface()] = struct{}{}
	}

	for key := range keys {
		kv := reflect.ValueOf(key)
		av := a.MapIndex(kv)
		bv := b.MapIndex(kv)

		if c.opts.IgnoreNilFields {
			if (!av.IsValid() || isNilValue(av)) && (!bv.IsValid() || isNilValue(bv)) {
				continue
			}
		}

		if !av.IsValid() || !bv.IsValid() {
			// Key exists on one side only.
			present := av
			if !present.IsValid() {
				present = bv
			}
			if c.opts.NilEqualsAbsent && isNilValue(present) {
				continue
			}
			return false, nil
		}

		ok, err := c.equal(av, bv, depth+1)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func isNilValue(v reflect.Value) bool {
	if !v.IsValid() {
		return true
	}
	switch v.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}
