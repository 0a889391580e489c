// Package flatten turns irregularly nested sequences into a flat, lazy
// sequence of leaves.
//
// Sequences are classified by an explicit type dispatch rather than by
// probing for iteration:
//
//   - text-like values are always leaves: strings, byte slices and byte
//     arrays (including json.RawMessage and other named byte types) and
//     rune slices;
//   - []any, iter.Seq[any] and every other slice or array are sequences;
//     nil ones are empty;
//   - anything else (maps, structs, pointers, numbers, nil) is a leaf.
//
// Traversal is depth-first, left to right, and uses an explicit work stack,
// so nesting depth is bounded by memory rather than by the goroutine stack.
package flatten

import (
	"encoding/json"
	"iter"
	"reflect"
)

// cursor pulls the elements of one sequence level.
type cursor struct {
	next func() (any, bool)
	stop func()
}

// Flatten returns the leaves of items in depth-first, left-to-right order.
// Nothing is traversed until the returned sequence is ranged over, and
// stopping early leaves the rest of items untouched.
func Flatten(items []any) iter.Seq[any] {
	return func(yield func(any) bool) {
		walk(sliceCursor(items), yield)
	}
}

// Values flattens a single value. A leaf yields itself.
func Values(v any) iter.Seq[any] {
	return func(yield func(any) bool) {
		c, ok := cursorOf(v)
		if !ok {
			yield(v)
			return
		}
		walk(c, yield)
	}
}

// IsSequence reports whether v is expanded by Flatten.
func IsSequence(v any) bool {
	switch v.(type) {
	case iter.Seq[any], func(func(any) bool):
		return true
	}
	return isSliceLike(v)
}

func walk(root cursor, yield func(any) bool) {
	stack := []cursor{root}
	defer func() {
		// Release pulled iterators still open after an early stop.
		for _, c := range stack {
			if c.stop != nil {
				c.stop()
			}
		}
	}()

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		v, ok := top.next()
		if !ok {
			if top.stop != nil {
				top.stop()
			}
			stack = stack[:len(stack)-1]
			continue
		}

		if c, ok := cursorOf(v); ok {
			stack = append(stack, c)
			continue
		}

		if !yield(v) {
			return
		}
	}
}

func cursorOf(v any) (cursor, bool) {
	switch s := v.(type) {
	case nil, string, []byte, []rune, json.RawMessage:
		return cursor{}, false
	case []any:
		return sliceCursor(s), true
	case iter.Seq[any]:
		if s == nil {
			return sliceCursor(nil), true
		}
		return pullCursor(s), true
	case func(func(any) bool):
		if s == nil {
			return sliceCursor(nil), true
		}
		return pullCursor(s), true
	}

	if !isSliceLike(v) {
		return cursor{}, false
	}
	return reflectCursor(reflect.ValueOf(v)), true
}

func sliceCursor(items []any) cursor {
	i := 0
	return cursor{next: func() (any, bool) {
		if i >= len(items) {
			return nil, false
		}
		v := items[i]
		i++
		return v, true
	}}
}

func pullCursor(seq iter.Seq[any]) cursor {
	next, stop := iter.Pull(seq)
	return cursor{next: next, stop: stop}
}

func reflectCursor(rv reflect.Value) cursor {
	i := 0
	return cursor{next: func() (any, bool) {
		if i >= rv.Len() {
			return nil, false
		}
		e := rv.Index(i)
		i++
		return e.Interface(), true
	}}
}

// isSliceLike reports whether v is a slice or array that is not text.
func isSliceLike(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	switch t.Kind() {
	case reflect.Slice, reflect.Array:
	default:
		return false
	}
	switch t.Elem().Kind() {
	case reflect.Uint8:
		return false
	case reflect.Int32:
		// []int32 and []rune are the same type; treat both as text.
		return t.Kind() != reflect.Slice
	}
	return true
}
