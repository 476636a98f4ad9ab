// Package erased boxes values of arbitrary types behind one concrete type,
// so that a single map can hold values of unrelated types.
//
// Each box records the reflect.Type of its value when it is built. The
// generic accessors compare that tag with the requested type before any type
// assertion; a mismatch yields false, never a panic.
package erased

import "reflect"

// Value is an erased box around a value of some type T. The box owns a
// pointer to its own copy of the value, so Mut can hand out a stable *T.
type Value struct {
	tag reflect.Type
	ptr any // always a *T where T is described by tag
}

// New boxes a copy of v and records T as its type tag.
func New[T any](v T) *Value {
	p := new(T)
	*p = v
	return &Value{tag: reflect.TypeFor[T](), ptr: p}
}

// Is reports whether the box was built for type T.
func Is[T any](v *Value) bool {
	if v == nil {
		return false
	}
	return v.tag == reflect.TypeFor[T]()
}

// Ref returns a copy of the boxed value if the box holds a T.
func Ref[T any](v *Value) (T, bool) {
	p, ok := Mut[T](v)
	if !ok {
		var zero T
		return zero, false
	}
	return *p, true
}

// Mut returns a pointer to the boxed value if the box holds a T. Writes
// through the pointer change the boxed value.
func Mut[T any](v *Value) (*T, bool) {
	if !Is[T](v) {
		return nil, false
	}
	p, ok := v.ptr.(*T)
	return p, ok
}

// Type returns the recorded type tag.
func (v *Value) Type() reflect.Type {
	return v.tag
}

// Interface returns the boxed pointer, for serialization.
func (v *Value) Interface() any {
	return v.ptr
}
