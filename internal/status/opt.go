// internal/status/opt.go
package status

import "encoding/json"

// Opt is a value that may be absent.
// The zero value is absent; absent never means zero.
type Opt[T any] struct {
	v  T
	ok bool
}

// Some returns a present value.
func Some[T any](v T) Opt[T] {
	return Opt[T]{v: v, ok: true}
}

// Get returns the value and whether it is present.
func (o Opt[T]) Get() (T, bool) {
	return o.v, o.ok
}

// Valid reports whether the value is present.
func (o Opt[T]) Valid() bool {
	return o.ok
}

// Or returns o when present, otherwise prev.
func (o Opt[T]) Or(prev Opt[T]) Opt[T] {
	if o.ok {
		return o
	}
	return prev
}

// MarshalJSON encodes an absent value as null.
func (o Opt[T]) MarshalJSON() ([]byte, error) {
	if !o.ok {
		return []byte("null"), nil
	}
	return json.Marshal(o.v)
}
