package models

import (
	"bytes"
	"encoding/json"
)

type fieldState uint8

const (
	fieldUnset fieldState = iota
	fieldNull
	fieldSet
)

// Field is an optional JSON value that keeps "not present" and "explicitly null" apart.
// A missing key decodes to an unset Field, a JSON null to a null Field.
type Field[T any] struct {
	value T
	state fieldState
}

// Some returns a Field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{value: v, state: fieldSet}
}

// Null returns a Field that was explicitly set to null.
func Null[T any]() Field[T] {
	return Field[T]{state: fieldNull}
}

// Get returns the value and whether one is present.
func (f Field[T]) Get() (T, bool) {
	return f.value, f.state == fieldSet
}

// Or returns the value, or def when the field holds none.
func (f Field[T]) Or(def T) T {
	if f.state == fieldSet {
		return f.value
	}
	return def
}

func (f Field[T]) IsSet() bool   { return f.state == fieldSet }
func (f Field[T]) IsNull() bool  { return f.state == fieldNull }
func (f Field[T]) IsUnset() bool { return f.state == fieldUnset }

// IsZero reports an unset field so `omitzero` drops it on encode.
func (f Field[T]) IsZero() bool { return f.state == fieldUnset }

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if f.state != fieldSet {
		return []byte("null"), nil
	}
	return json.Marshal(f.value)
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.value = zero
		f.state = fieldNull
		return nil
	}
	if err := json.Unmarshal(data, &f.value); err != nil {
		return err
	}
	f.state = fieldSet
	return nil
}
