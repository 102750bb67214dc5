package core

import (
	"encoding/json"

	"supermini-go/errcode"
)

// As asserts a payload to the concrete value type T. Pointers are not
// accepted. A nil payload is treated as the zero value of T.
func As[T any](v any) (T, errcode.Code) {
	var zero T
	if v == nil {
		return zero, ""
	}
	t, ok := v.(T)
	if !ok {
		return zero, errcode.InvalidPayload
	}
	return t, ""
}

// DecodeParams converts builder params into T. Typed values (from code)
// pass through; JSON-ish maps (from an embedded config) go through a
// marshal round trip.
func DecodeParams[T any](v any) (T, error) {
	switch p := v.(type) {
	case T:
		return p, nil
	case *T:
		return *p, nil
	}
	var out T
	raw, err := json.Marshal(v)
	if err != nil {
		return out, errcode.InvalidParams
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, errcode.InvalidParams
	}
	return out, nil
}
