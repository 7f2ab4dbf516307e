// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package toolcall recovers structured todo-API calls from free-form
// model text.
//
// Model output is untrusted: calls arrive as Python-style function
// syntax or as a JSON array, often wrapped in prose or code fences.
// This package provides two tolerant parsers sharing one schema
// validator, a tagged value type for heterogeneous parameter literals,
// and a formatter that renders calls back to function syntax for
// downstream prompts.
package toolcall

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// =============================================================================
// Value
// =============================================================================

// Kind identifies the concrete type held by a Value.
type Kind int

const (
	// KindNull represents an explicit null/None literal.
	KindNull Kind = iota

	// KindBool represents a boolean literal.
	KindBool

	// KindInt represents an integer literal.
	KindInt

	// KindFloat represents a non-integral numeric literal.
	KindFloat

	// KindString represents a string literal.
	KindString
)

// String returns the lowercase name of the kind, used in
// validation messages.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	default:
		return "unknown"
	}
}

// Value is a tagged variant holding one parameter literal.
//
// Parameter values are heterogeneous per key (an id may be an int or
// a string, a date may be a string or null), so calls carry Values
// rather than an untyped container. The zero Value is null.
type Value struct {
	kind Kind
	b    bool
	i    int64
	f    float64
	s    string
}

// Null returns the null Value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Float returns a floating-point Value.
func Float(f float64) Value { return Value{kind: KindFloat, f: f} }

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Kind returns the concrete type tag of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// AsBool returns the boolean payload. ok is false for non-bool kinds.
func (v Value) AsBool() (b bool, ok bool) {
	return v.b, v.kind == KindBool
}

// AsInt returns the integer payload. ok is false for non-int kinds.
func (v Value) AsInt() (i int64, ok bool) {
	return v.i, v.kind == KindInt
}

// AsFloat returns the numeric payload coerced to float64.
// ok is false for non-numeric kinds.
func (v Value) AsFloat() (f float64, ok bool) {
	switch v.kind {
	case KindInt:
		return float64(v.i), true
	case KindFloat:
		return v.f, true
	default:
		return 0, false
	}
}

// AsString returns the string payload. ok is false for non-string kinds.
func (v Value) AsString() (s string, ok bool) {
	return v.s, v.kind == KindString
}

// Equal reports deep equality. Int and Float values compare
// numerically, so Int(3) equals Float(3.0).
func (v Value) Equal(o Value) bool {
	if vf, vok := v.AsFloat(); vok {
		of, ook := o.AsFloat()
		return ook && vf == of
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	default:
		return false
	}
}

// Interface returns the value as a plain Go type suitable for JSON
// encoding: nil, bool, int64, float64, or string.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	default:
		return nil
	}
}

// Display renders the value the way the call formatter writes it:
// True/False/None, bare numbers, or the raw string without quotes.
func (v Value) Display() string {
	switch v.kind {
	case KindBool:
		if v.b {
			return "True"
		}
		return "False"
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	default:
		return "None"
	}
}

// FromJSON converts a json.Unmarshal scalar into a Value.
//
// Integral float64 values collapse to KindInt so that JSON `3` and
// function-syntax `3` validate identically. Containers (maps, slices)
// are not representable; ok is false and callers decide how to
// surface the mismatch.
func FromJSON(x any) (Value, bool) {
	switch t := x.(type) {
	case nil:
		return Null(), true
	case bool:
		return Bool(t), true
	case string:
		return String(t), true
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < math.MaxInt64 {
			return Int(int64(t)), true
		}
		return Float(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Int(i), true
		}
		if f, err := t.Float64(); err == nil {
			return Float(f), true
		}
		return Value{}, false
	case int:
		return Int(int64(t)), true
	case int64:
		return Int(t), true
	default:
		return Value{}, false
	}
}

// MarshalJSON encodes the value as the underlying JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON decodes a JSON scalar into the value.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, ok := FromJSON(raw)
	if !ok {
		return fmt.Errorf("unsupported parameter value shape: %s", string(data))
	}
	*v = decoded
	return nil
}
