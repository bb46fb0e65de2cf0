package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the semantic type of a property.
type Kind uint8

const (
	// KindBool is a boolean property.
	KindBool Kind = iota
	// KindInt is an integer property.
	KindInt
	// KindFloat is a floating-point property.
	KindFloat
	// KindString is a string property.
	KindString
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
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

// Value is a property value: exactly one of bool, int64, float64 or string.
// The zero Value is invalid.
type Value struct {
	kind  Kind
	valid bool
	b     bool
	i     int64
	f     float64
	s     string
}

// Bool returns a bool value.
func Bool(b bool) Value { return Value{kind: KindBool, valid: true, b: b} }

// Int returns an int value.
func Int(i int64) Value { return Value{kind: KindInt, valid: true, i: i} }

// Float returns a float value.
func Float(f float64) Value { return Value{kind: KindFloat, valid: true, f: f} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, valid: true, s: s} }

// Zero returns the zero value of a kind.
func Zero(k Kind) Value {
	switch k {
	case KindInt:
		return Int(0)
	case KindFloat:
		return Float(0)
	case KindString:
		return String("")
	default:
		return Bool(false)
	}
}

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.valid }

// Kind returns the value's kind.
func (v Value) Kind() Kind { return v.kind }

// AsBool returns the bool payload (false for other kinds).
func (v Value) AsBool() bool { return v.kind == KindBool && v.b }

// AsInt returns the integer payload. Floats are truncated.
func (v Value) AsInt() int64 {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return int64(v.f)
	}
	return 0
}

// AsFloat returns the numeric payload as float64.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindInt:
		return float64(v.i)
	case KindFloat:
		return v.f
	}
	return 0
}

// AsString returns the string payload ("" for other kinds).
func (v Value) AsString() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

// Interface returns the payload as a plain Go value for encoding.
func (v Value) Interface() any {
	if !v.valid {
		return nil
	}
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	default:
		return v.s
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(other Value) bool {
	if v.valid != other.valid || v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindInt:
		return v.i == other.i
	case KindFloat:
		return v.f == other.f
	default:
		return v.s == other.s
	}
}

// String formats the value for display.
func (v Value) String() string {
	if !v.valid {
		return "<invalid>"
	}
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	default:
		return v.s
	}
}

var errFractional = errors.New("fractional value")

// Coerce converts raw decoded data into a Value of the given kind.
// Numbers decoded as float64, json.Number or numeric strings are accepted for
// numeric kinds; integral floats are accepted for KindInt.
func Coerce(kind Kind, raw any) (Value, error) {
	if v, ok := raw.(Value); ok {
		raw = v.Interface()
	}

	switch kind {
	case KindBool:
		switch r := raw.(type) {
		case bool:
			return Bool(r), nil
		case string:
			b, err := strconv.ParseBool(strings.TrimSpace(r))
			if err != nil {
				return Value{}, &CoercionError{Kind: kind, Raw: raw, Err: err}
			}
			return Bool(b), nil
		}

	case KindInt:
		switch r := raw.(type) {
		case int:
			return Int(int64(r)), nil
		case int8:
			return Int(int64(r)), nil
		case int16:
			return Int(int64(r)), nil
		case int32:
			return Int(int64(r)), nil
		case int64:
			return Int(r), nil
		case uint:
			return Int(int64(r)), nil
		case uint8:
			return Int(int64(r)), nil
		case uint16:
			return Int(int64(r)), nil
		case uint32:
			return Int(int64(r)), nil
		case uint64:
			if r > math.MaxInt64 {
				return Value{}, &CoercionError{Kind: kind, Raw: raw, Err: ErrOutOfRange}
			}
			return Int(int64(r)), nil
		case float32:
			return intFromFloat(kind, raw, float64(r))
		case float64:
			return intFromFloat(kind, raw, r)
		case json.Number:
			if i, err := r.Int64(); err == nil {
				return Int(i), nil
			}
			f, err := r.Float64()
			if err != nil {
				return Value{}, &CoercionError{Kind: kind, Raw: raw, Err: err}
			}
			return intFromFloat(kind, raw, f)
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(r), 10, 64)
			if err != nil {
				return Value{}, &CoercionError{Kind: kind, Raw: raw, Err: err}
			}
			return Int(i), nil
		}

	case KindFloat:
		switch r := raw.(type) {
		case int:
			return Float(float64(r)), nil
		case int32:
			return Float(float64(r)), nil
		case int64:
			return Float(float64(r)), nil
		case uint64:
			return Float(float64(r)), nil
		case float32:
			return Float(float64(r)), nil
		case float64:
			return Float(r), nil
		case json.Number:
			f, err := r.Float64()
			if err != nil {
				return Value{}, &CoercionError{Kind: kind, Raw: raw, Err: err}
			}
			return Float(f), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(r), 64)
			if err != nil {
				return Value{}, &CoercionError{Kind: kind, Raw: raw, Err: err}
			}
			return Float(f), nil
		}

	case KindString:
		switch r := raw.(type) {
		case string:
			return String(r), nil
		case bool, int, int64, float64, json.Number:
			return String(fmt.Sprint(r)), nil
		}
	}

	return Value{}, &CoercionError{Kind: kind, Raw: raw}
}

func intFromFloat(kind Kind, raw any, f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return Value{}, &CoercionError{Kind: kind, Raw: raw, Err: errFractional}
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return Value{}, &CoercionError{Kind: kind, Raw: raw, Err: ErrOutOfRange}
	}
	return Int(int64(f)), nil
}
