// Copyright 2025 ZapFS Authors
// SPDX-License-Identifier: Apache-2.0

package property

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind is the type tag of a property value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUint32
	KindUint64
	KindBool
	KindString
	KindEnum
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindUint32:  "uint32",
	KindUint64:  "uint64",
	KindBool:    "bool",
	KindString:  "string",
	KindEnum:    "enum",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s && k != KindInvalid {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("unknown value kind %q", s)
}

// Value holds a single property value tagged with its kind.
// Numeric kinds (including bool, encoded as 0/1) live in num; strings in str.
type Value struct {
	kind Kind
	num  uint64
	str  string
}

func Uint32(v uint32) Value { return Value{kind: KindUint32, num: uint64(v)} }
func Uint64(v uint64) Value { return Value{kind: KindUint64, num: v} }
func String(v string) Value { return Value{kind: KindString, str: v} }
func Enum(v uint32) Value   { return Value{kind: KindEnum, num: uint64(v)} }

func Bool(v bool) Value {
	if v {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

// NewValue builds a value from its wire components, rejecting
// combinations that cannot be represented by the kind.
func NewValue(kind Kind, num uint64, str string) (Value, error) {
	switch kind {
	case KindUint32, KindEnum:
		if num > math.MaxUint32 {
			return Value{}, fmt.Errorf("%w: %d overflows %s", ErrInvalidProperty, num, kind)
		}
	case KindBool:
		if num > 1 {
			return Value{}, fmt.Errorf("%w: %d is not a bool", ErrInvalidProperty, num)
		}
	case KindUint64:
	case KindString:
		if num != 0 {
			return Value{}, fmt.Errorf("%w: string value carries a number", ErrInvalidProperty)
		}
		return Value{kind: kind, str: str}, nil
	default:
		return Value{}, fmt.Errorf("%w: invalid kind %s", ErrInvalidProperty, kind)
	}
	if str != "" {
		return Value{}, fmt.Errorf("%w: %s value carries a string", ErrInvalidProperty, kind)
	}
	return Value{kind: kind, num: num}, nil
}

// Zero returns the zero value of kind k.
func Zero(k Kind) Value { return Value{kind: k} }

func (v Value) Kind() Kind { return v.kind }

// Num returns the numeric wire encoding. Bools encode as 0 or 1.
func (v Value) Num() uint64 { return v.num }

func (v Value) Uint32() uint32 { return uint32(v.num) }
func (v Value) Uint64() uint64 { return v.num }
func (v Value) Bool() bool     { return v.num != 0 }
func (v Value) Enum() uint32   { return uint32(v.num) }
func (v Value) Str() string    { return v.str }

func (v Value) IsZero() bool { return v.num == 0 && v.str == "" }

func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.num == o.num && v.str == o.str
}

func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindInvalid:
		return "<invalid>"
	default:
		return strconv.FormatUint(v.num, 10)
	}
}

type valueJSON struct {
	Kind string `json:"kind"`
	Num  uint64 `json:"num,omitempty"`
	Str  string `json:"str,omitempty"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(valueJSON{Kind: v.kind.String(), Num: v.num, Str: v.str})
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw valueJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	kind, err := ParseKind(raw.Kind)
	if err != nil {
		return err
	}
	parsed, err := NewValue(kind, raw.Num, raw.Str)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
