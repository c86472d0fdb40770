package call

import (
	"bytes"
	"fmt"
)

// Type tags the runtime type of a parameter or return value crossing the
// sandbox boundary. The zero Type is Void, which is only meaningful as a
// return type.
type Type uint8

// Wire values. Do not reorder.
const (
	TypeVoid Type = iota
	TypeInt32
	TypeUInt32
	TypeInt64
	TypeUInt64
	TypeFloat32
	TypeFloat64
	TypeBool
	TypeString
	TypeBytes
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "Void"
	case TypeInt32:
		return "Int32"
	case TypeUInt32:
		return "UInt32"
	case TypeInt64:
		return "Int64"
	case TypeUInt64:
		return "UInt64"
	case TypeFloat32:
		return "Float32"
	case TypeFloat64:
		return "Float64"
	case TypeBool:
		return "Bool"
	case TypeString:
		return "String"
	case TypeBytes:
		return "Bytes"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Value is one typed value crossing the boundary. Tag determines the
// concrete type held in Data: int32 for TypeInt32, string for TypeString,
// and so on. The zero Value is Void.
type Value struct {
	Tag  Type
	Data any
}

// Void is the empty return value.
var Void = Value{Tag: TypeVoid}

// Constructors for each supported type.

func Int32(v int32) Value     { return Value{Tag: TypeInt32, Data: v} }
func UInt32(v uint32) Value   { return Value{Tag: TypeUInt32, Data: v} }
func Int64(v int64) Value     { return Value{Tag: TypeInt64, Data: v} }
func UInt64(v uint64) Value   { return Value{Tag: TypeUInt64, Data: v} }
func Float32(v float32) Value { return Value{Tag: TypeFloat32, Data: v} }
func Float64(v float64) Value { return Value{Tag: TypeFloat64, Data: v} }
func Bool(v bool) Value       { return Value{Tag: TypeBool, Data: v} }
func String(v string) Value   { return Value{Tag: TypeString, Data: v} }
func Bytes(v []byte) Value    { return Value{Tag: TypeBytes, Data: v} }

// Typed accessors. Each fails when the value holds a different type, so a
// caller never silently reads a mis-typed result.

func (v Value) AsInt32() (int32, error)     { return As[int32](v) }
func (v Value) AsUInt32() (uint32, error)   { return As[uint32](v) }
func (v Value) AsInt64() (int64, error)     { return As[int64](v) }
func (v Value) AsUInt64() (uint64, error)   { return As[uint64](v) }
func (v Value) AsFloat32() (float32, error) { return As[float32](v) }
func (v Value) AsFloat64() (float64, error) { return As[float64](v) }
func (v Value) AsBool() (bool, error)       { return As[bool](v) }
func (v Value) AsString() (string, error)   { return As[string](v) }
func (v Value) AsBytes() ([]byte, error)    { return As[[]byte](v) }

// String renders a human-friendly representation for logs and the REPL.
func (v Value) String() string {
	switch v.Tag {
	case TypeVoid:
		return "void"
	case TypeString:
		return fmt.Sprintf("%q", v.Data)
	case TypeBytes:
		b, _ := v.Data.([]byte)
		return fmt.Sprintf("0x%x", b)
	default:
		return fmt.Sprintf("%v", v.Data)
	}
}

// Equal reports whether two values have the same tag and payload.
func (v Value) Equal(o Value) bool {
	if v.Tag != o.Tag {
		return false
	}
	if v.Tag == TypeBytes {
		a, _ := v.Data.([]byte)
		b, _ := o.Data.([]byte)
		return bytes.Equal(a, b)
	}
	return v.Data == o.Data
}
