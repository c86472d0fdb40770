package call

import "fmt"

// Scalar enumerates the Go types that map directly to a value tag.
type Scalar interface {
	int32 | uint32 | int64 | uint64 | float32 | float64 | bool | string | []byte
}

// TypeFor returns the tag corresponding to T.
func TypeFor[T Scalar]() Type {
	var z T
	switch any(z).(type) {
	case int32:
		return TypeInt32
	case uint32:
		return TypeUInt32
	case int64:
		return TypeInt64
	case uint64:
		return TypeUInt64
	case float32:
		return TypeFloat32
	case float64:
		return TypeFloat64
	case bool:
		return TypeBool
	case string:
		return TypeString
	case []byte:
		return TypeBytes
	}
	panic("call: unhandled scalar type")
}

// As extracts the payload of v as T, failing when the tag does not match.
func As[T Scalar](v Value) (T, error) {
	var z T
	want := TypeFor[T]()
	if v.Tag != want {
		return z, fmt.Errorf("value is %s, not %s", v.Tag, want)
	}
	p, ok := v.Data.(T)
	if !ok {
		return z, fmt.Errorf("%s value holds %T payload", v.Tag, v.Data)
	}
	return p, nil
}

// Of wraps a native Go scalar in a tagged Value.
func Of[T Scalar](v T) Value {
	switch x := any(v).(type) {
	case int32:
		return Int32(x)
	case uint32:
		return UInt32(x)
	case int64:
		return Int64(x)
	case uint64:
		return UInt64(x)
	case float32:
		return Float32(x)
	case float64:
		return Float64(x)
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case []byte:
		return Bytes(x)
	}
	panic("call: unhandled scalar type")
}

// Values converts native Go arguments to tagged Values. Plain int and uint
// map to Int64 and UInt64. Arguments that already are a Value pass through
// unchanged.
func Values(args ...any) ([]Value, error) {
	out := make([]Value, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case Value:
			out[i] = v
		case int32:
			out[i] = Int32(v)
		case uint32:
			out[i] = UInt32(v)
		case int64:
			out[i] = Int64(v)
		case uint64:
			out[i] = UInt64(v)
		case int:
			out[i] = Int64(int64(v))
		case uint:
			out[i] = UInt64(uint64(v))
		case float32:
			out[i] = Float32(v)
		case float64:
			out[i] = Float64(v)
		case bool:
			out[i] = Bool(v)
		case string:
			out[i] = String(v)
		case []byte:
			out[i] = Bytes(v)
		default:
			return nil, fmt.Errorf("argument %d: unsupported type %T", i, a)
		}
	}
	return out, nil
}
