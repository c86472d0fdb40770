package call

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Codec converts call envelopes and results to and from their wire form.
type Codec interface {
	EncodeCall(FunctionCall) ([]byte, error)
	DecodeCall([]byte) (FunctionCall, error)
	EncodeResult(Result) ([]byte, error)
	DecodeResult([]byte) (Result, error)
}

// The wire format is CBOR with Core Deterministic Encoding (RFC 8949
// §4.2): sorted map keys, smallest integer encoding. The same envelope
// always produces identical bytes.
var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("call: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("call: CBOR decoder initialization failed: " + err.Error())
	}
}

// NewCodec returns the default deterministic CBOR codec.
func NewCodec() Codec { return cborCodec{} }

type cborCodec struct{}

type wireValue struct {
	T uint8           `cbor:"t"`
	V cbor.RawMessage `cbor:"v,omitempty"`
}

type wireCall struct {
	F string      `cbor:"f"`
	P []wireValue `cbor:"p,omitempty"`
	R uint8       `cbor:"r"`
}

type wireError struct {
	C uint8  `cbor:"c"`
	M string `cbor:"m,omitempty"`
}

type wireResult struct {
	V *wireValue `cbor:"v,omitempty"`
	E *wireError `cbor:"e,omitempty"`
}

func (cborCodec) EncodeCall(fc FunctionCall) ([]byte, error) {
	w := wireCall{F: fc.Name, R: uint8(fc.Return)}
	if len(fc.Params) > 0 {
		w.P = make([]wireValue, len(fc.Params))
		for i, p := range fc.Params {
			wv, err := encodeValue(p)
			if err != nil {
				return nil, fmt.Errorf("call %s: parameter %d: %w", fc.Name, i, err)
			}
			w.P[i] = wv
		}
	}
	return encMode.Marshal(w)
}

func (cborCodec) DecodeCall(data []byte) (FunctionCall, error) {
	var w wireCall
	if err := decMode.Unmarshal(data, &w); err != nil {
		return FunctionCall{}, fmt.Errorf("decode call envelope: %w", err)
	}
	fc := FunctionCall{Name: w.F, Return: Type(w.R)}
	if len(w.P) > 0 {
		fc.Params = make([]Value, len(w.P))
		for i, wv := range w.P {
			v, err := decodeValue(wv)
			if err != nil {
				return FunctionCall{}, fmt.Errorf("decode call envelope: parameter %d: %w", i, err)
			}
			fc.Params[i] = v
		}
	}
	return fc, nil
}

func (cborCodec) EncodeResult(r Result) ([]byte, error) {
	var w wireResult
	if r.Err != nil {
		w.E = &wireError{C: uint8(r.Err.Code), M: r.Err.Message}
	} else if r.Value.Tag != TypeVoid {
		wv, err := encodeValue(r.Value)
		if err != nil {
			return nil, fmt.Errorf("encode result: %w", err)
		}
		w.V = &wv
	}
	return encMode.Marshal(w)
}

func (cborCodec) DecodeResult(data []byte) (Result, error) {
	var w wireResult
	if err := decMode.Unmarshal(data, &w); err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}
	if w.E != nil {
		return Fail(&Error{Code: ErrorCode(w.E.C), Message: w.E.M}), nil
	}
	if w.V == nil {
		return Ok(Void), nil
	}
	v, err := decodeValue(*w.V)
	if err != nil {
		return Result{}, fmt.Errorf("decode result: %w", err)
	}
	return Ok(v), nil
}

func encodeValue(v Value) (wireValue, error) {
	if v.Tag == TypeVoid {
		return wireValue{T: uint8(TypeVoid)}, nil
	}
	raw, err := encMode.Marshal(v.Data)
	if err != nil {
		return wireValue{}, fmt.Errorf("encode %s value: %w", v.Tag, err)
	}
	return wireValue{T: uint8(v.Tag), V: raw}, nil
}

func decodeValue(w wireValue) (Value, error) {
	tag := Type(w.T)
	switch tag {
	case TypeVoid:
		return Void, nil
	case TypeInt32:
		return decodePayload(w.V, Int32)
	case TypeUInt32:
		return decodePayload(w.V, UInt32)
	case TypeInt64:
		return decodePayload(w.V, Int64)
	case TypeUInt64:
		return decodePayload(w.V, UInt64)
	case TypeFloat32:
		return decodePayload(w.V, Float32)
	case TypeFloat64:
		return decodePayload(w.V, Float64)
	case TypeBool:
		return decodePayload(w.V, Bool)
	case TypeString:
		return decodePayload(w.V, String)
	case TypeBytes:
		return decodePayload(w.V, Bytes)
	default:
		return Void, fmt.Errorf("unknown value tag %d", w.T)
	}
}

func decodePayload[T any](raw cbor.RawMessage, mk func(T) Value) (Value, error) {
	var v T
	if err := decMode.Unmarshal(raw, &v); err != nil {
		var z T
		return Void, fmt.Errorf("decode %T payload: %w", z, err)
	}
	return mk(v), nil
}
