package call

// FunctionCall is the envelope for one call across the sandbox boundary:
// the function name, its ordered typed parameters, and the return type the
// caller expects. It is built once per call and handed to a dispatcher.
type FunctionCall struct {
	Name   string
	Params []Value
	Return Type
}

// New builds a call envelope for name with the expected return type.
func New(name string, ret Type, params ...Value) FunctionCall {
	return FunctionCall{Name: name, Params: params, Return: ret}
}

// VerifyParams checks params against the expected parameter types: same
// count, same order, same types. On mismatch it reports
// CodeParameterTypeMismatch naming the expected and received types; the
// caller must not invoke the target function.
func VerifyParams(fn string, want []Type, params []Value) *Error {
	if len(params) != len(want) {
		return Errorf(CodeParameterTypeMismatch,
			"%s: expected %d parameters, got %d", fn, len(want), len(params))
	}
	for i, w := range want {
		if got := params[i].Tag; got != w {
			return Errorf(CodeParameterTypeMismatch,
				"%s: parameter %d: expected %s, got %s", fn, i, w, got)
		}
	}
	return nil
}

// Result is the reply half of the envelope: either a typed return value or
// the boundary error that replaced it.
type Result struct {
	Value Value
	Err   *Error
}

// Ok wraps a successful return value.
func Ok(v Value) Result { return Result{Value: v} }

// Fail wraps a boundary error.
func Fail(e *Error) Result { return Result{Err: e} }

// Unpack splits the result into Go's usual value/error pair.
func (r Result) Unpack() (Value, error) {
	if r.Err != nil {
		return Void, r.Err
	}
	return r.Value, nil
}
