package guest

import (
	"context"

	"github.com/qbradley/hyperlight/call"
)

// Fallback resolves calls whose name has no registered definition. It
// reports handled=false to decline, in which case the dispatcher fails
// the call with CodeFunctionNotFound. The hook is an opaque capability,
// not a second registry: the dispatcher hands it the whole envelope and
// returns whatever it produces as-is.
type Fallback func(ctx context.Context, fc call.FunctionCall) (v call.Value, handled bool, err error)

// Dispatcher routes incoming call envelopes to registered guest
// functions, verifying parameter types before any invocation.
type Dispatcher struct {
	reg      *Registry
	codec    call.Codec
	fallback Fallback
}

func NewDispatcher(reg *Registry, codec call.Codec, fallback Fallback) *Dispatcher {
	if codec == nil {
		codec = call.NewCodec()
	}
	return &Dispatcher{reg: reg, codec: codec, fallback: fallback}
}

// Dispatch handles one encoded call envelope and returns the encoded
// result. Every failure mode is reported through the result's typed
// error, never swallowed: decode failures return CodeEnvelopeDecode
// without looking anything up, type mismatches return
// CodeParameterTypeMismatch without running the function body, and
// unresolved names return CodeFunctionNotFound carrying the name.
func (d *Dispatcher) Dispatch(ctx context.Context, envelope []byte) []byte {
	out, err := d.codec.EncodeResult(d.dispatch(ctx, envelope))
	if err != nil {
		out, _ = d.codec.EncodeResult(call.Fail(call.Errorf(call.CodeInternal, "encode result: %v", err)))
	}
	return out
}

func (d *Dispatcher) dispatch(ctx context.Context, envelope []byte) call.Result {
	fc, err := d.codec.DecodeCall(envelope)
	if err != nil {
		return call.Fail(call.Errorf(call.CodeEnvelopeDecode, "%v", err))
	}

	def, ok := d.reg.Lookup(fc.Name)
	if !ok {
		return d.dispatchFallback(ctx, fc)
	}

	if verr := call.VerifyParams(fc.Name, def.Params, fc.Params); verr != nil {
		return call.Fail(verr)
	}

	v, err := def.Fn(ctx, fc.Params)
	if err != nil {
		return call.Fail(call.AsError(err))
	}
	return call.Ok(v)
}

func (d *Dispatcher) dispatchFallback(ctx context.Context, fc call.FunctionCall) call.Result {
	if d.fallback != nil {
		v, handled, err := d.fallback(ctx, fc)
		if err != nil {
			return call.Fail(call.AsError(err))
		}
		if handled {
			return call.Ok(v)
		}
	}
	return call.Fail(call.Errorf(call.CodeFunctionNotFound, "%s", fc.Name))
}
