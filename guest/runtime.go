package guest

import (
	"context"
	"fmt"

	"github.com/qbradley/hyperlight/call"
)

// HostTransport carries one encoded call envelope to the host and returns
// the encoded result. It is the guest's single crossing point for
// outbound calls.
type HostTransport interface {
	CallHost(ctx context.Context, envelope []byte) ([]byte, error)
}

// Runtime is the guest half of the call boundary: it owns the function
// registry, dispatches inbound calls, and issues outbound host calls. A
// Runtime is driven by one guest thread at a time; it is not safe for
// concurrent use.
type Runtime struct {
	reg        *Registry
	dispatcher *Dispatcher
	transport  HostTransport
	codec      call.Codec
	pending    *call.Result
}

type config struct {
	codec     call.Codec
	fallback  Fallback
	transport HostTransport
}

// Option configures a Runtime at creation time.
type Option func(*config)

// WithCodec replaces the default deterministic CBOR codec.
func WithCodec(c call.Codec) Option {
	return func(cfg *config) { cfg.codec = c }
}

// WithFallback installs the hook consulted for unregistered names.
func WithFallback(f Fallback) Option {
	return func(cfg *config) { cfg.fallback = f }
}

// WithHostTransport binds the outbound host-call transport.
func WithHostTransport(t HostTransport) Option {
	return func(cfg *config) { cfg.transport = t }
}

func NewRuntime(opts ...Option) *Runtime {
	cfg := config{codec: call.NewCodec()}
	for _, opt := range opts {
		opt(&cfg)
	}

	reg := NewRegistry()
	return &Runtime{
		reg:        reg,
		dispatcher: NewDispatcher(reg, cfg.codec, cfg.fallback),
		transport:  cfg.transport,
		codec:      cfg.codec,
	}
}

// Register adds a guest function under name with the given parameter and
// return types. Registering the same name again overwrites the earlier
// definition.
func (rt *Runtime) Register(name string, params []call.Type, ret call.Type, fn Func) {
	rt.reg.Register(Definition{Name: name, Params: params, Return: ret, Fn: fn})
}

// Registry exposes the runtime's function registry.
func (rt *Runtime) Registry() *Registry { return rt.reg }

// Dispatch handles one inbound encoded call envelope.
func (rt *Runtime) Dispatch(ctx context.Context, envelope []byte) []byte {
	return rt.dispatcher.Dispatch(ctx, envelope)
}

// CallHost fires a call at the host. No value comes back inline: the
// typed result is retrieved afterward through the HostReturn accessors
// and stays available until the next CallHost. A CallHost failure leaves
// no result pending; the host call's effects must then be treated as
// undefined.
func (rt *Runtime) CallHost(ctx context.Context, name string, ret call.Type, params ...call.Value) error {
	rt.pending = nil
	if rt.transport == nil {
		return call.Errorf(call.CodeHostCallFailed, "%s: no host transport bound", name)
	}

	envelope, err := rt.codec.EncodeCall(call.New(name, ret, params...))
	if err != nil {
		return call.Errorf(call.CodeHostCallFailed, "%s: %v", name, err)
	}
	reply, err := rt.transport.CallHost(ctx, envelope)
	if err != nil {
		return call.Errorf(call.CodeHostCallFailed, "%s: %v", name, err)
	}
	res, err := rt.codec.DecodeResult(reply)
	if err != nil {
		return call.Errorf(call.CodeHostCallFailed, "%s: %v", name, err)
	}

	rt.pending = &res
	return nil
}

// HostReturn fetches the pending host-call result as T. It fails when no
// result is pending, when the host reported an error, or when the result
// holds a different type. It never substitutes a default.
func HostReturn[T call.Scalar](rt *Runtime) (T, error) {
	var z T
	v, err := rt.hostResult()
	if err != nil {
		return z, err
	}
	return call.As[T](v)
}

// Typed accessors over the pending host-call result.

func (rt *Runtime) HostReturnInt32() (int32, error)     { return HostReturn[int32](rt) }
func (rt *Runtime) HostReturnUInt32() (uint32, error)   { return HostReturn[uint32](rt) }
func (rt *Runtime) HostReturnInt64() (int64, error)     { return HostReturn[int64](rt) }
func (rt *Runtime) HostReturnUInt64() (uint64, error)   { return HostReturn[uint64](rt) }
func (rt *Runtime) HostReturnFloat32() (float32, error) { return HostReturn[float32](rt) }
func (rt *Runtime) HostReturnFloat64() (float64, error) { return HostReturn[float64](rt) }
func (rt *Runtime) HostReturnBool() (bool, error)       { return HostReturn[bool](rt) }
func (rt *Runtime) HostReturnString() (string, error)   { return HostReturn[string](rt) }
func (rt *Runtime) HostReturnBytes() ([]byte, error)    { return HostReturn[[]byte](rt) }

// HostReturnVoid confirms the pending host call completed without a
// value.
func (rt *Runtime) HostReturnVoid() error {
	v, err := rt.hostResult()
	if err != nil {
		return err
	}
	if v.Tag != call.TypeVoid {
		return fmt.Errorf("value is %s, not Void", v.Tag)
	}
	return nil
}

func (rt *Runtime) hostResult() (call.Value, error) {
	if rt.pending == nil {
		return call.Void, call.Errorf(call.CodeHostCallFailed, "no host call result pending")
	}
	return rt.pending.Unpack()
}
