package sandbox

import (
	"context"

	"github.com/qbradley/hyperlight/call"
)

// Caller is the call surface shared by Sandbox and CallContext.
type Caller interface {
	Call(ctx context.Context, name string, ret call.Type, params ...call.Value) (call.Value, error)
}

var (
	_ Caller = (*Sandbox)(nil)
	_ Caller = (*CallContext)(nil)
)

// Call invokes a guest function returning T, converting native Go
// arguments on the way in. Plain int and uint arguments map to Int64
// and UInt64.
func Call[T call.Scalar](ctx context.Context, c Caller, name string, args ...any) (T, error) {
	var z T
	params, err := call.Values(args...)
	if err != nil {
		return z, err
	}
	v, err := c.Call(ctx, name, call.TypeFor[T](), params...)
	if err != nil {
		return z, err
	}
	return call.As[T](v)
}

// CallVoid invokes a guest function that returns nothing.
func CallVoid(ctx context.Context, c Caller, name string, args ...any) error {
	params, err := call.Values(args...)
	if err != nil {
		return err
	}
	_, err = c.Call(ctx, name, call.TypeVoid, params...)
	return err
}
