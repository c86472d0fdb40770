package hostfunc

import (
	"context"
	"io"
	"time"

	"github.com/qbradley/hyperlight/call"
)

// NewPrint returns the HostPrint builtin: it writes the message to w and
// returns the number of bytes written.
func NewPrint(w io.Writer) Func {
	return func(ctx context.Context, args []call.Value) (call.Value, error) {
		msg, err := args[0].AsString()
		if err != nil {
			return call.Void, err
		}
		n, err := io.WriteString(w, msg)
		if err != nil {
			return call.Void, err
		}
		return call.Int32(int32(n)), nil
	}
}

// NewTimeNow returns the TimeNow builtin: seconds since the Unix epoch
// with nanosecond precision.
func NewTimeNow() Func {
	return func(ctx context.Context, args []call.Value) (call.Value, error) {
		return call.Float64(float64(time.Now().UnixNano()) / 1e9), nil
	}
}

// RegisterBuiltins adds the standard host functions to reg: HostPrint
// writing to out, and TimeNow.
func RegisterBuiltins(reg *Registry, out io.Writer) {
	reg.Register("HostPrint", []call.Type{call.TypeString}, call.TypeInt32, NewPrint(out))
	reg.Register("TimeNow", nil, call.TypeFloat64, NewTimeNow())
}
