package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/qbradley/hyperlight/call"
	"github.com/qbradley/hyperlight/guest"
	"github.com/qbradley/hyperlight/hostfunc"
	"github.com/qbradley/hyperlight/mem"
)

// totalAddr is where the demo guest keeps its running total in guest
// memory, so snapshot and restore behavior is observable from tests.
const totalAddr = 0x100

// DemoGuest returns an in-process guest exposing a small function set
// used across tests and the examples. Its AddToTotal counter lives in
// guest memory, which makes state reset and state retention visible to
// callers.
func DemoGuest() Guest {
	return NewInProcess("demo", func(rt *guest.Runtime, linear *mem.Linear) {
		rt.Register("Echo", []call.Type{call.TypeString}, call.TypeString,
			func(ctx context.Context, params []call.Value) (call.Value, error) {
				s, err := params[0].AsString()
				if err != nil {
					return call.Void, err
				}
				return call.String(s), nil
			})

		rt.Register("AddToTotal", []call.Type{call.TypeUInt64}, call.TypeUInt64,
			func(ctx context.Context, params []call.Value) (call.Value, error) {
				n, err := params[0].AsUInt64()
				if err != nil {
					return call.Void, err
				}
				total, err := linear.ReadUint64(totalAddr)
				if err != nil {
					return call.Void, err
				}
				total += n
				if err := linear.WriteUint64(totalAddr, total); err != nil {
					return call.Void, err
				}
				return call.UInt64(total), nil
			})

		rt.Register("GetTotal", nil, call.TypeUInt64,
			func(ctx context.Context, params []call.Value) (call.Value, error) {
				total, err := linear.ReadUint64(totalAddr)
				if err != nil {
					return call.Void, err
				}
				return call.UInt64(total), nil
			})

		rt.Register("PeekByte", []call.Type{call.TypeUInt64}, call.TypeUInt32,
			func(ctx context.Context, params []call.Value) (call.Value, error) {
				addr, err := params[0].AsUInt64()
				if err != nil {
					return call.Void, err
				}
				b, err := linear.Read(addr, 1)
				if err != nil {
					return call.Void, err
				}
				return call.UInt32(uint32(b[0])), nil
			})

		rt.Register("PokeByte", []call.Type{call.TypeUInt64, call.TypeUInt32}, call.TypeVoid,
			func(ctx context.Context, params []call.Value) (call.Value, error) {
				addr, err := params[0].AsUInt64()
				if err != nil {
					return call.Void, err
				}
				v, err := params[1].AsUInt32()
				if err != nil {
					return call.Void, err
				}
				if err := linear.Write(addr, []byte{byte(v)}); err != nil {
					return call.Void, err
				}
				return call.Void, nil
			})

		rt.Register("Print", []call.Type{call.TypeString}, call.TypeInt32,
			func(ctx context.Context, params []call.Value) (call.Value, error) {
				if err := rt.CallHost(ctx, "HostPrint", call.TypeInt32, params[0]); err != nil {
					return call.Void, err
				}
				n, err := rt.HostReturnInt32()
				if err != nil {
					return call.Void, err
				}
				return call.Int32(n), nil
			})

		rt.Register("AddViaHost", []call.Type{call.TypeInt64, call.TypeInt64}, call.TypeInt64,
			func(ctx context.Context, params []call.Value) (call.Value, error) {
				if err := rt.CallHost(ctx, "HostAdd", call.TypeInt64, params...); err != nil {
					return call.Void, err
				}
				sum, err := rt.HostReturnInt64()
				if err != nil {
					return call.Void, err
				}
				return call.Int64(sum), nil
			})

		rt.Register("Boom", nil, call.TypeVoid,
			func(ctx context.Context, params []call.Value) (call.Value, error) {
				return call.Void, errors.New("guest exploded")
			})
	})
}

// DemoHostFuncs returns a registry with the host functions the demo
// guest calls beyond the builtins.
func DemoHostFuncs() *hostfunc.Registry {
	reg := hostfunc.NewRegistry()
	reg.Register("HostAdd", []call.Type{call.TypeInt64, call.TypeInt64}, call.TypeInt64,
		func(ctx context.Context, params []call.Value) (call.Value, error) {
			a, err := params[0].AsInt64()
			if err != nil {
				return call.Void, err
			}
			b, err := params[1].AsInt64()
			if err != nil {
				return call.Void, err
			}
			return call.Int64(a + b), nil
		})
	return reg
}

// StartDemo builds and evolves a demo-guest sandbox in one step.
func StartDemo(ctx context.Context, opts ...Option) (*Sandbox, error) {
	opts = append([]Option{WithHostFunctions(DemoHostFuncs())}, opts...)
	un, err := New(DemoGuest(), opts...)
	if err != nil {
		return nil, fmt.Errorf("configure demo sandbox: %w", err)
	}
	return un.Evolve(ctx)
}
