// Package hyperlight provides a snapshot-backed sandbox for calling typed
// functions inside isolated guest programs.
//
// # Overview
//
// A sandbox wraps one guest running on an isolated machine. The host calls
// guest functions by name with typed parameters, and guests call back into
// registered host functions through the same envelope format. After every
// top-level call the machine is restored to its baseline snapshot, so one
// call never leaks state into the next.
//
// # Basic Usage
//
//	g, _ := sandbox.LoadGuestBinary("guest.wasm")
//	u, _ := sandbox.New(g)
//	sb, _ := u.Evolve(ctx)
//	defer sb.Close()
//
//	sum, _ := sandbox.Call[int64](ctx, sb, "Add", int64(2), int64(3))
//
// # Keeping State Across Calls
//
//	cc, _ := sb.NewContext()
//	cc.Call(ctx, "Push", call.TypeVoid, call.Int64(1))
//	cc.Call(ctx, "Push", call.TypeVoid, call.Int64(2))
//	cc.Finish() // restore the baseline
//
// Use FinishNoReset instead of Finish to keep the accumulated state as the
// sandbox's new baseline.
//
// # Host Functions
//
//	reg := hostfunc.NewRegistry()
//	reg.Register("Lookup", []call.Type{call.TypeString}, call.TypeInt64,
//	    func(ctx context.Context, args []call.Value) (call.Value, error) {
//	        ...
//	    })
//	u, _ := sandbox.New(g, sandbox.WithHostFunctions(reg))
//
// See the [sandbox], [call], [guest], [hostfunc], [mem], and [vm] packages
// for detailed API documentation.
package hyperlight
