// Package guest implements the guest half of the sandbox call boundary:
// the function registry, the dispatcher, and the two-phase host-call
// client.
//
// A guest program builds a [Runtime], registers its functions during
// initialization, and wires the runtime's Dispatch method up as the
// inbound entry point:
//
//	rt := guest.NewRuntime(guest.WithHostTransport(transport))
//	rt.Register("Echo", []call.Type{call.TypeString}, call.TypeString, echo)
//
// Outbound calls to the host are two-phase by the boundary's calling
// convention: [Runtime.CallHost] fires the envelope and returns no value,
// then a typed HostReturn accessor fetches the result:
//
//	if err := rt.CallHost(ctx, "HostPrint", call.TypeInt32, call.String("hi")); err != nil {
//	    return call.Void, err
//	}
//	n, err := rt.HostReturnInt32()
package guest
