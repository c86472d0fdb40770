// Package hostfunc provides the host side of the guest-to-host call
// boundary: a typed function registry and the handler that answers guest
// call envelopes from it.
//
// Guests have no implicit access to host resources. Each function a
// guest may call must be registered explicitly with its full signature;
// the handler verifies argument types against that signature before the
// function body runs.
//
// # Registry
//
// The [Registry] maps names to typed definitions. Register custom
// functions directly:
//
//	registry := hostfunc.NewRegistry()
//	registry.Register("Lookup", []call.Type{call.TypeString}, call.TypeBytes,
//	    func(ctx context.Context, args []call.Value) (call.Value, error) {
//	        key, _ := args[0].AsString()
//	        return call.Bytes(store[key]), nil
//	    })
//
// [Registry.Restrict] narrows a registry to an allowlist, which is how
// profiles limit what a guest can reach.
//
// # Handler
//
// A [Handler] turns a registry into the sandbox's host-call answering
// function. It never traps the guest: unknown functions, malformed
// envelopes, and function errors all come back as typed error results.
//
// # Builtins
//
// [RegisterBuiltins] adds HostPrint (write a string to the configured
// output, returns bytes written) and TimeNow. [KV] adds an in-memory
// key-value store as KVGet/KVSet/KVDelete/KVKeys with configurable size
// limits.
package hostfunc
