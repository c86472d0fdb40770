// Package sandbox runs guest code isolated from the host, with a typed
// two-way call boundary and snapshot-based state control.
//
// # Lifecycle
//
// A sandbox starts uninitialized. [New] fixes the host function surface
// and resources; [Uninitialized.Evolve] runs the guest's initialization
// and captures the baseline memory snapshot:
//
//	un, err := sandbox.New(guest, sandbox.WithMemoryLimit(sandbox.MemoryLimit16MB))
//	if err != nil {
//		return err
//	}
//	sb, err := un.Evolve(ctx)
//	if err != nil {
//		return err
//	}
//	defer sb.Close()
//
// # Calls
//
// [Sandbox.Call] invokes one guest function and then restores the
// baseline, so single calls are stateless with respect to each other.
// To let calls build on one another, check the sandbox out into a
// [CallContext] with [Sandbox.NewContext]: the context keeps memory
// state across calls until [CallContext.Finish] rolls it back or
// [CallContext.FinishNoReset] promotes it to the new baseline.
//
// The generic [Call] and [CallVoid] helpers convert native Go arguments
// and results; both [Sandbox] and [CallContext] satisfy [Caller].
//
// # Guests
//
// [GuestBinary] is a compiled WebAssembly program run on the "wasm"
// machine. [InProcess] defines a guest directly in Go on the "local"
// machine, trading isolation for observability; tests and benchmarks
// use it to pin boundary semantics without a toolchain in the loop.
//
// # Profiles
//
// A [Profile] captures machine kind, memory limit, cache, and host
// function allowlist as YAML for the CLI and embedding hosts.
package sandbox
