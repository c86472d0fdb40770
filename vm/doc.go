// Package vm defines the isolated execution backend that holds a running
// guest, and the factory registry that names the available backends.
//
// A Machine moves opaque call envelopes across the isolation boundary,
// captures and restores full memory snapshots, and maps host memory into
// the guest address space. It has no opinion about envelope contents; the
// sandbox layer owns encoding and call semantics.
//
// Two kinds register at init:
//
//   - "local" runs the guest runtime in-process against a plain byte
//     image. No isolation, full observability.
//   - "wasm" runs a compiled WebAssembly guest under wazero with a
//     per-machine runtime, optional on-disk compilation cache, and a
//     memory page limit.
//
// The wasm guest contract: export hl_alloc and hl_dispatch along with
// linear memory, import hyperlight.call_host to reach the host. Buffers
// cross as (pointer, length) pairs packed into one u64.
package vm
