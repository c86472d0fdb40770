package vm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/qbradley/hyperlight/mem"
)

func init() {
	Register("wasm", newWazero)
}

// HostModule is the import namespace guests use to reach the host.
const HostModule = "hyperlight"

// wazeroMachine runs a compiled WebAssembly guest under wazero. The guest
// must export hl_alloc, hl_dispatch, and its linear memory; it reaches the
// host through the hyperlight.call_host import.
//
// Pointers cross the boundary packed into a single u64, pointer in the
// high half and length in the low half. A packed zero means no result.
type wazeroMachine struct {
	cfg      Config
	runtime  wazero.Runtime
	cache    wazero.CompilationCache
	mod      api.Module
	alloc    api.Function
	dispatch api.Function
	mapper   *mem.Mapper
	started  bool
	closed   bool
}

func newWazero(cfg Config) (Machine, error) {
	if len(cfg.Guest) == 0 {
		return nil, errors.New("vm: wasm machine requires a guest image")
	}
	if cfg.Host == nil {
		return nil, errors.New("vm: wasm machine requires a host handler")
	}
	return &wazeroMachine{cfg: cfg, mapper: mem.NewMapper()}, nil
}

func (m *wazeroMachine) Start(ctx context.Context) error {
	if m.closed {
		return ErrMachineClosed
	}
	if m.started {
		return ErrMachineStarted
	}

	rtConfig := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithMemoryLimitPages(m.cfg.memoryPages())

	if m.cfg.CacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(m.cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("create disk cache: %w", err)
		}
		m.cache = cache
		rtConfig = rtConfig.WithCompilationCache(cache)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	cleanup := func() {
		rt.Close(ctx)
		if m.cache != nil {
			m.cache.Close(ctx)
			m.cache = nil
		}
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		cleanup()
		return fmt.Errorf("instantiate WASI: %w", err)
	}

	hostBuilder := rt.NewHostModuleBuilder(HostModule)
	hostBuilder.NewFunctionBuilder().
		WithGoModuleFunction(api.GoModuleFunc(m.callHost),
			[]api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			[]api.ValueType{api.ValueTypeI64}).
		Export("call_host")
	if _, err := hostBuilder.Instantiate(ctx); err != nil {
		cleanup()
		return fmt.Errorf("instantiate host module: %w", err)
	}

	compiled, err := rt.CompileModule(ctx, m.cfg.Guest)
	if err != nil {
		cleanup()
		return fmt.Errorf("compile guest %s: %w", m.cfg.GuestID, err)
	}

	// Guests are reactors: _initialize runs their registration code, then
	// the module stays resident answering hl_dispatch calls.
	modConfig := wazero.NewModuleConfig().
		WithName(m.cfg.GuestID).
		WithStartFunctions("_initialize")

	mod, err := rt.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		cleanup()
		return fmt.Errorf("instantiate guest %s: %w", m.cfg.GuestID, err)
	}

	m.alloc = mod.ExportedFunction("hl_alloc")
	m.dispatch = mod.ExportedFunction("hl_dispatch")
	if m.alloc == nil || m.dispatch == nil || mod.Memory() == nil {
		mod.Close(ctx)
		cleanup()
		return fmt.Errorf("guest %s missing required exports: hl_alloc, hl_dispatch, or memory", m.cfg.GuestID)
	}

	m.runtime = rt
	m.mod = mod
	m.started = true
	m.cfg.logger().Debug("machine started",
		"kind", "wasm",
		"guest", m.cfg.GuestID,
		"memory_bytes", mod.Memory().Size())
	return nil
}

// callHost services the hyperlight.call_host import. The result envelope
// is written into guest memory through a re-entrant hl_alloc call; a
// packed zero return tells the guest no result could be delivered.
func (m *wazeroMachine) callHost(ctx context.Context, mod api.Module, stack []uint64) {
	ptr := uint32(stack[0])
	length := uint32(stack[1])
	stack[0] = 0

	envelope, _ := mod.Memory().Read(ptr, length)
	result := m.cfg.Host(ctx, envelope)
	if len(result) == 0 {
		return
	}

	out, err := m.allocWrite(ctx, result)
	if err != nil {
		m.cfg.logger().Debug("host result delivery failed", "guest", m.cfg.GuestID, "err", err)
		return
	}
	stack[0] = pack(out, uint32(len(result)))
}

// allocWrite places data into guest memory via hl_alloc and returns the
// guest pointer.
func (m *wazeroMachine) allocWrite(ctx context.Context, data []byte) (uint32, error) {
	res, err := m.alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("hl_alloc: %w", err)
	}
	ptr := uint32(res[0])
	if ptr == 0 {
		return 0, fmt.Errorf("hl_alloc(%d) returned null", len(data))
	}
	if !m.mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("write %d bytes at 0x%x out of range", len(data), ptr)
	}
	return ptr, nil
}

func (m *wazeroMachine) GuestCall(ctx context.Context, envelope []byte) ([]byte, error) {
	if m.closed {
		return nil, ErrMachineClosed
	}
	if !m.started {
		return nil, ErrNotStarted
	}

	var ptr uint32
	if len(envelope) > 0 {
		p, err := m.allocWrite(ctx, envelope)
		if err != nil {
			return nil, err
		}
		ptr = p
	}

	res, err := m.dispatch.Call(ctx, uint64(ptr), uint64(len(envelope)))
	if err != nil {
		return nil, fmt.Errorf("hl_dispatch: %w", err)
	}
	rptr, rlen := unpack(res[0])
	if rlen == 0 {
		return nil, fmt.Errorf("guest %s returned no result", m.cfg.GuestID)
	}
	out, ok := m.mod.Memory().Read(rptr, rlen)
	if !ok {
		return nil, fmt.Errorf("guest result 0x%x+%d out of range", rptr, rlen)
	}
	// The read is a view into guest memory, detach it.
	return append([]byte(nil), out...), nil
}

func (m *wazeroMachine) Snapshot() (*mem.Snapshot, error) {
	if !m.started || m.closed {
		return nil, ErrNotStarted
	}
	memory := m.mod.Memory()
	image, ok := memory.Read(0, memory.Size())
	if !ok {
		return nil, errors.New("vm: read guest memory image")
	}
	return mem.Capture(image, m.mapper.Regions()), nil
}

func (m *wazeroMachine) Restore(snap *mem.Snapshot) error {
	if !m.started || m.closed {
		return ErrNotStarted
	}
	image, err := snap.Image()
	if err != nil {
		return err
	}
	memory := m.mod.Memory()
	if size := uint64(memory.Size()); uint64(len(image)) > size {
		delta := (uint64(len(image)) - size + wasmPage - 1) / wasmPage
		if _, ok := memory.Grow(uint32(delta)); !ok {
			return fmt.Errorf("vm: cannot grow guest memory by %d pages", delta)
		}
	}
	if !memory.Write(0, image) {
		return errors.New("vm: write guest memory image")
	}
	// Memory cannot shrink, so anything past the image is cleared.
	if tail := memory.Size() - uint32(len(image)); tail > 0 {
		if !memory.Write(uint32(len(image)), make([]byte, tail)) {
			return errors.New("vm: clear guest memory tail")
		}
	}
	m.mapper.SetRegions(snap.Regions())
	return nil
}

func (m *wazeroMachine) MapRegion(r mem.Region) error {
	if !m.started || m.closed {
		return ErrNotStarted
	}
	if err := r.Validate(); err != nil {
		return err
	}
	memory := m.mod.Memory()
	if r.End() > uint64(memory.Size()) {
		return fmt.Errorf("vm: region 0x%x+%d beyond guest memory (%d bytes)",
			r.GuestBase, r.Length(), memory.Size())
	}
	if err := m.mapper.Map(r); err != nil {
		return err
	}
	if !memory.Write(uint32(r.GuestBase), r.Host) {
		return fmt.Errorf("vm: write region at 0x%x", r.GuestBase)
	}
	return nil
}

func (m *wazeroMachine) ReadMemory(addr, n uint64) ([]byte, error) {
	if !m.started || m.closed {
		return nil, ErrNotStarted
	}
	if addr+n < addr || addr+n > uint64(m.mod.Memory().Size()) {
		return nil, fmt.Errorf("vm: read 0x%x+%d beyond guest memory", addr, n)
	}
	out, ok := m.mod.Memory().Read(uint32(addr), uint32(n))
	if !ok {
		return nil, fmt.Errorf("vm: read 0x%x+%d beyond guest memory", addr, n)
	}
	return append([]byte(nil), out...), nil
}

func (m *wazeroMachine) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	ctx := context.Background()
	var errs []error
	if m.mod != nil {
		if err := m.mod.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if m.runtime != nil {
		if err := m.runtime.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if m.cache != nil {
		if err := m.cache.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}

func pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

func unpack(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}
