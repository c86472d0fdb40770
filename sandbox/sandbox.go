package sandbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/qbradley/hyperlight/call"
	"github.com/qbradley/hyperlight/hostfunc"
	"github.com/qbradley/hyperlight/mem"
	"github.com/qbradley/hyperlight/vm"
)

var (
	ErrSandboxBusy   = errors.New("sandbox checked out by a call context")
	ErrSandboxClosed = errors.New("sandbox closed")
	ErrContextDone   = errors.New("call context finished")
	ErrEvolved       = errors.New("sandbox already evolved")
)

// Uninitialized is a configured sandbox whose guest has not started.
// Evolve runs the guest's initialization and produces the usable Sandbox.
// The host function surface is fixed here; functions registered after New
// are not visible to the guest.
type Uninitialized struct {
	guest   Guest
	cfg     config
	vmCfg   vm.Config
	kind    string
	evolved bool
}

// New configures a sandbox for the given guest.
func New(g Guest, opts ...Option) (*Uninitialized, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	base := cfg.hostFuncs
	if base == nil {
		base = hostfunc.NewRegistry()
	}
	// Private copy so the caller's registry stays untouched.
	reg := base.Restrict(base.Names()...)
	if _, ok := reg.Lookup("HostPrint"); !ok {
		reg.Register("HostPrint", []call.Type{call.TypeString}, call.TypeInt32, hostfunc.NewPrint(cfg.printWriter))
	}
	if _, ok := reg.Lookup("TimeNow"); !ok {
		reg.Register("TimeNow", nil, call.TypeFloat64, hostfunc.NewTimeNow())
	}
	if cfg.kv != nil {
		cfg.kv.Register(reg)
	}
	if len(cfg.allowlist) > 0 {
		reg = reg.Restrict(cfg.allowlist...)
	}

	handler := hostfunc.NewHandler(reg,
		hostfunc.WithCodec(cfg.codec),
		hostfunc.WithLogger(cfg.logger))

	vmCfg := vm.Config{
		Host:        handler.Handle,
		MemoryPages: cfg.memoryPages,
		Logger:      cfg.logger,
	}
	if cfg.diskCache {
		dir := cfg.cacheDir
		if dir == "" {
			dir = defaultCacheDir()
		}
		vmCfg.CacheDir = dir
	}
	if err := g.Configure(&vmCfg); err != nil {
		return nil, fmt.Errorf("configure guest %s: %w", g.Name(), err)
	}

	kind := cfg.machineKind
	if kind == "" {
		kind = g.MachineKind()
	}

	return &Uninitialized{guest: g, cfg: cfg, vmCfg: vmCfg, kind: kind}, nil
}

// Evolve starts the guest, captures the baseline memory snapshot, and
// returns the running sandbox. It can be called once.
func (u *Uninitialized) Evolve(ctx context.Context) (*Sandbox, error) {
	if u.evolved {
		return nil, ErrEvolved
	}
	u.evolved = true

	machine, err := vm.New(u.kind, u.vmCfg)
	if err != nil {
		return nil, err
	}
	if err := machine.Start(ctx); err != nil {
		machine.Close()
		return nil, fmt.Errorf("start guest %s: %w", u.guest.Name(), err)
	}
	baseline, err := machine.Snapshot()
	if err != nil {
		machine.Close()
		return nil, fmt.Errorf("capture baseline: %w", err)
	}

	u.cfg.slog().Info("sandbox ready",
		"guest", u.guest.Name(),
		"machine", u.kind,
		"image_bytes", baseline.Size())

	return &Sandbox{
		guest:    u.guest,
		machine:  machine,
		codec:    u.cfg.codec,
		log:      u.cfg.slog(),
		baseline: baseline,
	}, nil
}

// Sandbox is one isolated guest with its memory state. At rest it always
// sits at its baseline snapshot: single calls restore the baseline after
// dispatch, and a call context's checkpoint is the baseline itself.
//
// A sandbox has one owner at a time. Checking it out into a CallContext
// makes every other path fail with ErrSandboxBusy until the context
// finishes. Hand-off between goroutines is the caller's business; the
// sandbox itself serializes all access.
type Sandbox struct {
	guest    Guest
	machine  vm.Machine
	codec    call.Codec
	log      *slog.Logger
	baseline *mem.Snapshot
	files    []*mem.MappedFile

	mu         sync.Mutex
	checkedOut bool
	closed     bool
}

// Call invokes one guest function and restores the baseline afterward,
// so no side effect survives into the next call. The returned error
// carries the guest's typed error code when the guest failed.
func (s *Sandbox) Call(ctx context.Context, name string, ret call.Type, params ...call.Value) (call.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return call.Void, ErrSandboxClosed
	}
	if s.checkedOut {
		return call.Void, ErrSandboxBusy
	}

	v, err := s.dispatch(ctx, name, ret, params)
	if rerr := s.machine.Restore(s.baseline); rerr != nil {
		// The sandbox can no longer guarantee its baseline.
		s.log.Error("baseline restore failed, closing sandbox",
			"guest", s.guest.Name(), "err", rerr)
		s.closeLocked()
		return call.Void, fmt.Errorf("restore sandbox state: %w", rerr)
	}
	return v, err
}

// NewContext checks the sandbox out into a call context. Until the
// context finishes, every other call path returns ErrSandboxBusy.
func (s *Sandbox) NewContext() (*CallContext, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSandboxClosed
	}
	if s.checkedOut {
		return nil, ErrSandboxBusy
	}
	s.checkedOut = true
	return &CallContext{sb: s}, nil
}

// Guest returns the guest this sandbox runs.
func (s *Sandbox) Guest() Guest { return s.guest }

// Close tears the sandbox down. An open call context dies with it.
// Closing twice is allowed.
func (s *Sandbox) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Sandbox) closeLocked() error {
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.machine.Close()
	for _, f := range s.files {
		f.Close()
	}
	s.files = nil
	return err
}

// dispatch runs one call against the current memory state. Callers hold
// whatever exclusivity the path requires.
func (s *Sandbox) dispatch(ctx context.Context, name string, ret call.Type, params []call.Value) (call.Value, error) {
	envelope, err := s.codec.EncodeCall(call.New(name, ret, params...))
	if err != nil {
		return call.Void, call.Errorf(call.CodeInternal, "encode call: %v", err)
	}
	reply, err := s.machine.GuestCall(ctx, envelope)
	if err != nil {
		return call.Void, fmt.Errorf("guest call %s: %w", name, err)
	}
	res, err := s.codec.DecodeResult(reply)
	if err != nil {
		return call.Void, call.Errorf(call.CodeEnvelopeDecode, "decode result: %v", err)
	}
	return res.Unpack()
}
