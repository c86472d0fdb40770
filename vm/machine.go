package vm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/qbradley/hyperlight/guest"
	"github.com/qbradley/hyperlight/mem"
)

// Lifecycle errors shared by all machine kinds.
var (
	ErrMachineClosed  = errors.New("vm: machine closed")
	ErrMachineStarted = errors.New("vm: machine already started")
	ErrNotStarted     = errors.New("vm: machine not started")
)

// wasmPage is the WebAssembly page size. Guest memory is sized and grown
// in these units regardless of the host OS page size.
const wasmPage = 64 * 1024

// HostHandler answers a guest-to-host call. It receives an encoded call
// envelope and returns an encoded result envelope. Implementations must be
// total: host-side failures are reported inside the result, never by
// trapping the guest.
type HostHandler func(ctx context.Context, envelope []byte) []byte

// Config carries everything a machine needs to run one guest.
type Config struct {
	// Guest is the guest program image. Machines that execute compiled
	// guests (the wasm machine) require it; the local machine ignores it.
	Guest []byte

	// GuestID names the guest for caching and diagnostics.
	GuestID string

	// Init populates the guest runtime of machines that embed one
	// directly. It runs once during Start, before any dispatch.
	Init func(*guest.Runtime, *mem.Linear)

	// Host answers guest-to-host calls. A machine with a nil Host reports
	// every host call as failed to the guest.
	Host HostHandler

	// MemoryPages caps guest memory in 64 KiB wasm pages. Zero means
	// DefaultMemoryPages.
	MemoryPages uint32

	// CacheDir enables an on-disk compilation cache for machines that
	// compile their guests. Empty disables it.
	CacheDir string

	// Logger receives machine lifecycle events. Nil discards them.
	Logger *slog.Logger
}

// DefaultMemoryPages is the guest memory cap when Config.MemoryPages is
// zero: 256 wasm pages, 16 MiB.
const DefaultMemoryPages = 256

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.Logger
}

func (c *Config) memoryPages() uint32 {
	if c.MemoryPages == 0 {
		return DefaultMemoryPages
	}
	return c.MemoryPages
}

// Machine is an isolated execution backend holding one guest. The sandbox
// layer drives it; it knows nothing about call envelopes beyond shuttling
// their bytes across the isolation boundary.
//
// Machines are not safe for concurrent use. The sandbox serializes access.
type Machine interface {
	// Start loads the guest and runs its initialization. A machine starts
	// at most once.
	Start(ctx context.Context) error

	// GuestCall hands an encoded call envelope to the guest dispatcher
	// and returns the encoded result envelope. An error means the machine
	// itself failed; guest-level failures come back inside the envelope.
	GuestCall(ctx context.Context, envelope []byte) ([]byte, error)

	// Snapshot captures the full guest memory state, including the set of
	// mapped regions.
	Snapshot() (*mem.Snapshot, error)

	// Restore rewinds guest memory to a snapshot taken from this machine.
	Restore(snap *mem.Snapshot) error

	// MapRegion makes a host memory region readable at its guest base.
	MapRegion(r mem.Region) error

	// ReadMemory copies n bytes of guest memory starting at addr.
	ReadMemory(addr, n uint64) ([]byte, error)

	// Close releases the machine. Closing twice is allowed.
	Close() error
}

// Factory builds a machine from a config.
type Factory func(cfg Config) (Machine, error)

var (
	factoryMu sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a machine kind available to New. Kinds register from
// package init; a duplicate registration panics.
func Register(kind string, f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if _, dup := factories[kind]; dup {
		panic("vm: duplicate machine kind " + kind)
	}
	factories[kind] = f
}

// New builds a machine of the named kind.
func New(kind string, cfg Config) (Machine, error) {
	factoryMu.RLock()
	f, ok := factories[kind]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("vm: unknown machine kind %q (have %v)", kind, Kinds())
	}
	return f(cfg)
}

// Kinds returns the registered machine kinds, sorted.
func Kinds() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	out := make([]string, 0, len(factories))
	for kind := range factories {
		out = append(out, kind)
	}
	sort.Strings(out)
	return out
}
