package sandbox

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/qbradley/hyperlight/guest"
	"github.com/qbradley/hyperlight/mem"
	"github.com/qbradley/hyperlight/vm"
)

// Guest supplies a guest program to a sandbox: what to run, which machine
// kind runs it, and how to configure that machine.
type Guest interface {
	// Name identifies the guest in logs and errors.
	Name() string

	// MachineKind names the vm backend this guest runs on.
	MachineKind() string

	// Configure fills the machine config with the guest's image or
	// initialization.
	Configure(cfg *vm.Config) error
}

// GuestBinary is a compiled WebAssembly guest, identified by the blake3
// hash of its contents.
type GuestBinary struct {
	name string
	data []byte
	id   string
}

// LoadGuestBinary reads a guest program from disk.
func LoadGuestBinary(path string) (*GuestBinary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load guest: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("load guest: %s is empty", path)
	}
	return GuestBinaryFromBytes(filepath.Base(path), data), nil
}

// GuestBinaryFromBytes wraps an in-memory guest program.
func GuestBinaryFromBytes(name string, data []byte) *GuestBinary {
	sum := blake3.Sum256(data)
	return &GuestBinary{
		name: name,
		data: data,
		id:   hex.EncodeToString(sum[:]),
	}
}

func (g *GuestBinary) Name() string { return g.name }

// ID returns the blake3 content hash, hex encoded.
func (g *GuestBinary) ID() string { return g.id }

func (g *GuestBinary) MachineKind() string { return "wasm" }

func (g *GuestBinary) Configure(cfg *vm.Config) error {
	cfg.Guest = g.data
	cfg.GuestID = g.id
	return nil
}

// InProcess is a guest defined directly in Go, run on the local machine.
// It exists for tests, benchmarks, and embedding scenarios where the
// isolation boundary is not wanted.
type InProcess struct {
	name string
	init func(*guest.Runtime, *mem.Linear)
}

func NewInProcess(name string, init func(*guest.Runtime, *mem.Linear)) *InProcess {
	return &InProcess{name: name, init: init}
}

func (g *InProcess) Name() string { return g.name }

func (g *InProcess) MachineKind() string { return "local" }

func (g *InProcess) Configure(cfg *vm.Config) error {
	if g.init == nil {
		return fmt.Errorf("in-process guest %s has no init function", g.name)
	}
	cfg.GuestID = g.name
	cfg.Init = g.init
	return nil
}
