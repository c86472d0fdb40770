package vm

import (
	"context"
	"fmt"

	"github.com/qbradley/hyperlight/guest"
	"github.com/qbradley/hyperlight/mem"
)

func init() {
	Register("local", newLocal)
}

// localMachine runs the guest runtime in-process against a plain byte
// image. There is no isolation boundary; it exists so the call plumbing,
// snapshots, and mappings can be driven without a compiled guest.
type localMachine struct {
	cfg     Config
	linear  *mem.Linear
	rt      *guest.Runtime
	mapper  *mem.Mapper
	started bool
	closed  bool
}

func newLocal(cfg Config) (Machine, error) {
	return &localMachine{cfg: cfg, mapper: mem.NewMapper()}, nil
}

func (m *localMachine) Start(ctx context.Context) error {
	if m.closed {
		return ErrMachineClosed
	}
	if m.started {
		return ErrMachineStarted
	}

	m.linear = mem.NewLinear(uint64(m.cfg.memoryPages()) * wasmPage)

	opts := []guest.Option{}
	if m.cfg.Host != nil {
		host := m.cfg.Host
		opts = append(opts, guest.WithHostTransport(hostTransport(func(ctx context.Context, envelope []byte) ([]byte, error) {
			return host(ctx, envelope), nil
		})))
	}
	m.rt = guest.NewRuntime(opts...)

	if m.cfg.Init != nil {
		m.cfg.Init(m.rt, m.linear)
	}

	m.started = true
	m.cfg.logger().Debug("machine started",
		"kind", "local",
		"guest", m.cfg.GuestID,
		"memory_bytes", m.linear.Size())
	return nil
}

// hostTransport adapts a function to guest.HostTransport.
type hostTransport func(ctx context.Context, envelope []byte) ([]byte, error)

func (f hostTransport) CallHost(ctx context.Context, envelope []byte) ([]byte, error) {
	return f(ctx, envelope)
}

func (m *localMachine) GuestCall(ctx context.Context, envelope []byte) ([]byte, error) {
	if m.closed {
		return nil, ErrMachineClosed
	}
	if !m.started {
		return nil, ErrNotStarted
	}
	return m.rt.Dispatch(ctx, envelope), nil
}

func (m *localMachine) Snapshot() (*mem.Snapshot, error) {
	if !m.started || m.closed {
		return nil, ErrNotStarted
	}
	return mem.Capture(m.linear.Bytes(), m.mapper.Regions()), nil
}

func (m *localMachine) Restore(snap *mem.Snapshot) error {
	if !m.started || m.closed {
		return ErrNotStarted
	}
	image, err := snap.Image()
	if err != nil {
		return err
	}
	if err := m.linear.Restore(image); err != nil {
		return err
	}
	m.mapper.SetRegions(snap.Regions())
	return nil
}

func (m *localMachine) MapRegion(r mem.Region) error {
	if !m.started || m.closed {
		return ErrNotStarted
	}
	if err := r.Validate(); err != nil {
		return err
	}
	if r.End() > m.linear.Size() {
		return fmt.Errorf("vm: region 0x%x+%d beyond guest memory (%d bytes)",
			r.GuestBase, r.Length(), m.linear.Size())
	}
	if err := m.mapper.Map(r); err != nil {
		return err
	}
	// Bounds were checked above, the write cannot fail.
	return m.linear.Write(r.GuestBase, r.Host)
}

func (m *localMachine) ReadMemory(addr, n uint64) ([]byte, error) {
	if !m.started || m.closed {
		return nil, ErrNotStarted
	}
	return m.linear.Read(addr, n)
}

func (m *localMachine) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	m.rt = nil
	m.linear = nil
	return nil
}
