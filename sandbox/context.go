package sandbox

import (
	"context"
	"fmt"

	"github.com/qbradley/hyperlight/call"
	"github.com/qbradley/hyperlight/mem"
)

// CallContext holds the sandbox's memory state open across calls, so
// each call sees the effects of the ones before it. Finish rolls the
// sandbox back to its baseline; FinishNoReset promotes the accumulated
// state to the new baseline instead.
//
// A context belongs to one goroutine at a time. Handing it to another
// goroutine is fine as long as the sender stops using it.
type CallContext struct {
	sb       *Sandbox
	files    []*mem.MappedFile
	finished bool
}

// Call invokes one guest function. Unlike Sandbox.Call, the memory
// state is kept, so later calls observe this call's side effects.
func (c *CallContext) Call(ctx context.Context, name string, ret call.Type, params ...call.Value) (call.Value, error) {
	if c.finished {
		return call.Void, ErrContextDone
	}
	s := c.sb
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return call.Void, ErrSandboxClosed
	}
	return s.dispatch(ctx, name, ret, params)
}

// MapRegion exposes host memory inside the sandbox for the remainder of
// this context. The mapping is torn down by Finish along with the rest
// of the accumulated state, or becomes part of the new baseline after
// FinishNoReset.
func (c *CallContext) MapRegion(r mem.Region) error {
	if c.finished {
		return ErrContextDone
	}
	s := c.sb
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSandboxClosed
	}
	return s.machine.MapRegion(r)
}

// MapFileCOW maps the file at path into the sandbox at guestBase as a
// private copy-on-write view and returns the mapped length, the file
// size rounded up to a page boundary. Guest writes to the mapping never
// reach the file.
func (c *CallContext) MapFileCOW(path string, guestBase uint64) (uint64, error) {
	if c.finished {
		return 0, ErrContextDone
	}
	mf, err := mem.OpenFileCOW(path)
	if err != nil {
		return 0, err
	}
	if err := c.MapRegion(mf.Region(guestBase, mem.KindData)); err != nil {
		mf.Close()
		return 0, err
	}
	c.files = append(c.files, mf)
	return mf.Len(), nil
}

// Finish restores the baseline snapshot and returns the sandbox, ready
// for new calls with none of this context's effects visible. The
// context is done afterward.
func (c *CallContext) Finish() (*Sandbox, error) {
	if c.finished {
		return nil, ErrContextDone
	}
	c.finished = true

	s := c.sb
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkedOut = false
	if s.closed {
		c.closeFiles()
		return nil, ErrSandboxClosed
	}
	if err := s.machine.Restore(s.baseline); err != nil {
		s.log.Error("baseline restore failed, closing sandbox",
			"guest", s.guest.Name(), "err", err)
		s.closeLocked()
		c.closeFiles()
		return nil, fmt.Errorf("restore sandbox state: %w", err)
	}
	// The restore dropped every mapping this context added, so the
	// backing views can go.
	c.closeFiles()
	return s, nil
}

// FinishNoReset captures the current memory state as the sandbox's new
// baseline and returns the sandbox. Effects of this context's calls
// stay visible to every later call. The context is done afterward.
func (c *CallContext) FinishNoReset() (*Sandbox, error) {
	if c.finished {
		return nil, ErrContextDone
	}
	c.finished = true

	s := c.sb
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkedOut = false
	if s.closed {
		c.closeFiles()
		return nil, ErrSandboxClosed
	}
	snap, err := s.machine.Snapshot()
	if err != nil {
		s.log.Error("baseline capture failed, closing sandbox",
			"guest", s.guest.Name(), "err", err)
		s.closeLocked()
		c.closeFiles()
		return nil, fmt.Errorf("capture sandbox state: %w", err)
	}
	s.baseline = snap
	// Mappings added here are part of the new baseline, so the sandbox
	// takes over their backing views.
	s.files = append(s.files, c.files...)
	c.files = nil
	return s, nil
}

// Discard tears down the context and the sandbox together. Nothing
// comes back: the state the context accumulated is unrecoverable.
func (c *CallContext) Discard() error {
	if c.finished {
		return ErrContextDone
	}
	c.finished = true

	s := c.sb
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkedOut = false
	err := s.closeLocked()
	c.closeFiles()
	return err
}

func (c *CallContext) closeFiles() {
	for _, f := range c.files {
		f.Close()
	}
	c.files = nil
}
