package mem

import (
	"encoding/binary"
	"fmt"
)

// Linear is a flat, bounds-checked guest memory image. The in-process
// machine uses it as its whole address space; multi-byte accessors are
// little-endian to match wasm linear memory.
type Linear struct {
	data []byte
}

// NewLinear allocates a zeroed image of the given size.
func NewLinear(size uint64) *Linear {
	return &Linear{data: make([]byte, size)}
}

// Size returns the image size in bytes.
func (l *Linear) Size() uint64 { return uint64(len(l.data)) }

func (l *Linear) check(off, n uint64) error {
	if off+n < off || off+n > l.Size() {
		return fmt.Errorf("access 0x%x+%d outside memory of %d bytes", off, n, l.Size())
	}
	return nil
}

// Read copies n bytes starting at off.
func (l *Linear) Read(off, n uint64) ([]byte, error) {
	if err := l.check(off, n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, l.data[off:off+n])
	return out, nil
}

// Write copies b into the image at off.
func (l *Linear) Write(off uint64, b []byte) error {
	if err := l.check(off, uint64(len(b))); err != nil {
		return err
	}
	copy(l.data[off:], b)
	return nil
}

// ReadUint64 reads a little-endian uint64 at off.
func (l *Linear) ReadUint64(off uint64) (uint64, error) {
	if err := l.check(off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(l.data[off:]), nil
}

// WriteUint64 writes a little-endian uint64 at off.
func (l *Linear) WriteUint64(off, v uint64) error {
	if err := l.check(off, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(l.data[off:], v)
	return nil
}

// Bytes exposes the live image for snapshotting. Callers must not hold
// the slice across mutations.
func (l *Linear) Bytes() []byte { return l.data }

// Restore overwrites the image with a captured one. Images smaller than
// the current size leave the tail zeroed; larger images are refused.
func (l *Linear) Restore(image []byte) error {
	if uint64(len(image)) > l.Size() {
		return fmt.Errorf("image of %d bytes exceeds memory of %d", len(image), l.Size())
	}
	n := copy(l.data, image)
	clear(l.data[n:])
	return nil
}
