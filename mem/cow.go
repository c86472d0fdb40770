package mem

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// MappedFile is a private copy-on-write view of a file's contents,
// page-rounded. Writes through the mapping never reach the file.
type MappedFile struct {
	data []byte
	size int64
}

// OpenFileCOW maps path's contents MAP_PRIVATE. The mapping length is the
// file size rounded up to a page boundary; bytes past the file's end read
// as zero.
func OpenFileCOW(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("map %s: file is empty", path)
	}

	mapLen := PageCeil(uint64(st.Size()))
	data, err := unix.Mmap(int(f.Fd()), 0, int(mapLen),
		unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &MappedFile{data: data, size: st.Size()}, nil
}

// Bytes exposes the mapped view. The slice is valid until Close.
func (m *MappedFile) Bytes() []byte { return m.data }

// Len returns the mapped length in bytes, a multiple of the page size.
func (m *MappedFile) Len() uint64 { return uint64(len(m.data)) }

// FileSize returns the size of the underlying file at open time.
func (m *MappedFile) FileSize() int64 { return m.size }

// Region builds the page-aligned region exposing this mapping at
// guestBase.
func (m *MappedFile) Region(guestBase uint64, kind Kind) Region {
	return Region{
		GuestBase: guestBase,
		Host:      m.data,
		Kind:      kind,
		Backing:   BackingFileCOW,
	}
}

// Close unmaps the view. It is safe to call more than once.
func (m *MappedFile) Close() error {
	if m.data == nil {
		return nil
	}
	data := m.data
	m.data = nil
	return unix.Munmap(data)
}
