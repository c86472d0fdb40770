package mem

import (
	"os"

	"github.com/qbradley/hyperlight/call"
)

// Kind is advisory metadata describing what a region holds. The mapper
// passes it through untouched; it never affects guest-side protections.
type Kind uint8

const (
	KindData Kind = iota
	KindCode
	KindStack
	KindHeap
)

func (k Kind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindCode:
		return "code"
	case KindStack:
		return "stack"
	case KindHeap:
		return "heap"
	default:
		return "unknown"
	}
}

// Backing records how a region's host memory is backed.
type Backing uint8

const (
	BackingAnonymous Backing = iota
	BackingFileCOW
)

var pageSize = uint64(os.Getpagesize())

// PageSize returns the platform page size used for region alignment.
func PageSize() uint64 { return pageSize }

// Region describes host memory to expose inside the sandbox's address
// space. The host slice stays owned by the caller: the mapper only
// establishes a view, and the caller must keep the memory valid and
// unmutated until the mapping is torn down.
type Region struct {
	GuestBase uint64
	Host      []byte
	Kind      Kind
	Backing   Backing
}

// Length returns the region's size in bytes.
func (r Region) Length() uint64 { return uint64(len(r.Host)) }

// End returns the first guest address past the region.
func (r Region) End() uint64 { return r.GuestBase + r.Length() }

// Validate checks the platform's page-alignment constraints for base and
// length. Misaligned regions are refused with CodeRegionAlignment.
func (r Region) Validate() error {
	if r.GuestBase%pageSize != 0 {
		return call.Errorf(call.CodeRegionAlignment,
			"guest base 0x%x not aligned to page size %d", r.GuestBase, pageSize)
	}
	if len(r.Host) == 0 {
		return call.Errorf(call.CodeRegionAlignment, "empty region at 0x%x", r.GuestBase)
	}
	if r.Length()%pageSize != 0 {
		return call.Errorf(call.CodeRegionAlignment,
			"length %d not aligned to page size %d", r.Length(), pageSize)
	}
	return nil
}

// PageCeil rounds n up to the next page boundary.
func PageCeil(n uint64) uint64 {
	if rem := n % pageSize; rem != 0 {
		return n + pageSize - rem
	}
	return n
}
