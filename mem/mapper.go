package mem

import "fmt"

// Mapper validates region requests and tracks the mappings currently
// visible inside one sandbox. It is bookkeeping only: the machine owning
// the sandbox memory performs the actual write. Mappings recorded here
// are part of captured state, so restoring a snapshot rolls the mapping
// set back alongside memory contents.
type Mapper struct {
	regions []Region
}

// NewMapper returns an empty mapper. The zero Mapper is also valid.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Map validates r and records it. The region kind is not interpreted.
func (m *Mapper) Map(r Region) error {
	if err := r.Validate(); err != nil {
		return err
	}
	for _, prev := range m.regions {
		if r.GuestBase < prev.End() && prev.GuestBase < r.End() {
			return fmt.Errorf("region 0x%x+%d overlaps mapping at 0x%x+%d",
				r.GuestBase, r.Length(), prev.GuestBase, prev.Length())
		}
	}
	m.regions = append(m.regions, r)
	return nil
}

// Regions returns the live mappings in mapping order.
func (m *Mapper) Regions() []Region {
	out := make([]Region, len(m.regions))
	copy(out, m.regions)
	return out
}

// SetRegions replaces the mapping set, used when restoring a snapshot.
func (m *Mapper) SetRegions(regions []Region) {
	m.regions = make([]Region, len(regions))
	copy(m.regions, regions)
}
