package object

// Segment is a named contiguous virtual-address region belonging to one
// object. Within a single object, segments never overlap in their
// virtual-address ranges.
type Segment struct {
	Name      string
	VAddr     uint64
	Size      uint64 // size in memory (may exceed the file size; see BSS)
	Offset    uint64
	HasOffset bool
}

// Contains is the strict-inside containment test: an address equal to
// VAddr or VAddr+Size does not belong. This predicate is inherited from
// the original loader and preserved for behavioral parity even though
// it excludes a segment's first and last byte.
func (s Segment) Contains(addr uint64) bool {
	return addr > s.VAddr && addr < s.VAddr+s.Size
}

// ContainsCorrected is the half-open containment test ([VAddr,
// VAddr+Size)) that a memory-range predicate should actually use. It is
// exposed alongside Contains rather than replacing it, per the design
// document's note that the strict predicate is preserved for parity
// while a corrected one is offered as well.
func (s Segment) ContainsCorrected(addr uint64) bool {
	return addr >= s.VAddr && addr < s.VAddr+s.Size
}

func (s Segment) End() uint64 { return s.VAddr + s.Size }
