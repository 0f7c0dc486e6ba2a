// Package link implements the Linker/Relocator (§4.E) and the
// Address-Space Query Surface (§4.F): composing a main object and its
// resolved dependencies into one sparse address space, patching
// jump-relocation slots, and answering ownership/symbol queries over
// the result.
package link

import (
	"github.com/elfcle/clego/internal/arch"
	"github.com/elfcle/clego/internal/clerr"
	"github.com/elfcle/clego/internal/log"
	"github.com/elfcle/clego/internal/object"
)

// DependencyObject pairs a loaded shared-object with the base address
// the resolver assigned it.
type DependencyObject struct {
	Object *object.Object
	Base   uint64
}

// ComposedImage is the Linker's output: a single sparse byte map plus
// the ordered list of contributing objects, main first.
type ComposedImage struct {
	Memory  *object.Memory
	Objects []*object.Object
}

// Compose runs the three §4.E stages: copy main's memory, copy and
// rebase each dependency's memory, then relocate every object's
// jump-relocation table against the dependencies' exports.
func Compose(main *object.Object, deps []DependencyObject, logger *log.Logger) (*ComposedImage, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	img := &ComposedImage{
		Memory:  main.Memory.Clone(),
		Objects: []*object.Object{main},
	}

	for _, d := range deps {
		d.Object.RebaseAddr = d.Base
		var overlapErr error
		d.Object.Memory.Range(func(addr uint64, b byte) {
			if overlapErr != nil {
				return
			}
			rebased := addr + d.Base
			if !img.Memory.TrySet(rebased, b) {
				overlapErr = &clerr.OverlapError{Addr: rebased, Existing: owningName(img.Objects, rebased), Incoming: d.Object.Path}
			}
		})
		if overlapErr != nil {
			return nil, overlapErr
		}
		img.Objects = append(img.Objects, d.Object)
	}

	dependencies := img.Objects[1:]
	for _, obj := range img.Objects {
		width := arch.WordSize(obj.Arch)
		byteOrder := obj.Endianness.ByteOrder()
		for _, jr := range obj.JumpRelocs {
			exporter, addr, found := findExport(dependencies, jr.Symbol)
			if !found {
				logger.Unresolved(jr.Symbol, obj.Path, jr.GotAddr)
				continue
			}
			resolved := addr + exporter.RebaseAddr
			img.Memory.WriteWord(jr.GotAddr+obj.RebaseAddr, resolved, width, byteOrder)
		}
	}

	return img, nil
}

// findExport looks up name across dependencies in load order, the
// first dependency whose exports contain it winning ties.
func findExport(dependencies []*object.Object, name string) (*object.Object, uint64, bool) {
	for _, dep := range dependencies {
		if addr, ok := dep.Exports()[name]; ok {
			return dep, addr, true
		}
	}
	return nil, 0, false
}

func owningName(objs []*object.Object, addr uint64) string {
	for _, o := range objs {
		if seg, ok := o.SegmentContainingCorrected(addr - o.RebaseAddr); ok {
			return o.Path + ":" + seg.Name
		}
	}
	return "unknown"
}

// OverrideGOT rewrites the GOT slot for name in obj's jump-relocation
// table to newAddr, regardless of any prior value, and reports whether
// name was found. This is the injection point for analysis-time stubs
// and the hook the scripted override policy drives (§11.3).
func (img *ComposedImage) OverrideGOT(obj *object.Object, name string, newAddr uint64, logger *log.Logger) bool {
	if logger == nil {
		logger = log.NewNop()
	}
	for _, jr := range obj.JumpRelocs {
		if jr.Symbol != name {
			continue
		}
		width := arch.WordSize(obj.Arch)
		img.Memory.WriteWord(jr.GotAddr+obj.RebaseAddr, newAddr, width, obj.Endianness.ByteOrder())
		logger.Override(obj.Path, name, newAddr, "override")
		return true
	}
	return false
}

// MinAddress is the minimum over the main object's ExecBaseAddress and
// the positive rebase address of any dependency loaded below it.
func (img *ComposedImage) MinAddress() uint64 {
	main := img.Objects[0]
	min := main.ExecBaseAddress()
	for _, o := range img.Objects[1:] {
		if o.RebaseAddr > 0 && o.RebaseAddr < min {
			min = o.RebaseAddr
		}
	}
	return min
}

// MaxAddress is the maximum MaxAddress() over every object in the
// image.
func (img *ComposedImage) MaxAddress() uint64 {
	var max uint64
	for i, o := range img.Objects {
		m := o.MaxAddress()
		if i == 0 || m > max {
			max = m
		}
	}
	return max
}

// Owner returns the object whose rebased [base, max_address] range
// strictly contains addr (both bounds exclusive, per
// addr_belongs_to_object), main searched first, then dependencies in
// load order.
func (img *ComposedImage) Owner(addr uint64) (*object.Object, bool) {
	for _, o := range img.Objects {
		base := o.ExecBaseAddress() + o.RebaseAddr
		if addr > base && addr < o.MaxAddress() {
			return o, true
		}
	}
	return nil, false
}

// FindSymbol returns the rebased address of the first dependency
// exporting name, in load order.
func (img *ComposedImage) FindSymbol(name string) (uint64, bool) {
	for _, o := range img.Objects[1:] {
		if addr, ok := o.Exports()[name]; ok {
			return addr + o.RebaseAddr, true
		}
	}
	return 0, false
}
