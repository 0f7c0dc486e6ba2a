// Package object implements the per-object loader (§4.C): given parsed
// extractor records, it materialises a sparse byte map of one ELF
// object's text and data segments plus zero-filled BSS, and exposes
// queries over segments, symbols, imports, exports, and
// jump-relocations.
package object

import (
	"context"
	"os"

	"github.com/elfcle/clego/internal/arch"
	"github.com/elfcle/clego/internal/clerr"
	"github.com/elfcle/clego/internal/extractor"
	"github.com/elfcle/clego/internal/record"
)

// ExportPolicy controls which symbols Exports() admits. The default
// (IncludeWeak: false) matches the original loader's STB_GLOBAL-only
// rule; setting IncludeWeak lets a caller opt STB_WEAK symbols in
// without forking the loader, per the design document's "weak symbols"
// open question.
type ExportPolicy struct {
	IncludeWeak bool
}

// Object is a loaded ELF: architecture, endianness, parsed tables, and
// a private sparse byte map keyed by pre-rebase virtual address.
// Constructed by Load; mutated only by the linker, which assigns
// RebaseAddr; immutable thereafter.
type Object struct {
	Path         string
	Arch         arch.Tag
	Endianness   arch.Endianness
	Type         string
	EntryPoint   uint64
	Symbols      map[string]record.SymbolEntry
	JumpRelocs   []record.JumpRelocEntry
	Dependencies []string
	Segments     []Segment
	Memory       *Memory
	RebaseAddr   uint64
	ExportPolicy ExportPolicy
}

// Load runs the §4.C algorithm: detect architecture, run the extractor,
// parse records, identify the text/data PT_LOAD entries, read their
// file bytes into a private sparse map, zero-fill BSS, and record the
// two resulting segments.
func Load(ctx context.Context, path string, ext extractor.Extractor, policy ExportPolicy) (*Object, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, &clerr.IoError{Op: "stat", Path: path, Err: err}
	}

	res, err := ext.Extract(ctx, path)
	if err != nil {
		return nil, err
	}
	recs := res.Records

	if !recs.HasEntryPoint {
		return nil, &clerr.MalformedObject{Path: path, Reason: "no entry point record"}
	}

	var text, data *record.ProgramHeaderEntry
	for i := range recs.ProgramHeaders {
		ph := &recs.ProgramHeaders[i]
		if ph.IsText() && text == nil {
			text = ph
		}
		if ph.IsData() && data == nil {
			data = ph
		}
	}
	if text == nil {
		return nil, &clerr.MalformedObject{Path: path, Reason: "no text PT_LOAD entry (filesz == memsz)"}
	}
	if data == nil {
		return nil, &clerr.MalformedObject{Path: path, Reason: "no data PT_LOAD entry (filesz != memsz)"}
	}

	obj := &Object{
		Path:         path,
		Arch:         res.Arch,
		Endianness:   res.Endianness,
		Type:         recs.ObjectType,
		EntryPoint:   recs.EntryPoint,
		Symbols:      make(map[string]record.SymbolEntry, len(recs.Symbols)),
		JumpRelocs:   recs.JumpRelocs,
		Dependencies: recs.Needed,
		Memory:       NewMemory(),
		ExportPolicy: policy,
	}
	for _, s := range recs.Symbols {
		obj.Symbols[s.Name] = s
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &clerr.IoError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	if err := loadSegment(f, obj.Memory, *text, "text"); err != nil {
		return nil, &clerr.MalformedObject{Path: path, Reason: err.Error()}
	}
	if err := loadSegment(f, obj.Memory, *data, "data"); err != nil {
		return nil, &clerr.MalformedObject{Path: path, Reason: err.Error()}
	}

	bssStart := data.Vaddr + data.Filesz
	bssSize := data.Memsz - data.Filesz
	for i := uint64(0); i < bssSize; i++ {
		obj.Memory.Set(bssStart+i, 0)
	}

	obj.Segments = []Segment{
		{Name: "text", VAddr: text.Vaddr, Size: text.Memsz, Offset: text.Offset, HasOffset: true},
		{Name: "data", VAddr: data.Vaddr, Size: data.Memsz, Offset: data.Offset, HasOffset: true},
	}

	return obj, nil
}

func loadSegment(f *os.File, mem *Memory, ph record.ProgramHeaderEntry, name string) error {
	buf := make([]byte, ph.Filesz)
	if ph.Filesz > 0 {
		if _, err := f.ReadAt(buf, int64(ph.Offset)); err != nil {
			return errSegmentRead(name, err)
		}
	}
	for i, b := range buf {
		addr := ph.Vaddr + uint64(i)
		if !mem.TrySet(addr, b) {
			return errOverlap(name, addr)
		}
	}
	return nil
}

// ExecBaseAddress returns the lower vaddr of text vs data, the
// load-time base address for a position-dependent executable.
func (o *Object) ExecBaseAddress() uint64 {
	text, data := o.textSegment(), o.dataSegment()
	if text.VAddr > data.VAddr {
		return data.VAddr
	}
	return text.VAddr
}

// MaxAddress returns the highest rebased address spanned by this
// object's segments. The result tracks RebaseAddr, so calls before
// rebasing return pre-relocation values.
func (o *Object) MaxAddress() uint64 {
	text, data := o.textSegment(), o.dataSegment()
	m1 := text.VAddr + text.Size
	m2 := data.VAddr + data.Size
	if m1 > m2 {
		return m1 + o.RebaseAddr
	}
	return m2 + o.RebaseAddr
}

func (o *Object) textSegment() Segment {
	for _, s := range o.Segments {
		if s.Name == "text" {
			return s
		}
	}
	return Segment{}
}

func (o *Object) dataSegment() Segment {
	for _, s := range o.Segments {
		if s.Name == "data" {
			return s
		}
	}
	return Segment{}
}

// Imports returns the symbols with type SHN_UNDEF: those this object
// needs from elsewhere.
func (o *Object) Imports() map[string]uint64 {
	out := make(map[string]uint64)
	for name, s := range o.Symbols {
		if s.Type == "SHN_UNDEF" {
			out[name] = s.Addr
		}
	}
	return out
}

// Exports returns the symbols this object offers to others: STB_GLOBAL
// binding (and STB_WEAK if ExportPolicy.IncludeWeak) with a defined
// section.
func (o *Object) Exports() map[string]uint64 {
	out := make(map[string]uint64)
	for name, s := range o.Symbols {
		if s.Type == "SHN_UNDEF" {
			continue
		}
		if s.Binding == "STB_GLOBAL" || (o.ExportPolicy.IncludeWeak && s.Binding == "STB_WEAK") {
			out[name] = s.Addr
		}
	}
	return out
}

// SegmentContaining returns the segment whose strict-inside test holds
// for addr, or (Segment{}, false).
func (o *Object) SegmentContaining(addr uint64) (Segment, bool) {
	for _, s := range o.Segments {
		if s.Contains(addr) {
			return s, true
		}
	}
	return Segment{}, false
}

// SegmentContainingCorrected is the half-open-range counterpart to
// SegmentContaining; see Segment.ContainsCorrected.
func (o *Object) SegmentContainingCorrected(addr uint64) (Segment, bool) {
	for _, s := range o.Segments {
		if s.ContainsCorrected(addr) {
			return s, true
		}
	}
	return Segment{}, false
}
