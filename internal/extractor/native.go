package extractor

import (
	"context"
	"debug/elf"
	"strings"

	"github.com/elfcle/clego/internal/arch"
	"github.com/elfcle/clego/internal/clerr"
	"github.com/elfcle/clego/internal/record"
)

// NativeExtractor derives the same record projection a clextract
// subprocess would emit, directly from debug/elf, with no external
// process. Its program-header and PLT-relocation walk is grounded on
// the teacher's LoadELFAt/addPLTSymbols, generalized from ARM64-only to
// every architecture in the catalogue.
type NativeExtractor struct{}

func (NativeExtractor) Extract(_ context.Context, path string) (*Result, error) {
	f, err := openELF(path)
	if err != nil {
		return nil, &clerr.IoError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	extractorName, err := arch.DetectArchitecture(f)
	if err != nil {
		return nil, err
	}
	tag, err := arch.Canonicalise(extractorName)
	if err != nil {
		return nil, err
	}
	endianness := arch.ElfEndianness(f)

	recs := &record.Records{
		EntryPoint:    f.Entry,
		HasEntryPoint: true,
		Endianness:    string(endianness),
		ObjectType:    f.Type.String(),
	}

	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		recs.ProgramHeaders = append(recs.ProgramHeaders, record.ProgramHeaderEntry{
			Offset: p.Off,
			Vaddr:  p.Vaddr,
			Filesz: p.Filesz,
			Memsz:  p.Memsz,
			Align:  p.Align,
			Type:   "PT_LOAD",
		})
	}

	addSymbols(f, recs)

	if needed, err := f.DynString(elf.DT_NEEDED); err == nil {
		recs.Needed = append(recs.Needed, needed...)
	}

	addJumpRelocs(f, recs)

	return &Result{Records: recs, Arch: tag, Endianness: endianness}, nil
}

func addSymbols(f *elf.File, recs *record.Records) {
	addFrom := func(syms []elf.Symbol) {
		for _, s := range syms {
			if s.Name == "" {
				continue
			}
			sType := "1"
			if s.Section == elf.SHN_UNDEF {
				sType = "SHN_UNDEF"
			}
			binding := bindingName(elf.ST_BIND(s.Info))
			recs.Symbols = append(recs.Symbols, record.SymbolEntry{
				Name:    stripVersion(s.Name),
				Addr:    s.Value,
				Binding: binding,
				Type:    sType,
			})
		}
	}
	if syms, err := f.DynamicSymbols(); err == nil {
		addFrom(syms)
	}
	if syms, err := f.Symbols(); err == nil {
		addFrom(syms)
	}
}

func bindingName(b elf.SymBind) string {
	switch b {
	case elf.STB_GLOBAL:
		return "STB_GLOBAL"
	case elf.STB_WEAK:
		return "STB_WEAK"
	case elf.STB_LOCAL:
		return "STB_LOCAL"
	default:
		return b.String()
	}
}

func stripVersion(name string) string {
	if idx := strings.Index(name, "@@"); idx != -1 {
		return name[:idx]
	}
	if idx := strings.Index(name, "@"); idx != -1 {
		return name[:idx]
	}
	return name
}

// addJumpRelocs walks the .rela.plt/.rel.plt section, binding each GOT
// slot (r_offset) to the dynamic symbol it targets. Only PLT/GOT
// relocations are interpreted, per the "no general R_* processing" rule
// -- the relocation *type* is not inspected, since every entry in the
// PLT relocation section is by construction a jump-slot relocation.
func addJumpRelocs(f *elf.File, recs *record.Records) {
	dynSyms, err := f.DynamicSymbols()
	if err != nil {
		return
	}

	sec := f.Section(".rela.plt")
	rela := true
	if sec == nil {
		sec = f.Section(".rel.plt")
		rela = false
	}
	if sec == nil {
		return
	}
	data, err := sec.Data()
	if err != nil {
		return
	}

	entrySize := 8
	if rela {
		entrySize = 12
	}
	if f.Class == elf.ELFCLASS64 {
		entrySize *= 2
	}

	for i := 0; i+entrySize <= len(data); i += entrySize {
		var offset uint64
		var symIdx int
		if f.Class == elf.ELFCLASS64 {
			offset = f.ByteOrder.Uint64(data[i:])
			info := f.ByteOrder.Uint64(data[i+8:])
			symIdx = int(info >> 32)
		} else {
			offset = uint64(f.ByteOrder.Uint32(data[i:]))
			info := f.ByteOrder.Uint32(data[i+4:])
			symIdx = int(info >> 8)
		}

		arrayIdx := symIdx - 1 // Go's DynamicSymbols() skips STN_UNDEF at index 0.
		if arrayIdx < 0 || arrayIdx >= len(dynSyms) {
			continue
		}
		sym := dynSyms[arrayIdx]
		if sym.Name == "" {
			continue
		}
		recs.JumpRelocs = append(recs.JumpRelocs, record.JumpRelocEntry{
			Symbol:  stripVersion(sym.Name),
			GotAddr: offset,
		})
	}
}
