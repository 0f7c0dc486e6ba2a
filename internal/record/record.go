// Package record parses the extractor's flat, comma-separated record
// stream into typed views: program headers, symbol entries,
// jump-relocation entries, the dependency list, the entry point, and
// endianness. The wire format and field layout are inherited unchanged
// from the distilled clextract protocol.
package record

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"github.com/elfcle/clego/internal/clerr"
)

// ProgramHeaderEntry is one row of the "phdr" discriminator.
type ProgramHeaderEntry struct {
	Offset uint64
	Vaddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
	Type   string
}

// IsText reports whether this entry is the text-segment PT_LOAD entry:
// the sole PT_LOAD where Filesz == Memsz.
func (p ProgramHeaderEntry) IsText() bool {
	return p.Type == "PT_LOAD" && p.Filesz == p.Memsz
}

// IsData reports whether this entry is the data-segment PT_LOAD entry:
// the sole PT_LOAD where Filesz != Memsz (the difference is BSS).
func (p ProgramHeaderEntry) IsData() bool {
	return p.Type == "PT_LOAD" && p.Filesz != p.Memsz
}

// SymbolEntry is one row of the "symtab" discriminator.
type SymbolEntry struct {
	Name    string
	Addr    uint64
	Binding string
	Type    string
}

// JumpRelocEntry is one row of the "jmprel" discriminator: a symbol name
// bound to the address of its GOT slot.
type JumpRelocEntry struct {
	Symbol   string
	GotAddr  uint64
}

// Records is the parsed projection of an extractor record stream.
type Records struct {
	ProgramHeaders []ProgramHeaderEntry
	Symbols        []SymbolEntry
	JumpRelocs     []JumpRelocEntry
	Needed         []string
	EntryPoint     uint64
	HasEntryPoint  bool
	Endianness     string
	ObjectType     string
}

// Parse reads an extractor record stream and projects it into Records.
// Unknown discriminators are ignored for forward compatibility. Parse
// fails with MalformedObject on a malformed integer field or a missing
// field inside a record it recognises. The absence of an entry-point
// record, a text PT_LOAD, or a data PT_LOAD is not checked here -- the
// required-record check belongs to the object loader, which is the
// first consumer that knows which records are required.
func Parse(r io.Reader) (*Records, error) {
	recs := &Records{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitTrim(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "phdr":
			ph, err := parsePhdr(fields)
			if err != nil {
				return nil, err
			}
			recs.ProgramHeaders = append(recs.ProgramHeaders, ph)

		case "shdr", "dyn":
			// Retained by the wire format but unused by the core.

		case "symtab":
			sym, err := parseSymtab(fields)
			if err != nil {
				return nil, err
			}
			recs.Symbols = append(recs.Symbols, sym)

		case "jmprel":
			jr, err := parseJmprel(fields)
			if err != nil {
				return nil, err
			}
			recs.JumpRelocs = append(recs.JumpRelocs, jr)

		case "needed":
			recs.Needed = append(recs.Needed, fields[1:]...)

		case "Entry point":
			if len(fields) < 2 {
				return nil, &clerr.MalformedObject{Reason: "Entry point record missing address field"}
			}
			addr, err := parseUint(fields[1])
			if err != nil {
				return nil, &clerr.MalformedObject{Reason: "Entry point: " + err.Error()}
			}
			recs.EntryPoint = addr
			recs.HasEntryPoint = true

		case "Endianness":
			if len(fields) < 2 {
				return nil, &clerr.MalformedObject{Reason: "Endianness record missing value"}
			}
			recs.Endianness = fields[1]

		case "Object_type":
			if len(fields) < 2 {
				return nil, &clerr.MalformedObject{Reason: "Object_type record missing value"}
			}
			recs.ObjectType = fields[1]

		default:
			// Unknown discriminator: ignored for forward compatibility.
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

func splitTrim(line string) []string {
	parts := strings.Split(line, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

func parsePhdr(fields []string) (ProgramHeaderEntry, error) {
	// phdr,offset,vaddr,filesz,memsz,align,type
	if len(fields) < 7 {
		return ProgramHeaderEntry{}, &clerr.MalformedObject{Reason: "phdr record has too few fields"}
	}
	var vals [5]uint64
	names := []string{"offset", "vaddr", "filesz", "memsz", "align"}
	for i := range vals {
		v, err := parseUint(fields[i+1])
		if err != nil {
			return ProgramHeaderEntry{}, &clerr.MalformedObject{Reason: "phdr " + names[i] + ": " + err.Error()}
		}
		vals[i] = v
	}
	return ProgramHeaderEntry{
		Offset: vals[0],
		Vaddr:  vals[1],
		Filesz: vals[2],
		Memsz:  vals[3],
		Align:  vals[4],
		Type:   fields[6],
	}, nil
}

func parseSymtab(fields []string) (SymbolEntry, error) {
	// Indices 2, 5, 8, 9 are address, binding, type, name.
	if len(fields) < 10 {
		return SymbolEntry{}, &clerr.MalformedObject{Reason: "symtab record has too few fields"}
	}
	addr, err := parseUint(fields[2])
	if err != nil {
		return SymbolEntry{}, &clerr.MalformedObject{Reason: "symtab address: " + err.Error()}
	}
	return SymbolEntry{
		Addr:    addr,
		Binding: fields[5],
		Type:    fields[8],
		Name:    fields[9],
	}, nil
}

func parseJmprel(fields []string) (JumpRelocEntry, error) {
	// jmprel,got_addr,...,symbol_name
	if len(fields) < 4 {
		return JumpRelocEntry{}, &clerr.MalformedObject{Reason: "jmprel record has too few fields"}
	}
	addr, err := parseUint(fields[1])
	if err != nil {
		return JumpRelocEntry{}, &clerr.MalformedObject{Reason: "jmprel got_addr: " + err.Error()}
	}
	return JumpRelocEntry{
		GotAddr: addr,
		Symbol:  fields[len(fields)-1],
	}, nil
}

// parseUint parses an integer field using the extractor's radix:
// decimal unless the field carries a 0x/0X prefix.
func parseUint(field string) (uint64, error) {
	field = strings.TrimSpace(field)
	base := 10
	if strings.HasPrefix(field, "0x") || strings.HasPrefix(field, "0X") {
		field = field[2:]
		base = 16
	}
	return strconv.ParseUint(field, base, 64)
}
