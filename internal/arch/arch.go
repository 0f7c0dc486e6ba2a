// Package arch canonicalises architecture tags between the extractor's
// BFD-style namespace, the emulator's command-suffix namespace, and the
// analyser's native-name namespace.
package arch

import (
	"debug/elf"
	"encoding/binary"

	"github.com/elfcle/clego/internal/clerr"
)

// Tag is the closed set of architectures the catalogue recognises.
type Tag string

const (
	X86    Tag = "X86"
	AMD64  Tag = "AMD64"
	MIPS32 Tag = "MIPS32"
	PPC32  Tag = "PPC32"
	ARM    Tag = "ARM"
)

// entry binds one BFD-style extractor name to its emulator suffix and
// analyser name.
type entry struct {
	tag      Tag
	suffix   string
	analyser string
}

// catalogue is keyed by the extractor's BFD architecture name, matching
// the table in the external-interfaces section of the design document.
var catalogue = map[string]entry{
	"i386:x86-64":  {AMD64, "x86_64", "AMD64"},
	"mips:isa32":   {MIPS32, "mips", "MIPS32"},
	"powerpc:common": {PPC32, "ppc", "PPC32"},
	"armv4t":       {ARM, "arm", "ARM"},
	"i386":         {X86, "i386", "X86"},
}

// Canonicalise maps an extractor-namespace architecture name to the
// closed Tag enumeration. Unknown names are UnsupportedArchitecture.
func Canonicalise(extractorName string) (Tag, error) {
	e, ok := catalogue[extractorName]
	if !ok {
		return "", &clerr.UnsupportedArchitecture{Name: extractorName}
	}
	return e.tag, nil
}

// EmulatorSuffix returns the "qemu-<suffix>"-style command suffix for a
// tag. Unknown tags are UnsupportedArchitecture.
func EmulatorSuffix(tag Tag) (string, error) {
	for _, e := range catalogue {
		if e.tag == tag {
			return e.suffix, nil
		}
	}
	return "", &clerr.UnsupportedArchitecture{Name: string(tag)}
}

// AnalyserName returns the downstream analyser's native name for a tag.
// Unknown tags are UnsupportedArchitecture.
func AnalyserName(tag Tag) (string, error) {
	for _, e := range catalogue {
		if e.tag == tag {
			return e.analyser, nil
		}
	}
	return "", &clerr.UnsupportedArchitecture{Name: string(tag)}
}

// Endianness is the byte order recorded per object.
type Endianness string

const (
	LSB Endianness = "LSB"
	MSB Endianness = "MSB"
)

// ByteOrder returns the encoding/binary.ByteOrder matching e.
func (e Endianness) ByteOrder() binary.ByteOrder {
	if e == MSB {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// HostEndianness reports this process's native byte order, mirroring
// original_source/cle/cle.py's Ld.host_endianness. The core relocation
// logic never consults it directly -- it always uses the object's own
// recorded endianness -- but the subprocess extractor uses it as a
// fallback when the record stream's Endianness value is neither LSB nor
// MSB.
func HostEndianness() Endianness {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, 1)
	if buf[0] == 1 {
		return LSB
	}
	return MSB
}

// DetectArchitecture derives the BFD-style extractor name directly from
// an ELF file's e_machine field. This is the Go-native substitute for
// the out-of-scope cle_bfd.so helper described in the external
// interfaces section: rather than shelling out to a native library, the
// information it would have returned is read straight out of the ELF
// header, which is already parsed by debug/elf.
func DetectArchitecture(f *elf.File) (string, error) {
	switch f.Machine {
	case elf.EM_X86_64:
		return "i386:x86-64", nil
	case elf.EM_386:
		return "i386", nil
	case elf.EM_MIPS:
		return "mips:isa32", nil
	case elf.EM_PPC:
		return "powerpc:common", nil
	case elf.EM_ARM:
		return "armv4t", nil
	default:
		return "", &clerr.UnsupportedArchitecture{Name: f.Machine.String()}
	}
}

// ElfEndianness derives Endianness from an ELF file's byte order.
func ElfEndianness(f *elf.File) Endianness {
	if f.ByteOrder == binary.BigEndian {
		return MSB
	}
	return LSB
}

// WordSize returns the native pointer width, in bytes, for a tag. Used
// by the linker to size GOT-slot writes (§4.E "word width").
func WordSize(tag Tag) int {
	switch tag {
	case AMD64:
		return 8
	default:
		return 4
	}
}
