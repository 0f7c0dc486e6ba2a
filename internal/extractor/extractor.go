// Package extractor implements the out-of-scope collaborator that turns
// an ELF binary on disk into the record stream the core parses (§4.B).
// Two implementations satisfy the same interface: SubprocessExtractor
// invokes the documented external emulator/clextract pipeline literally;
// NativeExtractor derives an identical projection in-process from
// debug/elf, so the loader works without the sibling toolchain
// installed.
package extractor

import (
	"context"
	"debug/elf"

	"github.com/elfcle/clego/internal/arch"
	"github.com/elfcle/clego/internal/record"
)

// Result is everything the Object Loader needs from the extraction
// stage: the projected records, the canonicalised architecture tag, and
// the object's endianness.
type Result struct {
	Records    *record.Records
	Arch       arch.Tag
	Endianness arch.Endianness
}

// Extractor turns a binary on disk into a Result.
type Extractor interface {
	Extract(ctx context.Context, path string) (*Result, error)
}

// openELF is shared by both implementations for architecture/endianness
// detection; NativeExtractor also uses it to build the record
// projection directly.
func openELF(path string) (*elf.File, error) {
	return elf.Open(path)
}
