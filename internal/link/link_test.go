package link

import (
	"testing"

	"github.com/elfcle/clego/internal/arch"
	"github.com/elfcle/clego/internal/object"
	"github.com/elfcle/clego/internal/record"
)

func newTestObject(path string, tag arch.Tag) *object.Object {
	return &object.Object{
		Path:       path,
		Arch:       tag,
		Endianness: arch.LSB,
		Symbols:    make(map[string]record.SymbolEntry),
		Memory:     object.NewMemory(),
		Segments: []object.Segment{
			{Name: "text", VAddr: 0x1000, Size: 0x100, Offset: 0, HasOffset: true},
		},
	}
}

// TestComposeRelocatesAcrossObjects exercises relocation across two
// objects: main imports a symbol libfoo exports.
func TestComposeRelocatesAcrossObjects(t *testing.T) {
	main := newTestObject("main", arch.AMD64)
	main.Memory.Set(0x1000, 0xAA)
	main.JumpRelocs = []record.JumpRelocEntry{{Symbol: "do_work", GotAddr: 0x2000}}

	lib := newTestObject("libfoo.so", arch.AMD64)
	lib.Symbols["do_work"] = record.SymbolEntry{Name: "do_work", Addr: 0x50, Binding: "STB_GLOBAL", Type: "1"}
	lib.Memory.Set(0x50, 0xBB)

	img, err := Compose(main, []DependencyObject{{Object: lib, Base: 0x10000}}, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	word, ok := img.Memory.ReadWord(0x2000, 8, arch.LSB.ByteOrder())
	if !ok {
		t.Fatal("GOT slot not written")
	}
	want := uint64(0x50 + 0x10000)
	if word != want {
		t.Errorf("GOT slot = 0x%x, want 0x%x", word, want)
	}

	if b, _ := img.Memory.Get(0x10050); b != 0xBB {
		t.Errorf("rebased lib byte missing/wrong: %x", b)
	}
	if b, _ := img.Memory.Get(0x1000); b != 0xAA {
		t.Errorf("main byte missing/wrong: %x", b)
	}
}

func TestComposeUnresolvedIsSoftFailure(t *testing.T) {
	main := newTestObject("main", arch.AMD64)
	main.JumpRelocs = []record.JumpRelocEntry{{Symbol: "missing_fn", GotAddr: 0x2000}}

	img, err := Compose(main, nil, nil)
	if err != nil {
		t.Fatalf("Compose should not fail on unresolved symbol: %v", err)
	}
	if _, ok := img.Memory.Get(0x2000); ok {
		t.Error("unresolved GOT slot should be left untouched")
	}
}

func TestComposeOverlapError(t *testing.T) {
	main := newTestObject("main", arch.AMD64)
	main.Memory.Set(0x10050, 0x01)

	lib := newTestObject("libfoo.so", arch.AMD64)
	lib.Memory.Set(0x50, 0xBB)

	_, err := Compose(main, []DependencyObject{{Object: lib, Base: 0x10000}}, nil)
	if err == nil {
		t.Fatal("expected OverlapError when dependency collides with main")
	}
}

func TestComposeFirstDependencyWinsTie(t *testing.T) {
	main := newTestObject("main", arch.AMD64)
	main.JumpRelocs = []record.JumpRelocEntry{{Symbol: "dup", GotAddr: 0x2000}}

	libA := newTestObject("liba.so", arch.AMD64)
	libA.Symbols["dup"] = record.SymbolEntry{Name: "dup", Addr: 0x10, Binding: "STB_GLOBAL", Type: "1"}

	libB := newTestObject("libb.so", arch.AMD64)
	libB.Symbols["dup"] = record.SymbolEntry{Name: "dup", Addr: 0x20, Binding: "STB_GLOBAL", Type: "1"}

	img, err := Compose(main, []DependencyObject{
		{Object: libA, Base: 0x10000},
		{Object: libB, Base: 0x20000},
	}, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	word, _ := img.Memory.ReadWord(0x2000, 8, arch.LSB.ByteOrder())
	want := uint64(0x10 + 0x10000)
	if word != want {
		t.Errorf("GOT slot = 0x%x, want 0x%x (liba, first in load order)", word, want)
	}
}

func TestOverrideGOT(t *testing.T) {
	main := newTestObject("main", arch.AMD64)
	main.JumpRelocs = []record.JumpRelocEntry{{Symbol: "hook_me", GotAddr: 0x2000}}

	img, err := Compose(main, nil, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	if found := img.OverrideGOT(main, "not_present", 0xdead, nil); found {
		t.Error("OverrideGOT should report not-found for an absent symbol")
	}

	if found := img.OverrideGOT(main, "hook_me", 0xcafe, nil); !found {
		t.Fatal("OverrideGOT should find hook_me")
	}
	word, _ := img.Memory.ReadWord(0x2000, 8, arch.LSB.ByteOrder())
	if word != 0xcafe {
		t.Errorf("GOT slot after override = 0x%x, want 0xcafe", word)
	}
}

func TestQuerySurface(t *testing.T) {
	main := newTestObject("main", arch.AMD64)
	lib := newTestObject("libfoo.so", arch.AMD64)
	lib.Symbols["exported_fn"] = record.SymbolEntry{Name: "exported_fn", Addr: 0x80, Binding: "STB_GLOBAL", Type: "1"}

	img, err := Compose(main, []DependencyObject{{Object: lib, Base: 0x10000}}, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	addr, ok := img.FindSymbol("exported_fn")
	if !ok || addr != 0x80+0x10000 {
		t.Errorf("FindSymbol() = (0x%x, %v), want (0x%x, true)", addr, ok, 0x80+0x10000)
	}

	owner, ok := img.Owner(0x10050)
	if !ok || owner.Path != "libfoo.so" {
		t.Errorf("Owner(0x10050) = (%v, %v), want libfoo.so", owner, ok)
	}

	owner, ok = img.Owner(0x1050)
	if !ok || owner.Path != "main" {
		t.Errorf("Owner(0x1050) = (%v, %v), want main", owner, ok)
	}
}

// TestOwnerBoundsAreStrict exercises the exact [base, max_address]
// endpoints, which addr_belongs_to_object excludes on both sides.
func TestOwnerBoundsAreStrict(t *testing.T) {
	main := newTestObject("main", arch.AMD64)

	img, err := Compose(main, nil, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	base := main.ExecBaseAddress()
	max := main.MaxAddress()

	if _, ok := img.Owner(base); ok {
		t.Errorf("Owner(base=0x%x) should not match; low bound is exclusive", base)
	}
	if _, ok := img.Owner(max); ok {
		t.Errorf("Owner(max=0x%x) should not match; high bound is exclusive", max)
	}
	if _, ok := img.Owner(base + 1); !ok {
		t.Errorf("Owner(base+1=0x%x) should match", base+1)
	}
}
