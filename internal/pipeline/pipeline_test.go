package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/elfcle/clego/internal/arch"
	"github.com/elfcle/clego/internal/config"
	"github.com/elfcle/clego/internal/extractor"
	"github.com/elfcle/clego/internal/link"
	"github.com/elfcle/clego/internal/object"
	"github.com/elfcle/clego/internal/record"
)

func TestBuildExtractorDefaultsToNative(t *testing.T) {
	ext := BuildExtractor(config.Defaults())
	if _, ok := ext.(extractor.NativeExtractor); !ok {
		t.Errorf("BuildExtractor(Defaults()) = %T, want NativeExtractor", ext)
	}
}

func TestBuildExtractorSelectsSubprocess(t *testing.T) {
	cfg := config.Defaults()
	cfg.Extractor = "subprocess"
	cfg.EnvRoot = "/opt/clego-env"

	ext := BuildExtractor(cfg)
	sub, ok := ext.(extractor.SubprocessExtractor)
	if !ok {
		t.Fatalf("BuildExtractor = %T, want SubprocessExtractor", ext)
	}
	if sub.EnvRoot != cfg.EnvRoot {
		t.Errorf("SubprocessExtractor.EnvRoot = %q, want %q", sub.EnvRoot, cfg.EnvRoot)
	}
}

func newLinkTestObject(path string) *object.Object {
	return &object.Object{
		Path:       path,
		Arch:       arch.AMD64,
		Endianness: arch.LSB,
		Symbols:    make(map[string]record.SymbolEntry),
		Memory:     object.NewMemory(),
		Segments: []object.Segment{
			{Name: "text", VAddr: 0x1000, Size: 0x100, Offset: 0, HasOffset: true},
		},
	}
}

func TestApplyOverridePolicyResolvesUnresolvedSlot(t *testing.T) {
	main := newLinkTestObject("main")
	main.JumpRelocs = []record.JumpRelocEntry{{Symbol: "hook_me", GotAddr: 0x2000}}

	img, err := link.Compose(main, nil, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	if _, ok := img.Memory.Get(0x2000); ok {
		t.Fatal("expected hook_me to start unresolved")
	}

	scriptPath := filepath.Join(t.TempDir(), "policy.js")
	script := `
		function resolve(symbolName, objectPath) {
			if (symbolName === "hook_me") {
				return 0xcafe;
			}
			return undefined;
		}
	`
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ApplyOverridePolicy(img, scriptPath, nil)

	word, ok := img.Memory.ReadWord(0x2000, 8, arch.LSB.ByteOrder())
	if !ok || word != 0xcafe {
		t.Errorf("GOT slot after policy = (0x%x, %v), want (0xcafe, true)", word, ok)
	}
}

func TestApplyOverridePolicyLeavesResolvedSlotsAlone(t *testing.T) {
	main := newLinkTestObject("main")
	main.JumpRelocs = []record.JumpRelocEntry{{Symbol: "already_resolved", GotAddr: 0x2000}}

	lib := newLinkTestObject("libfoo.so")
	lib.Symbols["already_resolved"] = record.SymbolEntry{Name: "already_resolved", Addr: 0x50, Binding: "STB_GLOBAL", Type: "1"}

	img, err := link.Compose(main, []link.DependencyObject{{Object: lib, Base: 0x10000}}, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	scriptPath := filepath.Join(t.TempDir(), "policy.js")
	script := `function resolve(symbolName, objectPath) { return 0xdead; }`
	if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ApplyOverridePolicy(img, scriptPath, nil)

	word, _ := img.Memory.ReadWord(0x2000, 8, arch.LSB.ByteOrder())
	want := uint64(0x50 + 0x10000)
	if word != want {
		t.Errorf("GOT slot = 0x%x, want untouched 0x%x", word, want)
	}
}

func TestApplyOverridePolicyMissingScriptIsNonFatal(t *testing.T) {
	main := newLinkTestObject("main")
	main.JumpRelocs = []record.JumpRelocEntry{{Symbol: "hook_me", GotAddr: 0x2000}}

	img, err := link.Compose(main, nil, nil)
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	ApplyOverridePolicy(img, filepath.Join(t.TempDir(), "nope.js"), nil)

	if _, ok := img.Memory.Get(0x2000); ok {
		t.Error("missing policy script should leave the GOT slot untouched, not panic")
	}
}
