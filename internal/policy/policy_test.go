package policy

import (
	"os"
	"path/filepath"
	"testing"
)

func writeScript(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.js")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestPolicyResolveFound(t *testing.T) {
	path := writeScript(t, `
		function resolve(symbolName, objectPath) {
			if (symbolName === "malloc") {
				return 0xdeadbeef;
			}
			return undefined;
		}
	`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	addr, found := p.Resolve("malloc", "libc.so")
	if !found || addr != 0xdeadbeef {
		t.Errorf("Resolve() = (0x%x, %v), want (0xdeadbeef, true)", addr, found)
	}
}

func TestPolicyResolveDeclined(t *testing.T) {
	path := writeScript(t, `
		function resolve(symbolName, objectPath) {
			return undefined;
		}
	`)
	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, found := p.Resolve("free", "libc.so"); found {
		t.Error("expected Resolve to decline when the script returns undefined")
	}
}

func TestLoadMissingResolveFunction(t *testing.T) {
	path := writeScript(t, `var x = 1;`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error when script does not define resolve()")
	}
}

func TestLoadScriptSyntaxError(t *testing.T) {
	path := writeScript(t, `function resolve( {`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for a syntax error in the script")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.js")); err == nil {
		t.Fatal("expected error for a missing script file")
	}
}
