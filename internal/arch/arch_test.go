package arch

import "testing"

func TestCanonicaliseKnown(t *testing.T) {
	cases := []struct {
		extractorName string
		want          Tag
	}{
		{"i386:x86-64", AMD64},
		{"mips:isa32", MIPS32},
		{"powerpc:common", PPC32},
		{"armv4t", ARM},
		{"i386", X86},
	}
	for _, c := range cases {
		t.Run(c.extractorName, func(t *testing.T) {
			got, err := Canonicalise(c.extractorName)
			if err != nil {
				t.Fatalf("Canonicalise(%q): %v", c.extractorName, err)
			}
			if got != c.want {
				t.Errorf("Canonicalise(%q) = %v, want %v", c.extractorName, got, c.want)
			}
		})
	}
}

func TestCanonicaliseUnknown(t *testing.T) {
	if _, err := Canonicalise("sparc"); err == nil {
		t.Fatal("expected UnsupportedArchitecture for unknown name")
	}
}

func TestEmulatorSuffixAndAnalyserName(t *testing.T) {
	suffix, err := EmulatorSuffix(AMD64)
	if err != nil || suffix != "x86_64" {
		t.Fatalf("EmulatorSuffix(AMD64) = %q, %v", suffix, err)
	}
	name, err := AnalyserName(ARM)
	if err != nil || name != "ARM" {
		t.Fatalf("AnalyserName(ARM) = %q, %v", name, err)
	}
	if _, err := EmulatorSuffix("bogus"); err == nil {
		t.Fatal("expected UnsupportedArchitecture for unknown tag")
	}
}

func TestWordSize(t *testing.T) {
	if WordSize(AMD64) != 8 {
		t.Errorf("WordSize(AMD64) = %d, want 8", WordSize(AMD64))
	}
	if WordSize(X86) != 4 {
		t.Errorf("WordSize(X86) = %d, want 4", WordSize(X86))
	}
}

func TestByteOrder(t *testing.T) {
	if LSB.ByteOrder() == nil || MSB.ByteOrder() == nil {
		t.Fatal("ByteOrder must not be nil")
	}
}
