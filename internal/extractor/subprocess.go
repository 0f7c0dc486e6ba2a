package extractor

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/elfcle/clego/internal/arch"
	"github.com/elfcle/clego/internal/clerr"
	"github.com/elfcle/clego/internal/record"
)

// SubprocessExtractor invokes the literal external-interfaces contract:
//
//	<emulator> -E LD_LIBRARY_PATH=<opt_dir> <clextract> <binary>
//
// Architecture and endianness are still derived locally via debug/elf
// (the get_bfd_arch native helper is out of scope; see arch.DetectArchitecture)
// since the subprocess's own record stream carries no architecture tag.
type SubprocessExtractor struct {
	// EnvRoot is the sibling-tool install root (VIRTUAL_ENV in the
	// original). Required.
	EnvRoot string
}

func (s SubprocessExtractor) Extract(ctx context.Context, path string) (*Result, error) {
	f, err := openELF(path)
	if err != nil {
		return nil, &clerr.IoError{Op: "open", Path: path, Err: err}
	}
	extractorName, err := arch.DetectArchitecture(f)
	f.Close()
	if err != nil {
		return nil, err
	}
	tag, err := arch.Canonicalise(extractorName)
	if err != nil {
		return nil, err
	}

	if s.EnvRoot == "" {
		return nil, &clerr.IoError{Op: "resolve", Path: "VIRTUAL_ENV", Err: fmt.Errorf("env root not set")}
	}

	suffix, err := arch.EmulatorSuffix(tag)
	if err != nil {
		return nil, err
	}
	emulator := "qemu-" + suffix
	emulatorPath, err := exec.LookPath(emulator)
	if err != nil {
		return nil, &clerr.IoError{Op: "lookup", Path: emulator, Err: err}
	}

	optDir := filepath.Join(s.EnvRoot, "opt", suffix)
	clextract := filepath.Join(optDir, "clextract")
	if _, err := os.Stat(clextract); err != nil {
		return nil, &clerr.IoError{Op: "stat", Path: clextract, Err: err}
	}

	cmd := exec.CommandContext(ctx, emulatorPath, "-E", "LD_LIBRARY_PATH="+optDir, clextract, path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &clerr.ExtractorFailure{Cmd: cmd.Args, Stderr: stderr.String(), Err: err}
	}

	recs, err := record.Parse(&stdout)
	if err != nil {
		return nil, err
	}

	endianness := arch.Endianness(recs.Endianness)
	if endianness != arch.LSB && endianness != arch.MSB {
		endianness = arch.HostEndianness()
	}

	return &Result{Records: recs, Arch: tag, Endianness: endianness}, nil
}
