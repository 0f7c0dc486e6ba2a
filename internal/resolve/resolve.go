// Package resolve implements the Dependency Resolver (§4.D): discovering
// the ordered (soname → base address) bindings for the transitive set of
// shared libraries a main object requires, and locating each soname on
// disk when it isn't already an absolute path.
package resolve

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/elfcle/clego/internal/arch"
	"github.com/elfcle/clego/internal/clerr"
	"github.com/elfcle/clego/internal/log"
)

// DependencyBinding is one (soname, load-address) pair emitted by an
// Auditor, in discovery order.
type DependencyBinding struct {
	Soname string
	Base   uint64
}

// ResolvedDependency adds the on-disk location (if any) to a binding.
type ResolvedDependency struct {
	DependencyBinding
	Path  string
	Found bool
}

// Auditor discovers the shared-library search order and load addresses
// the dynamic linker would have chosen for mainPath, targeting tag.
type Auditor interface {
	Audit(ctx context.Context, mainPath string, tag arch.Tag) ([]DependencyBinding, error)
}

// SubprocessAuditor invokes the external dynamic-linker auditing hook
// literally:
//
//	<emulator> -E LD_LIBRARY_PATH=<path>,LD_AUDIT=<audit_lib> <binary>
//
// grounded on original_source/cle/cle.py's Ld.ld_so_addr. Unlike the
// source, which wrote the audit log to a fixed relative path
// ("./ld_audit.out"), this implementation generates a unique temporary
// path per invocation and passes it to ld_audit.so via the
// CLEGO_AUDIT_LOG environment variable, removing it via defer -- the
// correction over the source's shared-resource design noted in §5/§9.
type SubprocessAuditor struct {
	// EnvRoot is the sibling-tool install root (VIRTUAL_ENV in the
	// original). Required.
	EnvRoot string
	Logger  *log.Logger
}

func (a SubprocessAuditor) logger() *log.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return log.NewNop()
}

func (a SubprocessAuditor) Audit(ctx context.Context, mainPath string, tag arch.Tag) ([]DependencyBinding, error) {
	if a.EnvRoot == "" {
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

	optDir := filepath.Join(a.EnvRoot, "opt", suffix)
	auditLib := filepath.Join(optDir, "ld_audit.so")
	if _, err := os.Stat(auditLib); err != nil {
		return nil, &clerr.IoError{Op: "stat", Path: auditLib, Err: err}
	}

	logPath := filepath.Join(os.TempDir(), "clego-audit-"+uuid.New().String()+".log")
	defer os.Remove(logPath)

	ldPath := os.Getenv("LD_LIBRARY_PATH")
	if ldPath == "" {
		ldPath = optDir
	} else {
		ldPath = ldPath + ":" + optDir
	}
	ldVar := fmt.Sprintf("LD_LIBRARY_PATH=%s,LD_AUDIT=%s", ldPath, auditLib)

	cmd := exec.CommandContext(ctx, emulatorPath, "-E", ldVar, mainPath)
	cmd.Env = append(os.Environ(), "CLEGO_AUDIT_LOG="+logPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, &clerr.ExtractorFailure{Cmd: cmd.Args, Stderr: stderr.String(), Err: err}
	}

	f, err := os.Open(logPath)
	if err != nil {
		return nil, &clerr.DependencyResolutionFailure{Path: logPath, Err: err}
	}
	defer f.Close()

	bindings, err := parseAuditLog(f)
	if err != nil {
		return nil, &clerr.DependencyResolutionFailure{Path: logPath, Err: err}
	}
	return bindings, nil
}

// parseAuditLog reads newline-delimited "LIB,<soname>,<hex_address>"
// records, preserving first-seen order and keeping the first binding
// for any soname seen more than once.
func parseAuditLog(r io.Reader) ([]DependencyBinding, error) {
	seen := make(map[string]bool)
	var out []DependencyBinding
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 3 || fields[0] != "LIB" {
			continue
		}
		soname := strings.TrimSpace(fields[1])
		if seen[soname] {
			continue
		}
		addrField := strings.TrimSpace(fields[2])
		addrField = strings.TrimPrefix(strings.TrimPrefix(addrField, "0x"), "0X")
		base, err := strconv.ParseUint(addrField, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parse address for %s: %w", soname, err)
		}
		seen[soname] = true
		out = append(out, DependencyBinding{Soname: soname, Base: base})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Locate finds soname on disk. An already-existing absolute (or
// relative, resolvable) path is returned unchanged. Otherwise it
// searches, in order: the colon-separated directories in
// searchPathEnv, then the directory containing mainPath -- grounded on
// Ld.__search_so, which walks each root looking for a file named
// exactly soname. The first match wins.
func Locate(mainPath, soname, searchPathEnv string) (string, bool) {
	if soname == "" {
		return "", false
	}
	if _, err := os.Stat(soname); err == nil {
		return soname, true
	}

	var roots []string
	for _, p := range strings.Split(searchPathEnv, ":") {
		if p != "" {
			roots = append(roots, p)
		}
	}
	roots = append(roots, filepath.Dir(mainPath))

	for _, root := range roots {
		var found string
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil || found != "" {
				return nil
			}
			if !d.IsDir() && d.Name() == soname {
				found = path
				return filepath.SkipAll
			}
			return nil
		})
		if found != "" {
			return found, true
		}
	}
	return "", false
}

// Resolve runs an Auditor against main and locates each reported
// soname on disk, per the fallback-discovery rule in §4.D. A soname
// that cannot be located is logged via logger.DependencyMissing and
// returned with Found == false rather than failing the whole
// resolution -- consistent with the permissive policy of the source.
func Resolve(ctx context.Context, mainPath string, tag arch.Tag, auditor Auditor, searchPathEnv string, logger *log.Logger) ([]ResolvedDependency, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	bindings, err := auditor.Audit(ctx, mainPath, tag)
	if err != nil {
		return nil, err
	}

	out := make([]ResolvedDependency, 0, len(bindings))
	for _, b := range bindings {
		path, found := Locate(mainPath, b.Soname, searchPathEnv)
		if !found {
			logger.DependencyMissing(b.Soname, strings.Split(searchPathEnv, ":"))
		}
		out = append(out, ResolvedDependency{DependencyBinding: b, Path: path, Found: found})
	}
	return out, nil
}
