// Package pipeline implements LoadImage (§6): the public library
// entry point that runs the full load -> resolve -> compose pipeline
// and returns a *link.ComposedImage, independent of any CLI. cmd/clego
// is one caller of this surface, not the only one.
package pipeline

import (
	"context"

	"github.com/elfcle/clego/internal/config"
	"github.com/elfcle/clego/internal/extractor"
	"github.com/elfcle/clego/internal/link"
	"github.com/elfcle/clego/internal/log"
	"github.com/elfcle/clego/internal/object"
	"github.com/elfcle/clego/internal/policy"
	"github.com/elfcle/clego/internal/resolve"
	"go.uber.org/zap"
)

// BuildExtractor picks the Extractor cfg.Extractor names ("subprocess"
// or "native", the latter being the default).
func BuildExtractor(cfg *config.Config) extractor.Extractor {
	if cfg.Extractor == "subprocess" {
		return extractor.SubprocessExtractor{EnvRoot: cfg.EnvRoot}
	}
	return extractor.NativeExtractor{}
}

// LoadMain loads only the main object, skipping dependency resolution
// and composition.
func LoadMain(ctx context.Context, cfg *config.Config, binaryPath string) (*object.Object, error) {
	ext := BuildExtractor(cfg)
	return object.Load(ctx, binaryPath, ext, object.ExportPolicy{})
}

// LoadImage runs the full pipeline (§6's public surface): load main,
// resolve + load dependencies (skipped when cfg.EnvRoot is empty,
// since the dependency-auditing subprocess requires the sibling
// toolchain), and compose + relocate the result. When
// cfg.OverridePolicyScript is set, every jump-relocation entry the
// linker left unresolved is offered to the script before returning.
// logger may be nil.
func LoadImage(ctx context.Context, cfg *config.Config, binaryPath string, logger *log.Logger) (*link.ComposedImage, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	ext := BuildExtractor(cfg)

	logger.TraceSimple("resolve", binaryPath, "load main object")
	main, err := object.Load(ctx, binaryPath, ext, object.ExportPolicy{})
	if err != nil {
		return nil, err
	}

	var depObjs []link.DependencyObject
	if cfg.EnvRoot != "" {
		logger.TraceSimple("dependency", binaryPath, "audit shared-library dependencies")
		auditor := resolve.SubprocessAuditor{EnvRoot: cfg.EnvRoot, Logger: logger}
		resolved, err := resolve.Resolve(ctx, binaryPath, main.Arch, auditor, cfg.SearchPath(), logger)
		if err != nil {
			return nil, err
		}
		for _, r := range resolved {
			if !r.Found {
				continue
			}
			depObj, err := object.Load(ctx, r.Path, ext, object.ExportPolicy{})
			if err != nil {
				logger.Stage("skip dependency that failed to load", zap.String("path", r.Path), zap.Error(err))
				continue
			}
			logger.Trace(r.Base, "dependency", r.Soname, "loaded at base address")
			depObjs = append(depObjs, link.DependencyObject{Object: depObj, Base: r.Base})
		}
	}

	logger.TraceSimple("relocate", binaryPath, "compose and relocate address space")
	img, err := link.Compose(main, depObjs, logger)
	if err != nil {
		return nil, err
	}

	if cfg.OverridePolicyScript != "" {
		ApplyOverridePolicy(img, cfg.OverridePolicyScript, logger)
	}

	return img, nil
}

// ApplyOverridePolicy consults the scripted policy for every
// jump-relocation entry that relocation left unresolved. logger may be
// nil.
func ApplyOverridePolicy(img *link.ComposedImage, scriptPath string, logger *log.Logger) {
	if logger == nil {
		logger = log.NewNop()
	}
	p, err := policy.Load(scriptPath)
	if err != nil {
		logger.Stage("override policy load failed", zap.String("script", scriptPath), zap.Error(err))
		return
	}
	for _, obj := range img.Objects {
		for _, jr := range obj.JumpRelocs {
			if _, ok := img.FindSymbol(jr.Symbol); ok {
				continue
			}
			if addr, found := p.Resolve(jr.Symbol, obj.Path); found {
				img.OverrideGOT(obj, jr.Symbol, addr, logger)
			}
		}
	}
}
