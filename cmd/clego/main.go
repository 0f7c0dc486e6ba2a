// Command clego loads a static ELF executable, resolves and composes
// its shared-library dependencies, relocates jump-relocation slots
// across the result, and answers queries over the composed image.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/elfcle/clego/internal/config"
	clog "github.com/elfcle/clego/internal/log"
	"github.com/elfcle/clego/internal/link"
	"github.com/elfcle/clego/internal/object"
	"github.com/elfcle/clego/internal/pipeline"
	"github.com/elfcle/clego/internal/trace"
	"github.com/elfcle/clego/internal/ui/colorize"
	"github.com/elfcle/clego/internal/ui/tui"
)

var (
	configPath    string
	verbose       bool
	useSubprocess bool
	policyPath    string
	showTrace     bool
)

// traceCollector accumulates diagnostic events emitted through the
// logger's onTrace hook, for the --trace flag's end-of-run summary.
type traceCollector struct {
	mu     sync.Mutex
	events []*trace.Event
}

func (tc *traceCollector) add(pc uint64, category, name, detail string) {
	e := trace.NewEvent(pc, category, name, detail)
	trace.DefaultEnricher(e)
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.events = append(tc.events, e)
}

func (tc *traceCollector) getAndClear() []*trace.Event {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	events := tc.events
	tc.events = nil
	return events
}

func printTrace(events []*trace.Event) {
	for _, e := range events {
		fmt.Printf("%s %s %s\n", colorize.Tag(e.PrimaryTag()), colorize.Address(e.PC), e.Detail)
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "clego",
		Short: "A static ELF loader and cross-object relocator",
		Long: `clego loads an ELF executable and its shared-library dependencies,
composes them into one sparse address space, and rewrites jump-relocation
slots so inter-object calls resolve -- without running a single instruction.

Examples:
  clego load ./target                 # full pipeline, summary output
  clego info ./target                 # single-object load, no deps
  clego query ./target printf         # find an exported symbol's address
  clego query ./target 0x401040       # find the object owning an address
  clego inspect ./target              # interactive TUI over the composed image`,
		DisableFlagsInUseLine: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to clego.yaml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().BoolVar(&useSubprocess, "subprocess", false, "use the subprocess extractor instead of the native one")
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "scripted GOT-override policy file (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&showTrace, "trace", false, "print pipeline-stage diagnostic events")

	rootCmd.AddCommand(loadCmd(), infoCmd(), queryCmd(), inspectCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorize.Error(err.Error()))
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	explicit := configPath != config.DefaultPath
	cfg, err := config.Load(configPath, explicit)
	if err != nil {
		return nil, err
	}
	if useSubprocess {
		cfg.Extractor = "subprocess"
	}
	if policyPath != "" {
		cfg.OverridePolicyScript = policyPath
	}
	return cfg, nil
}

func newLogger() *clog.Logger {
	clog.Init(verbose)
	return clog.L
}

// newLoggerWithTrace is newLogger, plus a traceCollector wired onto the
// logger's onTrace hook when --trace is set. The returned collector is
// nil when tracing is off.
func newLoggerWithTrace() (*clog.Logger, *traceCollector) {
	logger := newLogger()
	if !showTrace {
		return logger, nil
	}
	tc := &traceCollector{}
	logger.SetOnTrace(func(pc uint64, category, name, detail string) {
		tc.add(pc, category, name, detail)
	})
	return logger, tc
}

func loadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load <binary>",
		Short: "Load and compose a binary with its dependencies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, tc := newLoggerWithTrace()
			img, err := pipeline.LoadImage(cmd.Context(), cfg, args[0], logger)
			if err != nil {
				return err
			}
			printSummary(img)
			if tc != nil {
				printTrace(tc.getAndClear())
			}
			return nil
		},
	}
}

func infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <binary>",
		Short: "Show a single object's architecture, segments, and symbol counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			obj, err := pipeline.LoadMain(cmd.Context(), cfg, args[0])
			if err != nil {
				return err
			}
			printObjectInfo(obj)
			return nil
		},
	}
}

func queryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "query <binary> <address-or-symbol>",
		Short: "Resolve an address to its owning object, or a symbol to its address",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, tc := newLoggerWithTrace()
			img, err := pipeline.LoadImage(cmd.Context(), cfg, args[0], logger)
			if err != nil {
				return err
			}

			query := args[1]
			if addr, ok := parseAddress(query); ok {
				obj, found := img.Owner(addr)
				if tc != nil {
					printTrace(tc.getAndClear())
				}
				if !found {
					fmt.Printf("%s no object owns %s\n", colorize.Error("✗"), colorize.Address(addr))
					return nil
				}
				fmt.Printf("%s %s owns %s\n", colorize.Header("▶"), colorize.SymbolName(obj.Path), colorize.Address(addr))
				return nil
			}

			addr, found := img.FindSymbol(query)
			if tc != nil {
				printTrace(tc.getAndClear())
			}
			if !found {
				fmt.Printf("%s symbol %s not found in any dependency\n", colorize.Error("✗"), colorize.SymbolName(query))
				return nil
			}
			fmt.Printf("%s %s resolves to %s\n", colorize.Header("▶"), colorize.SymbolName(query), colorize.Address(addr))
			return nil
		},
	}
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <binary>",
		Short: "Open an interactive inspector over the composed image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger()
			img, err := pipeline.LoadImage(cmd.Context(), cfg, args[0], logger)
			if err != nil {
				return err
			}
			return tui.Run(img)
		},
	}
}

func parseAddress(s string) (uint64, bool) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	addr, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, false
	}
	return addr, true
}

func printObjectInfo(obj *object.Object) {
	fmt.Printf("%s %s\n", colorize.Header("binary:"), obj.Path)
	fmt.Printf("  arch:       %s\n", obj.Arch)
	fmt.Printf("  endianness: %s\n", obj.Endianness)
	fmt.Printf("  entry:      %s\n", colorize.Address(obj.EntryPoint))
	fmt.Printf("  segments:\n")
	for _, seg := range obj.Segments {
		fmt.Printf("    %-6s %s - %s\n", seg.Name, colorize.Address(seg.VAddr), colorize.Address(seg.End()))
	}
	fmt.Printf("  imports:    %d\n", len(obj.Imports()))
	fmt.Printf("  exports:    %d\n", len(obj.Exports()))
	fmt.Printf("  deps:       %s\n", strings.Join(obj.Dependencies, ", "))
}

func printSummary(img *link.ComposedImage) {
	main := img.Objects[0]
	fmt.Printf("%s %s\n", colorize.Header("▶"), main.Path)
	fmt.Printf("  objects: %d\n", len(img.Objects))
	for _, o := range img.Objects {
		fmt.Printf("    %s @ %s\n", o.Path, colorize.Address(o.RebaseAddr))
	}
	fmt.Printf("  address space: %s - %s\n", colorize.Address(img.MinAddress()), colorize.Address(img.MaxAddress()))
}
