// Package colorize provides terminal coloring for clego's CLI output:
// hex-dump byte highlighting and diagnostic-tag coloring, built on
// chroma the way the teacher's disassembly colorizer was.
package colorize

import (
	"fmt"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
)

// getHexDumpLexer returns a lexer suited to hex-dump-shaped text, with
// fallbacks if the preferred one isn't registered in this chroma build.
func getHexDumpLexer() chroma.Lexer {
	candidates := []string{"hexdump", "diff", "text"}
	for _, name := range candidates {
		if lexer := lexers.Get(name); lexer != nil {
			return lexer
		}
	}
	return nil
}

// getHexDumpStyle returns the hex-dump style with fallbacks.
func getHexDumpStyle() *chroma.Style {
	candidates := []string{"clego-hexdump", "dracula", "monokai"}
	for _, name := range candidates {
		if style := styles.Get(name); style != nil {
			return style
		}
	}
	return styles.Fallback
}

// getTerminalFormatter returns an appropriate terminal formatter.
func getTerminalFormatter() chroma.Formatter {
	candidates := []string{"terminal16m", "terminal256"}
	for _, name := range candidates {
		if formatter := formatters.Get(name); formatter != nil {
			return formatter
		}
	}
	return formatters.Fallback
}

// IsDisabled returns true if colors are disabled via environment.
func IsDisabled() bool {
	return os.Getenv("CLEGO_NO_COLOR") != "" || os.Getenv("NO_COLOR") != ""
}

// HexDump colorizes a line of hex-dump output (offset, hex bytes,
// ASCII gutter) using chroma.
func HexDump(line string) string {
	if IsDisabled() {
		return line
	}

	lexer := getHexDumpLexer()
	if lexer == nil {
		return line
	}

	_ = HexDumpDark // force style registration
	style := getHexDumpStyle()
	formatter := getTerminalFormatter()

	iterator, err := lexer.Tokenise(nil, line)
	if err != nil {
		return line
	}

	var buf strings.Builder
	if err := formatter.Format(&buf, style, iterator); err != nil {
		return line
	}

	return strings.TrimSuffix(buf.String(), "\n")
}

// Address formats a virtual address in yellow.
func Address(addr uint64) string {
	if IsDisabled() {
		return fmt.Sprintf("%08X", addr)
	}
	return fmt.Sprintf("\033[38;2;255;200;0m%08X\033[0m", addr)
}

// Tag formats a diagnostic hashtag in light pink.
func Tag(tag string) string {
	if IsDisabled() {
		return tag
	}
	return fmt.Sprintf("\033[38;2;255;180;200m%s\033[0m", tag)
}

// SymbolName formats an exported or imported symbol name in yellow.
func SymbolName(name string) string {
	if IsDisabled() {
		return name
	}
	return fmt.Sprintf("\033[38;2;255;200;0m%s\033[0m", name)
}

// Detail formats detail text in light gray.
func Detail(detail string) string {
	if IsDisabled() {
		return detail
	}
	return fmt.Sprintf("\033[38;2;180;180;180m%s\033[0m", detail)
}

// Border formats border characters in dark gray.
func Border(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;80;80;80m%s\033[0m", s)
}

// Header formats section-header text (e.g. object path) in blue.
func Header(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;86;156;214m%s\033[0m", s)
}

// HexBytes formats raw hex opcode/GOT bytes in light gray.
func HexBytes(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;180;180;180m%s\033[0m", s)
}

// Error formats error messages in pink.
func Error(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;255;128;192m%s\033[0m", s)
}

// Overlap formats an overlap diagnostic in red (high visibility).
func Overlap(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;255;80;80m%s\033[0m", s)
}

// Unresolved formats an unresolved-symbol diagnostic in orange.
func Unresolved(s string) string {
	if IsDisabled() {
		return s
	}
	return fmt.Sprintf("\033[38;2;255;128;0m%s\033[0m", s)
}
