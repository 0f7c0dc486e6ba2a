// Package colorize provides syntax highlighting for hex-dump output.
package colorize

import (
	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/styles"
)

func init() {
	// Register our custom hex-dump style on package initialization.
	_ = HexDumpDark
}

// Hex-dump theme colors.
const (
	DumpOffset   = "#808080" // Gray for the leading offset column
	DumpHexByte  = "#FFFFFF" // White for hex byte pairs
	DumpZero     = "#646464" // Dark gray for zero bytes
	DumpAscii    = "#00FF00" // Green for the ASCII gutter
	DumpNonPrint = "#FF80C0" // Pink for non-printable placeholder dots
)

// HexDumpDark is a custom style for hex-dump rendering.
var HexDumpDark = styles.Register(chroma.MustNewStyle("clego-hexdump", chroma.StyleEntries{
	chroma.Text:           "#FFFFFF",    // White default
	chroma.Background:     "bg:#000000", // Pure black background
	chroma.Comment:        "#808080",    // Offset column rendered as a comment token
	chroma.CommentPreproc: "#808080",

	chroma.LiteralNumberHex: "#FFFFFF", // Hex byte pairs in white
	chroma.LiteralNumber:    "#646464", // Zero bytes rendered dim

	chroma.String:      "#00FF00", // ASCII gutter in green
	chroma.Punctuation: "#FF80C0", // Non-printable placeholder dots in pink

	chroma.NameLabel: "#FFC800", // Segment/object labels in yellow
}))
