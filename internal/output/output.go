// Package output provides formatters for history listings.
package output

import (
	"io"

	"github.com/fluxshell/notifd/internal/history"
)

// Formatter writes history entries to a writer.
type Formatter interface {
	Format(w io.Writer, entries []history.Entry) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// ValidFormats returns all supported format names.
func ValidFormats() []FormatType {
	return []FormatType{FormatPlain, FormatJSON, FormatYAML}
}

// Options configures formatter behavior.
type Options struct {
	ShowIndex  bool // Show 1-based index prefix
	ShowTime   bool // Show relative retirement time
	ShowReason bool // Show close reason
	BodyMaxLen int  // Maximum body length (0 = unlimited)
}

// DefaultOptions returns sensible defaults for terminal listings.
func DefaultOptions() Options {
	return Options{
		ShowIndex:  true,
		ShowTime:   true,
		ShowReason: true,
		BodyMaxLen: 80,
	}
}

// New creates a formatter for the given format type. Unknown types
// fall back to plain text.
func New(format FormatType, opts Options) Formatter {
	switch format {
	case FormatJSON:
		return &jsonFormatter{}
	case FormatYAML:
		return &yamlFormatter{}
	default:
		return &plainFormatter{opts: opts}
	}
}
