package walker

import (
	"path/filepath"
	"strings"
)

// Format is the document kind of a discovered file.
type Format string

const (
	FormatDocx     Format = "docx"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatUnknown  Format = "unknown"
)

var extensionToFormat = map[string]Format{
	".docx":     FormatDocx,
	".txt":      FormatText,
	".text":     FormatText,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
}

// DetectFormat returns the document format for a filename based on its
// extension.
func DetectFormat(filename string) Format {
	ext := strings.ToLower(filepath.Ext(filename))
	if f, ok := extensionToFormat[ext]; ok {
		return f
	}
	return FormatUnknown
}

// isLockFile reports Office owner files such as "~$minutes.docx".
func isLockFile(name string) bool {
	return strings.HasPrefix(name, "~$")
}
