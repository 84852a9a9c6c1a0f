// Package ingest turns archives and directories into in-memory SourceFiles.
package ingest

import (
	"path/filepath"
	"strings"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/constants"
)

// DirStats summarizes a directory read.
type DirStats struct {
	Scanned   uint32
	Matched   uint32
	Succeeded uint32
	Failed    uint32
}

// PathError records a file that could not be read. The batch continues.
type PathError struct {
	Path string
	Err  string
}

// IsHidden checks if a file or directory is hidden (starts with '.'), or is
// the resource fork directory macOS adds to zips.
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") || base == "__MACOSX"
}

// AllowedExt reports whether ext has an extraction strategy.
func AllowedExt(ext string) bool {
	return constants.MapExtToFormat(ext) != ""
}
