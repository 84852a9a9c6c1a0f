package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
)

// ReadDirectory walks root, skips hidden entries if requested, and loads
// every file with a supported extension. Files are named relative to root.
// Unreadable paths are reported and the walk continues.
func ReadDirectory(root string, skipHidden bool) ([]entity.SourceFile, []PathError, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, nil, DirStats{}, errors.New("root_path is required")
	}

	var files []entity.SourceFile
	var failures []PathError
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			failures = append(failures, PathError{Path: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		stats.Matched++

		content, err := os.ReadFile(path)
		if err != nil {
			failures = append(failures, PathError{Path: path, Err: err.Error()})
			stats.Failed++
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = filepath.Base(path)
		}
		files = append(files, entity.SourceFile{Filename: filepath.ToSlash(rel), Content: content})
		stats.Succeeded++
		return nil
	})
	if err != nil {
		return files, failures, stats, fmt.Errorf("walk: %w", err)
	}
	return files, failures, stats, nil
}

// ReadFiles loads each path as-is, named by its base name. Extension filtering
// is left to the dispatcher so unsupported files show up as failed documents.
func ReadFiles(paths []string) ([]entity.SourceFile, []PathError) {
	var files []entity.SourceFile
	var failures []PathError
	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			failures = append(failures, PathError{Path: p, Err: err.Error()})
			continue
		}
		files = append(files, entity.SourceFile{Filename: filepath.Base(p), Content: content})
	}
	return files, failures
}
