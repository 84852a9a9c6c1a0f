package ingest

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
)

var ErrArchiveLimit = errors.New("archive limit exceeded")

type ArchiveConfig struct {
	MaxEntries int   // 0 = no limit
	MaxBytes   int64 // total uncompressed bytes, 0 = no limit
	SkipHidden bool
}

// ArchiveExpander unpacks zip files one level at a time. Nested archives come
// back as ordinary members; the caller decides whether to recurse.
type ArchiveExpander struct {
	cfg    ArchiveConfig
	logger *slog.Logger
}

func NewArchiveExpander(cfg ArchiveConfig, logger *slog.Logger) *ArchiveExpander {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArchiveExpander{cfg: cfg, logger: logger}
}

// Expand decompresses data into a transient directory, walks it recursively
// and returns one SourceFile per regular file, named by its slash-separated
// path inside the archive. The directory is removed before Expand returns.
// A corrupt archive yields an error wrapping common.ErrParse.
func (a *ArchiveExpander) Expand(ctx context.Context, filename string, data []byte) ([]entity.SourceFile, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if errors.Is(err, zip.ErrInsecurePath) {
		return nil, common.ParseErrorf("zip %s: an entry escapes the archive root", filename)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: zip %s: %w", common.ErrParse, filename, err)
	}

	tmpDir, err := os.MkdirTemp("", "taxassist-zip-*")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			a.logger.Warn("ingest.archive.cleanup_failed", "dir", tmpDir, "error", err)
		}
	}()

	if err := a.unpack(ctx, zr, tmpDir); err != nil {
		return nil, fmt.Errorf("zip %s: %w", filename, err)
	}

	var files []entity.SourceFile
	err = filepath.WalkDir(tmpDir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == tmpDir {
			return nil
		}
		if a.cfg.SkipHidden && IsHidden(p) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(tmpDir, p)
		if err != nil {
			return err
		}
		files = append(files, entity.SourceFile{Filename: filepath.ToSlash(rel), Content: content})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("zip %s: walk: %w", filename, err)
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	a.logger.Info("ingest.archive.expanded", "filename", filename, "members", len(files))
	return files, nil
}

func (a *ArchiveExpander) unpack(ctx context.Context, zr *zip.Reader, dir string) error {
	if a.cfg.MaxEntries > 0 && len(zr.File) > a.cfg.MaxEntries {
		return fmt.Errorf("%w: %d entries, limit is %d", ErrArchiveLimit, len(zr.File), a.cfg.MaxEntries)
	}
	var total int64
	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := path.Clean(strings.ReplaceAll(f.Name, `\`, "/"))
		if name == "." {
			continue
		}
		if path.IsAbs(name) || name == ".." || strings.HasPrefix(name, "../") {
			return common.ParseErrorf("entry %q escapes the archive root", f.Name)
		}
		target := filepath.Join(dir, filepath.FromSlash(name))
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o700); err != nil {
				return err
			}
			continue
		}
		if !f.Mode().IsRegular() {
			continue // symlinks and devices
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
			return err
		}
		n, err := a.writeEntry(f, target, total)
		total += n
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *ArchiveExpander) writeEntry(f *zip.File, target string, soFar int64) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %w", common.ErrParse, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	var src io.Reader = rc
	if a.cfg.MaxBytes > 0 {
		// one extra byte tells us the limit was crossed
		src = io.LimitReader(rc, a.cfg.MaxBytes-soFar+1)
	}
	n, err := io.Copy(out, src)
	if err != nil {
		return n, fmt.Errorf("%w: inflate %s: %w", common.ErrParse, f.Name, err)
	}
	if a.cfg.MaxBytes > 0 && soFar+n > a.cfg.MaxBytes {
		return n, fmt.Errorf("%w: more than %d uncompressed bytes", ErrArchiveLimit, a.cfg.MaxBytes)
	}
	return n, nil
}
