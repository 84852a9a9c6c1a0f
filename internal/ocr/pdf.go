package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PDFText reads the text layer with pdftotext.
func (e *Extractor) PDFText(ctx context.Context, data []byte) (string, error) {
	if err := e.checkCtx(ctx); err != nil {
		return "", err
	}
	path, cleanup, err := stage(data, "in.pdf")
	defer cleanup()
	if err != nil {
		return "", err
	}

	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}
	// pdftotext separates pages with form feeds
	return Normalize(strings.ReplaceAll(string(out), "\f", "\n\n")), nil
}

// PDFOCR rasterises each page with pdftoppm and feeds the images to tesseract.
// Pages that fail OCR are skipped; the call only errors if no page produced text
// and at least one failed.
func (e *Extractor) PDFOCR(ctx context.Context, data []byte) (string, error) {
	if err := e.checkCtx(ctx); err != nil {
		return "", err
	}
	start := time.Now()
	path, cleanup, err := stage(data, "in.pdf")
	defer cleanup()
	if err != nil {
		return "", err
	}

	prefix := filepath.Join(filepath.Dir(path), "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", strconv.Itoa(e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}

	// prefix-1.png, prefix-2.png, ...
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("pdftoppm produced no images")
	}

	var b strings.Builder
	var firstErr error
	for _, img := range matches {
		if err := e.checkCtx(ctx); err != nil {
			return "", err
		}
		txt, err := e.tesseractOCR(ctx, img)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			e.logger.Warn("ocr.pdf.page_failed", "page", filepath.Base(img), "error", err)
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(txt)
	}
	text := Normalize(b.String())
	if text == "" && firstErr != nil {
		return "", firstErr
	}
	e.logger.Debug("ocr.pdf.ok", "pages", len(matches), "chars", len(text), "elapsed_ms", time.Since(start).Milliseconds())
	return text, nil
}
