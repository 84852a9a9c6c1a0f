package ocr

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/constants"
)

// ImageText runs tesseract over an image held in memory. ext picks the staged
// file's suffix so tesseract's format detection keeps working.
func (e *Extractor) ImageText(ctx context.Context, data []byte, ext string) (string, error) {
	if err := e.checkCtx(ctx); err != nil {
		return "", err
	}
	ext = constants.NormalizeExt(ext)
	if ext == "" {
		ext = "png"
	}
	start := time.Now()
	path, cleanup, err := stage(data, "image."+ext)
	defer cleanup()
	if err != nil {
		return "", err
	}

	txt, err := e.tesseractOCR(ctx, path)
	if err != nil {
		return "", err
	}
	txt = Normalize(txt)
	e.logger.Debug("ocr.image.ok", "ext", ext, "chars", len(txt), "elapsed_ms", time.Since(start).Milliseconds())
	return txt, nil
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(truncate(string(errb), 512)))
	}

	return reBoxNoise.ReplaceAllString(string(out), ""), nil
}
