// Package extract turns uploaded files into plain text, choosing the parser
// chain from the file extension.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/constants"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
)

// Options configures the default parser chains.
type Options struct {
	// OCR backs images and the last two PDF strategies. Nil disables both.
	OCR          OCR
	MaxFileBytes int64 // 0 = no limit
}

// Dispatcher holds one ordered strategy chain per extension.
type Dispatcher struct {
	chains       map[string][]Strategy
	maxFileBytes int64
	logger       *slog.Logger
}

func NewDispatcher(opts Options, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		chains:       make(map[string][]Strategy),
		maxFileBytes: opts.MaxFileBytes,
		logger:       logger,
	}
	html := newHTMLText()

	pdfChain := []Strategy{
		{Name: "pdfcpu", Parser: ParserFunc(pdfcpuText)},
		{Name: "pdf-text", Parser: ParserFunc(pdfPlainText)},
	}
	if opts.OCR != nil {
		pdfChain = append(pdfChain,
			Strategy{Name: "pdftotext", Parser: pdfToolParser("pdftotext", opts.OCR.PDFText)},
			Strategy{Name: "pdf-ocr", Parser: pdfToolParser("pdf-ocr", opts.OCR.PDFOCR)},
		)
		for _, ext := range []string{"jpg", "jpeg", "png"} {
			d.Register(ext, Strategy{Name: "image-ocr", Parser: imageParser(opts.OCR)})
		}
	}
	d.Register("pdf", pdfChain...)
	d.Register("docx", Strategy{Name: "docx", Parser: ParserFunc(docxText)})
	d.Register("txt", Strategy{Name: "text", Parser: textParser(logger)})
	d.Register("json", Strategy{Name: "json", Parser: jsonParser(logger)})
	d.Register("xlsx", Strategy{Name: "spreadsheet", Parser: ParserFunc(sheetText)})
	d.Register("xls", Strategy{Name: "spreadsheet", Parser: ParserFunc(sheetText)})
	d.Register("eml", Strategy{Name: "eml", Parser: emlParser(html, logger)})
	d.Register("msg", Strategy{Name: "msg", Parser: msgParser(html)})
	return d
}

// Register replaces the chain for ext. Strategies run in the given order.
func (d *Dispatcher) Register(ext string, strategies ...Strategy) {
	d.chains[constants.NormalizeExt(ext)] = strategies
}

// Dispatch never returns an error: every failure is folded into the
// document's Status, Reason and Warnings.
func (d *Dispatcher) Dispatch(ctx context.Context, file entity.SourceFile) entity.ExtractedDocument {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, d.logger).With("filename", file.Filename)
	if file.Archive != "" {
		logger = logger.With("archive", file.Archive)
	}
	ext := constants.NormalizeExt(filepath.Ext(file.Filename))
	doc := entity.ExtractedDocument{
		Filename: file.Filename,
		Archive:  file.Archive,
		Format:   constants.MapExtToFormat(ext),
		Status:   constants.DocStatusFailed,
	}

	switch {
	case doc.Format == "":
		doc.Reason = fmt.Sprintf("unsupported extension %q", ext)
	case doc.Format == constants.ARCHIVE:
		doc.Reason = errArchive.Error()
	case len(file.Content) == 0:
		doc.Reason = "empty file"
	case d.maxFileBytes > 0 && int64(len(file.Content)) > d.maxFileBytes:
		doc.Reason = fmt.Sprintf("file is %d bytes, limit is %d", len(file.Content), d.maxFileBytes)
	case len(d.chains[ext]) == 0:
		doc.Reason = fmt.Sprintf("no extractor configured for %q", ext)
	}
	if doc.Reason != "" {
		logger.Warn("extract.dispatch.skipped", "reason", doc.Reason)
		return doc
	}

	ctx = withFilename(ctx, file.Filename)
	var failures []string
	emptyRun := false
	for _, s := range d.chains[ext] {
		if err := ctx.Err(); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", s.Name, err))
			break
		}
		text, err := s.Parser.Parse(ctx, file.Content)
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", s.Name, err))
			logger.Debug("extract.strategy.failed", "strategy", s.Name, "error", err)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			emptyRun = true
			doc.Warnings = append(doc.Warnings, s.Name+": no text")
			continue
		}
		doc.Text = text
		doc.Method = s.Name
		doc.Status = constants.DocStatusOK
		doc.Warnings = append(doc.Warnings, failures...)
		logger.Info("extract.dispatch.ok",
			"method", s.Name,
			"chars", len(text),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return doc
	}

	doc.Warnings = append(doc.Warnings, failures...)
	if emptyRun {
		doc.Status = constants.DocStatusPartialFailure
		doc.Reason = "no text extracted"
	} else {
		doc.Reason = strings.Join(failures, "; ")
	}
	doc.Normalize()
	logger.Warn("extract.dispatch.failed",
		"status", doc.Status,
		"reason", doc.Reason,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return doc
}
