package extract

import (
	"context"
	"fmt"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
)

// Parser turns the bytes of one file into text. Failures wrap common.ErrParse.
type Parser interface {
	Parse(ctx context.Context, data []byte) (string, error)
}

// ParserFunc adapts a plain function to Parser.
type ParserFunc func(ctx context.Context, data []byte) (string, error)

func (f ParserFunc) Parse(ctx context.Context, data []byte) (string, error) { return f(ctx, data) }

// Strategy is one named step of a format's fallback chain.
type Strategy struct {
	Name   string
	Parser Parser
}

// OCR is the subset of *ocr.Extractor the dispatcher needs.
type OCR interface {
	ImageText(ctx context.Context, data []byte, ext string) (string, error)
	PDFText(ctx context.Context, data []byte) (string, error)
	PDFOCR(ctx context.Context, data []byte) (string, error)
}

func parseErr(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrParse, what, err)
}
