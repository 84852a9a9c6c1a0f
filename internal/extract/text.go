package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeText returns data as a string: UTF-8 when valid, Latin-1 otherwise.
// latin1 reports whether the fallback was used.
func DecodeText(data []byte) (text string, latin1 bool, err error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return string(data), false, nil
	}
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", true, fmt.Errorf("%w: latin-1: %w", common.ErrDecode, err)
	}
	return string(out), true, nil
}

func textParser(logger *slog.Logger) ParserFunc {
	return func(ctx context.Context, data []byte) (string, error) {
		text, latin1, err := DecodeText(data)
		if err != nil {
			return "", parseErr("txt", err)
		}
		if latin1 {
			logger.Warn("extract.txt.latin1_fallback", "bytes", len(data), "req_id", common.RequestIDFromContext(ctx))
		}
		return text, nil
	}
}

// jsonParser re-indents the document with two spaces. Key order and number
// literals are kept exactly as written.
func jsonParser(logger *slog.Logger) ParserFunc {
	return func(ctx context.Context, data []byte) (string, error) {
		text, latin1, err := DecodeText(data)
		if err != nil {
			return "", parseErr("json", err)
		}
		if latin1 {
			logger.Warn("extract.json.latin1_fallback", "bytes", len(data), "req_id", common.RequestIDFromContext(ctx))
		}
		src := bytes.TrimSpace([]byte(text))
		if !json.Valid(src) {
			return "", parseErr("json", fmt.Errorf("invalid JSON document"))
		}
		var out bytes.Buffer
		if err := json.Indent(&out, src, "", "  "); err != nil {
			return "", parseErr("json", err)
		}
		return out.String(), nil
	}
}
