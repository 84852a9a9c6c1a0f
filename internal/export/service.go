package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/constants"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
)

const (
	SummarySheet     = "Résumé"
	DocumentsSheet   = "Documents"
	maxSheetNameLen  = 30
	defaultFormSheet = "Formulaire"
)

// Attachment names offered to the filing tool.
const (
	Filename     = "declaration_clickimpots_2025.xlsx"
	JSONFilename = "declaration_clickimpots_2025.json"
)

// XLSXContentType is the OOXML spreadsheet MIME type.
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Service renders reconciled tax data as XLSX and JSON. It holds no state
// besides the logger; identical inputs give identical outputs.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// Export returns the spreadsheet and the JSON record list for one batch.
func (s *Service) Export(summary []entity.TaxRecord, forms entity.FormBucket) (xlsx, js []byte, err error) {
	xlsx, err = s.XLSX(summary, forms)
	if err != nil {
		return nil, nil, err
	}
	js, err = s.JSON(summary)
	if err != nil {
		return nil, nil, err
	}
	return xlsx, js, nil
}

// XLSX writes the summary sheet followed by one sheet per form, in form order.
// Records and values that are null or MISSING are not written.
func (s *Service) XLSX(summary []entity.TaxRecord, forms entity.FormBucket) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	rows := make([][]any, 0, len(summary))
	for _, r := range summary {
		if r.IsMissing() {
			continue
		}
		rows = append(rows, []any{r.Form, r.Code, r.DescriptionText(), cellValue(r.Amount)})
	}
	if err := writeTable(f, SummarySheet, bold, []string{"Formulaire", "Code", "Description", "Montant"}, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(SummarySheet, "A", "B", 12)
	_ = f.SetColWidth(SummarySheet, "C", "C", 48)
	_ = f.SetColWidth(SummarySheet, "D", "D", 16)

	names := newSheetNames(SummarySheet)
	for _, form := range forms.Forms() {
		var formRows [][]any
		for _, code := range forms.Codes(form) {
			v, _ := forms.Get(form, code)
			if entity.IsMissingValue(v) {
				continue
			}
			formRows = append(formRows, []any{code, cellValue(v)})
		}
		sheet := names.next(form)
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, fmt.Errorf("xlsx sheet %q: %w", sheet, err)
		}
		if err := writeTable(f, sheet, bold, []string{"Code", "Valeur"}, formRows); err != nil {
			return nil, err
		}
		_ = f.SetColWidth(sheet, "A", "A", 12)
		_ = f.SetColWidth(sheet, "B", "B", 16)
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"rows", len(rows),
		"forms", len(forms),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// JSON encodes the summary as [{form, code, value}] with two-space indent and
// unescaped non-ASCII. An empty summary encodes as [].
func (s *Service) JSON(summary []entity.TaxRecord) ([]byte, error) {
	out := make([]entity.ExportRecord, 0, len(summary))
	for _, r := range summary {
		if r.IsMissing() {
			continue
		}
		out = append(out, entity.ExportRecord{Form: r.Form, Code: r.Code, Value: r.Amount})
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, fmt.Errorf("json export: %w", err)
	}
	s.logger.Info("export.json.ok", "records", len(out))
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Placeholder lists the readable documents with an amount still to be
// extracted. It is used when no model is configured. Archive members carry
// their archive in a fourth column.
func (s *Service) Placeholder(docs []entity.ExtractedDocument) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", DocumentsSheet); err != nil {
		return nil, fmt.Errorf("xlsx rename sheet: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}
	var rows [][]any
	for _, d := range docs {
		if d.Failed() {
			continue
		}
		row := []any{d.Filename, docType(d.Filename), constants.PlaceholderAmount}
		if d.Archive != "" {
			row = append(row, d.Archive)
		}
		rows = append(rows, row)
	}
	if err := writeTable(f, DocumentsSheet, bold, []string{"Fichier", "Type", "Montant", "Archive"}, rows); err != nil {
		return nil, err
	}
	_ = f.SetColWidth(DocumentsSheet, "A", "A", 48)
	_ = f.SetColWidth(DocumentsSheet, "B", "B", 8)
	_ = f.SetColWidth(DocumentsSheet, "C", "C", 18)
	_ = f.SetColWidth(DocumentsSheet, "D", "D", 32)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.placeholder.ok", "rows", len(rows))
	return buf.Bytes(), nil
}

func writeTable(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]any) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("xlsx %s header: %w", sheet, err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("xlsx %s header style: %w", sheet, err)
	}
	for r, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, r+2)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("xlsx %s row %d: %w", sheet, r+2, err)
		}
	}
	return nil
}

// cellValue writes json.Number amounts as numeric cells.
func cellValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if fl, err := n.Float64(); err == nil {
		return fl
	}
	return n.String()
}

func docType(filename string) string {
	return strings.ToUpper(strings.TrimPrefix(path.Ext(filename), "."))
}

// sheetNames hands out valid, unique sheet names. Uniqueness is
// case-insensitive, as in the file format.
type sheetNames struct {
	used map[string]bool
}

func newSheetNames(reserved ...string) *sheetNames {
	n := &sheetNames{used: map[string]bool{}}
	for _, r := range reserved {
		n.used[strings.ToLower(r)] = true
	}
	return n
}

func (n *sheetNames) next(form string) string {
	base := sanitizeSheetName(form)
	name := base
	for i := 2; n.used[strings.ToLower(name)]; i++ {
		suffix := "_" + strconv.Itoa(i)
		name = truncateRunes(base, maxSheetNameLen-len(suffix)) + suffix
	}
	n.used[strings.ToLower(name)] = true
	return name
}

var sheetNameReplacer = strings.NewReplacer(
	":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_",
)

func sanitizeSheetName(s string) string {
	s = sheetNameReplacer.Replace(strings.TrimSpace(s))
	s = strings.Trim(truncateRunes(s, maxSheetNameLen), "'")
	if s == "" {
		return defaultFormSheet
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
