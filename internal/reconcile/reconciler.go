// Package reconcile merges per-chunk model answers into one summary and one
// by-form view.
package reconcile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/llm"
)

// MergePolicy decides what happens when two chunks set the same (form, code).
type MergePolicy string

const (
	LastWriteWins  MergePolicy = "last-write-wins"
	FirstWriteWins MergePolicy = "first-write-wins"
	Sum            MergePolicy = "sum"
)

func ParseMergePolicy(s string) (MergePolicy, error) {
	switch p := MergePolicy(strings.TrimSpace(s)); p {
	case "":
		return LastWriteWins, nil
	case LastWriteWins, FirstWriteWins, Sum:
		return p, nil
	}
	return "", common.NewAppError("MERGE_POLICY", fmt.Sprintf("unknown merge policy %q", s), common.ErrInvalidInput)
}

const summaryKey = "summary"

// Response is one raw model answer. Label names it in warnings.
type Response struct {
	Label string
	Text  string
}

// Result is what survives reconciliation. Summary is filtered; Forms is not.
type Result struct {
	Summary    []entity.TaxRecord
	Forms      entity.FormBucket
	Warnings   []string
	Parsed     int
	Unparsable int
	Dropped    int // summary records removed by the MISSING/null filter
}

type Reconciler struct {
	policy MergePolicy
	record *jsonschema.Schema
	logger *slog.Logger
}

func NewReconciler(policy MergePolicy, logger *slog.Logger) (*Reconciler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := ParseMergePolicy(string(policy)); err != nil {
		return nil, err
	}
	if policy == "" {
		policy = LastWriteWins
	}
	schema, err := llm.CompileSchema(llm.BuildSummaryRecordSchema())
	if err != nil {
		return nil, fmt.Errorf("summary record schema: %w", err)
	}
	return &Reconciler{policy: policy, record: schema, logger: logger}, nil
}

// Reconcile labels responses by chunk position and calls ReconcileResponses.
func (r *Reconciler) Reconcile(responses []string) (Result, error) {
	rs := make([]Response, len(responses))
	for i, text := range responses {
		rs[i] = Response{Label: fmt.Sprintf("chunk %d", i), Text: text}
	}
	return r.ReconcileResponses(rs)
}

// ReconcileResponses folds responses in order. Unparsable answers and
// unexpected shapes become warnings. The error is common.ErrEmptyResult when
// no summary record was found or none survived filtering; Result is still
// populated in that case.
func (r *Reconciler) ReconcileResponses(responses []Response) (Result, error) {
	acc := accumulator{forms: entity.FormBucket{}}
	for _, resp := range responses {
		acc = r.fold(acc, resp)
	}

	res := Result{
		Forms:      acc.forms,
		Warnings:   acc.warnings,
		Parsed:     acc.parsed,
		Unparsable: acc.unparsable,
	}
	if len(acc.summary) == 0 {
		r.logger.Warn("reconcile.empty", "responses", len(responses), "unparsable", acc.unparsable)
		return res, common.ErrEmptyResult
	}
	for _, rec := range acc.summary {
		if rec.IsMissing() {
			res.Dropped++
			continue
		}
		res.Summary = append(res.Summary, rec)
	}
	r.logger.Info("reconcile.ok",
		"responses", len(responses),
		"parsed", res.Parsed,
		"unparsable", res.Unparsable,
		"records", len(res.Summary),
		"dropped", res.Dropped,
		"forms", len(res.Forms),
	)
	if len(res.Summary) == 0 {
		return res, fmt.Errorf("%w: all %d summary records lack an amount", common.ErrEmptyResult, res.Dropped)
	}
	return res, nil
}

// accumulator is threaded through fold by value; fold only appends to it and
// writes into forms.
type accumulator struct {
	summary    []entity.TaxRecord
	forms      entity.FormBucket
	warnings   []string
	parsed     int
	unparsable int
}

func (a accumulator) warn(format string, args ...any) accumulator {
	a.warnings = append(a.warnings, fmt.Sprintf(format, args...))
	return a
}

func (r *Reconciler) fold(acc accumulator, resp Response) accumulator {
	obj, err := parseResponse(resp.Text)
	if err != nil {
		acc.unparsable++
		r.logger.Warn("reconcile.unparsable", "label", resp.Label, "error", err)
		return acc.warn("%s: %v", resp.Label, err)
	}
	acc.parsed++

	if raw, ok := obj[summaryKey]; ok {
		delete(obj, summaryKey)
		acc = r.collectSummary(acc, resp.Label, raw)
	}

	for _, form := range sortedKeys(obj) {
		shape := Classify(obj[form])
		switch shape.Kind {
		case ScalarMap, CodeAmountMap, DoubleNestedMap, ListOfRecords:
			for _, f := range shape.Fields {
				acc = r.merge(acc, resp.Label, form, f)
			}
		case Unexpected:
			acc = acc.warn("%s: %v: form %q has an unexpected format", resp.Label, common.ErrMalformedResponse, form)
		}
	}
	return acc
}

// parseResponse applies the "{" pre-filter then a full decode that keeps
// numbers as json.Number. Trailing content after the object is rejected.
func parseResponse(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "{") {
		return nil, fmt.Errorf("%w: response is not a JSON object", common.ErrMalformedResponse)
	}
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMalformedResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON object", common.ErrMalformedResponse)
	}
	return obj, nil
}

func (r *Reconciler) collectSummary(acc accumulator, label string, raw any) accumulator {
	list, ok := raw.([]any)
	if !ok {
		return acc.warn("%s: %v: summary is not an array", label, common.ErrMalformedResponse)
	}
	for i, item := range list {
		if err := r.record.Validate(item); err != nil {
			acc = acc.warn("%s: %v: summary[%d] skipped: %s", label, common.ErrMalformedResponse, i, firstLine(err))
			continue
		}
		m := item.(map[string]any)
		form, _ := scalarString(m["form"])
		code, _ := scalarString(m["code"])
		rec := entity.TaxRecord{Form: form, Code: code, Amount: llm.NormalizeAmount(m["amount"])}
		if d, ok := m["description"].(string); ok {
			rec.Description = &d
		}
		acc.summary = append(acc.summary, rec)
	}
	return acc
}

func (r *Reconciler) merge(acc accumulator, label, form string, f Field) accumulator {
	val := llm.NormalizeAmount(f.Value)
	prev, exists := acc.forms.Get(form, f.Code)
	if !exists {
		acc.forms.Set(form, f.Code, val)
		return acc
	}
	switch r.policy {
	case FirstWriteWins:
		return acc
	case Sum:
		if total, ok := addNumbers(prev, val); ok {
			acc.forms.Set(form, f.Code, total)
			return acc
		}
		acc = acc.warn("%s: %s/%s: cannot sum %v and %v, keeping the later value", label, form, f.Code, prev, val)
	}
	acc.forms.Set(form, f.Code, val)
	return acc
}

// addNumbers adds two json.Numbers exactly, keeping the larger number of decimals.
func addNumbers(a, b any) (json.Number, bool) {
	na, ok1 := a.(json.Number)
	nb, ok2 := b.(json.Number)
	if !ok1 || !ok2 {
		return "", false
	}
	ra, ok1 := new(big.Rat).SetString(na.String())
	rb, ok2 := new(big.Rat).SetString(nb.String())
	if !ok1 || !ok2 {
		return "", false
	}
	places := max(decimals(na.String()), decimals(nb.String()))
	return json.Number(new(big.Rat).Add(ra, rb).FloatString(places)), true
}

// decimals counts the fractional digits of a JSON number literal, exponent included.
func decimals(s string) int {
	exp := 0
	if i := strings.IndexAny(s, "eE"); i >= 0 {
		exp, _ = strconv.Atoi(s[i+1:])
		s = s[:i]
	}
	n := 0
	if i := strings.IndexByte(s, '.'); i >= 0 {
		n = len(s) - i - 1
	}
	return max(n-exp, 0)
}

func firstLine(err error) string {
	s := err.Error()
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
