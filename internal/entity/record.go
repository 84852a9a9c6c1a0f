package entity

import (
	"sort"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/constants"
)

// TaxRecord is one row of the reconciled summary. Amount holds a json.Number,
// a string (including the "MISSING" sentinel) or nil.
type TaxRecord struct {
	Form        string  `json:"form"`
	Code        string  `json:"code"`
	Description *string `json:"description"`
	Amount      any     `json:"amount"`
}

// IsMissing reports whether the record must be dropped from the exported summary.
func (r TaxRecord) IsMissing() bool {
	return IsMissingValue(r.Amount)
}

// IsMissingValue is true for nil and the "MISSING" sentinel.
func IsMissingValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == constants.MissingAmount
	}
	return false
}

// DescriptionText returns the description or "" when absent.
func (r TaxRecord) DescriptionText() string {
	if r.Description == nil {
		return ""
	}
	return *r.Description
}

// FormBucket maps form id to (code -> value).
type FormBucket map[string]map[string]any

// Set stores value under (form, code), creating the form map as needed.
func (b FormBucket) Set(form, code string, value any) {
	fields, ok := b[form]
	if !ok {
		fields = make(map[string]any)
		b[form] = fields
	}
	fields[code] = value
}

// Get returns the value stored under (form, code).
func (b FormBucket) Get(form, code string) (any, bool) {
	fields, ok := b[form]
	if !ok {
		return nil, false
	}
	v, ok := fields[code]
	return v, ok
}

// Forms returns form ids in sorted order.
func (b FormBucket) Forms() []string {
	out := make([]string, 0, len(b))
	for f := range b {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Codes returns the codes of form in sorted order.
func (b FormBucket) Codes(form string) []string {
	fields := b[form]
	out := make([]string, 0, len(fields))
	for c := range fields {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// ExportRecord is the JSON export row.
type ExportRecord struct {
	Form  string `json:"form"`
	Code  string `json:"code"`
	Value any    `json:"value"`
}
