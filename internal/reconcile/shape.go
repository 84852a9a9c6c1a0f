package reconcile

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Kind is the closed set of form-value layouts seen in model answers.
type Kind uint8

const (
	Unexpected Kind = iota
	ScalarMap
	CodeAmountMap
	DoubleNestedMap
	ListOfRecords
)

func (k Kind) String() string {
	switch k {
	case ScalarMap:
		return "scalar-map"
	case CodeAmountMap:
		return "code-amount-map"
	case DoubleNestedMap:
		return "double-nested-map"
	case ListOfRecords:
		return "list-of-records"
	default:
		return "unexpected"
	}
}

// Field is one (code, value) pair destined for a form bucket.
type Field struct {
	Code  string
	Value any
}

// Shape is the classified form value: its Kind plus the fields it yields, in
// the order they are merged. Fields is nil for Unexpected.
type Shape struct {
	Kind   Kind
	Fields []Field
}

// Classify inspects a decoded form value once and flattens it.
//
//	{"1AJ": 12000}                                   ScalarMap
//	{"a": {"code": "1AJ", "amount": 12000}}          CodeAmountMap
//	{"salaires": {"a": {"code": "1AJ", ...}}}        DoubleNestedMap
//	[{"code": "1AJ", "value": 12000}]                ListOfRecords
//
// Map entries are visited in key order so the result is deterministic.
func Classify(v any) Shape {
	switch t := v.(type) {
	case map[string]any:
		if fields, ok := codeAmountFields(t); ok {
			return Shape{Kind: CodeAmountMap, Fields: fields}
		}
		if len(t) == 1 {
			for _, inner := range t {
				if m, ok := inner.(map[string]any); ok {
					if fields, ok := codeAmountFields(m); ok {
						return Shape{Kind: DoubleNestedMap, Fields: fields}
					}
				}
			}
		}
		if fields, ok := scalarFields(t); ok {
			return Shape{Kind: ScalarMap, Fields: fields}
		}
	case []any:
		if fields, ok := listFields(t); ok {
			return Shape{Kind: ListOfRecords, Fields: fields}
		}
	}
	return Shape{Kind: Unexpected}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// codeAmountFields requires every entry to be an object carrying "code" and
// "amount" or "value". "amount" wins when both are present.
func codeAmountFields(m map[string]any) ([]Field, bool) {
	if len(m) == 0 {
		return nil, false
	}
	fields := make([]Field, 0, len(m))
	for _, k := range sortedKeys(m) {
		inner, ok := m[k].(map[string]any)
		if !ok {
			return nil, false
		}
		code, ok := scalarString(inner["code"])
		if !ok || code == "" {
			return nil, false
		}
		val, hasAmount := inner["amount"]
		if !hasAmount {
			if val, ok = inner["value"]; !ok {
				return nil, false
			}
		}
		fields = append(fields, Field{Code: code, Value: val})
	}
	return fields, true
}

func scalarFields(m map[string]any) ([]Field, bool) {
	fields := make([]Field, 0, len(m))
	for _, k := range sortedKeys(m) {
		if !isScalar(m[k]) {
			return nil, false
		}
		fields = append(fields, Field{Code: k, Value: m[k]})
	}
	return fields, true
}

// listFields derives code from code|label|UNKNOWN_<index> and value from
// value|amount|"0". index is the record's position in the list.
func listFields(list []any) ([]Field, bool) {
	fields := make([]Field, 0, len(list))
	for i, item := range list {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, false
		}
		code, ok := scalarString(rec["code"])
		if !ok || code == "" {
			code, ok = scalarString(rec["label"])
		}
		if !ok || code == "" {
			code = "UNKNOWN_" + strconv.Itoa(i)
		}
		val, ok := rec["value"]
		if !ok {
			if val, ok = rec["amount"]; !ok {
				val = "0"
			}
		}
		fields = append(fields, Field{Code: code, Value: val})
	}
	return fields, true
}

func isScalar(v any) bool {
	switch v.(type) {
	case nil, string, json.Number, float64, bool:
		return true
	}
	return false
}

// scalarString renders strings and numbers as a code; anything else is rejected.
func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	}
	return "", false
}
