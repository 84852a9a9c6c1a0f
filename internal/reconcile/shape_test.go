package reconcile

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	require.NoError(t, dec.Decode(&v))
	return v
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		kind   Kind
		fields []Field
	}{
		{
			name:   "scalar map",
			in:     `{"1BJ": "MISSING", "1AJ": 12000}`,
			kind:   ScalarMap,
			fields: []Field{{"1AJ", json.Number("12000")}, {"1BJ", "MISSING"}},
		},
		{
			name: "code amount map",
			in:   `{"salaire": {"code": "1AJ", "amount": 12000}, "pension": {"code": "1AS", "value": 800}}`,
			kind: CodeAmountMap,
			fields: []Field{
				{"1AS", json.Number("800")},
				{"1AJ", json.Number("12000")},
			},
		},
		{
			name:   "amount preferred over value",
			in:     `{"x": {"code": "1AJ", "amount": 1, "value": 2}}`,
			kind:   CodeAmountMap,
			fields: []Field{{"1AJ", json.Number("1")}},
		},
		{
			name:   "double nested",
			in:     `{"revenus": {"a": {"code": "1AJ", "amount": 12000}}}`,
			kind:   DoubleNestedMap,
			fields: []Field{{"1AJ", json.Number("12000")}},
		},
		{
			name: "list of records",
			in:   `[{"code": "8TK", "value": 5500}, {"label": "Dons", "amount": 300}, {"note": "?"}]`,
			kind: ListOfRecords,
			fields: []Field{
				{"8TK", json.Number("5500")},
				{"Dons", json.Number("300")},
				{"UNKNOWN_2", "0"},
			},
		},
		{name: "list with scalars", in: `[1, 2]`, kind: Unexpected},
		{name: "mixed map", in: `{"1AJ": 1, "detail": {"x": 1}}`, kind: Unexpected},
		{name: "scalar", in: `12000`, kind: Unexpected},
		{name: "string", in: `"2042"`, kind: Unexpected},
		{name: "two nested scalar maps", in: `{"a": {"1AJ": 1}, "b": {"1BJ": 2}}`, kind: Unexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(decode(t, tt.in))
			assert.Equal(t, tt.kind, got.Kind, got.Kind.String())
			if tt.kind != Unexpected {
				assert.Equal(t, tt.fields, got.Fields)
			} else {
				assert.Nil(t, got.Fields)
			}
		})
	}
}
