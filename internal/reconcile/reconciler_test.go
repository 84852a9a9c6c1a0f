package reconcile

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
)

func newReconciler(t *testing.T, p MergePolicy) *Reconciler {
	t.Helper()
	r, err := NewReconciler(p, nil)
	require.NoError(t, err)
	return r
}

func TestReconcile_LastWriteWinsAcrossChunks(t *testing.T) {
	res, err := newReconciler(t, LastWriteWins).Reconcile([]string{
		`{"2042": {"1AJ": 12000}, "summary": [{"form":"2042","code":"1AJ","description":"Salaires","amount":12000}]}`,
		`{"2042": {"1AJ": 13000}}`,
	})
	require.NoError(t, err)

	assert.Equal(t, entity.FormBucket{"2042": {"1AJ": json.Number("13000")}}, res.Forms)
	require.Len(t, res.Summary, 1)
	rec := res.Summary[0]
	assert.Equal(t, "2042", rec.Form)
	assert.Equal(t, "1AJ", rec.Code)
	assert.Equal(t, "Salaires", rec.DescriptionText())
	assert.Equal(t, json.Number("12000"), rec.Amount)
	assert.Equal(t, 2, res.Parsed)
}

func TestReconcile_MergePolicies(t *testing.T) {
	responses := []string{
		`{"2042": {"1AJ": 12000.5}, "summary": [{"form":"2042","code":"1AJ","amount":1}]}`,
		`{"2042": {"1AJ": "13 000"}}`,
	}
	tests := []struct {
		policy MergePolicy
		want   any
	}{
		{LastWriteWins, json.Number("13000")},
		{FirstWriteWins, json.Number("12000.5")},
		{Sum, json.Number("25000.5")},
	}
	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			res, err := newReconciler(t, tt.policy).Reconcile(responses)
			require.NoError(t, err)
			v, _ := res.Forms.Get("2042", "1AJ")
			assert.Equal(t, tt.want, v)
		})
	}
}

func TestReconcile_SumFallsBackForText(t *testing.T) {
	res, err := newReconciler(t, Sum).Reconcile([]string{
		`{"2042": {"1AJ": 100}, "summary": [{"form":"2042","code":"1AJ","amount":100}]}`,
		`{"2042": {"1AJ": "voir annexe"}}`,
	})
	require.NoError(t, err)
	v, _ := res.Forms.Get("2042", "1AJ")
	assert.Equal(t, "voir annexe", v)
	assert.Len(t, res.Warnings, 1)
}

func TestReconcile_UnparsableSkipped(t *testing.T) {
	res, err := newReconciler(t, LastWriteWins).Reconcile([]string{
		"not json",
		`{"broken": `,
		`{"a":1} trailing`,
		"  \n" + `{"summary": [{"form":"2047","code":"8TK","amount":5500}]}`,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Unparsable)
	assert.Equal(t, 1, res.Parsed)
	require.Len(t, res.Warnings, 3)
	assert.Contains(t, res.Warnings[0], "chunk 0")
	require.Len(t, res.Summary, 1)
	assert.Equal(t, "8TK", res.Summary[0].Code)
}

func TestReconcile_FiltersMissing(t *testing.T) {
	res, err := newReconciler(t, LastWriteWins).Reconcile([]string{
		`{"summary": [
			{"form":"2042","code":"1AJ","amount":12000},
			{"form":"2042","code":"1BJ","amount":"MISSING"},
			{"form":"2042","code":"1CJ","amount":null},
			{"form":"2042","code":"1DJ"}
		], "2042": {"1BJ": "MISSING"}}`,
	})
	require.NoError(t, err)
	require.Len(t, res.Summary, 1)
	assert.Equal(t, "1AJ", res.Summary[0].Code)
	assert.Equal(t, 3, res.Dropped)

	v, ok := res.Forms.Get("2042", "1BJ")
	assert.True(t, ok, "buckets are not filtered")
	assert.Equal(t, "MISSING", v)
}

func TestReconcile_EmptyResult(t *testing.T) {
	r := newReconciler(t, LastWriteWins)

	res, err := r.Reconcile([]string{`{"2042": {"1AJ": 1}}`})
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrEmptyResult))
	assert.Len(t, res.Forms, 1, "partial result is still returned")

	_, err = r.Reconcile([]string{`{"summary": [{"form":"2042","code":"1AJ","amount":"MISSING"}]}`})
	assert.ErrorIs(t, err, common.ErrEmptyResult)

	_, err = r.Reconcile(nil)
	assert.ErrorIs(t, err, common.ErrEmptyResult)
}

func TestReconcile_InvalidSummaryRecords(t *testing.T) {
	res, err := newReconciler(t, LastWriteWins).Reconcile([]string{
		`{"summary": [
			"1AJ",
			{"form":"2042"},
			{"form":"2042","code":"1AJ","amount":[1,2]},
			{"form":2042,"code":"1AJ","amount":"12 000 €"}
		]}`,
		`{"summary": {"form":"2042"}}`,
	})
	require.NoError(t, err)
	require.Len(t, res.Summary, 1)
	assert.Equal(t, "2042", res.Summary[0].Form)
	assert.Equal(t, json.Number("12000"), res.Summary[0].Amount)
	assert.Nil(t, res.Summary[0].Description)
	assert.Len(t, res.Warnings, 4)
}

func TestReconcile_UnexpectedFormShape(t *testing.T) {
	res, err := newReconciler(t, LastWriteWins).Reconcile([]string{
		`{"2042": 12000, "2047": [{"code":"8TK","value":5500}], "summary": [{"form":"2047","code":"8TK","amount":5500}]}`,
	})
	require.NoError(t, err)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `"2042"`)
	_, ok := res.Forms["2042"]
	assert.False(t, ok)
	v, _ := res.Forms.Get("2047", "8TK")
	assert.Equal(t, json.Number("5500"), v)
}

func TestReconcile_SummaryOrderAcrossChunks(t *testing.T) {
	res, err := newReconciler(t, LastWriteWins).ReconcileResponses([]Response{
		{Label: "a.pdf#0", Text: `{"summary": [{"form":"2042","code":"1AJ","amount":1}]}`},
		{Label: "a.pdf#1", Text: `{"summary": [{"form":"2042","code":"1AJ","amount":2}, {"form":"2086","code":"3VG","amount":3}]}`},
	})
	require.NoError(t, err)
	var codes []string
	for _, r := range res.Summary {
		codes = append(codes, r.Code+"="+r.Amount.(json.Number).String())
	}
	assert.Equal(t, []string{"1AJ=1", "1AJ=2", "3VG=3"}, codes)
}

func TestParseMergePolicy(t *testing.T) {
	p, err := ParseMergePolicy("")
	require.NoError(t, err)
	assert.Equal(t, LastWriteWins, p)

	p, err = ParseMergePolicy("sum")
	require.NoError(t, err)
	assert.Equal(t, Sum, p)

	_, err = ParseMergePolicy("average")
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = NewReconciler("average", nil)
	assert.Error(t, err)
}

func TestAddNumbers(t *testing.T) {
	got, ok := addNumbers(json.Number("0.1"), json.Number("0.2"))
	require.True(t, ok)
	assert.Equal(t, json.Number("0.3"), got)

	got, ok = addNumbers(json.Number("1e3"), json.Number("2.50"))
	require.True(t, ok)
	assert.Equal(t, json.Number("1002.50"), got)

	_, ok = addNumbers(json.Number("1"), "x")
	assert.False(t, ok)
}
