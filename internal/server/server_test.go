package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/chunk"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/export"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/extract"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/ingest"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/llm"
	mock_llm "github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/llm/mocks"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/pipeline"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/reconcile"
)

type processorFunc func(ctx context.Context, files []entity.SourceFile) (*pipeline.Result, error)

func (f processorFunc) Process(ctx context.Context, files []entity.SourceFile) (*pipeline.Result, error) {
	return f(ctx, files)
}

func newPipeline(t *testing.T, c llm.Completer) *pipeline.Processor {
	t.Helper()
	rec, err := reconcile.NewReconciler(reconcile.LastWriteWins, nil)
	require.NoError(t, err)
	stage := pipeline.NewExtractStage(
		extract.NewDispatcher(extract.Options{}, nil),
		ingest.NewArchiveExpander(ingest.ArchiveConfig{}, nil),
		2, nil,
	)
	var llmStage *pipeline.LLMStage
	if c != nil {
		llmStage = pipeline.NewLLMStage(llm.NewExtractor(c, nil), chunk.DefaultOptions(), nil)
	}
	return pipeline.NewProcessor(nil, stage, llmStage, rec, export.NewService(nil))
}

func upload(t *testing.T, url string, files map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		w, err := mw.CreateFormFile(uploadField, name)
		require.NoError(t, err)
		_, err = io.WriteString(w, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	resp, err := http.Post(url, mw.FormDataContentType(), &body)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) extractResponse {
	t.Helper()
	var out extractResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	ts := httptest.NewServer(New(newPipeline(t, nil), Config{}, nil).Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
}

func TestExtract_Placeholder(t *testing.T) {
	ts := httptest.NewServer(New(newPipeline(t, nil), Config{}, nil).Handler())
	defer ts.Close()

	resp := upload(t, ts.URL+"/api/v1/extract", map[string]string{"revenus.txt": "1AJ: 12000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	out := decodeBody(t, resp)
	assert.True(t, out.Placeholder)
	assert.Equal(t, resp.Header.Get(requestIDHeader), out.RequestID)
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "1AJ: 12000", out.Documents[0].Text)
	assert.NotEmpty(t, out.XLSX)
	assert.Empty(t, out.JSON)
}

func TestExportXLSX_WithModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_llm.NewMockCompleter(ctrl)
	c.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(`{"summary": [{"form":"2042","code":"1AJ","description":"Salaires","amount":12000}]}`, nil)

	ts := httptest.NewServer(New(newPipeline(t, c), Config{}, nil).Handler())
	defer ts.Close()

	resp := upload(t, ts.URL+"/api/v1/export/xlsx", map[string]string{"bulletin.txt": "Salaires 12000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.XLSXContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "declaration_clickimpots_2025.xlsx")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK"), data[:2])
}

func TestExportJSON_WithModel(t *testing.T) {
	ctrl := gomock.NewController(t)
	c := mock_llm.NewMockCompleter(ctrl)
	c.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(`{"summary": [{"form":"2042","code":"1AJ","amount":"12 000 €"}, {"form":"2042","code":"1BJ","amount":"MISSING"}]}`, nil)

	ts := httptest.NewServer(New(newPipeline(t, c), Config{}, nil).Handler())
	defer ts.Close()

	resp := upload(t, ts.URL+"/api/v1/export/json", map[string]string{"bulletin.txt": "Salaires 12000"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []map[string]any{{"form": "2042", "code": "1AJ", "value": float64(12000)}}, got)
}

func TestExportJSON_PlaceholderIsUnprocessable(t *testing.T) {
	ts := httptest.NewServer(New(newPipeline(t, nil), Config{}, nil).Handler())
	defer ts.Close()

	resp := upload(t, ts.URL+"/api/v1/export/json", map[string]string{"a.txt": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp).Error, "placeholder")
}

func TestExtract_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"no documents", fmt.Errorf("%w: none", common.ErrNoDocuments), http.StatusUnprocessableEntity},
		{"empty result", common.ErrEmptyResult, http.StatusUnprocessableEntity},
		{"rate limited", fmt.Errorf("a.txt chunk 0: %w", llm.ErrRateLimited), http.StatusTooManyRequests},
		{"auth", llm.ErrAuth, http.StatusBadGateway},
		{"timeout", fmt.Errorf("a.txt chunk 0: %w", llm.ErrTimeout), http.StatusGatewayTimeout},
		{"deadline", fmt.Errorf("a.txt chunk 0: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"invalid", common.NewAppError("NO_FILES", "no files", common.ErrInvalidInput), http.StatusBadRequest},
		{"unknown", fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := processorFunc(func(ctx context.Context, files []entity.SourceFile) (*pipeline.Result, error) {
				return &pipeline.Result{
					RequestID: common.RequestIDFromContext(ctx),
					Documents: []entity.ExtractedDocument{{Filename: files[0].Filename}},
					Warnings:  []string{"a.txt: FAILED: empty file"},
				}, tt.err
			})
			ts := httptest.NewServer(New(proc, Config{}, nil).Handler())
			defer ts.Close()

			resp := upload(t, ts.URL+"/api/v1/extract", map[string]string{"a.txt": ""})
			assert.Equal(t, tt.want, resp.StatusCode)
			out := decodeBody(t, resp)
			assert.NotEmpty(t, out.Error)
			assert.Equal(t, resp.Header.Get(requestIDHeader), out.RequestID)
			require.Len(t, out.Documents, 1, "documents are reported alongside the failure")
			assert.Len(t, out.Warnings, 1)
			if tt.want == http.StatusInternalServerError {
				assert.Equal(t, "internal error", out.Error)
			}
		})
	}
}

func TestExtract_BadUpload(t *testing.T) {
	called := false
	proc := processorFunc(func(context.Context, []entity.SourceFile) (*pipeline.Result, error) {
		called = true
		return &pipeline.Result{}, nil
	})
	ts := httptest.NewServer(New(proc, Config{MaxUploadBytes: 512}, nil).Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/v1/extract", "application/json", bytes.NewBufferString(`{}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("comment", "no files"))
	require.NoError(t, mw.Close())
	resp2, err := http.Post(ts.URL+"/api/v1/extract", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	defer func() { _ = resp2.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)

	resp3 := upload(t, ts.URL+"/api/v1/extract", map[string]string{"big.txt": string(bytes.Repeat([]byte("x"), 4096))})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp3.StatusCode)

	assert.False(t, called)
}

func TestRequestIDIsPropagated(t *testing.T) {
	var seen string
	proc := processorFunc(func(ctx context.Context, _ []entity.SourceFile) (*pipeline.Result, error) {
		seen = common.RequestIDFromContext(ctx)
		return &pipeline.Result{RequestID: seen}, nil
	})
	ts := httptest.NewServer(New(proc, Config{}, nil).Handler())
	defer ts.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	w, err := mw.CreateFormFile(uploadField, "a.txt")
	require.NoError(t, err)
	_, _ = io.WriteString(w, "x")
	require.NoError(t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/extract", &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(requestIDHeader, "req-7")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "req-7", seen)
	assert.Equal(t, "req-7", resp.Header.Get(requestIDHeader))
}
