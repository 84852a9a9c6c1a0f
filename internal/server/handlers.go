package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/export"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/llm"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/pipeline"
)

const uploadField = "files"

// extractResponse is the body of POST /api/v1/extract and of every error
// raised after the files were read, so a caller can always see which
// documents succeeded.
type extractResponse struct {
	RequestID   string                     `json:"request_id"`
	Error       string                     `json:"error,omitempty"`
	Documents   []entity.ExtractedDocument `json:"documents"`
	Warnings    []string                   `json:"warnings"`
	Summary     []entity.TaxRecord         `json:"summary"`
	Forms       entity.FormBucket          `json:"forms"`
	Placeholder bool                       `json:"placeholder"`
	Chunks      int                        `json:"chunks"`
	XLSX        []byte                     `json:"xlsx,omitempty"`
	JSON        []byte                     `json:"json,omitempty"`
}

func newExtractResponse(res *pipeline.Result) extractResponse {
	out := extractResponse{Warnings: []string{}, Documents: []entity.ExtractedDocument{}, Summary: []entity.TaxRecord{}}
	if res == nil {
		return out
	}
	out.RequestID = res.RequestID
	if res.Documents != nil {
		out.Documents = res.Documents
	}
	if res.Warnings != nil {
		out.Warnings = res.Warnings
	}
	if res.Summary != nil {
		out.Summary = res.Summary
	}
	out.Forms = res.Forms
	out.Placeholder = res.Placeholder
	out.Chunks = res.Chunks
	out.XLSX = res.XLSX
	out.JSON = res.JSON
	return out
}

func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	res, ok := s.process(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newExtractResponse(res))
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	res, ok := s.process(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", export.XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.XLSX)
}

func (s *Server) handleExportJSON(w http.ResponseWriter, r *http.Request) {
	res, ok := s.process(w, r)
	if !ok {
		return
	}
	if res.Placeholder {
		body := newExtractResponse(res)
		body.Error = "no language model configured: only the placeholder spreadsheet is available"
		writeJSON(w, http.StatusUnprocessableEntity, body)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.JSON)
}

// process reads the upload and runs the batch. It writes the error response
// itself and reports false when the handler must stop.
func (s *Server) process(w http.ResponseWriter, r *http.Request) (*pipeline.Result, bool) {
	logger := common.LoggerFromContext(r.Context(), s.logger)
	files, err := s.readUploads(w, r)
	if err != nil {
		logger.Warn("server.upload.rejected", "error", err)
		writeError(r.Context(), w, err, nil)
		return nil, false
	}
	res, err := s.proc.Process(r.Context(), files)
	if err != nil {
		logger.Warn("server.process.failed", "files", len(files), "error", err)
		writeError(r.Context(), w, err, res)
		return nil, false
	}
	return res, true
}

var (
	errBadUpload = errors.New("bad upload")
	errTooLarge  = errors.New("upload too large")
)

func (s *Server) readUploads(w http.ResponseWriter, r *http.Request) ([]entity.SourceFile, error) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(s.cfg.MaxMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return nil, fmt.Errorf("%w: limit is %d bytes", errTooLarge, mbe.Limit)
		}
		return nil, fmt.Errorf("%w: %w", errBadUpload, err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		return nil, fmt.Errorf("%w: no %q parts", errBadUpload, uploadField)
	}
	files := make([]entity.SourceFile, 0, len(headers))
	for _, h := range headers {
		data, err := readPart(h)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", errBadUpload, h.Filename, err)
		}
		files = append(files, entity.SourceFile{Filename: h.Filename, Content: data})
	}
	return files, nil
}

func readPart(h *multipart.FileHeader) ([]byte, error) {
	f, err := h.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return io.ReadAll(f)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, errBadUpload), errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrNoDocuments), errors.Is(err, common.ErrEmptyResult):
		return http.StatusUnprocessableEntity
	case errors.Is(err, llm.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, llm.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, common.ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, err error, res *pipeline.Result) {
	body := newExtractResponse(res)
	if body.RequestID == "" {
		body.RequestID = common.RequestIDFromContext(ctx)
	}
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	} else {
		body.Error = err.Error()
	}
	body.XLSX, body.JSON = nil, nil
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
