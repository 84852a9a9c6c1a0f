// Package pipeline runs one upload batch end to end: extraction, the optional
// model stage, reconciliation and export.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/export"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/reconcile"
)

// Result is everything a caller can show for one batch. It is returned even
// when Process fails, populated up to the failing step.
type Result struct {
	RequestID   string
	Documents   []entity.ExtractedDocument
	Warnings    []string
	Summary     []entity.TaxRecord
	Forms       entity.FormBucket
	XLSX        []byte
	JSON        []byte
	Placeholder bool
	Chunks      int
}

// Processor coordinates the extract stage, then the LLM stage when one is
// configured, then reconcile and export.
type Processor struct {
	logger     *slog.Logger
	extract    *ExtractStage
	llm        *LLMStage
	reconciler *reconcile.Reconciler
	exporter   *export.Service
}

// NewProcessor wires the stages. llm may be nil, in which case Process
// produces the placeholder spreadsheet and never calls a model.
func NewProcessor(
	logger *slog.Logger,
	extract *ExtractStage,
	llm *LLMStage,
	reconciler *reconcile.Reconciler,
	exporter *export.Service,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if exporter == nil {
		exporter = export.NewService(logger)
	}
	return &Processor{
		logger:     logger,
		extract:    extract,
		llm:        llm,
		reconciler: reconciler,
		exporter:   exporter,
	}
}

// LLMEnabled reports whether Process will call the model.
func (p *Processor) LLMEnabled() bool {
	return p.llm != nil && p.llm.Extractor != nil
}

// Process handles one batch. Errors:
//   - common.ErrInvalidInput when files is empty;
//   - common.ErrNoDocuments when no document yielded text;
//   - common.ErrProvider (wrapped) when a model call failed;
//   - common.ErrEmptyResult when no tax record survived reconciliation.
func (p *Processor) Process(ctx context.Context, files []entity.SourceFile) (*Result, error) {
	start := time.Now()
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
		ctx = common.WithRequestID(ctx, reqID)
	}
	logger := common.LoggerFromContext(ctx, p.logger).With("req_id", reqID)
	ctx = common.WithLogger(ctx, logger)

	res := &Result{RequestID: reqID}
	if len(files) == 0 {
		return res, common.NewAppError("NO_FILES", "no files uploaded", common.ErrInvalidInput)
	}

	res.Documents = p.extract.Run(ctx, files)
	res.Warnings = append(res.Warnings, documentWarnings(res.Documents)...)
	readable := 0
	for _, d := range res.Documents {
		if d.Text != "" {
			readable++
		}
	}
	logger.Info("pipeline.extract.done", "files", len(files), "documents", len(res.Documents), "readable", readable)
	if readable == 0 {
		return res, fmt.Errorf("%w: none of %d document(s) could be read", common.ErrNoDocuments, len(res.Documents))
	}

	if !p.LLMEnabled() {
		xlsx, err := p.exporter.Placeholder(res.Documents)
		if err != nil {
			return res, err
		}
		res.XLSX = xlsx
		res.Placeholder = true
		logger.Info("pipeline.placeholder.ok", "elapsed_ms", time.Since(start).Milliseconds())
		return res, nil
	}

	responses, sent, err := p.llm.Run(ctx, res.Documents)
	res.Chunks = sent
	if err != nil {
		logger.Error("pipeline.llm.aborted", "chunks_sent", sent, "error", err)
		return res, err
	}

	rec, err := p.reconciler.ReconcileResponses(responses)
	res.Summary = rec.Summary
	res.Forms = rec.Forms
	res.Warnings = append(res.Warnings, rec.Warnings...)
	if err != nil {
		logger.Warn("pipeline.reconcile.empty", "chunks", sent, "unparsable", rec.Unparsable)
		return res, err
	}

	res.XLSX, res.JSON, err = p.exporter.Export(res.Summary, res.Forms)
	if err != nil {
		return res, err
	}
	logger.Info("pipeline.ok",
		"documents", len(res.Documents),
		"chunks", res.Chunks,
		"records", len(res.Summary),
		"warnings", len(res.Warnings),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}
