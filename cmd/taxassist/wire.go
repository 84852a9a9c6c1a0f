package main

import (
	"log/slog"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/chunk"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/export"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/extract"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/ingest"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/llm"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/llm/openai"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/ocr"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/pipeline"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/reconcile"
)

type stages struct {
	extract    *pipeline.ExtractStage
	llm        *pipeline.LLMStage // nil without an API key
	reconciler *reconcile.Reconciler
}

// buildProcessor wires every stage from cfg. The model stage is left out when
// no API key was configured.
func buildProcessor(cfg *common.Config, logger *slog.Logger) (*pipeline.Processor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	st, err := buildStages(cfg, logger)
	if err != nil {
		return nil, err
	}
	return pipeline.NewProcessor(logger, st.extract, st.llm, st.reconciler, export.NewService(logger)), nil
}

func buildStages(cfg *common.Config, logger *slog.Logger) (*stages, error) {
	opts := extract.Options{MaxFileBytes: cfg.Limits.MaxFileBytes}
	if cfg.OCR.Enabled {
		opts.OCR = ocr.NewExtractor(ocr.Config{
			Pdftotext:     cfg.OCR.Pdftotext,
			Pdftoppm:      cfg.OCR.Pdftoppm,
			Tesseract:     cfg.OCR.Tesseract,
			TesseractLang: cfg.OCR.TesseractLang,
			TessdataDir:   cfg.OCR.TessdataDir,
			DPI:           cfg.OCR.DPI,
			MaxPages:      cfg.OCR.MaxPages,
		}, logger)
	}
	dispatcher := extract.NewDispatcher(opts, logger)
	archives := ingest.NewArchiveExpander(ingest.ArchiveConfig{
		MaxEntries: cfg.Limits.MaxArchiveEntries,
		MaxBytes:   cfg.Limits.MaxArchiveBytes,
		SkipHidden: true,
	}, logger)
	extractStage := pipeline.NewExtractStage(dispatcher, archives, cfg.Limits.MaxArchiveDepth, logger)

	policy, err := reconcile.ParseMergePolicy(cfg.Reconcile.MergePolicy)
	if err != nil {
		return nil, err
	}
	reconciler, err := reconcile.NewReconciler(policy, logger)
	if err != nil {
		return nil, err
	}

	var llmStage *pipeline.LLMStage
	if cfg.LLMEnabled() {
		client := openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		chunkOpts := chunk.Options{Size: cfg.Chunk.Size, Overlap: cfg.Chunk.Overlap}
		llmStage = pipeline.NewLLMStage(llm.NewExtractor(client, logger), chunkOpts, logger)
		logger.Info("llm.enabled", "model", cfg.LLM.Model, "chunk_size", chunkOpts.Size)
	} else {
		logger.Warn("llm.disabled", "reason", "no API key configured; placeholder export only")
	}

	return &stages{extract: extractStage, llm: llmStage, reconciler: reconciler}, nil
}
