package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/chunk"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/reconcile"
)

// Extractor returns the model's raw answer for one chunk of text.
type Extractor interface {
	Extract(ctx context.Context, chunk string) (string, error)
}

// LLMStage windows every readable document and sends the windows one at a
// time, in document then chunk order.
type LLMStage struct {
	Extractor Extractor
	Chunk     chunk.Options
	Logger    *slog.Logger
}

func NewLLMStage(ex Extractor, opts chunk.Options, logger *slog.Logger) *LLMStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &LLMStage{Extractor: ex, Chunk: opts, Logger: logger}
}

// Run stops at the first failed call. The responses gathered so far and the
// number of chunks sent are returned with the error.
func (s *LLMStage) Run(ctx context.Context, docs []entity.ExtractedDocument) ([]reconcile.Response, int, error) {
	logger := common.LoggerFromContext(ctx, s.Logger)
	var responses []reconcile.Response
	sent := 0
	for _, d := range docs {
		if d.Text == "" {
			continue
		}
		windows, err := chunk.Windows(d.Origin(), d.Text, s.Chunk)
		if err != nil {
			return responses, sent, err
		}
		for c := range windows {
			if err := ctx.Err(); err != nil {
				return responses, sent, fmt.Errorf("llm stage: %w", err)
			}
			start := time.Now()
			raw, err := s.Extractor.Extract(ctx, c.Text)
			sent++
			if err != nil {
				logger.Error("pipeline.chunk.failed", "filename", c.SourceFilename, "chunk", c.Index, "error", err)
				return responses, sent, fmt.Errorf("%s chunk %d: %w", c.SourceFilename, c.Index, err)
			}
			logger.Debug("pipeline.chunk.sent",
				"filename", c.SourceFilename,
				"chunk", c.Index,
				"elapsed_ms", time.Since(start).Milliseconds(),
			)
			responses = append(responses, reconcile.Response{
				Label: fmt.Sprintf("%s#%d", c.SourceFilename, c.Index),
				Text:  raw,
			})
		}
	}
	return responses, sent, nil
}
