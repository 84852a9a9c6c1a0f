package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
)

// Extractor sends one chunk per call with the fixed extraction prompt.
type Extractor struct {
	completer Completer
	logger    *slog.Logger
}

func NewExtractor(c Completer, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{completer: c, logger: logger}
}

// Extract returns the model's raw answer. The response is not parsed here:
// a non-JSON answer is still a successful call.
func (e *Extractor) Extract(ctx context.Context, chunk string) (string, error) {
	start := time.Now()
	logger := common.LoggerFromContext(ctx, e.logger)

	resp, err := e.completer.Complete(ctx, BuildExtractionPrompt(chunk))
	if err != nil {
		if !errors.Is(err, common.ErrProvider) {
			err = fmt.Errorf("%w: %w", ErrTransport, err)
		}
		logger.Error("llm.extract.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}
	logger.Info("llm.extract.ok",
		"chunk_chars", len(chunk),
		"response_bytes", len(resp),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}
