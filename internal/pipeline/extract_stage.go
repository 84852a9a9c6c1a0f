package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/constants"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
)

// Dispatcher turns one file into one document. It never fails; problems are
// recorded on the document.
type Dispatcher interface {
	Dispatch(ctx context.Context, file entity.SourceFile) entity.ExtractedDocument
}

// Expander lists the members of an archive.
type Expander interface {
	Expand(ctx context.Context, filename string, data []byte) ([]entity.SourceFile, error)
}

// ExtractStage dispatches files in order and expands archives in place.
// Members keep their path inside the archive as Filename; Archive records the
// enclosing archives, so x.txt inside inner.zip inside a.zip has
// Archive "a.zip/inner.zip".
type ExtractStage struct {
	Dispatcher Dispatcher
	Archives   Expander
	MaxDepth   int
	Logger     *slog.Logger
}

func NewExtractStage(d Dispatcher, archives Expander, maxDepth int, logger *slog.Logger) *ExtractStage {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDepth <= 0 {
		maxDepth = 1
	}
	return &ExtractStage{Dispatcher: d, Archives: archives, MaxDepth: maxDepth, Logger: logger}
}

// Run returns one document per non-archive file, in input order, with archive
// members spliced in where the archive was.
func (s *ExtractStage) Run(ctx context.Context, files []entity.SourceFile) []entity.ExtractedDocument {
	docs := make([]entity.ExtractedDocument, 0, len(files))
	for _, f := range files {
		docs = s.visit(ctx, f, 0, docs)
	}
	return docs
}

func (s *ExtractStage) visit(ctx context.Context, f entity.SourceFile, depth int, docs []entity.ExtractedDocument) []entity.ExtractedDocument {
	if constants.MapExtToFormat(path.Ext(f.Filename)) != constants.ARCHIVE || s.Archives == nil {
		return append(docs, s.Dispatcher.Dispatch(ctx, f))
	}
	logger := common.LoggerFromContext(ctx, s.Logger)

	if depth >= s.MaxDepth {
		logger.Warn("pipeline.archive.too_deep", "filename", f.Filename, "archive", f.Archive, "depth", depth)
		return append(docs, failedDoc(f, fmt.Sprintf("archive nested deeper than %d levels", s.MaxDepth)))
	}
	members, err := s.Archives.Expand(ctx, f.Filename, f.Content)
	if err != nil {
		logger.Warn("pipeline.archive.failed", "filename", f.Filename, "error", err)
		return append(docs, failedDoc(f, err.Error()))
	}
	if len(members) == 0 {
		return append(docs, failedDoc(f, "archive has no files"))
	}
	logger.Info("pipeline.archive.expanded", "filename", f.Filename, "members", len(members), "depth", depth)
	parent := f.Filename
	if f.Archive != "" {
		parent = f.Archive + "/" + f.Filename
	}
	for _, m := range members {
		m.Archive = parent
		docs = s.visit(ctx, m, depth+1, docs)
	}
	return docs
}

func failedDoc(f entity.SourceFile, reason string) entity.ExtractedDocument {
	return entity.ExtractedDocument{
		Filename: f.Filename,
		Archive:  f.Archive,
		Format:   constants.ARCHIVE,
		Status:   constants.DocStatusFailed,
		Reason:   reason,
	}
}

// documentWarnings renders one warning per document that is not OK.
func documentWarnings(docs []entity.ExtractedDocument) []string {
	var out []string
	for _, d := range docs {
		if d.Status == constants.DocStatusOK {
			continue
		}
		out = append(out, fmt.Sprintf("%s: %s: %s", d.Origin(), d.Status, d.Reason))
	}
	return out
}
