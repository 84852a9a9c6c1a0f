package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/entity"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/export"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/ingest"
	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/pipeline"
)

func newExtractCmd() *cobra.Command {
	var (
		dir     string
		outXLSX string
		outJSON string
	)
	cmd := &cobra.Command{
		Use:   "extract [files...]",
		Short: "Process files or a directory and write the XLSX and JSON exports",
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir == "" && len(args) == 0 {
				return errors.New("give files as arguments or a directory with --dir")
			}
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			proc, err := buildProcessor(cfg, logger)
			if err != nil {
				return err
			}

			var files []entity.SourceFile
			if dir != "" {
				found, failures, stats, err := ingest.ReadDirectory(dir, true)
				if err != nil {
					return err
				}
				for _, f := range failures {
					logger.Warn("ingest.path.failed", "path", f.Path, "error", f.Err)
				}
				logger.Info("ingest.dir.ok",
					"dir", dir,
					"scanned", stats.Scanned,
					"matched", stats.Matched,
					"succeeded", stats.Succeeded,
					"failed", stats.Failed,
				)
				files = append(files, found...)
			}
			if len(args) > 0 {
				found, failures := ingest.ReadFiles(args)
				for _, f := range failures {
					logger.Warn("ingest.path.failed", "path", f.Path, "error", f.Err)
				}
				files = append(files, found...)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			res, err := proc.Process(ctx, files)
			if res != nil {
				printReport(cmd, res)
			}
			if err != nil {
				return err
			}
			return writeOutputs(res, defaultOut(outXLSX, dir, export.Filename), defaultOut(outJSON, dir, export.JSONFilename))
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory to scan recursively")
	cmd.Flags().StringVar(&outXLSX, "out-xlsx", "", "spreadsheet path (default next to --dir or in the working directory)")
	cmd.Flags().StringVar(&outJSON, "out-json", "", "JSON records path (default next to --dir or in the working directory)")
	return cmd
}

func defaultOut(flag, dir, name string) string {
	if flag != "" {
		return flag
	}
	if dir != "" {
		return filepath.Join(filepath.Dir(filepath.Clean(dir)), name)
	}
	return name
}

func writeOutputs(res *pipeline.Result, xlsxPath, jsonPath string) error {
	if err := os.WriteFile(xlsxPath, res.XLSX, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", xlsxPath, err)
	}
	if res.Placeholder {
		return nil
	}
	if err := os.WriteFile(jsonPath, res.JSON, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", jsonPath, err)
	}
	return nil
}

func printReport(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "request %s: %d document(s), %d chunk(s)\n", res.RequestID, len(res.Documents), res.Chunks)
	for _, d := range res.Documents {
		_, _ = fmt.Fprintf(out, "  %-16s %s\n", d.Status, d.Origin())
	}
	for _, w := range res.Warnings {
		_, _ = fmt.Fprintf(out, "  warning: %s\n", w)
	}
	if res.Placeholder {
		_, _ = fmt.Fprintln(out, "no language model configured: placeholder spreadsheet only")
		return
	}
	for _, r := range res.Summary {
		_, _ = fmt.Fprintf(out, "  %s %s %v\n", r.Form, r.Code, r.Amount)
	}
}
