package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/ingest"
)

// newTextCmd prints what the extractors read from each file, archives
// expanded. No model is called.
func newTextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "text <files...>",
		Short: "Print the extracted text of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			st, err := buildStages(cfg, logger)
			if err != nil {
				return err
			}
			files, failures := ingest.ReadFiles(args)
			for _, f := range failures {
				logger.Warn("ingest.path.failed", "path", f.Path, "error", f.Err)
			}
			out := cmd.OutOrStdout()
			for _, d := range st.extract.Run(cmd.Context(), files) {
				_, _ = fmt.Fprintf(out, "==> %s [%s method=%s]\n", d.Origin(), d.Status, d.Method)
				if d.Reason != "" {
					_, _ = fmt.Fprintf(out, "reason: %s\n", d.Reason)
				}
				for _, w := range d.Warnings {
					_, _ = fmt.Fprintf(out, "warning: %s\n", w)
				}
				_, _ = fmt.Fprintln(out, d.Text)
			}
			return nil
		},
	}
}

// newLLMCmd sends each chunk of the given files to the model and prints the
// raw answers, then the reconciled summary.
func newLLMCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "llm <files...>",
		Short: "Print raw model answers per chunk and the reconciled summary",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			st, err := buildStages(cfg, logger)
			if err != nil {
				return err
			}
			if st.llm == nil {
				return errors.New("no API key configured: set OPENAI_API_KEY or llm.api_key")
			}
			files, failures := ingest.ReadFiles(args)
			for _, f := range failures {
				logger.Warn("ingest.path.failed", "path", f.Path, "error", f.Err)
			}
			docs := st.extract.Run(cmd.Context(), files)
			responses, sent, err := st.llm.Run(cmd.Context(), docs)
			out := cmd.OutOrStdout()
			for _, r := range responses {
				_, _ = fmt.Fprintf(out, "==> %s\n%s\n", r.Label, r.Text)
			}
			if err != nil {
				return fmt.Errorf("after %d chunk(s): %w", sent, err)
			}
			res, err := st.reconciler.ReconcileResponses(responses)
			for _, w := range res.Warnings {
				_, _ = fmt.Fprintf(out, "warning: %s\n", w)
			}
			for _, r := range res.Summary {
				_, _ = fmt.Fprintf(out, "%s %s %v %s\n", r.Form, r.Code, r.Amount, r.DescriptionText())
			}
			return err
		},
	}
}
