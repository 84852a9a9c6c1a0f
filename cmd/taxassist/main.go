// Command taxassist turns tax documents into a spreadsheet and a JSON record
// list ready for a filing tool.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/olaf-fiscalyfr/french-tax-assistant-2025/internal/common"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "taxassist",
		Short:        "Extract French tax form fields from uploaded documents",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (defaults to $TAXASSIST_CONFIG)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "json", "json or text")

	root.AddCommand(newExtractCmd(), newServeCmd(), newTextCmd(), newLLMCmd())
	return root
}

// setup loads the configuration and installs the process logger.
func setup() (*common.Config, *slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, nil, fmt.Errorf("--log-level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return nil, nil, fmt.Errorf("--log-format: unknown format %q", logFormat)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)

	cfg, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
