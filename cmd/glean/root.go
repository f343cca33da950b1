package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gleanlabs/glean/internal/config"
	"github.com/gleanlabs/glean/version"
)

var (
	cfgFile string
	verbose bool

	cfgManager *config.Manager
	logger     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "glean",
	Short: "Grounded entity extraction from documents with LLM backends",
	Long: `Glean extracts structured entities from plain-text documents using a
language model guided by few-shot examples. Every extraction is grounded:
the extracted text is an exact substring of the source document with
character offsets, so results can be verified and highlighted in place.

The pipeline includes:
  - Task definitions with class vocabularies and few-shot examples
  - Boundary-aware document chunking with exact offset bookkeeping
  - Parallel multi-pass extraction against Gemini, OpenAI, or local models
  - JSONL / JSON export and a self-contained HTML visualization`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./glean.yaml or ~/.glean/config.yaml)",
	)
	rootCmd.PersistentFlags().BoolVarP(
		&verbose, "verbose", "v", false, "enable debug logging",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)

		cm, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgManager = cm
		return nil
	}

	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(visualizeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
