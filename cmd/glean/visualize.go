package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gleanlabs/glean/internal/annotate"
	"github.com/gleanlabs/glean/internal/export"
)

var visualizeFlags struct {
	output string
	title  string
}

var visualizeCmd = &cobra.Command{
	Use:   "visualize [results.jsonl]",
	Short: "Render extraction results as a self-contained HTML page",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open results: %w", err)
		}
		defer f.Close()

		docs, err := export.ReadJSONL(f)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return fmt.Errorf("no records in %s", args[0])
		}
		// One page per invocation; multi-document files render the first.
		if len(docs) > 1 {
			logger.Warn("results file has multiple documents, rendering the first", "documents", len(docs))
		}
		doc := docs[0]

		out, closeOut, err := openOutput(visualizeFlags.output)
		if err != nil {
			return err
		}
		defer closeOut()

		res := &annotate.Result{
			RunID:        doc.RunID,
			DocumentText: doc.Text,
			Extractions:  doc.Extractions,
		}
		return export.WriteHTML(out, visualizeFlags.title, res)
	},
}

func init() {
	visualizeCmd.Flags().StringVarP(&visualizeFlags.output, "output", "o", "", "output file (default stdout)")
	visualizeCmd.Flags().StringVar(&visualizeFlags.title, "title", "Extraction results", "page title")
}
