package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driven"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
)

// defaultOutputDir is used when neither --out nor output.dir is set.
const defaultOutputDir = "reviewed"

var (
	reviewProcess  string
	reviewOut      string
	reviewJSON     bool
	reviewNoRender bool
)

var reviewCmd = &cobra.Command{
	Use:   "review [files or directories...]",
	Short: "Review a batch of documents",
	Long: `Review a batch of documents for one business process.

The batch is first checked against the process checklist. Each document is
then reviewed against the regulatory corpus, and an annotated copy is written
to the output directory together with report.json.

Examples:
  docreview review articles.docx memorandum.docx resolution.docx
  docreview review ./uploads --process incorporation --out ./reviewed
  docreview review ./uploads --json > report.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewProcess, "process", "p", "", "process type (default from settings)")
	reviewCmd.Flags().StringVarP(&reviewOut, "out", "o", "", "output directory (default from settings)")
	reviewCmd.Flags().BoolVar(&reviewJSON, "json", false, "print the JSON report instead of a summary")
	reviewCmd.Flags().BoolVar(&reviewNoRender, "no-render", false, "skip writing annotated copies")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	if reviewService == nil {
		return errors.New("review service not configured")
	}

	docs, err := readUploads(args)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	result, batchErr := reviewService.Review(ctx, driving.ReviewRequest{
		Process:   domain.ProcessType(reviewProcess),
		Documents: docs,
	})
	if result == nil {
		return fmt.Errorf("review failed: %w", batchErr)
	}

	// A cancelled batch still writes what it has.
	writeCtx := context.WithoutCancel(ctx)

	var files []driven.RenderedFile
	if !reviewNoRender {
		files, err = reviewService.Render(writeCtx, result)
		if err != nil {
			return fmt.Errorf("rendering annotated copies: %w", err)
		}
	}

	report, err := json.MarshalIndent(result.Report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	written, err := writeOutputs(outputDir(), files, append(report, '\n'))
	if err != nil {
		return err
	}

	if reviewJSON {
		cmd.Println(string(report))
	} else {
		printReviewSummary(cmd.OutOrStdout(), result, written)
	}

	return batchErr
}

// outputDir resolves --out, then the output.dir setting.
func outputDir() string {
	if reviewOut != "" {
		return reviewOut
	}
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil && settings.OutputDir != "" {
			return settings.OutputDir
		}
	}
	return defaultOutputDir
}
