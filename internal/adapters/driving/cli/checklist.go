package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docreview/internal/core/domain"
	"github.com/custodia-labs/docreview/internal/core/ports/driving"
)

var checklistProcess string

var checklistCmd = &cobra.Command{
	Use:   "checklist",
	Short: "Inspect process checklists",
	Long: `List the configured process checklists, or check a batch of documents
against one without reviewing them.`,
	RunE: runChecklistList,
}

var checklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured checklists",
	Args:  cobra.NoArgs,
	RunE:  runChecklistList,
}

var checklistCheckCmd = &cobra.Command{
	Use:   "check [files or directories...]",
	Short: "Check which required documents are present",
	Long: `Classify a batch against the process checklist and report missing documents.

Example:
  docreview checklist check ./uploads --process incorporation`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChecklistCheck,
}

func init() {
	checklistCheckCmd.Flags().StringVarP(&checklistProcess, "process", "p", "", "process type (default from settings)")
	checklistCmd.AddCommand(checklistListCmd)
	checklistCmd.AddCommand(checklistCheckCmd)
	rootCmd.AddCommand(checklistCmd)
}

func runChecklistList(cmd *cobra.Command, _ []string) error {
	if checklistService == nil {
		return errors.New("checklist service not configured")
	}

	defs := checklistService.Definitions()
	if len(defs) == 0 {
		cmd.Println("No checklists configured.")
		return nil
	}

	for i, def := range defs {
		if i > 0 {
			cmd.Println()
		}
		cmd.Printf("%s (%s)\n", def.Title, def.Process)
		for _, rule := range def.Categories {
			cmd.Printf("  - %s", rule.Category)
			if hint := predicateHint(rule.Predicate); hint != "" {
				cmd.Printf("  [%s]", hint)
			}
			cmd.Println()
		}
	}
	return nil
}

func predicateHint(p domain.Predicate) string {
	var parts []string
	if len(p.Keywords) > 0 {
		parts = append(parts, "keywords: "+strings.Join(p.Keywords, ", "))
	}
	if p.Pattern != "" {
		parts = append(parts, "pattern: "+p.Pattern)
	}
	if len(parts) > 0 && p.Target != "" {
		parts = append(parts, "in "+string(p.Target))
	}
	return strings.Join(parts, "; ")
}

func runChecklistCheck(cmd *cobra.Command, args []string) error {
	if reviewService == nil {
		return errors.New("review service not configured")
	}

	docs, err := readUploads(args)
	if err != nil {
		return err
	}

	result, err := reviewService.Check(cmd.Context(), driving.ReviewRequest{
		Process:   domain.ProcessType(checklistProcess),
		Documents: docs,
	})
	if err != nil {
		var ambiguous *domain.AmbiguousClassificationError
		if errors.As(err, &ambiguous) {
			return fmt.Errorf("cannot classify %s: matches %s", ambiguous.DocumentName, joinCategories(ambiguous.Categories))
		}
		return fmt.Errorf("checklist evaluation failed: %w", err)
	}

	title := ""
	if checklistService != nil {
		if def, defErr := checklistService.Definition(result.Process); defErr == nil {
			title = def.Title
		}
	}

	cmd.Println(result.Notification(title))

	if len(result.Classified) > 0 {
		cmd.Println()
		cmd.Println("Classified:")
		ids := make([]string, 0, len(result.Classified))
		for id := range result.Classified {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			cmd.Printf("  %s: %s\n", id, result.Classified[id])
		}
	}
	if len(result.Extra) > 0 {
		cmd.Printf("Not required: %s\n", strings.Join(result.Extra, ", "))
	}
	duplicated := make([]string, 0, len(result.Duplicates))
	for category := range result.Duplicates {
		duplicated = append(duplicated, string(category))
	}
	sort.Strings(duplicated)
	for _, category := range duplicated {
		cmd.Printf("Duplicate %s: %s\n", category, strings.Join(result.Duplicates[domain.Category(category)], ", "))
	}

	if !result.Satisfied {
		cmd.Println()
		cmd.Println("Checklist not satisfied.")
	}
	return nil
}

func joinCategories(categories []domain.Category) string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = string(c)
	}
	return strings.Join(names, " and ")
}
