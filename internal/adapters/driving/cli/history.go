package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent review runs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "maximum number of runs")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "output runs as JSON")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	if reviewService == nil {
		return errors.New("review service not configured")
	}

	runs, err := reviewService.History(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if historyJSON {
		type runJSON struct {
			ID          string `json:"id"`
			Process     string `json:"process"`
			StartedAt   string `json:"started_at"`
			Documents   int    `json:"documents"`
			Failed      int    `json:"failed"`
			Issues      int    `json:"issues"`
			OverallPass bool   `json:"overall_pass"`
			Cancelled   bool   `json:"cancelled"`
		}
		out := make([]runJSON, len(runs))
		for i, r := range runs {
			out[i] = runJSON{
				ID:          r.ID,
				Process:     string(r.ProcessType),
				StartedAt:   r.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
				Documents:   r.DocumentCount,
				Failed:      r.FailedCount,
				Issues:      r.IssueCount,
				OverallPass: r.OverallPass,
				Cancelled:   r.Cancelled,
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal runs: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(runs) == 0 {
		cmd.Println("No review runs yet.")
		return nil
	}

	cmd.Printf("%-36s  %-16s  %-16s  %5s  %6s  %s\n", "RUN", "PROCESS", "STARTED", "DOCS", "ISSUES", "RESULT")
	for _, r := range runs {
		result := "FAIL"
		switch {
		case r.Cancelled:
			result = "CANCELLED"
		case r.OverallPass:
			result = "PASS"
		}
		docs := fmt.Sprintf("%d", r.DocumentCount)
		if r.FailedCount > 0 {
			docs = fmt.Sprintf("%d/%d", r.DocumentCount-r.FailedCount, r.DocumentCount)
		}
		cmd.Printf("%-36s  %-16s  %-16s  %5s  %6d  %s\n",
			r.ID, r.ProcessType, r.StartedAt.Local().Format("2006-01-02 15:04"), docs, r.IssueCount, result)
	}
	return nil
}
