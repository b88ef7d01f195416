// Package cli implements the docreview command line.
package cli

import (
	"context"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docreview/internal/core/ports/driving"
	"github.com/custodia-labs/docreview/internal/logger"
)

// version is set at build time.
var version = "dev"

// Services holds the driving ports the commands call.
type Services struct {
	Review    driving.ReviewService
	Index     driving.IndexService
	Checklist driving.ChecklistService
	Settings  driving.SettingsService

	// Metrics is served at /metrics by 'mcp serve --port'. Optional.
	Metrics http.Handler

	// WatchCorpus rebuilds the index on corpus changes until ctx is done.
	// Optional; used by 'mcp serve --watch'.
	WatchCorpus func(ctx context.Context) error
}

var (
	reviewService    driving.ReviewService
	indexService     driving.IndexService
	checklistService driving.ChecklistService
	settingsService  driving.SettingsService
	metricsHandler   http.Handler
	watchCorpus      func(ctx context.Context) error
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "docreview",
	Short: "Review corporate documents for regulatory compliance",
	Long: `docreview checks a batch of corporate documents against the checklist
for a business process, reviews each document against a regulatory corpus
with an LLM, and writes annotated copies plus a JSON findings report.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	reviewService = s.Review
	indexService = s.Index
	checklistService = s.Checklist
	settingsService = s.Settings
	metricsHandler = s.Metrics
	watchCorpus = s.WatchCorpus
}

// SetVersion sets the version reported by 'docreview version'.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
