package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/franz/top-movies/internal/report"
	"github.com/franz/top-movies/internal/store"
	"github.com/franz/top-movies/internal/util"
	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a summary report from the database and event logs",
	Long: `Generate a summary report in Markdown format.

The report includes:
- List statistics (rated, unrated, average rating)
- The full ranking
- Imports, edits and deletions recorded in the event log
- Top errors

The report is saved to <event_log_dir>/reports/<timestamp>/summary.md`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)

	reportCmd.Flags().String("out", "", "Output directory for report (default: <event_log_dir>/reports/<timestamp>)")
	reportCmd.Flags().String("event-log", "", "Path to event log file (optional)")
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := openApp(false)
	if err != nil {
		return err
	}
	defer a.Close()

	util.InfoLog("=== Generating Summary Report ===")

	movies, err := a.lib.List(cmd.Context())
	if err != nil {
		return err
	}

	eventLogPath, _ := cmd.Flags().GetString("event-log")
	summary, err := report.GenerateSummaryReport(movies, eventLogPath)
	if err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	summary.DatabasePath = store.SQLitePath(a.cfg.DatabaseURI)
	if summary.DatabasePath == "" {
		// never print a postgres URI, it may carry a password
		summary.DatabasePath = string(a.store.Driver())
	}

	outputDir, _ := cmd.Flags().GetString("out")
	if outputDir == "" {
		timestamp := time.Now().Format("20060102-150405")
		outputDir = filepath.Join(a.cfg.EventLogDir, "reports", timestamp)
	}

	outputPath := filepath.Join(outputDir, "summary.md")
	if err := report.WriteMarkdownReport(summary, outputPath); err != nil {
		return err
	}

	util.SuccessLog("Report written to %s", outputPath)
	util.InfoLog("%d movies, %d rated", summary.Total, summary.Rated)
	return nil
}
