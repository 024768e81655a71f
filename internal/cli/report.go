package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mwinfie/sonar-coldfusion/internal/config"
	"github.com/mwinfie/sonar-coldfusion/internal/report"
)

var (
	reportRunID string
	reportLimit int
)

// reportCmd represents the report command
var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show persisted analysis runs and their issues",
	Long: `Report reads the results database written by 'analyze' with the sqlite
sink enabled.

Without flags it lists recent runs. With --run it prints the issues of one
run.

Examples:
  # List the last runs
  cflint-runner report

  # Show the issues of a specific run
  cflint-runner report --run 3f6e9a12-...
`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
	reportCmd.Flags().StringVar(&reportRunID, "run", "", "Show issues of this run instead of listing runs")
	reportCmd.Flags().IntVar(&reportLimit, "limit", 20, "Maximum number of runs to list")
}

func runReport(cmd *cobra.Command, args []string) error {
	root, err := projectRoot()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbPath := cfg.Report.Database
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(root, dbPath)
	}

	if reportRunID != "" {
		return printIssues(dbPath, reportRunID)
	}
	return printRuns(dbPath)
}

func printRuns(dbPath string) error {
	runs, err := report.ListRuns(dbPath, reportLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet. Run 'cflint-runner analyze' with the sqlite sink enabled.")
		return nil
	}

	fmt.Printf("%-36s  %-19s  %7s  %7s  %7s  %6s\n",
		"RUN", "STARTED", "FILES", "FAILED", "ISSUES", "RATE")
	for _, r := range runs {
		fmt.Printf("%-36s  %-19s  %7d  %7d  %7d  %5.1f%%\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"),
			r.TotalFiles, r.Failed, r.IssueCount, r.SuccessRate)
	}
	return nil
}

func printIssues(dbPath, runID string) error {
	issues, err := report.ListIssues(dbPath, runID)
	if err != nil {
		return err
	}
	if len(issues) == 0 {
		fmt.Printf("No issues recorded for run %s\n", runID)
		return nil
	}

	for _, issue := range issues {
		fmt.Printf("%s:%d [%s] %s: %s\n",
			issue.File, issue.Line, issue.Severity, issue.Rule, issue.Message)
	}
	fmt.Printf("\n%d issues\n", len(issues))
	return nil
}
