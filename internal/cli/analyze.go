package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mwinfie/sonar-coldfusion/internal/analyzer"
	"github.com/mwinfie/sonar-coldfusion/internal/collector"
	"github.com/mwinfie/sonar-coldfusion/internal/config"
	"github.com/mwinfie/sonar-coldfusion/internal/engine"
	"github.com/mwinfie/sonar-coldfusion/internal/fallback"
	"github.com/mwinfie/sonar-coldfusion/internal/importer"
	"github.com/mwinfie/sonar-coldfusion/internal/include"
	"github.com/mwinfie/sonar-coldfusion/internal/platform"
	"github.com/mwinfie/sonar-coldfusion/internal/preprocess"
	"github.com/mwinfie/sonar-coldfusion/internal/report"
	"github.com/mwinfie/sonar-coldfusion/internal/watcher"
)

var (
	quietFlag bool
	watchFlag bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the lint engine over the project",
	Long: `Analyze discovers ColdFusion source files and runs the CFLint engine
over them.

In strict mode the whole file set is analyzed in one batch and any engine
failure fails the run. In lenient mode (the default) a batch failure falls
back to analyzing each file in isolation with a per-file timeout, so one
unparseable or hanging file costs only itself. Fragment mode skips the batch
attempt entirely.

Issue locations the engine reports against include-expanded files are mapped
back to the physical line in the real source file before reporting.

Examples:
  # Analyze the current directory
  cflint-runner analyze

  # Analyze without progress bars
  cflint-runner analyze --quiet

  # Re-analyze whenever source files change
  cflint-runner analyze --watch
`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", false, "Disable progress bars and non-error output")
	analyzeCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch for file changes and re-analyze")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nInterrupted! Cancelling analysis...")
		cancel()
	}()

	root, err := projectRoot()
	if err != nil {
		return err
	}

	cfg, err := config.LoadConfigFromDir(root)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if !watchFlag {
		return analysisRun(ctx, cfg, root)
	}

	return watchAndAnalyze(ctx, cfg, root)
}

// analysisRun performs one complete discover-analyze-import cycle.
func analysisRun(ctx context.Context, cfg *config.Config, root string) error {
	fs := platform.NewFileSystem(root)

	discovery, err := platform.NewDiscovery(fs, cfg.Paths.Sources, cfg.Paths.Ignore)
	if err != nil {
		return fmt.Errorf("invalid path patterns: %w", err)
	}
	files, err := discovery.DiscoverFiles()
	if err != nil {
		return fmt.Errorf("file discovery failed: %w", err)
	}
	if len(files) == 0 {
		logrus.Info("no ColdFusion files found, nothing to analyze")
		return nil
	}
	logrus.Infof("discovered %d ColdFusion files", len(files))

	workDir, err := os.MkdirTemp(ensureRunnerDir(root), "run-*")
	if err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	sink, sqliteSink, closeSink, err := buildSink(cfg, root)
	if err != nil {
		return err
	}
	defer closeSink()

	opts := analyzer.Options{
		Mode:                   analyzer.ModeFromString(cfg.Analysis.Mode),
		FileTimeout:            time.Duration(cfg.Analysis.FileTimeoutSeconds) * time.Second,
		MaxConsecutiveTimeouts: cfg.Analysis.MaxConsecutiveTimeouts,
		ErrorThreshold:         cfg.Analysis.ErrorThreshold,
		ErrorReporting:         cfg.Analysis.ErrorReporting,
		SkipMalformed:          cfg.Analysis.SkipMalformed,
		WorkDir:                workDir,
	}

	orch := analyzer.NewOrchestrator(opts,
		engine.NewCommandEngine(cfg.Engine.Command, cfg.Engine.Args),
		collector.New(),
		preprocess.New(cfg.Preprocess.Enabled),
		fallback.New(cfg.Fallback.Enabled, cfg.Fallback.MaxIssuesPerFile),
		NewCLIProgressReporter(quietFlag),
	)

	runReport, err := orch.Run(ctx, files)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	resolver := include.NewResolver(fs)
	imp := importer.New(fs, resolver, sink, importer.Options{
		MaxResultBytes: cfg.Import.MaxResultBytes,
		MaxIssueCount:  cfg.Import.MaxIssueCount,
	})
	stats, err := imp.Import(runReport.ResultPath)
	if err != nil {
		return fmt.Errorf("result import failed: %w", err)
	}

	if sqliteSink != nil {
		if err := sqliteSink.FinishRun(runReport); err != nil {
			logrus.Warnf("failed to record run summary: %v", err)
		} else if !quietFlag {
			fmt.Printf("Run %s saved to %s\n", sqliteSink.RunID(), cfg.Report.Database)
		}
	}

	if !quietFlag {
		fmt.Printf("Imported %d issues", stats.Imported)
		if skipped := stats.SkippedNoFile + stats.SkippedNoLine; skipped > 0 {
			fmt.Printf(" (%d locations could not be fully resolved)", skipped)
		}
		fmt.Println()
	}
	return nil
}

// watchAndAnalyze runs an initial analysis, then re-runs on debounced file
// changes until the context is cancelled.
func watchAndAnalyze(ctx context.Context, cfg *config.Config, root string) error {
	fw, err := watcher.NewFileWatcher([]string{root}, cfg.SourceExtensions())
	if err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer fw.Stop()

	trigger := make(chan struct{}, 1)
	if err := fw.Start(ctx, func(files []string) {
		logrus.Infof("%d files changed, scheduling re-analysis", len(files))
		select {
		case trigger <- struct{}{}:
		default:
		}
	}); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}

	runOnce := func() {
		// The engine's work artifacts must not feed back into the watcher.
		fw.Pause()
		defer fw.Resume()
		if err := analysisRun(ctx, cfg, root); err != nil && ctx.Err() == nil {
			logrus.Errorf("analysis run failed: %v", err)
		}
	}

	runOnce()
	if !quietFlag {
		fmt.Println("Watching for changes (Ctrl+C to stop)...")
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			runOnce()
		}
	}
}

// buildSink assembles the configured report sink. The returned *SQLiteSink
// is nil unless the sqlite sink is active.
func buildSink(cfg *config.Config, root string) (report.Sink, *report.SQLiteSink, func(), error) {
	var sinks []report.Sink
	var sqliteSink *report.SQLiteSink

	switch cfg.Report.Sink {
	case "console":
		sinks = append(sinks, report.NewConsoleSink(os.Stdout))
	case "sqlite", "both":
		dbPath := cfg.Report.Database
		if !filepath.IsAbs(dbPath) {
			dbPath = filepath.Join(root, dbPath)
		}
		s, err := report.NewSQLiteSink(dbPath)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open results database: %w", err)
		}
		sqliteSink = s
		sinks = append(sinks, s)
		if cfg.Report.Sink == "both" {
			sinks = append(sinks, report.NewConsoleSink(os.Stdout))
		}
	}

	closer := func() {
		if sqliteSink != nil {
			if err := sqliteSink.Close(); err != nil {
				logrus.Warnf("failed to close results database: %v", err)
			}
		}
	}
	return report.NewMultiSink(sinks...), sqliteSink, closer, nil
}

// ensureRunnerDir creates the .cflint-runner directory under root and
// returns its path.
func ensureRunnerDir(root string) string {
	dir := filepath.Join(root, ".cflint-runner")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		logrus.Warnf("failed to create %s: %v", dir, err)
		return os.TempDir()
	}
	return dir
}
