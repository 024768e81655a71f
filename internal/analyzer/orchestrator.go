// Package analyzer orchestrates the external lint engine over a set of
// ColdFusion files. It turns the fragile single-file batch tool into a
// robust pipeline: a batch pass where the mode allows it, an isolated
// per-file pass with timeout enforcement and a consecutive-timeout circuit
// breaker, optional preprocessing and fallback strategies, and a combined
// engine-format result artifact for the importer.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mwinfie/sonar-coldfusion/internal/collector"
	"github.com/mwinfie/sonar-coldfusion/internal/engine"
	"github.com/mwinfie/sonar-coldfusion/internal/platform"
)

// resultFileName is the combined result artifact within the work directory.
const resultFileName = "cflint-result.xml"

// progressLogEvery controls the cadence of isolated-analysis progress logs.
const progressLogEvery = 100

// Options configure a run.
type Options struct {
	Mode                   Mode
	FileTimeout            time.Duration
	MaxConsecutiveTimeouts int
	// ErrorThreshold is the failure-rate percentage above which the run
	// summary escalates.
	ErrorThreshold int
	// ErrorReporting is one of "none", "summary", "detailed".
	ErrorReporting string
	// SkipMalformed keeps malformed files out of the failure escalation;
	// they are still recorded by the collector.
	SkipMalformed bool
	// WorkDir holds the result artifact and temporary files. Owned
	// exclusively by one run.
	WorkDir string
}

// Progress receives run lifecycle notifications, e.g. for a CLI progress
// bar. Implementations must be cheap; they are called on the orchestration
// goroutine.
type Progress interface {
	OnAnalysisStart(totalFiles int)
	OnFileAnalyzed(name string)
	OnAnalysisComplete(report *RunReport)
}

type nopProgress struct{}

func (nopProgress) OnAnalysisStart(int)           {}
func (nopProgress) OnFileAnalyzed(string)         {}
func (nopProgress) OnAnalysisComplete(*RunReport) {}

// Orchestrator runs the engine over a file set according to the configured
// mode and feeds failures to the collector.
type Orchestrator struct {
	opts     Options
	engine   engine.Engine
	errors   *collector.Collector
	pre      PreprocessStrategy
	fallback FallbackStrategy
	progress Progress
}

// NewOrchestrator wires an Orchestrator. Nil strategies default to the
// documented no-op variants; a nil progress sink is silently dropped.
func NewOrchestrator(opts Options, eng engine.Engine, errs *collector.Collector,
	pre PreprocessStrategy, fallback FallbackStrategy, progress Progress) *Orchestrator {

	if pre == nil {
		pre = NoPreprocess{}
	}
	if fallback == nil {
		fallback = NoFallback{}
	}
	if progress == nil {
		progress = nopProgress{}
	}
	return &Orchestrator{
		opts:     opts,
		engine:   eng,
		errors:   errs,
		pre:      pre,
		fallback: fallback,
		progress: progress,
	}
}

// Run analyzes files and returns the immutable run report. Per-file
// failures never abort the run; only strict-mode batch failure and a
// run-level setup error do. A tripped circuit breaker ends the run early
// but still returns the report for the files processed so far.
func (o *Orchestrator) Run(ctx context.Context, files []*platform.SourceFile) (*RunReport, error) {
	started := time.Now()
	state := &RunState{TotalFiles: len(files)}
	resultPath := filepath.Join(o.opts.WorkDir, resultFileName)

	logrus.Infof("starting analysis of %d ColdFusion files in %s mode", len(files), o.opts.Mode)

	batchOK := false
	if o.opts.Mode.AttemptBatch() {
		if err := o.runBatch(ctx, files, resultPath); err != nil {
			o.errors.AddError("BATCH_ANALYSIS", err)
			logrus.Warnf("batch analysis failed: %v", err)
			if !o.opts.Mode.ContinueOnError() {
				return nil, fmt.Errorf("batch analysis failed in strict mode, no error recovery attempted: %w", err)
			}
			logrus.Warn("falling through to isolated per-file analysis")
		} else {
			batchOK = true
			state.Succeeded = len(files)
			logrus.Infof("batch analysis completed for all %d files", len(files))
		}
	}

	if !batchOK && o.opts.Mode.ContinueOnError() {
		if err := o.runIsolated(ctx, files, resultPath, state); err != nil {
			return nil, err
		}
	}

	rate := o.errors.SuccessRate(state.TotalFiles)
	o.logResults(state, rate)

	report := state.report(resultPath, rate, started)
	o.progress.OnAnalysisComplete(report)
	return report, nil
}

// runBatch invokes the engine once over the whole file set. Fast, but a
// single malformed file can poison the entire invocation.
func (o *Orchestrator) runBatch(ctx context.Context, files []*platform.SourceFile, resultPath string) error {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.AbsolutePath()
	}
	logrus.Infof("attempting batch analysis of %d files", len(paths))
	return o.engine.Scan(ctx, paths, resultPath)
}

// runIsolated analyzes files one at a time on a reused worker pool,
// assembling a well-formed result document from per-file fragments.
func (o *Orchestrator) runIsolated(ctx context.Context, files []*platform.SourceFile, resultPath string, state *RunState) error {
	out, err := os.Create(resultPath)
	if err != nil {
		return fmt.Errorf("creating result artifact: %w", err)
	}
	defer out.Close()

	if _, err := out.WriteString(xmlHeader + issuesOpen); err != nil {
		return fmt.Errorf("writing result header: %w", err)
	}

	pool := newWorkerPool()
	defer pool.close()

	o.progress.OnAnalysisStart(len(files))

	for i, file := range files {
		o.analyzeIsolated(ctx, file, out, state, pool)
		o.progress.OnFileAnalyzed(file.Name())

		if state.BreakerTripped {
			logrus.Error("circuit breaker triggered - stopping analysis early")
			break
		}
		if ctx.Err() != nil {
			logrus.Warnf("analysis cancelled after %d/%d files", i+1, len(files))
			break
		}

		if (i+1)%progressLogEvery == 0 {
			logrus.Infof("progress: %d/%d files analyzed - %d successful, %d failed, %d timeouts",
				i+1, len(files), state.Succeeded, state.Failed, state.TimedOut)
		}
	}

	if _, err := out.WriteString(issuesClose); err != nil {
		return fmt.Errorf("writing result footer: %w", err)
	}
	return nil
}

// analyzeIsolated runs one file through preprocessing, the deadline-guarded
// engine invocation, and failure recovery. Every outcome is categorized;
// the temporary preprocessing artifact is removed no matter which path is
// taken.
func (o *Orchestrator) analyzeIsolated(ctx context.Context, file *platform.SourceFile, out *os.File, state *RunState, pool *workerPool) {
	path := file.AbsolutePath()
	actualPath, tempArtifact := o.prepareFile(path)
	if tempArtifact != "" {
		defer func() {
			if err := os.Remove(tempArtifact); err != nil && !os.IsNotExist(err) {
				logrus.Debugf("failed to clean up temporary artifact %s: %v", tempArtifact, err)
			}
		}()
	}

	logrus.Debugf("analyzing %s with %s timeout", path, o.opts.FileTimeout)

	fragment, err := pool.submit(ctx, o.opts.FileTimeout, func(jobCtx context.Context) (string, error) {
		return o.scanSingle(jobCtx, actualPath)
	})

	switch {
	case err == nil:
		if tempArtifact != "" {
			// Issues must point at the real file, not the preprocessed copy.
			fragment = strings.ReplaceAll(fragment, tempArtifact, path)
		}
		if strings.TrimSpace(fragment) != "" {
			fmt.Fprintln(out, fragment)
		}
		state.Succeeded++
		state.ConsecutiveTimeouts = 0

	case errors.Is(err, ErrFileTimeout):
		state.Failed++
		state.TimedOut++
		state.ConsecutiveTimeouts++
		logrus.Warnf("file analysis TIMEOUT after %s: %s (consecutive timeouts: %d)",
			o.opts.FileTimeout, path, state.ConsecutiveTimeouts)

		if state.ConsecutiveTimeouts >= o.opts.MaxConsecutiveTimeouts {
			msg := fmt.Sprintf("circuit breaker triggered: %d consecutive timeouts reached threshold %d; "+
				"this indicates systematic issues with the engine parsing this codebase; "+
				"consider raising analysis.file_timeout_seconds or reviewing problematic files",
				state.ConsecutiveTimeouts, o.opts.MaxConsecutiveTimeouts)
			logrus.Error(msg)
			o.errors.AddError(path, errors.New(msg))
			writeComment(out, fmt.Sprintf("TIMEOUT: File=%s, Type=CIRCUIT_BREAKER_TRIGGERED, Timeout=%s, ConsecutiveTimeouts=%d",
				path, o.opts.FileTimeout, state.ConsecutiveTimeouts))
			state.BreakerTripped = true
			return
		}

		o.errors.AddError(path, fmt.Errorf("%w after %s", ErrFileTimeout, o.opts.FileTimeout))
		writeComment(out, fmt.Sprintf("TIMEOUT: File=%s, Type=ANALYSIS_TIMEOUT, Timeout=%s, ConsecutiveTimeouts=%d",
			path, o.opts.FileTimeout, state.ConsecutiveTimeouts))
		o.attemptFallback(path, out)

	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		state.Failed++
		o.errors.AddError(path, err)
		logrus.Warnf("file analysis interrupted: %s", path)

	default:
		// An engine failure, not a timeout. The consecutive-timeout streak
		// is left unchanged: only timeouts advance or reset it.
		state.Failed++
		o.errors.AddError(path, err)
		logrus.Warnf("file analysis failed: %s - %v", path, err)

		o.attemptFallback(path, out)
		writeComment(out, fmt.Sprintf("PARSING_ERROR: File=%s, Error=%s, Type=%s",
			path, err.Error(), collector.Categorize(err)))
	}
}

// prepareFile applies the preprocessing strategy. When content changed, it
// is written to a temporary artifact in the work directory and that path is
// analyzed instead of the original.
func (o *Orchestrator) prepareFile(path string) (actualPath, tempArtifact string) {
	content, changed, err := o.pre.Transform(path)
	if err != nil {
		logrus.Warnf("preprocessing failed for %s: %v - using original file", path, err)
		return path, ""
	}
	if !changed {
		return path, ""
	}

	tmp, err := os.CreateTemp(o.opts.WorkDir, "preprocessed-*"+filepath.Ext(path))
	if err != nil {
		logrus.Warnf("failed to create preprocessing artifact for %s: %v - using original file", path, err)
		return path, ""
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		logrus.Warnf("failed to write preprocessing artifact for %s: %v - using original file", path, err)
		return path, ""
	}
	tmp.Close()

	logrus.Debugf("using preprocessed artifact for analysis: %s -> %s", path, tmp.Name())
	return tmp.Name(), tmp.Name()
}

// scanSingle runs the engine over one file into a private result file and
// extracts the issue fragments for the combined artifact. Runs on a worker
// goroutine.
func (o *Orchestrator) scanSingle(ctx context.Context, path string) (string, error) {
	tmp, err := os.CreateTemp(o.opts.WorkDir, "single-*.xml")
	if err != nil {
		return "", fmt.Errorf("creating per-file result: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := o.engine.Scan(ctx, []string{path}, tmpPath); err != nil {
		return "", err
	}

	doc, err := os.ReadFile(tmpPath)
	if err != nil {
		return "", fmt.Errorf("reading per-file result: %w", err)
	}
	return extractIssueFragments(string(doc)), nil
}

// attemptFallback gives the fallback strategy a chance to produce degraded
// results for a file the engine failed on.
func (o *Orchestrator) attemptFallback(path string, out *os.File) {
	issues, err := o.fallback.Analyze(path)
	if err != nil {
		logrus.Warnf("fallback analysis failed for %s: %v", path, err)
		return
	}
	if len(issues) == 0 {
		return
	}
	logrus.Infof("fallback analysis found %d issues in %s", len(issues), path)
	writeDegradedIssues(out, issues)
}

// logResults summarizes the run: success rate, threshold evaluation, the
// detailed collector report when configured, and a structured metrics line
// for monitoring.
func (o *Orchestrator) logResults(state *RunState, successRate float64) {
	if state.Failed == 0 {
		logrus.Infof("analysis completed successfully: %d/%d files analyzed (100%%)",
			state.Succeeded, state.TotalFiles)
	} else {
		logrus.Warnf("analysis completed with partial success: %d/%d files analyzed (%.1f%%), %d files failed",
			state.Succeeded, state.TotalFiles, successRate, state.Failed)
	}

	if state.Failed > 0 && o.shouldLogDetailedErrors() {
		logrus.Infof("detailed parsing error analysis:\n%s", o.errors.Report())
	}

	failureRate := 100.0 - successRate
	if failureRate > float64(o.opts.ErrorThreshold) {
		msg := fmt.Sprintf("analysis failure rate (%.1f%%) exceeds configured threshold (%d%%); "+
			"review parsing configuration or address HTML/CFML structure issues",
			failureRate, o.opts.ErrorThreshold)
		if o.opts.Mode == ModeStrict {
			logrus.Error(msg)
		} else {
			logrus.Warn(msg)
		}
	} else if failureRate > float64(o.opts.Mode.RecommendedErrorThreshold()) {
		logrus.Warnf("analysis failure rate (%.1f%%) is above the recommended threshold for %s mode (%d%%)",
			failureRate, o.opts.Mode, o.opts.Mode.RecommendedErrorThreshold())
	}

	if state.Failed > 0 {
		logrus.Info("common fixes for parsing errors: " +
			"1) add proper HTML document structure (DOCTYPE, html, head, body tags), " +
			"2) move script/style elements inside head tags, " +
			"3) ensure proper tag closure")
	}

	logrus.WithFields(logrus.Fields{
		"total_files":      state.TotalFiles,
		"successful_files": state.Succeeded,
		"failed_files":     state.Failed,
		"timed_out_files":  state.TimedOut,
		"success_rate":     fmt.Sprintf("%.1f", successRate),
		"parsing_mode":     o.opts.Mode.String(),
		"breaker_tripped":  state.BreakerTripped,
	}).Info("analysis metrics")
}

// shouldLogDetailedErrors applies the error-reporting verbosity setting.
func (o *Orchestrator) shouldLogDetailedErrors() bool {
	switch strings.ToLower(o.opts.ErrorReporting) {
	case "detailed":
		return true
	case "summary":
		return o.errors.ErrorCount() > 0
	default:
		return false
	}
}
