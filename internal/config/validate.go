package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyCommand indicates a missing engine command
	ErrEmptyCommand = errors.New("empty engine command")

	// ErrInvalidMode indicates an unsupported analysis mode
	ErrInvalidMode = errors.New("invalid analysis mode")

	// ErrInvalidReporting indicates an unsupported error reporting level
	ErrInvalidReporting = errors.New("invalid error reporting level")

	// ErrInvalidTimeout indicates an invalid timeout setting
	ErrInvalidTimeout = errors.New("invalid timeout")

	// ErrInvalidThreshold indicates an out-of-range threshold
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrInvalidImportLimit indicates invalid import ceilings
	ErrInvalidImportLimit = errors.New("invalid import limit")

	// ErrInvalidSink indicates an unsupported report sink
	ErrInvalidSink = errors.New("invalid report sink")
)

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validateEngine(&cfg.Engine); err != nil {
		errs = append(errs, err)
	}
	if err := validateAnalysis(&cfg.Analysis); err != nil {
		errs = append(errs, err)
	}
	if err := validateImport(&cfg.Import); err != nil {
		errs = append(errs, err)
	}
	if err := validateReport(&cfg.Report); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateEngine(cfg *EngineConfig) error {
	if strings.TrimSpace(cfg.Command) == "" {
		return fmt.Errorf("%w: engine.command is required", ErrEmptyCommand)
	}
	return nil
}

func validateAnalysis(cfg *AnalysisConfig) error {
	var errs []error

	mode := strings.ToLower(cfg.Mode)
	if mode != "strict" && mode != "lenient" && mode != "fragment" {
		errs = append(errs, fmt.Errorf("%w: must be 'strict', 'lenient' or 'fragment', got '%s'", ErrInvalidMode, cfg.Mode))
	}

	reporting := strings.ToLower(cfg.ErrorReporting)
	if reporting != "none" && reporting != "summary" && reporting != "detailed" {
		errs = append(errs, fmt.Errorf("%w: must be 'none', 'summary' or 'detailed', got '%s'", ErrInvalidReporting, cfg.ErrorReporting))
	}

	if cfg.ErrorThreshold < 0 || cfg.ErrorThreshold > 100 {
		errs = append(errs, fmt.Errorf("%w: error_threshold must be a percentage, got %d", ErrInvalidThreshold, cfg.ErrorThreshold))
	}

	if cfg.FileTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("%w: file_timeout_seconds must be positive, got %d", ErrInvalidTimeout, cfg.FileTimeoutSeconds))
	}

	if cfg.MaxConsecutiveTimeouts <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_consecutive_timeouts must be positive, got %d", ErrInvalidThreshold, cfg.MaxConsecutiveTimeouts))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateImport(cfg *ImportConfig) error {
	var errs []error

	if cfg.MaxResultBytes <= 0 {
		errs = append(errs, fmt.Errorf("%w: max_result_bytes must be positive, got %d", ErrInvalidImportLimit, cfg.MaxResultBytes))
	}

	// Zero disables the count ceiling; negative makes no sense.
	if cfg.MaxIssueCount < 0 {
		errs = append(errs, fmt.Errorf("%w: max_issue_count cannot be negative, got %d", ErrInvalidImportLimit, cfg.MaxIssueCount))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

func validateReport(cfg *ReportConfig) error {
	var errs []error

	sink := strings.ToLower(cfg.Sink)
	if sink != "console" && sink != "sqlite" && sink != "both" {
		errs = append(errs, fmt.Errorf("%w: must be 'console', 'sqlite' or 'both', got '%s'", ErrInvalidSink, cfg.Sink))
	}

	if (sink == "sqlite" || sink == "both") && strings.TrimSpace(cfg.Database) == "" {
		errs = append(errs, fmt.Errorf("%w: report.database is required for the sqlite sink", ErrInvalidSink))
	}

	if len(errs) > 0 {
		return joinErrors(errs)
	}

	return nil
}

// joinErrors combines multiple errors into a single error with clear formatting.
func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}

	if len(errs) == 1 {
		return errs[0]
	}

	var msgs []string
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}

	return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}
