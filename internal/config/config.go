package config

import (
	"sort"
	"strings"
)

// Config represents the complete runner configuration.
// It can be loaded from .cflint-runner/config.yml with environment variable
// overrides.
type Config struct {
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Paths      PathsConfig      `yaml:"paths" mapstructure:"paths"`
	Analysis   AnalysisConfig   `yaml:"analysis" mapstructure:"analysis"`
	Preprocess PreprocessConfig `yaml:"preprocess" mapstructure:"preprocess"`
	Fallback   FallbackConfig   `yaml:"fallback" mapstructure:"fallback"`
	Import     ImportConfig     `yaml:"import" mapstructure:"import"`
	Report     ReportConfig     `yaml:"report" mapstructure:"report"`
}

// EngineConfig names the external lint executable.
type EngineConfig struct {
	Command string   `yaml:"command" mapstructure:"command"` // executable name or path
	Args    []string `yaml:"args" mapstructure:"args"`       // extra args before the standard ones
}

// PathsConfig defines which files to analyze and which to skip.
type PathsConfig struct {
	Sources []string `yaml:"sources" mapstructure:"sources"` // glob patterns for source files
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to ignore
}

// AnalysisConfig tunes the orchestration strategy.
type AnalysisConfig struct {
	Mode                   string `yaml:"mode" mapstructure:"mode"`                                       // strict | lenient | fragment
	SkipMalformed          bool   `yaml:"skip_malformed" mapstructure:"skip_malformed"`                   // continue past unparseable files
	ErrorReporting         string `yaml:"error_reporting" mapstructure:"error_reporting"`                 // none | summary | detailed
	ErrorThreshold         int    `yaml:"error_threshold" mapstructure:"error_threshold"`                 // failure-rate percent before warning hard
	FileTimeoutSeconds     int    `yaml:"file_timeout_seconds" mapstructure:"file_timeout_seconds"`       // per-file engine timeout
	MaxConsecutiveTimeouts int    `yaml:"max_consecutive_timeouts" mapstructure:"max_consecutive_timeouts"` // circuit breaker trip point
}

// PreprocessConfig toggles the HTML structure repairs applied before files
// reach the engine.
type PreprocessConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// FallbackConfig tunes the regex analysis used when the engine fails on a
// file.
type FallbackConfig struct {
	Enabled          bool `yaml:"enabled" mapstructure:"enabled"`
	MaxIssuesPerFile int  `yaml:"max_issues_per_file" mapstructure:"max_issues_per_file"`
}

// ImportConfig bounds the result artifact import.
type ImportConfig struct {
	MaxResultBytes int64 `yaml:"max_result_bytes" mapstructure:"max_result_bytes"`
	MaxIssueCount  int   `yaml:"max_issue_count" mapstructure:"max_issue_count"`
}

// ReportConfig selects where located issues go.
type ReportConfig struct {
	Sink     string `yaml:"sink" mapstructure:"sink"`         // console | sqlite | both
	Database string `yaml:"database" mapstructure:"database"` // sqlite path, relative to project root
}

// SourceExtensions extracts unique file extensions from the source
// patterns. Returns extensions with leading dot (e.g. []string{".cfm"}).
func (c *Config) SourceExtensions() []string {
	extMap := make(map[string]bool)
	for _, pattern := range c.Paths.Sources {
		if ext := extractExtension(pattern); ext != "" {
			extMap[ext] = true
		}
	}

	exts := make([]string, 0, len(extMap))
	for ext := range extMap {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// extractExtension pulls the extension out of a glob pattern like
// "**/*.cfm". Patterns without a literal extension yield "".
func extractExtension(pattern string) string {
	idx := strings.LastIndex(pattern, ".")
	if idx < 0 {
		return ""
	}
	ext := pattern[idx:]
	if strings.ContainsAny(ext, "*?[{") {
		return ""
	}
	return ext
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Command: "cflint",
			Args:    nil,
		},
		Paths: PathsConfig{
			Sources: []string{
				"**/*.cfm",
				"**/*.cfc",
				"**/*.cfml",
			},
			Ignore: []string{
				"node_modules/**",
				".git/**",
			},
		},
		Analysis: AnalysisConfig{
			Mode:                   "lenient",
			SkipMalformed:          true,
			ErrorReporting:         "summary",
			ErrorThreshold:         50,
			FileTimeoutSeconds:     30,
			MaxConsecutiveTimeouts: 10,
		},
		Preprocess: PreprocessConfig{
			Enabled: true,
		},
		Fallback: FallbackConfig{
			Enabled:          true,
			MaxIssuesPerFile: 50,
		},
		Import: ImportConfig{
			MaxResultBytes: 100 * 1024 * 1024,
			MaxIssueCount:  500_000,
		},
		Report: ReportConfig{
			Sink:     "console",
			Database: ".cflint-runner/results.db",
		},
	}
}
