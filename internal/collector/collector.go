package collector

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Category classifies a per-file analysis failure.
type Category int

// Categories are tested in this priority order; the first match wins.
const (
	ParserNullSafety Category = iota
	StructuralParser
	MissingDocumentStructure
	MalformedTag
	DomainSyntax
	FileAccess
	Uncategorized
)

var categoryDescriptions = map[Category]string{
	ParserNullSafety:         "Parser Null Safety Issues",
	StructuralParser:         "HTML Parser Failures",
	MissingDocumentStructure: "Missing HTML Document Structure",
	MalformedTag:             "Malformed HTML/CFML Tags",
	DomainSyntax:             "CFML Syntax Errors",
	FileAccess:               "File Access/IO Errors",
	Uncategorized:            "Unknown/Uncategorized Errors",
}

// Description returns the human-readable name of the category.
func (c Category) Description() string {
	if d, ok := categoryDescriptions[c]; ok {
		return d
	}
	return "Unknown/Uncategorized Errors"
}

func (c Category) String() string { return c.Description() }

// Categorize buckets a failure by its message. The tests below run in a
// fixed priority order because messages are ambiguous: a message matching
// both "tag" and "html parser" must always land in the same bucket.
func Categorize(err error) Category {
	if err == nil {
		return Uncategorized
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "nullpointerexception"),
		strings.Contains(msg, "nil pointer"),
		strings.Contains(msg, "parsertag"),
		strings.Contains(msg, "tag.getelement"):
		return ParserNullSafety

	case strings.Contains(msg, "jericho"),
		strings.Contains(msg, "html parser"),
		strings.Contains(msg, "malformed html"):
		return StructuralParser

	case strings.Contains(msg, "missing") &&
		(strings.Contains(msg, "doctype") ||
			strings.Contains(msg, "<html>") ||
			strings.Contains(msg, "<head>") ||
			strings.Contains(msg, "<body>")):
		return MissingDocumentStructure

	case strings.Contains(msg, "tag") &&
		(strings.Contains(msg, "malformed") ||
			strings.Contains(msg, "unclosed") ||
			strings.Contains(msg, "invalid")):
		return MalformedTag

	case strings.Contains(msg, "cfml"),
		strings.Contains(msg, "coldfusion"),
		strings.Contains(msg, "cflint"),
		strings.Contains(msg, "syntax error"),
		strings.Contains(msg, "parse error"):
		return DomainSyntax

	case strings.Contains(msg, "no such file"),
		strings.Contains(msg, "permission"),
		strings.Contains(msg, "file"),
		strings.Contains(msg, "access"):
		return FileAccess
	}

	return Uncategorized
}

// ParseError is the recorded, categorized failure for one file. A later
// retry that succeeds does not remove the record; it reflects the final
// failure observed for that file in this run.
type ParseError struct {
	FilePath  string
	Message   string
	Category  Category
	Cause     error
	Timestamp time.Time
}

// Collector accumulates categorized per-file failures across a run and
// computes aggregate statistics. Safe for concurrent use.
type Collector struct {
	mu             sync.Mutex
	errorsByFile   map[string]ParseError
	order          []string // insertion order of first failure per file
	categoryCounts map[Category]int
}

// New creates an empty Collector.
func New() *Collector {
	return &Collector{
		errorsByFile:   make(map[string]ParseError),
		categoryCounts: make(map[Category]int),
	}
}

// AddError records a categorized failure for key (normally a file path).
// A second failure for the same key replaces the previous record.
func (c *Collector) AddError(key string, cause error) {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	category := Categorize(cause)

	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.errorsByFile[key]; ok {
		c.categoryCounts[prev.Category]--
	} else {
		c.order = append(c.order, key)
	}
	c.errorsByFile[key] = ParseError{
		FilePath:  key,
		Message:   msg,
		Category:  category,
		Cause:     cause,
		Timestamp: time.Now(),
	}
	c.categoryCounts[category]++

	logrus.Debugf("categorized parsing error for %s: %s - %s", key, category, msg)
}

// ErrorCount returns the number of distinct keys with recorded failures.
func (c *Collector) ErrorCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.errorsByFile)
}

// CountByCategory returns the number of recorded failures in category.
func (c *Collector) CountByCategory(category Category) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.categoryCounts[category]
}

// SuccessRate returns the percentage of attempted files without a recorded
// failure. Zero attempts counts as fully successful.
func (c *Collector) SuccessRate(totalAttempted int) float64 {
	if totalAttempted == 0 {
		return 100.0
	}
	c.mu.Lock()
	failed := len(c.errorsByFile)
	c.mu.Unlock()
	return float64(totalAttempted-failed) / float64(totalAttempted) * 100.0
}

// maxReportExamples bounds the per-file listing in Report.
const maxReportExamples = 10

// Report renders an aggregate error report: category counts, percentages,
// remediation hints, and a bounded list of example failures.
func (c *Collector) Report() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.errorsByFile) == 0 {
		return "No parsing errors detected."
	}

	var b strings.Builder
	b.WriteString("\n=== CFLint Parsing Error Report ===\n")
	fmt.Fprintf(&b, "Total files with errors: %d\n\n", len(c.errorsByFile))

	b.WriteString("Error Categories:\n")
	categories := make([]Category, 0, len(c.categoryCounts))
	for cat, n := range c.categoryCounts {
		if n > 0 {
			categories = append(categories, cat)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
	for _, cat := range categories {
		n := c.categoryCounts[cat]
		pct := float64(n) / float64(len(c.errorsByFile)) * 100
		fmt.Fprintf(&b, "  %s: %d (%.1f%%)\n", cat.Description(), n, pct)
	}
	b.WriteString("\n")

	c.writeRecommendations(&b)

	fmt.Fprintf(&b, "Failed Files (showing first %d):\n", maxReportExamples)
	for i, key := range c.order {
		if i >= maxReportExamples {
			fmt.Fprintf(&b, "  ... and %d more files\n", len(c.order)-maxReportExamples)
			break
		}
		e := c.errorsByFile[key]
		fmt.Fprintf(&b, "  %s: [%s] %s\n", e.FilePath, e.Category, e.Message)
	}

	return b.String()
}

// writeRecommendations appends remediation hints for the categories seen.
// Caller holds the lock.
func (c *Collector) writeRecommendations(b *strings.Builder) {
	b.WriteString("Recommendations:\n")

	if c.categoryCounts[MissingDocumentStructure] > 0 {
		b.WriteString("  - Add proper HTML document structure (DOCTYPE, <html>, <head>, <body>) to template fragments\n")
	}
	if c.categoryCounts[MalformedTag] > 0 {
		b.WriteString("  - Review HTML/CFML tag structure - ensure proper opening/closing tags\n")
		b.WriteString("  - Move <script> and <style> elements inside <head> tags\n")
	}
	if c.categoryCounts[ParserNullSafety] > 0 || c.categoryCounts[StructuralParser] > 0 {
		b.WriteString("  - Consider lenient parsing mode for legacy templates\n")
		b.WriteString("  - These files may be template fragments - review configuration options\n")
	}
	if c.categoryCounts[DomainSyntax] > 0 {
		b.WriteString("  - Review CFML syntax - check for invalid tag usage or malformed expressions\n")
	}
	b.WriteString("  - Enable debug logging for detailed error information\n\n")
}

// Errors returns the recorded failures in first-failure order.
func (c *Collector) Errors() []ParseError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ParseError, 0, len(c.order))
	for _, key := range c.order {
		out = append(out, c.errorsByFile[key])
	}
	return out
}

// Clear drops all recorded failures.
func (c *Collector) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errorsByFile = make(map[string]ParseError)
	c.order = nil
	c.categoryCounts = make(map[Category]int)
}
