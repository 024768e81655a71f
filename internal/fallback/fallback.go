// Package fallback is the regex-based degraded analyzer used when the
// primary engine cannot parse a file. It only carries high-confidence,
// low-false-positive rules detectable through text matching; it is a
// safety net, not a replacement for real rule evaluation.
package fallback

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mwinfie/sonar-coldfusion/internal/analyzer"
)

// rule is one regex-detectable finding.
type rule struct {
	id       string
	severity string
	message  string
	pattern  *regexp.Regexp
}

var rules = []rule{
	{
		id:       "CF_SQL_INJECTION_RISK",
		severity: "CRITICAL",
		message:  "Potential SQL injection vulnerability: direct use of URL/Form/CGI variables in query",
		pattern:  regexp.MustCompile(`(?is)<cfquery[^>]*>.*?#(?:url|form|cgi)\.[^#]*#.*?</cfquery>`),
	},
	{
		id:       "CF_XSS_OUTPUT_RISK",
		severity: "HIGH",
		message:  "Potential XSS vulnerability: unescaped output of user input",
		pattern:  regexp.MustCompile(`(?i)#(?:url|form|cgi)\.[^#]*#`),
	},
	{
		id:       "CF_QUERY_IN_LOOP",
		severity: "MEDIUM",
		message:  "Performance issue: database query inside loop can cause N+1 query problems",
		pattern:  regexp.MustCompile(`(?is)<cfloop[^>]*>.*?<cfquery[^>]*>.*?</cfquery>.*?</cfloop>`),
	},
	{
		id:       "CF_HARDCODED_PASSWORD",
		severity: "HIGH",
		message:  "Security risk: hardcoded password found in source code",
		pattern:  regexp.MustCompile(`(?i)(?:password|pwd)\s*=\s*["'][^"']{3,}["']`),
	},
	{
		id:       "CF_HARDCODED_DATASOURCE",
		severity: "MEDIUM",
		message:  "Configuration issue: hardcoded datasource should use application settings",
		pattern:  regexp.MustCompile(`(?i)<cfquery[^>]*datasource\s*=\s*["'][^"']+["'][^>]*>`),
	},
	{
		id:       "CF_DEPRECATED_TAGS",
		severity: "LOW",
		message:  "Code quality: deprecated tag usage should be updated to modern alternatives",
		pattern:  regexp.MustCompile(`(?i)<(?:cfinsert|cfupdate|cfgridupdate|cfgrid)\b[^>]*>`),
	},
	{
		id:       "CF_DEBUG_OUTPUT",
		severity: "MEDIUM",
		message:  "Code quality: debug/development tags should not be in production code",
		pattern:  regexp.MustCompile(`(?i)<(?:cfdump|cfabort|cftrace)\b[^>]*>`),
	},
	{
		id:       "CF_COMPLEX_EXPRESSION",
		severity: "LOW",
		message:  "Code quality: complex expressions should be broken into simpler components",
		pattern:  regexp.MustCompile(`#[^#]{80,}#`),
	},
}

// maxEvidenceLen bounds the matched snippet carried on a finding.
const maxEvidenceLen = 100

// Analyzer applies the rule table to raw file content, capped per file to
// keep degraded output from drowning real findings.
type Analyzer struct {
	enabled          bool
	maxIssuesPerFile int
}

// New creates an Analyzer. maxIssuesPerFile caps findings per file; values
// below 1 fall back to 50.
func New(enabled bool, maxIssuesPerFile int) *Analyzer {
	if maxIssuesPerFile < 1 {
		maxIssuesPerFile = 50
	}
	return &Analyzer{enabled: enabled, maxIssuesPerFile: maxIssuesPerFile}
}

// Analyze scans path with the rule table. A disabled analyzer reports
// nothing and no error.
func (a *Analyzer) Analyze(path string) ([]analyzer.DegradedIssue, error) {
	if !a.enabled {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s for fallback analysis: %w", path, err)
	}
	content := string(data)

	var issues []analyzer.DegradedIssue
	for _, r := range rules {
		if len(issues) >= a.maxIssuesPerFile {
			logrus.Debugf("reached maximum fallback issues per file (%d) for %s", a.maxIssuesPerFile, path)
			break
		}
		for _, loc := range r.pattern.FindAllStringIndex(content, -1) {
			if len(issues) >= a.maxIssuesPerFile {
				break
			}
			line, column := position(content, loc[0])
			evidence := strings.TrimSpace(content[loc[0]:loc[1]])
			if len(evidence) > maxEvidenceLen {
				evidence = evidence[:maxEvidenceLen-3] + "..."
			}
			issues = append(issues, analyzer.DegradedIssue{
				RuleID:   r.id,
				Severity: r.severity,
				Message:  r.message,
				FilePath: path,
				Line:     line,
				Column:   column,
				Evidence: evidence,
			})
		}
	}

	if len(issues) > 0 {
		logrus.Debugf("fallback analysis found %d issues in %s", len(issues), path)
	}
	return issues, nil
}

// position converts a byte offset into 1-based line and column numbers.
func position(content string, offset int) (line, column int) {
	line, column = 1, 1
	for i := 0; i < offset && i < len(content); i++ {
		if content[i] == '\n' {
			line++
			column = 1
		} else {
			column++
		}
	}
	return line, column
}
