package report

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ConsoleSink writes issues as plain lines, one per issue, suitable for
// terminals and CI logs.
type ConsoleSink struct {
	mu    sync.Mutex
	out   io.Writer
	count int
}

// NewConsoleSink creates a ConsoleSink writing to out; nil defaults to
// stdout.
func NewConsoleSink(out io.Writer) *ConsoleSink {
	if out == nil {
		out = os.Stdout
	}
	return &ConsoleSink{out: out}
}

// NewIssue returns a builder printing the issue on Save.
func (c *ConsoleSink) NewIssue() IssueBuilder {
	return newBuilder(func(issue Issue) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.count++

		name := "<unknown>"
		if issue.File != nil {
			name = issue.File.Name()
		}
		severity := issue.Severity
		if severity == "" {
			severity = "INFO"
		}
		fmt.Fprintf(c.out, "%s:%d [%s] %s: %s\n", name, issue.Line, severity, issue.RuleKey, issue.Message)
	})
}

// Count returns the number of issues saved so far.
func (c *ConsoleSink) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}
