// Package report defines where resolved issues go. The importer treats a
// Sink as a write-only, fire-and-forget target; sink failures are logged,
// never propagated back into the import.
package report

import "github.com/mwinfie/sonar-coldfusion/internal/platform"

// IssueBuilder assembles one located issue. Calls chain; Save submits the
// issue to the sink and must be called exactly once per builder.
type IssueBuilder interface {
	On(file *platform.SourceFile) IssueBuilder
	At(line int) IssueBuilder
	Message(text string) IssueBuilder
	ForRule(ruleKey string) IssueBuilder
	Severity(severity string) IssueBuilder
	Save()
}

// Sink accepts located issues.
type Sink interface {
	NewIssue() IssueBuilder
}

// Issue is the assembled form shared by sink implementations.
type Issue struct {
	File     *platform.SourceFile
	Line     int
	Message  string
	RuleKey  string
	Severity string
}

// builder is the common IssueBuilder backing; save is the sink-specific
// submission.
type builder struct {
	issue Issue
	save  func(Issue)
}

func newBuilder(save func(Issue)) *builder {
	return &builder{save: save}
}

func (b *builder) On(file *platform.SourceFile) IssueBuilder {
	b.issue.File = file
	return b
}

func (b *builder) At(line int) IssueBuilder {
	b.issue.Line = line
	return b
}

func (b *builder) Message(text string) IssueBuilder {
	b.issue.Message = text
	return b
}

func (b *builder) ForRule(ruleKey string) IssueBuilder {
	b.issue.RuleKey = ruleKey
	return b
}

func (b *builder) Severity(severity string) IssueBuilder {
	b.issue.Severity = severity
	return b
}

func (b *builder) Save() {
	b.save(b.issue)
}

// MultiSink fans every issue out to all wrapped sinks.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks; a single sink is returned unwrapped.
func NewMultiSink(sinks ...Sink) Sink {
	if len(sinks) == 1 {
		return sinks[0]
	}
	return &MultiSink{sinks: sinks}
}

// NewIssue returns a builder that saves through every wrapped sink.
func (m *MultiSink) NewIssue() IssueBuilder {
	return newBuilder(func(issue Issue) {
		for _, s := range m.sinks {
			b := s.NewIssue().At(issue.Line).Message(issue.Message).ForRule(issue.RuleKey).Severity(issue.Severity)
			if issue.File != nil {
				b = b.On(issue.File)
			}
			b.Save()
		}
	})
}
