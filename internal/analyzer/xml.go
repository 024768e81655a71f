package analyzer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// xmlHeader and the issues wrapper make the isolated-mode artifact a
// well-formed document in the engine's own schema, so the importer treats
// batch and isolated output identically.
const (
	xmlHeader    = "<?xml version=\"1.0\" encoding=\"UTF-8\" ?>\n"
	issuesOpen   = "<issues version=\"1.0\">\n"
	issuesClose  = "</issues>\n"
	fragmentOpen = "<issue"
	fragmentEnd  = "</issue>"
)

// extractIssueFragments cuts the <issue>...</issue> sequence out of a
// complete engine result document, dropping the XML declaration and the
// wrapping root element. Returns "" when the document holds no issues.
func extractIssueFragments(doc string) string {
	start := indexIssueTag(doc)
	end := strings.LastIndex(doc, fragmentEnd)
	if start < 0 || end < start {
		return ""
	}
	return doc[start : end+len(fragmentEnd)]
}

// indexIssueTag finds the first "<issue" opener whose tag name ends there,
// so the "<issues" root element never matches.
func indexIssueTag(doc string) int {
	for i := 0; ; {
		idx := strings.Index(doc[i:], fragmentOpen)
		if idx < 0 {
			return -1
		}
		pos := i + idx
		next := pos + len(fragmentOpen)
		if next >= len(doc) {
			return -1
		}
		switch doc[next] {
		case ' ', '\t', '\r', '\n', '>', '/':
			return pos
		}
		i = next
	}
}

// writeComment emits an HTML-style comment marker into the result artifact
// for debugging visibility. "--" is not legal inside XML comments, so it is
// softened first.
func writeComment(w io.Writer, text string) {
	fmt.Fprintf(w, "<!-- %s -->\n", strings.ReplaceAll(text, "--", "- -"))
}

// writeDegradedIssues renders fallback findings in the engine's XML schema.
func writeDegradedIssues(w io.Writer, issues []DegradedIssue) {
	fmt.Fprint(w, "<!-- FALLBACK_ANALYSIS_RESULTS -->\n")
	for _, issue := range issues {
		fmt.Fprintf(w,
			"<issue severity=\"%s\" id=\"%s\" message=\"%s\" category=\"FALLBACK_ANALYSIS\" abbrev=\"%s\">\n"+
				"  <location file=\"%s\" fileName=\"%s\" function=\"\" column=\"%d\" line=\"%d\" message=\"%s\" variable=\"\">\n"+
				"    <Expression><![CDATA[%s]]></Expression>\n"+
				"  </location>\n"+
				"</issue>\n",
			escapeXML(issue.Severity),
			escapeXML(issue.RuleID),
			escapeXML(issue.Message),
			escapeXML(issue.RuleID),
			escapeXML(issue.FilePath),
			escapeXML(filepath.Base(issue.FilePath)),
			issue.Column,
			issue.Line,
			escapeXML(issue.Message),
			strings.ReplaceAll(issue.Evidence, "]]>", "]] >"),
		)
	}
}

var xmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\"", "&quot;",
	"'", "&apos;",
)

func escapeXML(s string) string {
	return xmlEscaper.Replace(s)
}
