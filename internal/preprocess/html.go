// Package preprocess implements the markup-repair preprocessing strategy:
// it rewrites CFML files so the engine's HTML parser does not choke on
// template fragments, unclosed self-closing tags, or unquoted attributes.
// The original file is never modified; the orchestrator analyzes a
// temporary artifact and maps issue paths back.
package preprocess

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"
)

var (
	// needsWrapperPattern flags fragment files with CFML or HTML-ish
	// content but no enclosing document.
	needsWrapperPattern = regexp.MustCompile(`(?is)<cf|<script|<style|<link|<meta`)

	// unclosedCFTagPattern matches CFML tags that are self-closing by
	// nature but written without the trailing slash.
	unclosedCFTagPattern = regexp.MustCompile(`(?im)<(cf(?:set|param|include|location|header|cookie|log|dump|abort|break|continue|exit)\b[^>/]*)>`)

	// scriptWithCFMLPattern matches script blocks whose body embeds CFML
	// tags, which confuses structural HTML parsers.
	scriptWithCFMLPattern = regexp.MustCompile(`(?is)<script[^>]*>([^<]*(?:<cf[^>]*>[^<]*)*)</script>`)

	// malformedAttributePattern matches unquoted attribute values inside
	// tags. The tag name is captured so CFML tags can be skipped: inside
	// <cfset x = 1> the "value" is an expression, not an attribute.
	malformedAttributePattern = regexp.MustCompile(`(?i)(<([a-z]+)[^>]*?)\s+([a-z-]+)\s*=\s*([^"'\s>]+)(\s|>)`)
)

// HTMLPreprocessor repairs common markup problems before engine analysis.
// The zero value is disabled; use New for the configured variant.
type HTMLPreprocessor struct {
	enabled                bool
	addHTMLWrapper         bool
	fixUnclosedTags        bool
	fixMalformedAttributes bool
}

// New creates a preprocessor with all repairs active when enabled.
func New(enabled bool) *HTMLPreprocessor {
	return &HTMLPreprocessor{
		enabled:                enabled,
		addHTMLWrapper:         true,
		fixUnclosedTags:        true,
		fixMalformedAttributes: true,
	}
}

// Transform reads path, applies the enabled repairs, and reports whether
// the content changed. Any repair failure falls back to the original
// content rather than failing the file.
func (p *HTMLPreprocessor) Transform(path string) (string, bool, error) {
	if !p.enabled {
		return "", false, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, fmt.Errorf("reading %s for preprocessing: %w", path, err)
	}
	original := string(data)
	content := original

	if p.fixMalformedAttributes {
		content = quoteMalformedAttributes(content)
	}
	if p.fixUnclosedTags {
		content = closeUnclosedCFTags(content)
	}
	content = guardScriptCFML(content)
	if p.addHTMLWrapper && needsWrapper(content) {
		content = wrapWithHTMLStructure(content)
	}

	if content == original {
		return "", false, nil
	}
	logrus.Debugf("preprocessed %s: %d chars -> %d chars", path, len(original), len(content))
	return content, true, nil
}

// needsWrapper reports whether content is a fragment that should be
// wrapped in a minimal HTML document.
func needsWrapper(content string) bool {
	if strings.TrimSpace(content) == "" {
		return false
	}
	if strings.Contains(strings.ToLower(content), "<html") {
		return false
	}
	return needsWrapperPattern.MatchString(content)
}

// wrapWithHTMLStructure surrounds a fragment with a minimal document so
// structural parsers find the DOCTYPE/html/head/body they expect.
func wrapWithHTMLStructure(content string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n")
	b.WriteString("<html>\n<head>\n    <title>ColdFusion File</title>\n    <meta charset=\"UTF-8\" />\n</head>\n<body>\n")
	b.WriteString("<!-- PREPROCESSOR: HTML wrapper added for parsing -->\n")
	b.WriteString(content)
	b.WriteString("\n</body>\n</html>\n")
	return b.String()
}

// closeUnclosedCFTags rewrites self-closing CFML tags written without the
// trailing slash, e.g. <cfset x = 1> becomes <cfset x = 1 />.
func closeUnclosedCFTags(content string) string {
	return unclosedCFTagPattern.ReplaceAllString(content, "<$1 />")
}

// quoteMalformedAttributes adds quotes around bare attribute values in HTML
// tags. CFML tags carry expressions in the same shape and are left alone.
func quoteMalformedAttributes(content string) string {
	return malformedAttributePattern.ReplaceAllStringFunc(content, func(tag string) string {
		m := malformedAttributePattern.FindStringSubmatch(tag)
		if m == nil || strings.HasPrefix(strings.ToLower(m[2]), "cf") {
			return tag
		}
		return m[1] + " " + m[3] + `="` + m[4] + `"` + m[5]
	})
}

// guardScriptCFML wraps script bodies that embed CFML in a CDATA guard so
// the HTML parser does not treat the CFML tags as markup.
func guardScriptCFML(content string) string {
	return scriptWithCFMLPattern.ReplaceAllStringFunc(content, func(block string) string {
		m := scriptWithCFMLPattern.FindStringSubmatch(block)
		if m == nil || !strings.Contains(strings.ToLower(m[1]), "<cf") {
			return block
		}
		return "<script type=\"text/javascript\">\n//<![CDATA[\n" + m[1] + "\n//]]>\n</script>"
	})
}
