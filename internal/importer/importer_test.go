package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwinfie/sonar-coldfusion/internal/include"
	"github.com/mwinfie/sonar-coldfusion/internal/platform"
	"github.com/mwinfie/sonar-coldfusion/internal/report"
)

// Test Plan for Importer:
// - Issues with resolvable locations are saved with file, line, rule,
//   severity and message
// - Only the first location of an issue is used
// - Lines within a file's physical bounds are saved directly, even when the
//   file has includes
// - Beyond-bounds lines are re-anchored via the include map with an origin
//   note appended to the message
// - Locations naming unknown files are skipped and counted
// - Lines outside even the expanded file are dropped and counted
// - Include-map lookups are rationed past the sampling thresholds
// - Artifacts over the byte ceiling are refused before parsing
// - The issue-count ceiling truncates the import
// - TIMEOUT and PARSING_ERROR markers are tallied
// - Relative location paths resolve against the project root

// capturedIssue is one Save() call observed by the capture sink.
type capturedIssue struct {
	File     string
	Line     int
	Message  string
	RuleKey  string
	Severity string
}

type captureSink struct {
	issues []capturedIssue
}

func (c *captureSink) NewIssue() report.IssueBuilder {
	return &captureBuilder{sink: c}
}

type captureBuilder struct {
	sink  *captureSink
	issue capturedIssue
}

func (b *captureBuilder) On(file *platform.SourceFile) report.IssueBuilder {
	b.issue.File = file.Name()
	return b
}
func (b *captureBuilder) At(line int) report.IssueBuilder {
	b.issue.Line = line
	return b
}
func (b *captureBuilder) Message(text string) report.IssueBuilder {
	b.issue.Message = text
	return b
}
func (b *captureBuilder) ForRule(ruleKey string) report.IssueBuilder {
	b.issue.RuleKey = ruleKey
	return b
}
func (b *captureBuilder) Severity(severity string) report.IssueBuilder {
	b.issue.Severity = severity
	return b
}
func (b *captureBuilder) Save() {
	b.sink.issues = append(b.sink.issues, b.issue)
}

func projectWithFiles(t *testing.T, files map[string]string) (*platform.FileSystem, string) {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return platform.NewFileSystem(root), root
}

func writeArtifact(t *testing.T, root, body string) string {
	t.Helper()
	path := filepath.Join(root, "result.xml")
	doc := `<?xml version="1.0" encoding="UTF-8" ?>` + "\n<issues version=\"1.0\">\n" + body + "</issues>\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))
	return path
}

func issueXML(rule, severity, file string, line int, message string) string {
	return fmt.Sprintf(
		`<issue severity="%s" id="%s" message="%s"><location file="%s" line="%d" message="%s" /></issue>`+"\n",
		severity, rule, message, file, line, message)
}

func newTestImporter(fs *platform.FileSystem, sink report.Sink, opts Options) *Importer {
	return New(fs, include.NewResolver(fs), sink, opts)
}

func TestImport_SavesResolvedIssues(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"page.cfm": "one\ntwo\nthree\n",
	})
	artifact := writeArtifact(t, root,
		issueXML("VAR_INVALID_NAME", "WARNING", filepath.Join(root, "page.cfm"), 2, "bad name"))

	sink := &captureSink{}
	stats, err := newTestImporter(fs, sink, Options{}).Import(artifact)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Imported)
	require.Len(t, sink.issues, 1)
	got := sink.issues[0]
	assert.Equal(t, "page.cfm", got.File)
	assert.Equal(t, 2, got.Line)
	assert.Equal(t, "VAR_INVALID_NAME", got.RuleKey)
	assert.Equal(t, "WARNING", got.Severity)
	assert.Equal(t, "bad name", got.Message)
}

func TestImport_UsesFirstLocationOnly(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"page.cfm": "one\ntwo\n",
	})
	pagePath := filepath.Join(root, "page.cfm")
	body := fmt.Sprintf(`<issue severity="WARNING" id="R" message="m">`+
		`<location file="%s" line="1" message="first" />`+
		`<location file="%s" line="2" message="second" /></issue>`+"\n",
		pagePath, pagePath)
	artifact := writeArtifact(t, root, body)

	sink := &captureSink{}
	stats, err := newTestImporter(fs, sink, Options{}).Import(artifact)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Imported)
	require.Len(t, sink.issues, 1)
	assert.Equal(t, 1, sink.issues[0].Line)
	assert.Equal(t, "first", sink.issues[0].Message)
}

func TestImport_InBoundsLinesBypassIncludeMap(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"root.cfm":   "before\n<cfinclude template=\"header.cfm\">\nafter\n",
		"header.cfm": "h1\nh2\nh3\n",
	})
	// Line 3 is within root.cfm's own three physical lines, so the include
	// map must not re-target it even though the expansion covers it too.
	artifact := writeArtifact(t, root,
		issueXML("R", "WARNING", filepath.Join(root, "root.cfm"), 3, "finding"))

	sink := &captureSink{}
	stats, err := newTestImporter(fs, sink, Options{}).Import(artifact)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Imported)
	require.Len(t, sink.issues, 1)
	got := sink.issues[0]
	assert.Equal(t, "root.cfm", got.File)
	assert.Equal(t, 3, got.Line)
	assert.Equal(t, "finding", got.Message)
}

func TestImport_ReanchorsIncludedFileIssues(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"root.cfm":   "before\n<cfinclude template=\"header.cfm\">\nafter\n",
		"header.cfm": "h1\nh2\nh3\n",
	})
	// Virtual line 4 is past root.cfm's three physical lines and maps to
	// physical line 3 of header.cfm.
	artifact := writeArtifact(t, root,
		issueXML("R", "WARNING", filepath.Join(root, "root.cfm"), 4, "finding"))

	sink := &captureSink{}
	stats, err := newTestImporter(fs, sink, Options{}).Import(artifact)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Imported)
	require.Len(t, sink.issues, 1)
	got := sink.issues[0]
	assert.Equal(t, "header.cfm", got.File)
	assert.Equal(t, 3, got.Line)
	assert.Equal(t, "finding (from included file: header.cfm)", got.Message)
}

func TestImport_SkipsUnknownFiles(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"page.cfm": "one\n",
	})
	artifact := writeArtifact(t, root,
		issueXML("R", "WARNING", "/elsewhere/ghost.cfm", 1, "m")+
			issueXML("R", "WARNING", filepath.Join(root, "page.cfm"), 1, "m"))

	sink := &captureSink{}
	stats, err := newTestImporter(fs, sink, Options{}).Import(artifact)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Imported)
	assert.Equal(t, 1, stats.SkippedNoFile)
	require.Len(t, sink.issues, 1)
	assert.Equal(t, "page.cfm", sink.issues[0].File)
}

func TestImport_DropsUnresolvableLines(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"page.cfm": "one\ntwo\n",
	})
	artifact := writeArtifact(t, root,
		issueXML("R", "WARNING", filepath.Join(root, "page.cfm"), 99, "m"))

	sink := &captureSink{}
	stats, err := newTestImporter(fs, sink, Options{}).Import(artifact)
	require.NoError(t, err)

	// Nothing can anchor a line outside the expanded file; the finding is
	// dropped, not reported with a bogus location.
	assert.Equal(t, 0, stats.Imported)
	assert.Equal(t, 1, stats.SkippedNoLine)
	assert.Empty(t, sink.issues)
}

func TestImport_RationsIncludeMapLookups(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"root.cfm":   "before\n<cfinclude template=\"header.cfm\">\nafter\n",
		"header.cfm": "h1\nh2\nh3\n",
	})
	// Virtual line 4 would resolve, but the attempt allowance is spent.
	artifact := writeArtifact(t, root,
		issueXML("R", "WARNING", filepath.Join(root, "root.cfm"), 4, "finding"))

	sink := &captureSink{}
	im := newTestImporter(fs, sink, Options{})
	im.beyondBounds = unresolvedVerbatim

	stats, err := im.Import(artifact)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Imported)
	assert.Equal(t, 1, stats.SkippedNoLine)
	assert.Empty(t, sink.issues)
}

func TestAttemptResolution_SamplesPastThreshold(t *testing.T) {
	fs, _ := projectWithFiles(t, map[string]string{"page.cfm": "one\n"})
	im := newTestImporter(fs, &captureSink{}, Options{})

	for i := 0; i < unresolvedVerbatim; i++ {
		assert.True(t, im.attemptResolution())
	}

	// Past the verbatim allowance only every sampleEvery-th attempt runs.
	allowed := 0
	for i := 0; i < sampleEvery; i++ {
		if im.attemptResolution() {
			allowed++
		}
	}
	assert.Equal(t, 1, allowed)
}

func TestImport_RefusesOversizeArtifact(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"page.cfm": "one\n",
	})
	artifact := writeArtifact(t, root, strings.Repeat(
		issueXML("R", "WARNING", filepath.Join(root, "page.cfm"), 1, "m"), 10))

	sink := &captureSink{}
	_, err := newTestImporter(fs, sink, Options{MaxResultBytes: 64}).Import(artifact)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to parse")
	assert.Empty(t, sink.issues)
}

func TestImport_TruncatesAtIssueCeiling(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"page.cfm": "one\n",
	})
	artifact := writeArtifact(t, root, strings.Repeat(
		issueXML("R", "WARNING", filepath.Join(root, "page.cfm"), 1, "m"), 10))

	sink := &captureSink{}
	stats, err := newTestImporter(fs, sink, Options{MaxIssueCount: 3}).Import(artifact)
	require.NoError(t, err)

	assert.True(t, stats.Truncated)
	assert.Equal(t, 3, stats.Imported)
	assert.Len(t, sink.issues, 3)
}

func TestImport_CountsMarkers(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"page.cfm": "one\n",
	})
	body := "<!-- TIMEOUT: File=/a.cfm, Type=ANALYSIS_TIMEOUT -->\n" +
		"<!-- TIMEOUT: File=/b.cfm, Type=CIRCUIT_BREAKER_TRIGGERED -->\n" +
		"<!-- PARSING_ERROR: File=/c.cfm, Error=boom -->\n"
	artifact := writeArtifact(t, root, body)

	stats, err := newTestImporter(fs, &captureSink{}, Options{}).Import(artifact)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TimeoutMarkers)
	assert.Equal(t, 1, stats.ErrorMarkers)
	assert.Equal(t, 0, stats.Imported)
}

func TestImport_ResolvesRelativeLocationPaths(t *testing.T) {
	fs, root := projectWithFiles(t, map[string]string{
		"sub/page.cfm": "one\n",
	})
	artifact := writeArtifact(t, root,
		issueXML("R", "WARNING", "sub/page.cfm", 1, "m"))

	sink := &captureSink{}
	stats, err := newTestImporter(fs, sink, Options{}).Import(artifact)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Imported)
	require.Len(t, sink.issues, 1)
	assert.Equal(t, "sub/page.cfm", sink.issues[0].File)
}
