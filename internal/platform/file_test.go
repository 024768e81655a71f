package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for SourceFile and FileSystem:
// - Content() returns file content and caches it
// - ContentLines() splits on \n and normalizes \r\n
// - A trailing newline does not produce a phantom empty line
// - Empty files have zero lines
// - Lines() returns the physical line count
// - Content() on a missing file returns an error
// - Name() returns the relative display name
// - Lookup() returns the same handle for repeated queries
// - Lookup() returns nil for missing paths and directories
// - Lookup() normalizes unclean paths

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSourceFile_ContentAndLines(t *testing.T) {
	// Test: content is read and split into physical lines
	dir := t.TempDir()
	path := writeFile(t, dir, "index.cfm", "<cfset a = 1>\n<cfset b = 2>\n")

	f := NewSourceFile(path, "index.cfm")

	content, err := f.Content()
	require.NoError(t, err)
	assert.Equal(t, "<cfset a = 1>\n<cfset b = 2>\n", content)

	lines, err := f.ContentLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"<cfset a = 1>", "<cfset b = 2>"}, lines)
	assert.Equal(t, 2, f.Lines())
}

func TestSourceFile_NormalizesCRLF(t *testing.T) {
	// Test: \r\n line endings split the same as \n
	dir := t.TempDir()
	path := writeFile(t, dir, "win.cfm", "line one\r\nline two\r\nline three")

	f := NewSourceFile(path, "win.cfm")
	lines, err := f.ContentLines()
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two", "line three"}, lines)
}

func TestSourceFile_TrailingNewlineIsNotALine(t *testing.T) {
	dir := t.TempDir()

	with := NewSourceFile(writeFile(t, dir, "a.cfm", "x\ny\n"), "a.cfm")
	without := NewSourceFile(writeFile(t, dir, "b.cfm", "x\ny"), "b.cfm")

	assert.Equal(t, 2, with.Lines())
	assert.Equal(t, 2, without.Lines())
}

func TestSourceFile_EmptyFileHasZeroLines(t *testing.T) {
	dir := t.TempDir()
	f := NewSourceFile(writeFile(t, dir, "empty.cfm", ""), "empty.cfm")

	assert.Equal(t, 0, f.Lines())
	lines, err := f.ContentLines()
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSourceFile_MissingFileReturnsError(t *testing.T) {
	f := NewSourceFile(filepath.Join(t.TempDir(), "nope.cfm"), "nope.cfm")

	_, err := f.Content()
	assert.Error(t, err)
	assert.Equal(t, 0, f.Lines())
}

func TestSourceFile_NameFallsBackToBase(t *testing.T) {
	f := NewSourceFile("/some/where/page.cfm", "")
	assert.Equal(t, "page.cfm", f.Name())

	named := NewSourceFile("/some/where/page.cfm", "sub/page.cfm")
	assert.Equal(t, "sub/page.cfm", named.Name())
}

func TestFileSystem_LookupCachesHandles(t *testing.T) {
	// Test: repeated lookups share one handle
	dir := t.TempDir()
	path := writeFile(t, dir, "app/page.cfm", "<cfset x = 1>\n")

	fs := NewFileSystem(dir)
	first := fs.Lookup(path)
	require.NotNil(t, first)
	assert.Equal(t, "app/page.cfm", first.Name())

	second := fs.Lookup(path)
	assert.Same(t, first, second)
}

func TestFileSystem_LookupMissingAndDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

	fs := NewFileSystem(dir)
	assert.Nil(t, fs.Lookup(filepath.Join(dir, "missing.cfm")))
	assert.Nil(t, fs.Lookup(filepath.Join(dir, "sub")))
}

func TestFileSystem_LookupCleansPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.cfm", "x\n")

	fs := NewFileSystem(dir)
	unclean := filepath.Join(dir, ".", "page.cfm")
	assert.Same(t, fs.Lookup(path), fs.Lookup(unclean))
}
