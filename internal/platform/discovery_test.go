package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Discovery:
// - Discovers files matching source patterns in nested directories
// - Matches root-level files against **/ prefixed patterns
// - Skips files not matching any source pattern
// - Ignore patterns exclude whole directories
// - Invalid glob patterns fail construction

func discoveredNames(t *testing.T, files []*SourceFile) []string {
	t.Helper()
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}
	return names
}

func TestDiscovery_FindsColdFusionFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "index.cfm", "")
	writeFile(t, dir, "app/Component.cfc", "")
	writeFile(t, dir, "app/deep/page.cfml", "")
	writeFile(t, dir, "readme.md", "")

	fs := NewFileSystem(dir)
	d, err := NewDiscovery(fs, []string{"**/*.cfm", "**/*.cfc", "**/*.cfml"}, nil)
	require.NoError(t, err)

	files, err := d.DiscoverFiles()
	require.NoError(t, err)

	names := discoveredNames(t, files)
	assert.ElementsMatch(t, []string{"index.cfm", "app/Component.cfc", "app/deep/page.cfml"}, names)
}

func TestDiscovery_IgnorePatternsExcludeDirectories(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.cfm", "")
	writeFile(t, dir, "node_modules/vendor.cfm", "")
	writeFile(t, dir, "node_modules/deep/more.cfm", "")

	fs := NewFileSystem(dir)
	d, err := NewDiscovery(fs, []string{"**/*.cfm"}, []string{"node_modules/**"})
	require.NoError(t, err)

	files, err := d.DiscoverFiles()
	require.NoError(t, err)

	assert.Equal(t, []string{"good.cfm"}, discoveredNames(t, files))
}

func TestDiscovery_NonMatchingFilesSkipped(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "script.js", "")
	writeFile(t, dir, "style.css", "")

	fs := NewFileSystem(dir)
	d, err := NewDiscovery(fs, []string{"**/*.cfm"}, nil)
	require.NoError(t, err)

	files, err := d.DiscoverFiles()
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestDiscovery_InvalidPatternFails(t *testing.T) {
	fs := NewFileSystem(t.TempDir())
	_, err := NewDiscovery(fs, []string{"[unterminated"}, nil)
	assert.Error(t, err)
}
