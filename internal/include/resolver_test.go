package include

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test Plan for Resolver:
// - Files without includes resolve by identity within their own bounds
// - Lines past the end of an unexpanded file do not resolve
// - Virtual lines below 1 never resolve
// - Virtual lines inside an included segment resolve to the included file
//   with WasIncluded set and the triggering directive attached
// - Virtual lines in root segments after an include resolve to the shifted
//   physical line
// - Include maps are built once and cached per root file
// - ClearCache drops cached maps

func TestResolver_IdentityForFileWithoutIncludes(t *testing.T) {
	fs, root := writeProject(t, map[string]string{
		"plain.cfm": "one\ntwo\nthree\n",
	})
	r := NewResolver(fs)
	file := lookup(t, fs, root, "plain.cfm")

	loc, ok := r.Resolve(file, 2)
	require.True(t, ok)
	assert.Same(t, file, loc.File)
	assert.Equal(t, 2, loc.Line)
	assert.False(t, loc.WasIncluded)
}

func TestResolver_OutOfBoundsDoesNotResolve(t *testing.T) {
	fs, root := writeProject(t, map[string]string{
		"plain.cfm": "one\ntwo\n",
	})
	r := NewResolver(fs)
	file := lookup(t, fs, root, "plain.cfm")

	_, ok := r.Resolve(file, 3)
	assert.False(t, ok)

	_, ok = r.Resolve(file, 0)
	assert.False(t, ok)

	_, ok = r.Resolve(file, -5)
	assert.False(t, ok)
}

func TestResolver_ResolvesIntoIncludedFile(t *testing.T) {
	fs, root := writeProject(t, map[string]string{
		"root.cfm":   "before\n<cfinclude template=\"header.cfm\">\nafter\n",
		"header.cfm": "h1\nh2\nh3\n",
	})
	r := NewResolver(fs)
	file := lookup(t, fs, root, "root.cfm")

	// Virtual 3 is the second line of the included header.
	loc, ok := r.Resolve(file, 3)
	require.True(t, ok)
	assert.Equal(t, "header.cfm", loc.File.Name())
	assert.Equal(t, 2, loc.Line)
	assert.True(t, loc.WasIncluded)
	assert.Equal(t, "header.cfm", loc.Directive)
}

func TestResolver_RootLinesAfterIncludeShift(t *testing.T) {
	fs, root := writeProject(t, map[string]string{
		"root.cfm":   "before\n<cfinclude template=\"header.cfm\">\nafter\n",
		"header.cfm": "h1\nh2\nh3\n",
	})
	r := NewResolver(fs)
	file := lookup(t, fs, root, "root.cfm")

	// Virtual layout: 1=before, 2-4=header, 5=after (physical line 3).
	loc, ok := r.Resolve(file, 5)
	require.True(t, ok)
	assert.Equal(t, "root.cfm", loc.File.Name())
	assert.Equal(t, 3, loc.Line)
	assert.False(t, loc.WasIncluded)

	// Past the expanded end.
	_, ok = r.Resolve(file, 6)
	assert.False(t, ok)
}

func TestResolver_CachesIncludeMaps(t *testing.T) {
	fs, root := writeProject(t, map[string]string{
		"root.cfm":   "<cfinclude template=\"header.cfm\">\n",
		"header.cfm": "h1\n",
	})
	r := NewResolver(fs)
	file := lookup(t, fs, root, "root.cfm")

	assert.Equal(t, 0, r.CacheSize())

	_, ok := r.Resolve(file, 1)
	require.True(t, ok)
	assert.Equal(t, 1, r.CacheSize())

	_, _ = r.Resolve(file, 1)
	assert.Equal(t, 1, r.CacheSize())

	r.ClearCache()
	assert.Equal(t, 0, r.CacheSize())
}
