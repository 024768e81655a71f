package include

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mwinfie/sonar-coldfusion/internal/platform"
)

// cfincludePattern matches <cfinclude template="path"> directives,
// case-insensitively, with either quote style.
var cfincludePattern = regexp.MustCompile(`(?i)<cfinclude\s+template\s*=\s*["']([^"']+)["'][^>]*>`)

// templateExtensions are tried in order when an include template path does
// not resolve to a file as written.
var templateExtensions = []string{".cfm", ".cfc", ".cfml"}

// Mapper walks a root file's cfinclude directives and lays its expansion
// out as a flat list of virtual-line mappings. Included content replaces
// the directive line, so a directive consumes no virtual line itself; every
// ordinary line consumes exactly one.
type Mapper struct {
	fs *platform.FileSystem
}

// NewMapper creates a Mapper resolving template paths through fs.
func NewMapper(fs *platform.FileSystem) *Mapper {
	return &Mapper{fs: fs}
}

// BuildMap builds the complete include mapping for root, including nested
// includes. A cyclic include aborts recursion into that file only; an
// unreadable included file leaves the map partial.
func (m *Mapper) BuildMap(root *platform.SourceFile) []Mapping {
	w := &walker{mapper: m}
	w.walk(root, "", []string{})
	if !w.expanded {
		// No include was expanded: the file maps to itself and needs no
		// mapping list at all.
		return nil
	}
	return w.mappings
}

// walker carries the virtual-line cursor and in-progress file stack through
// the recursive expansion.
type walker struct {
	mapper   *Mapper
	mappings []Mapping
	cursor   int  // virtual lines laid out so far
	expanded bool // true once any include directive was expanded
}

// walk expands file into the virtual line stream. directive is the template
// text that included file (empty for the root).
func (w *walker) walk(file *platform.SourceFile, directive string, stack []string) {
	path := file.AbsolutePath()
	for _, inProgress := range stack {
		if inProgress == path {
			logrus.Debugf("circular include detected: %s -> %s", strings.Join(stack, " -> "), path)
			return
		}
	}
	stack = append(stack, path)

	lines, err := file.ContentLines()
	if err != nil {
		logrus.Warnf("failed to read %s while building include map: %v", file.Name(), err)
		return
	}

	// A segment is a maximal run of ordinary lines; directives interrupt it
	// because they contribute included content instead of themselves.
	segStart := 0 // physical index of the current segment start
	segLen := 0

	flush := func() {
		if segLen == 0 {
			return
		}
		w.mappings = append(w.mappings, Mapping{
			VirtualStart: w.cursor + 1,
			VirtualEnd:   w.cursor + segLen,
			Target:       file,
			TargetStart:  segStart + 1,
			Directive:    directive,
		})
		w.cursor += segLen
		segLen = 0
	}

	for i, line := range lines {
		match := cfincludePattern.FindStringSubmatch(line)
		if match == nil {
			if segLen == 0 {
				segStart = i
			}
			segLen++
			continue
		}

		template := match[1]
		included := w.mapper.resolveTemplate(file, template)
		if included == nil {
			// Unresolvable template: the directive stays an ordinary line.
			logrus.Debugf("could not resolve include template %q in %s", template, file.Name())
			if segLen == 0 {
				segStart = i
			}
			segLen++
			continue
		}

		flush()
		w.expanded = true
		w.walk(included, template, stack)
	}
	flush()
}

// resolveTemplate resolves a cfinclude template path to a real file.
// Absolute paths resolve against the project root, relative paths against
// the including file's directory; unresolved paths are retried with known
// ColdFusion extensions appended.
func (m *Mapper) resolveTemplate(source *platform.SourceFile, template string) *platform.SourceFile {
	var base string
	if strings.HasPrefix(template, "/") {
		base = filepath.Join(m.fs.Root(), strings.TrimPrefix(template, "/"))
	} else {
		base = filepath.Join(filepath.Dir(source.AbsolutePath()), template)
	}

	if f := m.fs.Lookup(base); f != nil {
		return f
	}
	for _, ext := range templateExtensions {
		if strings.HasSuffix(strings.ToLower(template), ext) {
			continue
		}
		if f := m.fs.Lookup(base + ext); f != nil {
			return f
		}
	}
	return nil
}
