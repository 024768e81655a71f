package include

import (
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/mwinfie/sonar-coldfusion/internal/platform"
)

// Resolver answers "what real file and line does virtual line N of this
// root file correspond to?". Include maps are built lazily, once per root
// file, and cached for the resolver's lifetime.
type Resolver struct {
	mapper *Mapper

	mu    sync.RWMutex
	cache map[string][]Mapping
	group singleflight.Group
}

// NewResolver creates a Resolver over fs.
func NewResolver(fs *platform.FileSystem) *Resolver {
	return &Resolver{
		mapper: NewMapper(fs),
		cache:  make(map[string][]Mapping),
	}
}

// Resolve translates a virtual line number in root's include-expanded form
// back to a real location. For a file with no include mappings the query is
// answered by the identity check against the file's own physical bounds.
// The second return is false when the line cannot be resolved.
func (r *Resolver) Resolve(root *platform.SourceFile, virtualLine int) (ResolvedLocation, bool) {
	if virtualLine < 1 {
		return ResolvedLocation{}, false
	}

	mappings := r.mappings(root)
	if len(mappings) == 0 {
		if virtualLine <= root.Lines() {
			return ResolvedLocation{File: root, Line: virtualLine}, true
		}
		return ResolvedLocation{}, false
	}

	// Per-root mapping lists are small; a linear scan is cheaper than any
	// index it could hide behind.
	for _, m := range mappings {
		if m.Contains(virtualLine) {
			loc := ResolvedLocation{
				File:        m.Target,
				Line:        m.TargetLine(virtualLine),
				WasIncluded: m.Directive != "",
				Directive:   m.Directive,
			}
			logrus.Debugf("resolved virtual line %d in %s to line %d in %s",
				virtualLine, root.Name(), loc.Line, loc.File.Name())
			return loc, true
		}
	}

	logrus.Debugf("could not resolve virtual line %d in %s (%d lines, %d mappings)",
		virtualLine, root.Name(), root.Lines(), len(mappings))
	return ResolvedLocation{}, false
}

// mappings returns the cached include map for root, building it at most
// once per key even under concurrent queries.
func (r *Resolver) mappings(root *platform.SourceFile) []Mapping {
	key := root.AbsolutePath()

	r.mu.RLock()
	cached, ok := r.cache[key]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	built, _, _ := r.group.Do(key, func() (interface{}, error) {
		mappings := r.mapper.BuildMap(root)
		r.mu.Lock()
		r.cache[key] = mappings
		r.mu.Unlock()
		return mappings, nil
	})
	return built.([]Mapping)
}

// ClearCache drops all cached include maps. Long-running hosts call this
// when the underlying files may have changed.
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	r.cache = make(map[string][]Mapping)
	r.mu.Unlock()
	logrus.Debug("include map cache cleared")
}

// CacheSize returns the number of root files with cached include maps.
func (r *Resolver) CacheSize() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cache)
}
