package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// SourceFile is a handle to a single ColdFusion source unit. The content is
// read once and shared; callers must not mutate the returned slices.
type SourceFile struct {
	absPath string
	relName string

	once    sync.Once
	content string
	lines   []string
	readErr error
}

// NewSourceFile creates a handle for absPath. relName is the display name,
// normally the path relative to the project root.
func NewSourceFile(absPath, relName string) *SourceFile {
	return &SourceFile{absPath: absPath, relName: relName}
}

// AbsolutePath returns the absolute filesystem path of the file.
func (f *SourceFile) AbsolutePath() string {
	return f.absPath
}

// Name returns the display name of the file.
func (f *SourceFile) Name() string {
	if f.relName != "" {
		return f.relName
	}
	return filepath.Base(f.absPath)
}

// Content returns the file content. The underlying string is read once and
// cached for the lifetime of the handle.
func (f *SourceFile) Content() (string, error) {
	f.load()
	return f.content, f.readErr
}

// ContentLines returns the file content split into physical lines.
func (f *SourceFile) ContentLines() ([]string, error) {
	f.load()
	return f.lines, f.readErr
}

// Lines returns the physical line count of the file, or 0 if the file
// cannot be read.
func (f *SourceFile) Lines() int {
	f.load()
	return len(f.lines)
}

func (f *SourceFile) load() {
	f.once.Do(func() {
		data, err := os.ReadFile(f.absPath)
		if err != nil {
			f.readErr = fmt.Errorf("reading %s: %w", f.absPath, err)
			return
		}
		f.content = string(data)
		f.lines = splitLines(f.content)
	})
}

// splitLines splits content into physical lines on \n or \r\n. A trailing
// newline does not produce a phantom empty line; empty content has zero
// lines.
func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}

// FileSystem looks up SourceFile handles by absolute path. Handles are
// created lazily and cached so that repeated lookups share file content.
type FileSystem struct {
	root string

	mu    sync.Mutex
	files map[string]*SourceFile
}

// NewFileSystem creates a FileSystem rooted at the project directory.
func NewFileSystem(root string) *FileSystem {
	return &FileSystem{
		root:  root,
		files: make(map[string]*SourceFile),
	}
}

// Root returns the project root directory.
func (fs *FileSystem) Root() string {
	return fs.root
}

// Lookup returns the handle for absPath, or nil if no regular file exists
// there.
func (fs *FileSystem) Lookup(absPath string) *SourceFile {
	absPath = filepath.Clean(absPath)

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f, ok := fs.files[absPath]; ok {
		return f
	}

	info, err := os.Stat(absPath)
	if err != nil || info.IsDir() {
		return nil
	}

	relName := absPath
	if rel, err := filepath.Rel(fs.root, absPath); err == nil && !strings.HasPrefix(rel, "..") {
		relName = filepath.ToSlash(rel)
	}

	f := NewSourceFile(absPath, relName)
	fs.files[absPath] = f
	return f
}
