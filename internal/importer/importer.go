// Package importer turns the engine's combined XML result artifact into
// located issues on a report sink. The artifact comes from an external
// process and is treated as hostile input: it is size-capped before any
// parsing starts, decoded as a token stream so memory stays flat, and every
// malformed or unmappable entry is skipped and counted rather than failing
// the import.
package importer

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mwinfie/sonar-coldfusion/internal/include"
	"github.com/mwinfie/sonar-coldfusion/internal/platform"
	"github.com/mwinfie/sonar-coldfusion/internal/report"
)

const (
	// DefaultMaxResultBytes caps the artifact size. Runaway engines have
	// produced multi-gigabyte result files; refuse them before parsing.
	DefaultMaxResultBytes = 100 * 1024 * 1024

	// DefaultMaxIssueCount caps the number of issues accepted from one
	// artifact.
	DefaultMaxIssueCount = 500_000

	progressEvery = 10_000

	// Lines beyond a file's physical bounds need an include-map lookup,
	// which is rationed: the first batch of occurrences is attempted
	// verbatim, then one per sampleEvery. The rest are dropped and counted
	// so a pathological artifact cannot stall the import.
	unresolvedVerbatim = 1000
	sampleEvery        = 1000
)

// Options bound one import.
type Options struct {
	MaxResultBytes int64
	MaxIssueCount  int
}

// Stats summarizes what an import did.
type Stats struct {
	Imported       int
	SkippedNoFile  int
	SkippedNoLine  int
	Truncated      bool
	TimeoutMarkers int
	ErrorMarkers   int
}

// Importer reads an engine result artifact and feeds resolved issues to a
// sink.
type Importer struct {
	fs       *platform.FileSystem
	resolver *include.Resolver
	sink     report.Sink
	opts     Options

	beyondBounds int
	unknownFiles int
}

// New creates an Importer. A zero or negative MaxResultBytes takes the
// package default; a negative MaxIssueCount takes the default while zero
// disables the count ceiling entirely.
func New(fs *platform.FileSystem, resolver *include.Resolver, sink report.Sink, opts Options) *Importer {
	if opts.MaxResultBytes <= 0 {
		opts.MaxResultBytes = DefaultMaxResultBytes
	}
	if opts.MaxIssueCount < 0 {
		opts.MaxIssueCount = DefaultMaxIssueCount
	}
	return &Importer{fs: fs, resolver: resolver, sink: sink, opts: opts}
}

// issueEntry mirrors one <issue> element of the engine schema. Only the
// first location is used; the engine repeats the issue metadata on each
// location and the extra locations are duplicates of the same finding.
type issueEntry struct {
	ID        string          `xml:"id,attr"`
	Severity  string          `xml:"severity,attr"`
	Message   string          `xml:"message,attr"`
	Locations []locationEntry `xml:"location"`
}

type locationEntry struct {
	File    string `xml:"file,attr"`
	Line    int    `xml:"line,attr"`
	Message string `xml:"message,attr"`
}

// Import reads the artifact at resultPath and saves every issue it can
// locate. It returns the stats even alongside an error so callers can
// report partial progress.
func (im *Importer) Import(resultPath string) (Stats, error) {
	var stats Stats

	info, err := os.Stat(resultPath)
	if err != nil {
		return stats, fmt.Errorf("stat result file: %w", err)
	}
	if info.Size() > im.opts.MaxResultBytes {
		return stats, fmt.Errorf("result file %s is %d bytes, over the %d byte limit; refusing to parse",
			resultPath, info.Size(), im.opts.MaxResultBytes)
	}

	f, err := os.Open(resultPath)
	if err != nil {
		return stats, fmt.Errorf("open result file: %w", err)
	}
	defer f.Close()

	decoder := xml.NewDecoder(f)
	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("decoding result XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.Comment:
			im.countMarker(string(t), &stats)
		case xml.StartElement:
			if t.Name.Local != "issue" {
				continue
			}
			if im.opts.MaxIssueCount > 0 && stats.Imported >= im.opts.MaxIssueCount {
				stats.Truncated = true
				logrus.Warnf("issue limit of %d reached; remaining issues in %s dropped",
					im.opts.MaxIssueCount, resultPath)
				return stats, nil
			}

			var entry issueEntry
			if err := decoder.DecodeElement(&entry, &t); err != nil {
				logrus.Debugf("skipping malformed issue element: %v", err)
				continue
			}
			im.saveEntry(entry, &stats)

			if stats.Imported > 0 && stats.Imported%progressEvery == 0 {
				logrus.Infof("imported %d issues so far", stats.Imported)
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"imported":        stats.Imported,
		"skipped_no_file": stats.SkippedNoFile,
		"skipped_no_line": stats.SkippedNoLine,
		"timeout_markers": stats.TimeoutMarkers,
		"error_markers":   stats.ErrorMarkers,
	}).Info("result import complete")
	return stats, nil
}

func (im *Importer) saveEntry(entry issueEntry, stats *Stats) {
	if len(entry.Locations) == 0 {
		stats.SkippedNoFile++
		return
	}
	loc := entry.Locations[0]

	file := im.lookupFile(loc.File)
	if file == nil {
		stats.SkippedNoFile++
		im.logUnknownFile(loc.File, entry.ID)
		return
	}

	message := loc.Message
	if message == "" {
		message = entry.Message
	}
	if message == "" {
		message = entry.ID
	}

	builder := im.sink.NewIssue().ForRule(entry.ID).Severity(entry.Severity)

	// A line within the file's own physical bounds never needs the include
	// map; the map only rewrites lines the expansion pushed past the end.
	if loc.Line >= 1 && loc.Line <= file.Lines() {
		builder.On(file).At(loc.Line).Message(message).Save()
		stats.Imported++
		return
	}

	if !im.attemptResolution() {
		stats.SkippedNoLine++
		return
	}
	resolved, ok := im.resolver.Resolve(file, loc.Line)
	if !ok {
		// Outside even the include-expanded form; the location is garbage
		// and the finding cannot be anchored anywhere.
		stats.SkippedNoLine++
		logrus.Warnf("line %d of %s is outside the expanded file, dropping issue (rule %s)",
			loc.Line, file.Name(), entry.ID)
		return
	}

	if resolved.WasIncluded {
		message = fmt.Sprintf("%s (from included file: %s)", message, resolved.File.Name())
	}
	builder.On(resolved.File).At(resolved.Line).Message(message).Save()
	stats.Imported++
}

// attemptResolution rations include-map lookups for beyond-bounds lines.
// After the first unresolvedVerbatim occurrences only every sampleEvery-th
// is attempted; the rest report false and the caller drops the finding.
func (im *Importer) attemptResolution() bool {
	im.beyondBounds++
	return im.beyondBounds <= unresolvedVerbatim || im.beyondBounds%sampleEvery == 0
}

// lookupFile maps an engine-reported path back to a project file. The
// engine echoes whatever path it was handed, which may be a preprocessed
// temp copy named after the original.
func (im *Importer) lookupFile(path string) *platform.SourceFile {
	if path == "" {
		return nil
	}
	if f := im.fs.Lookup(path); f != nil {
		return f
	}
	if !filepath.IsAbs(path) {
		if f := im.fs.Lookup(filepath.Join(im.fs.Root(), path)); f != nil {
			return f
		}
	}
	return nil
}

// logUnknownFile warns about unmappable paths with the same sampling cadence
// so a renamed tree cannot flood the log.
func (im *Importer) logUnknownFile(path, rule string) {
	im.unknownFiles++
	if im.unknownFiles <= unresolvedVerbatim || im.unknownFiles%sampleEvery == 0 {
		logrus.Warnf("no project file for %q (rule %s)", path, rule)
	}
}

// countMarker tallies the diagnostic comments the analyzer embeds in the
// artifact for files it could not fully analyze.
func (im *Importer) countMarker(comment string, stats *Stats) {
	switch {
	case strings.Contains(comment, "TIMEOUT:"):
		stats.TimeoutMarkers++
	case strings.Contains(comment, "PARSING_ERROR:"):
		stats.ErrorMarkers++
	}
}
