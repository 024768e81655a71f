package include

import (
	"fmt"

	"github.com/mwinfie/sonar-coldfusion/internal/platform"
)

// Mapping maps a contiguous range of virtual lines (line numbers the engine
// reports against the include-expanded file) to a run of physical lines in
// one real file. Ranges produced for a single root file are non-overlapping
// and monotonically increasing in discovery order.
type Mapping struct {
	VirtualStart int
	VirtualEnd   int
	Target       *platform.SourceFile
	TargetStart  int
	// Directive is the template text of the cfinclude that pulled Target
	// into the expansion. Empty for segments of the root file itself.
	Directive string
}

// Contains reports whether virtualLine falls inside this mapping's range.
func (m Mapping) Contains(virtualLine int) bool {
	return virtualLine >= m.VirtualStart && virtualLine <= m.VirtualEnd
}

// TargetLine converts an in-range virtual line to the physical line in the
// target file.
func (m Mapping) TargetLine(virtualLine int) int {
	return m.TargetStart + (virtualLine - m.VirtualStart)
}

func (m Mapping) String() string {
	return fmt.Sprintf("mapping{virtual=[%d-%d] file=%s physical=[%d+] directive=%q}",
		m.VirtualStart, m.VirtualEnd, m.Target.Name(), m.TargetStart, m.Directive)
}

// ResolvedLocation is the answer to a virtual-line query: the real file and
// physical line, plus the include directive that inlined it when the
// location was inside an included file.
type ResolvedLocation struct {
	File        *platform.SourceFile
	Line        int
	WasIncluded bool
	Directive   string
}
