package analyzer

import "strings"

// Mode is the parsing-strictness mode. It controls two independent
// decisions: whether the single-batch pass is attempted at all, and whether
// a failed batch falls through to isolated per-file analysis.
type Mode int

const (
	// ModeStrict fails the run outright on any batch error. Recommended
	// for new projects with clean HTML/CFML structure.
	ModeStrict Mode = iota
	// ModeLenient skips the all-or-nothing batch and analyzes files in
	// isolation, recovering from per-file errors. The default.
	ModeLenient
	// ModeFragment is lenient analysis tuned for legacy template
	// fragments, accepting a higher error rate.
	ModeFragment
)

// ModeFromString parses a mode name case-insensitively. Unknown or empty
// values fall back to lenient.
func ModeFromString(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return ModeStrict
	case "fragment":
		return ModeFragment
	default:
		return ModeLenient
	}
}

func (m Mode) String() string {
	switch m {
	case ModeStrict:
		return "strict"
	case ModeFragment:
		return "fragment"
	default:
		return "lenient"
	}
}

// AttemptBatch reports whether the single-batch engine pass should be
// tried. Only strict mode batches: it wants the fast all-or-nothing path
// and fails fast when it breaks. Lenient and fragment modes expect some
// failures, so per-file isolation is the better first move.
func (m Mode) AttemptBatch() bool {
	return m == ModeStrict
}

// ContinueOnError reports whether analysis proceeds past a failed or
// skipped batch into isolated per-file analysis.
func (m Mode) ContinueOnError() bool {
	return m != ModeStrict
}

// RecommendedErrorThreshold is the maximum acceptable failure percentage
// for this mode before the run summary starts complaining.
func (m Mode) RecommendedErrorThreshold() int {
	switch m {
	case ModeStrict:
		return 0
	case ModeFragment:
		return 30
	default:
		return 15
	}
}
