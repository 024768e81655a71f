package analyzer

// DegradedIssue is a single finding produced by a fallback strategy when
// the primary engine could not analyze a file. It carries enough to be
// emitted in the engine's own XML schema so the importer needs no
// special-casing.
type DegradedIssue struct {
	RuleID   string
	Severity string
	Message  string
	FilePath string
	Line     int
	Column   int
	Evidence string
}

// FallbackStrategy gets a chance to produce degraded results for a file
// the engine failed on. Returning an empty slice means no findings.
type FallbackStrategy interface {
	Analyze(path string) ([]DegradedIssue, error)
}

// NoFallback is the disabled fallback variant.
type NoFallback struct{}

// Analyze never produces findings.
func (NoFallback) Analyze(string) ([]DegradedIssue, error) { return nil, nil }

// PreprocessStrategy may rewrite a file's content before analysis, e.g. to
// repair markup the engine chokes on. changed reports whether content
// differs from the on-disk original; when false the original file is
// analyzed as-is.
type PreprocessStrategy interface {
	Transform(path string) (content string, changed bool, err error)
}

// NoPreprocess is the disabled preprocessing variant.
type NoPreprocess struct{}

// Transform leaves every file untouched.
func (NoPreprocess) Transform(string) (string, bool, error) { return "", false, nil }
