package report

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwinfie/sonar-coldfusion/internal/platform"
)

// Test Plan for ConsoleSink and MultiSink:
// - Saved issues print as file:line [severity] rule: message
// - A missing file prints as <unknown>
// - An empty severity defaults to INFO
// - Count tracks saved issues
// - MultiSink fans one Save out to every wrapped sink
// - NewMultiSink returns a single sink unwrapped

func TestConsoleSink_PrintsIssueLine(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	file := platform.NewSourceFile("/proj/page.cfm", "page.cfm")
	sink.NewIssue().
		On(file).
		At(12).
		Severity("WARNING").
		ForRule("VAR_INVALID_NAME").
		Message("bad variable name").
		Save()

	assert.Equal(t, "page.cfm:12 [WARNING] VAR_INVALID_NAME: bad variable name\n", buf.String())
	assert.Equal(t, 1, sink.Count())
}

func TestConsoleSink_DefaultsForMissingFields(t *testing.T) {
	var buf bytes.Buffer
	sink := NewConsoleSink(&buf)

	sink.NewIssue().ForRule("R").Message("m").Save()

	assert.Equal(t, "<unknown>:0 [INFO] R: m\n", buf.String())
}

func TestMultiSink_FansOut(t *testing.T) {
	var first, second bytes.Buffer
	multi := NewMultiSink(NewConsoleSink(&first), NewConsoleSink(&second))

	file := platform.NewSourceFile("/proj/page.cfm", "page.cfm")
	multi.NewIssue().On(file).At(3).Severity("HIGH").ForRule("R").Message("m").Save()

	require.Equal(t, first.String(), second.String())
	assert.Equal(t, "page.cfm:3 [HIGH] R: m\n", first.String())
}

func TestNewMultiSink_SingleSinkUnwrapped(t *testing.T) {
	sink := NewConsoleSink(nil)
	assert.Same(t, sink, NewMultiSink(sink))
}
