package analyzer

import "time"

// RunState carries the mutable counters for one run. It is owned by the
// Orchestrator and mutated only on its execution goroutine; one RunState
// exists per Run invocation, never shared between runs.
type RunState struct {
	TotalFiles          int
	Succeeded           int
	Failed              int
	TimedOut            int
	ConsecutiveTimeouts int
	BreakerTripped      bool
}

// report freezes the state into an immutable RunReport.
func (s *RunState) report(resultPath string, successRate float64, started time.Time) *RunReport {
	return &RunReport{
		TotalFiles:     s.TotalFiles,
		Succeeded:      s.Succeeded,
		Failed:         s.Failed,
		TimedOut:       s.TimedOut,
		BreakerTripped: s.BreakerTripped,
		SuccessRate:    successRate,
		ResultPath:     resultPath,
		Duration:       time.Since(started),
	}
}

// RunReport is the immutable outcome of a run, returned once the run
// completes or the circuit breaker stops it early.
type RunReport struct {
	TotalFiles     int
	Succeeded      int
	Failed         int
	TimedOut       int
	BreakerTripped bool
	SuccessRate    float64
	// ResultPath is the combined engine-format XML artifact for import.
	ResultPath string
	Duration   time.Duration
}
