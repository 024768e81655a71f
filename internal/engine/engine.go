// Package engine defines the contract to the external CFLint executable.
// The engine is a collaborator, not part of this tool: it evaluates lint
// rules over ColdFusion files and writes its native XML issue report. It is
// known to hang or crash on malformed input, which is why callers wrap it
// in timeouts and a circuit breaker.
package engine

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Engine runs the external lint engine over a set of files and writes its
// native XML report to resultPath. Implementations are not required to be
// cancellation-aware beyond best effort; callers must not assume a timed
// out invocation stops promptly.
type Engine interface {
	Scan(ctx context.Context, paths []string, resultPath string) error
}

// CommandEngine invokes CFLint as an external process.
type CommandEngine struct {
	// Command is the executable to run, e.g. "cflint".
	Command string
	// Args are extra arguments prepended before the scan arguments, e.g.
	// JVM options forwarded to the CFLint launcher.
	Args []string
}

// NewCommandEngine creates a CommandEngine for the given executable and
// extra arguments.
func NewCommandEngine(command string, args []string) *CommandEngine {
	return &CommandEngine{Command: command, Args: args}
}

// Scan runs the engine once over paths, writing the XML report to
// resultPath. The process is started with ctx, so a cancelled context
// kills it, but CFLint may linger while the JVM shuts down.
func (e *CommandEngine) Scan(ctx context.Context, paths []string, resultPath string) error {
	if len(paths) == 0 {
		return fmt.Errorf("engine scan: no files to scan")
	}

	args := make([]string, 0, len(e.Args)+6)
	args = append(args, e.Args...)
	args = append(args, "-xml", "-xmlfile", resultPath, "-file", strings.Join(paths, ","))

	cmd := exec.CommandContext(ctx, e.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logrus.Debugf("invoking engine: %s (%d files)", e.Command, len(paths))

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 500 {
			detail = detail[len(detail)-500:]
		}
		if detail != "" {
			return fmt.Errorf("engine scan failed: %w: %s", err, detail)
		}
		return fmt.Errorf("engine scan failed: %w", err)
	}
	return nil
}
