package engine

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/platinummonkey/ocrserve/internal/logger"
)

// Runner lets us stub the external engine in tests.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error)
}

// execRunner runs a real process. When ctx ends the process is killed and
// Run does not return until it has been reaped.
type execRunner struct {
	logger    *logger.Logger
	waitDelay time.Duration
}

func (r execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	start := time.Now()

	cmd := exec.CommandContext(ctx, name, args...)
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	// bound the wait for stray pipe holders after the kill
	cmd.WaitDelay = r.waitDelay

	err := cmd.Run()
	dur := time.Since(start)

	if err != nil {
		r.logger.WithFields(
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"error", err,
			"stderr", truncate(errb.String(), 8<<10),
		).Warn("Engine exec failed")
	} else {
		r.logger.WithFields(
			"cmd", name,
			"args", strings.Join(args, " "),
			"duration_ms", dur.Milliseconds(),
			"stdout_bytes", out.Len(),
			"stderr_bytes", errb.Len(),
		).Debug("Engine exec ok")
	}

	return out.Bytes(), errb.Bytes(), err
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
