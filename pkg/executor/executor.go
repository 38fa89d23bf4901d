// Package executor fans a per-cell pipeline out across the reachable cells.
//
// The Coordinator launches one concurrent job executor per cell, bounded per
// batch, optionally serializing transport invocations, and aggregates
// per-cell status and output into ordered result maps. Cancelling the run
// context terminates every live child process with graceful-then-forced
// escalation before the interruption is propagated upward.
package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/cellsh/cellsh/pkg/config"
	"github.com/cellsh/cellsh/pkg/logger"
	"github.com/cellsh/cellsh/pkg/probe"
	"github.com/cellsh/cellsh/pkg/runner"
)

// ErrInterrupted is returned after the cancellation cascade has finished.
var ErrInterrupted = errors.New("interrupted")

// Results holds per-cell status and output for one run. Every dispatched
// cell has exactly one entry once its batch completes.
type Results struct {
	Status map[string]int
	Output map[string][]string
}

// NewResults creates an empty result store.
func NewResults() *Results {
	return &Results{
		Status: make(map[string]int),
		Output: make(map[string][]string),
	}
}

// MaxStatus returns the highest per-cell status, 0 when empty.
func (r *Results) MaxStatus() int {
	max := 0
	for _, s := range r.Status {
		if s > max {
			max = s
		}
	}
	return max
}

// Coordinator owns one invocation's fan-out.
type Coordinator struct {
	Cfg   *config.RunConfig
	Log   *logger.Logger
	Flush runner.FlushFunc // chunk display for serialized or single-cell runs
	Out   io.Writer        // immediate diagnostic display
	Warn  io.Writer        // truncation warnings

	// mu guards the result store and serialized transport invocations,
	// including the always-serialized key-push phase.
	mu sync.Mutex
}

// CheckTransports verifies that the external binaries the job needs exist.
func (c *Coordinator) CheckTransports(job *Job) error {
	needSSH := job.Command != "" || job.PushKey || job.DropKey
	needSCP := len(job.Files) > 0
	if needSSH {
		if _, err := os.Stat(c.Cfg.SSHPath); err != nil {
			return config.Envf("SSH program does not exist: %s", c.Cfg.SSHPath)
		}
	}
	if needSCP {
		if _, err := os.Stat(c.Cfg.SCPPath); err != nil {
			return config.Envf("SCP program does not exist: %s", c.Cfg.SCPPath)
		}
	}
	return nil
}

// Run dispatches the job to every cell, in batches of at most BatchSize
// cells (zero means one batch of all cells). It returns the aggregated
// results; when ctx is cancelled mid-run it finishes the cleanup cascade and
// returns ErrInterrupted alongside the results gathered so far.
func (c *Coordinator) Run(ctx context.Context, cells []probe.Cell, job *Job) (*Results, error) {
	results := NewResults()

	size := c.Cfg.BatchSize
	if size <= 0 || size > len(cells) {
		size = len(cells)
	}

	for begin := 0; begin < len(cells); begin += size {
		end := begin + size
		if end > len(cells) {
			end = len(cells)
		}
		if err := c.runBatch(ctx, cells[begin:end], job, results); err != nil {
			return results, err
		}
	}
	return results, nil
}

// runBatch starts one job executor per cell and joins them, watching for
// cancellation rather than blocking indefinitely.
func (c *Coordinator) runBatch(ctx context.Context, batch []probe.Cell, job *Job, results *Results) error {
	if err := ctx.Err(); err != nil {
		return ErrInterrupted
	}

	expected := make(map[string]bool, len(batch))
	for _, cell := range batch {
		expected[cell.Name] = true
	}

	displayChunks := c.Cfg.Serialize || len(batch) == 1

	var wg sync.WaitGroup
	done := make(chan struct{})
	for _, cell := range batch {
		wg.Add(1)
		go func(cell probe.Cell) {
			defer wg.Done()
			c.runCell(ctx, cell, job, displayChunks, expected, results)
		}(cell)
	}
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// Every runner terminates its own child with escalation; give
		// them the grace period to unwind before reporting upward.
		select {
		case <-done:
		case <-time.After(runner.GracePeriod + time.Second):
		}
		return ErrInterrupted
	}
}

// runCell drives the pipeline for one cell: key-push, copy, command,
// key-drop, stopping at the first non-zero status. Remote failures become
// the cell's result; they are never errors.
func (c *Coordinator) runCell(ctx context.Context, cell probe.Cell, job *Job, displayChunks bool, expected map[string]bool, results *Results) {
	if c.Log != nil {
		c.Log.Debug("...entering task for %s", cell.Name)
	}

	status := 0
	var output []string

	run := func(cmdline string, serialize bool) {
		res := c.runStep(ctx, cell.Name, cmdline, serialize, displayChunks, job)
		status = res.Status
		output = append(output, res.Lines...)
	}

	// Key push runs first and is always serialized so authenticity and
	// password prompts cannot overlay each other.
	if job.PushKey && len(job.Keys) > 0 {
		run(job.pushCmdLine(c.Cfg.SSHPath, cell), true)
	}
	if status == 0 && len(job.Files) > 0 {
		run(job.copyCmdLine(c.Cfg.SCPPath, cell), c.Cfg.Serialize)
	}
	if status == 0 && job.Command != "" {
		run(job.execCmdLine(c.Cfg.SSHPath, cell), c.Cfg.Serialize)
	}
	if status == 0 && job.DropKey && len(job.Keys) > 0 {
		run(job.dropCmdLine(c.Cfg.SSHPath, cell), c.Cfg.Serialize)
	}

	c.put(results, expected, cell.Name, status, output)

	if c.Log != nil {
		c.Log.Debug("...exiting task for %s status: %d", cell.Name, status)
	}
}

// runStep executes one transport invocation, holding the global mutex when
// the step is serialized.
func (c *Coordinator) runStep(ctx context.Context, cell, cmdline string, serialize, displayChunks bool, job *Job) runner.Result {
	if serialize {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	r := &runner.Runner{
		MaxLines:      c.Cfg.MaxLines,
		DisplayChunks: displayChunks,
		HasRemoteCmd:  job.Command != "",
		ShowBanner:    job.ShowBanner,
		Flush:         c.Flush,
		Out:           c.Out,
		Warn:          c.Warn,
		Log:           c.Log,
	}
	return r.Run(ctx, cell, cmdline)
}

// put records one cell's result exactly once. A cell outside the batch's
// work set, or a second write, is a defect in the caller, not a result.
func (c *Coordinator) put(results *Results, expected map[string]bool, cell string, status int, output []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !expected[cell] {
		panic("executor: result for cell not in work set: " + cell)
	}
	if _, dup := results.Status[cell]; dup {
		panic("executor: duplicate result for cell " + cell)
	}
	results.Status[cell] = status
	results.Output[cell] = output
}
