// Package runner spawns one external transport invocation (ssh or scp) as a
// child process, streams its standard output with a line cap, captures its
// diagnostic stream in a private temporary file, and can forcibly terminate
// it.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"syscall"
	"time"

	"github.com/cellsh/cellsh/pkg/logger"
)

// GracePeriod is how long a child gets between graceful termination and a
// forced kill.
const GracePeriod = 2 * time.Second

// authFailureStatus is the exit status ssh uses for authentication and
// connection failures.
const authFailureStatus = 255

// Result is the outcome of one transport invocation.
type Result struct {
	Status    int
	Lines     []string // stdout, in order, possibly already flushed in chunks
	Diag      []string // the child's stderr: remote banner or error text
	Truncated bool
}

// FlushFunc displays a chunk of output for one cell before the invocation has
// finished.
type FlushFunc func(cell string, lines []string)

// Runner executes transport command lines for one cell pipeline. The zero
// value is not usable; fill in MaxLines at minimum.
type Runner struct {
	MaxLines      int
	DisplayChunks bool // single cell or serialized: flush chunks instead of truncating
	HasRemoteCmd  bool // the run includes a remote command step
	ShowBanner    bool
	Flush         FlushFunc
	Out           io.Writer // diagnostic display, defaults to stdout
	Warn          io.Writer // truncation warnings, defaults to stderr
	Log           *logger.Logger
}

func (r *Runner) out() io.Writer {
	if r.Out != nil {
		return r.Out
	}
	return os.Stdout
}

func (r *Runner) warn() io.Writer {
	if r.Warn != nil {
		return r.Warn
	}
	return os.Stderr
}

// Run executes cmdline through the shell with stdin closed. Standard error
// goes to a temporary file scoped to the invocation; standard output is read
// line by line up to MaxLines. Cancelling ctx terminates the child with
// escalation. The temporary file is deleted unconditionally.
func (r *Runner) Run(ctx context.Context, cell, cmdline string) Result {
	if r.Log != nil {
		r.Log.Debug("execute: %s", cmdline)
	}

	banner, err := os.CreateTemp("", "banner_*."+cell)
	if err != nil {
		return Result{Status: 1, Diag: []string{"cannot create diagnostic file: " + err.Error()}}
	}
	defer os.Remove(banner.Name())
	defer banner.Close()

	cmd := exec.Command("/bin/sh", "-c", cmdline)
	cmd.Stderr = banner
	// Stdin stays closed; interactive prompts are not supported.

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{Status: 1, Diag: []string{err.Error()}}
	}
	if err := cmd.Start(); err != nil {
		return Result{Status: 1, Diag: []string{err.Error()}}
	}

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			Terminate(cmd.Process, exited, GracePeriod)
		case <-exited:
		}
	}()

	lines, truncated := r.readLines(stdout, cell)

	if truncated && cmd.Process != nil {
		fmt.Fprintf(r.warn(), "Killing child pid %d to %s...\n", cmd.Process.Pid, cell)
		go Terminate(cmd.Process, exited, GracePeriod)
		// finish reading before Wait closes the pipe; the kill bounds this
		io.Copy(io.Discard, stdout)
	}

	status := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			status = exitErr.ExitCode()
			if status < 0 {
				// killed by signal
				status = 1
			}
		} else if errors.Is(err, syscall.ECHILD) {
			// a concurrent cancellation already reaped the child
			if r.Log != nil {
				r.Log.Debug("no child process for wait on %s", cell)
			}
		} else {
			status = 1
		}
	}
	close(exited)

	diag := readDiag(banner)

	if r.HasRemoteCmd {
		if status == authFailureStatus {
			r.printDiag(cell, diag)
		} else if r.ShowBanner {
			lines = spliceBanner(diag, lines)
		}
	} else if status != 0 {
		r.printDiag(cell, diag)
	}

	if truncated {
		status = 1
	}

	return Result{Status: status, Lines: lines, Diag: diag, Truncated: truncated}
}

// readLines reads up to MaxLines lines. When the cap is exceeded the
// accumulated chunk is flushed for display; in chunked mode reading then
// continues, otherwise a truncation warning is emitted once and reading
// stops.
func (r *Runner) readLines(stdout io.Reader, cell string) (lines []string, truncated bool) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	count := 0
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		count++
		if count > r.MaxLines {
			if r.Flush != nil {
				r.Flush(cell, lines)
			}
			count = 0
			lines = nil
			if r.DisplayChunks {
				continue
			}
			fmt.Fprintf(r.warn(), "\nError: %s is returning over %d lines; output is truncated !!!\n",
				cell, r.MaxLines)
			fmt.Fprintf(r.warn(), "Command could be retried with the serialize option: --serial\n")
			return nil, true
		}
	}
	return lines, false
}

// printDiag surfaces the child's stderr immediately, tagged by cell.
func (r *Runner) printDiag(cell string, diag []string) {
	for _, line := range diag {
		fmt.Fprintf(r.out(), "%s:%s\n", cell, line)
	}
}

func spliceBanner(diag, lines []string) []string {
	out := make([]string, 0, len(diag)+len(lines)+2)
	out = append(out, "******BANNER******")
	out = append(out, diag...)
	out = append(out, "******BANNER******")
	return append(out, lines...)
}

// readDiag reads back the diagnostic file written by the child.
func readDiag(f *os.File) []string {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil
	}
	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

// Terminate sends a graceful termination signal to p, escalating to a forced
// kill if it has not exited within grace. exited must be closed once the
// process has been reaped. "Process already gone" races are tolerated.
func Terminate(p *os.Process, exited <-chan struct{}, grace time.Duration) {
	if p == nil {
		return
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		return
	}
	select {
	case <-exited:
	case <-time.After(grace):
		p.Kill()
	}
}
