package vmstat

import (
	"context"
	"io"
	"os"
	"strconv"

	"github.com/cellsh/cellsh/pkg/executor"
	"github.com/cellsh/cellsh/pkg/render"
)

// Dispatch runs one raw command line on every cell and returns the
// aggregated results.
type Dispatch func(ctx context.Context, rawCommand string) (*executor.Results, error)

// Loop drives the periodic sampling rounds. The first round retrieves the
// since-boot statistics with a single sample; every later round asks for two
// samples so the second reflects the delay interval, and displays that one.
type Loop struct {
	Cells    []string // canonical display order
	Opts     string   // raw option string, consulted for -n
	Repeat   int      // round count, Infinite to run until interrupted
	Command  string   // base command with trailing space
	Out      io.Writer
	Fallback *render.Presenter // plain listing when a round fails
	Dispatch Dispatch
}

func (l *Loop) out() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

// Run performs the sampling rounds and returns the highest per-cell status.
// A cell failing in any round aborts the loop: that round's results are
// listed plainly instead of as a table.
func (l *Loop) Run(ctx context.Context) (int, error) {
	sample := 1
	for round := 0; ; round++ {
		results, err := l.Dispatch(ctx, l.Command+strconv.Itoa(sample))
		if err != nil {
			return 1, err
		}
		if status := results.MaxStatus(); status > 0 {
			l.Fallback.List(l.Cells, results)
			return status, nil
		}
		Render(l.out(), l.Cells, results, l.Opts, round)
		if l.Repeat >= 0 && round+1 >= l.Repeat {
			return 0, nil
		}
		sample = 2
	}
}
