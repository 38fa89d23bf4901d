package vmstat

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/cellsh/cellsh/pkg/executor"
)

// header1Widths aligns the six group headers over their columns:
// procs, memory, swap, io, system, cpu.
var header1Widths = []int{5, 27, 9, 11, 11, 14}

// initialFieldWidths are the minimum per-field widths; they widen to fit
// the largest value observed in the round.
var initialFieldWidths = []int{2, 2, 6, 6, 6, 6, 4, 4, 5, 5, 5, 5, 2, 2, 2, 2, 2}

// Render displays one sampling round as an aligned table.
//
// Each cell contributes the last line of its output as the value row.
// The two header lines come from the first cell reporting both; they are
// suppressed after the first round when the option string carries -n.
// Minimum, Maximum, and Average rows follow when more than one cell
// reported.
func Render(w io.Writer, cells []string, results *executor.Results, opts string, round int) {
	widths := append([]int(nil), initialFieldWidths...)
	stats := NewStats()

	now := time.Now().Format("15:04:05")
	maxLabel := len(now)
	for _, label := range []string{"Minimum", "Maximum", "Average"} {
		if len(label) > maxLabel {
			maxLabel = len(label)
		}
	}

	for _, cell := range cells {
		output, ok := results.Output[cell]
		if !ok || len(output) == 0 {
			continue
		}
		if len(cell) > maxLabel {
			maxLabel = len(cell)
		}
		fields := strings.Fields(output[len(output)-1])
		stats.AddRow(fields)
		for i, f := range fields {
			if i == len(widths) {
				widths = append(widths, len(f))
			} else if i < len(widths) && widths[i] < len(f) {
				widths[i] = len(f)
			}
		}
	}

	if round == 0 || !strings.Contains(opts, "-n") {
		for _, cell := range cells {
			output := results.Output[cell]
			if len(output) < 2 {
				continue
			}
			fmt.Fprintf(w, "%s %s\n", strings.Repeat(" ", maxLabel),
				formatLine(header1Widths, strings.Fields(output[0])))
			fmt.Fprintf(w, "%s:%s\n", rjust(now, maxLabel),
				formatLine(widths, strings.Fields(output[1])))
			break
		}
	}

	for _, cell := range cells {
		output, ok := results.Output[cell]
		if !ok || len(output) == 0 {
			continue
		}
		fields := strings.Fields(output[len(output)-1])
		fmt.Fprintf(w, "%s:%s\n", rjust(cell, maxLabel), formatLine(widths, fields))
	}

	if stats.Cells() > 1 {
		fmt.Fprintf(w, "%s:%s\n", rjust("Minimum", maxLabel), formatInts(widths, stats.Minimum()))
		fmt.Fprintf(w, "%s:%s\n", rjust("Maximum", maxLabel), formatInts(widths, stats.Maximum()))
		fmt.Fprintf(w, "%s:%s\n", rjust("Average", maxLabel), formatInts(widths, stats.Average()))
	}
}

// formatLine right-justifies each value in its column width, with a
// trailing space per field.
func formatLine(widths []int, values []string) string {
	var b strings.Builder
	for i, v := range values {
		w := 0
		if i < len(widths) {
			w = widths[i]
		}
		b.WriteString(rjust(v, w))
		b.WriteByte(' ')
	}
	return b.String()
}

func formatInts(widths []int, values []int) string {
	strs := make([]string, len(values))
	for i, v := range values {
		strs[i] = strconv.Itoa(v)
	}
	return formatLine(widths, strs)
}

func rjust(s string, width int) string {
	return fmt.Sprintf("%*s", width, s)
}
