// Package vmstat implements the periodic statistics sampling mode: option
// parsing, per-round column statistics, and the aligned table rendering.
package vmstat

import (
	"fmt"
	"strconv"
	"strings"
)

// Infinite is the repeat count meaning "sample until interrupted".
const Infinite = -1

// nonPeriodicFlags are vmstat report modes incompatible with periodic
// sampling.
var nonPeriodicFlags = map[string]bool{
	"-f": true, "-s": true, "-m": true, "-p": true, "-D": true, "-d": true, "-V": true,
}

// Parse examines a free-form vmstat option string for periodic sampling.
//
// An empty string requests one immediate sample. One number is the delay
// between samples with infinite repeats; two numbers are delay and repeat
// count. A non-periodic flag, a value below 1, or more than two numbers
// disqualify periodic mode and ok is false. The returned command keeps a
// trailing space; the sampling loop appends the per-round sample count.
//
//	opts        repeat  command
//	""          1       "vmstat 1 "
//	"3"         -1      "vmstat 3 "
//	"3 10"      10      "vmstat 3 "
//	"2 1"       1       "vmstat 2 "
//	"-a 3"      -1      "vmstat -a 3 "
func Parse(opts string) (repeat int, command string, ok bool) {
	delay := 0
	hasDelay := false
	hasRepeat := false
	command = "vmstat "

	for _, op := range strings.Fields(opts) {
		if nonPeriodicFlags[op] {
			return 0, "", false
		}
		if num, err := strconv.Atoi(op); err == nil {
			if num < 1 {
				return 0, "", false
			}
			if hasRepeat {
				// more than two numbers as options
				return 0, "", false
			}
			if hasDelay {
				repeat = num
				hasRepeat = true
			} else {
				delay = num
				hasDelay = true
			}
			continue
		}
		if op != "-n" {
			// -n is handled by the renderer
			command += op + " "
		}
	}

	if hasDelay {
		command += fmt.Sprintf("%d ", delay)
		if !hasRepeat {
			repeat = Infinite
		}
	} else {
		// without delay, one immediate sample
		command += "1 "
		repeat = 1
	}
	return repeat, command, true
}

// Stats accumulates per-column minimum, maximum, and sum for one round.
type Stats struct {
	min   []int
	max   []int
	total []int
	seen  []bool
	cells int
}

// NewStats returns an empty per-round accumulator.
func NewStats() *Stats {
	return &Stats{}
}

func (s *Stats) grow(i int) {
	for len(s.min) <= i {
		s.min = append(s.min, 0)
		s.max = append(s.max, 0)
		s.total = append(s.total, 0)
		s.seen = append(s.seen, false)
	}
}

// AddRow folds one cell's sample row into the round's statistics. Fields
// that are not integers keep their column position but contribute nothing.
func (s *Stats) AddRow(fields []string) {
	s.cells++
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		s.grow(i)
		if !s.seen[i] {
			s.min[i] = v
			s.max[i] = v
			s.seen[i] = true
		} else {
			if v < s.min[i] {
				s.min[i] = v
			}
			if v > s.max[i] {
				s.max[i] = v
			}
		}
		s.total[i] += v
	}
}

// Cells returns how many rows were folded in.
func (s *Stats) Cells() int {
	return s.cells
}

// Minimum returns the per-column minima.
func (s *Stats) Minimum() []int {
	return s.min
}

// Maximum returns the per-column maxima.
func (s *Stats) Maximum() []int {
	return s.max
}

// Average returns the per-column averages, rounded to the nearest integer.
func (s *Stats) Average() []int {
	avg := make([]int, len(s.total))
	for i, t := range s.total {
		if s.cells > 0 {
			half := s.cells / 2
			if t >= 0 {
				avg[i] = (t + half) / s.cells
			} else {
				avg[i] = (t - half) / s.cells
			}
		}
	}
	return avg
}
