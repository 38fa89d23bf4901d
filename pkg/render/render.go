// Package render lists aggregated results in canonical cell order, with
// optional failures-only or regular-expression abbreviation.
package render

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/cellsh/cellsh/pkg/config"
	"github.com/cellsh/cellsh/pkg/executor"
)

// Presenter renders result stores. The two abbreviation modes are mutually
// exclusive; that is validated before any cell is contacted.
type Presenter struct {
	ListNegatives bool
	Out           io.Writer

	rawPattern string
	pattern    *regexp.Regexp // anchored at line start
}

// NewPresenter builds a presenter. pattern may be empty; a malformed pattern
// is a usage error.
func NewPresenter(listNegatives bool, pattern string, out io.Writer) (*Presenter, error) {
	if listNegatives && pattern != "" {
		return nil, config.Usagef("Cannot specify both non-error and regular expression abbreviation options")
	}
	p := &Presenter{ListNegatives: listNegatives, Out: out, rawPattern: pattern}
	if p.Out == nil {
		p.Out = os.Stdout
	}
	if pattern != "" {
		re, err := regexp.Compile("^(?:" + pattern + ")")
		if err != nil {
			return nil, config.Usagef("invalid regular expression %q: %v", pattern, err)
		}
		p.pattern = re
	}
	return p, nil
}

// List renders output for every cell in canonical order.
//
// In failures-only mode the cells with status zero are listed first, then
// output lines only for failing cells. In pattern mode the cells having at
// least one matching line are listed first, then all non-matching lines.
func (p *Presenter) List(cells []string, results *executor.Results) {
	if p.ListNegatives {
		var okCells []string
		for _, cell := range cells {
			if status, ok := results.Status[cell]; ok && status == 0 {
				okCells = append(okCells, cell)
			}
		}
		if len(okCells) > 0 {
			fmt.Fprintf(p.Out, "OK: %v\n", okCells)
		}
	}

	if p.pattern != nil {
		var reCells []string
		for _, cell := range cells {
			output, ok := results.Output[cell]
			if !ok {
				continue
			}
			for _, l := range output {
				if p.pattern.MatchString(strings.TrimSpace(l)) {
					reCells = append(reCells, cell)
					break
				}
			}
		}
		if len(reCells) > 0 {
			fmt.Fprintf(p.Out, "%s: %v\n", p.rawPattern, reCells)
		}
	}

	for _, cell := range cells {
		output, ok := results.Output[cell]
		if !ok {
			continue
		}
		if p.ListNegatives && results.Status[cell] == 0 {
			continue
		}
		for _, l := range output {
			line := strings.TrimSpace(l)
			if p.pattern != nil && p.pattern.MatchString(line) {
				continue
			}
			fmt.Fprintf(p.Out, "%s: %s\n", cell, line)
		}
	}
}

// ListOne renders a chunk of output for a single cell before its run has
// finished, using the same abbreviation settings.
func (p *Presenter) ListOne(cell string, lines []string) {
	res := executor.NewResults()
	res.Status[cell] = 0
	res.Output[cell] = lines
	p.List([]string{cell}, res)
}
