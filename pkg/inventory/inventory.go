// Package inventory builds the ordered, de-duplicated list of target cells
// from inline lists and an optional group file.
package inventory

import (
	"bufio"
	"os"
	"strings"

	"github.com/cellsh/cellsh/pkg/config"
)

// BuildCellList returns the unique cells to be contacted, preserving the
// order in which they were given.
//
// groupFile is read first: each non-empty line that does not start with # is
// one cell. The inline lists are comma separated and appended afterwards.
func BuildCellList(cells []string, groupFile string) ([]string, error) {
	var list []string

	if groupFile != "" {
		groupFile = strings.TrimSpace(groupFile)
		f, err := os.Open(groupFile)
		if err != nil {
			return nil, &config.EnvError{Msg: "I/O error on " + groupFile, Err: err}
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if len(line) > 0 && !strings.HasPrefix(line, "#") {
				list = append(list, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, &config.EnvError{Msg: "I/O error on " + groupFile, Err: err}
		}
	}

	for _, cline := range cells {
		for _, cell := range strings.Split(cline, ",") {
			list = append(list, strings.TrimSpace(cell))
		}
	}

	var unique []string
	seen := make(map[string]bool)
	for _, c := range list {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		unique = append(unique, c)
	}
	return unique, nil
}
