// Package config holds the defaults file and the per-invocation run
// configuration for cellsh.
//
// Defaults come from ~/.cellsh/config.toml and are overlaid by command line
// flags into an immutable RunConfig snapshot. Validation distinguishes two
// fatal categories: UsageError for contradictory options and EnvError for a
// broken environment (missing binaries, keys, or input files). Per-cell
// failures are never errors; they live in the result store.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults mirrors the optional TOML defaults file.
type Defaults struct {
	Transport TransportConfig `toml:"transport"`
	Run       RunDefaults     `toml:"run"`
	Log       LogConfig       `toml:"log"`
}

// TransportConfig locates the external transport binaries and the probe
// parameters.
type TransportConfig struct {
	SSHPath      string `toml:"ssh_path"`
	SCPPath      string `toml:"scp_path"`
	Port         int    `toml:"port"`
	ProbeTimeout string `toml:"probe_timeout"` // parsed as duration
}

// RunDefaults contains default execution settings.
type RunDefaults struct {
	User     string `toml:"user"`
	MaxLines int    `toml:"max_lines"`
}

// LogConfig contains logging configuration.
type LogConfig struct {
	Level    string `toml:"level"`
	NoColor  bool   `toml:"no_color"`
	ShowTime bool   `toml:"show_time"`
}

// LoadDefaults reads the defaults file, falling back to built-in values when
// the file is absent. An empty path means ~/.cellsh/config.toml.
func LoadDefaults(path string) (*Defaults, error) {
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".cellsh", "config.toml")
	}

	d := &Defaults{
		Transport: TransportConfig{
			SSHPath:      "/usr/bin/ssh",
			SCPPath:      "/usr/bin/scp",
			Port:         22,
			ProbeTimeout: "1s",
		},
		Run: RunDefaults{
			User:     "celladmin",
			MaxLines: 100000,
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if _, err := os.Stat(path); err != nil {
		return d, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &EnvError{Msg: fmt.Sprintf("cannot read defaults file %s", path), Err: err}
	}
	if err := toml.Unmarshal(data, d); err != nil {
		return nil, &EnvError{Msg: fmt.Sprintf("cannot parse defaults file %s", path), Err: err}
	}
	return d, nil
}

// ProbeTimeoutDuration parses the probe timeout, defaulting to one second.
func (d *Defaults) ProbeTimeoutDuration() time.Duration {
	t, err := time.ParseDuration(d.Transport.ProbeTimeout)
	if err != nil || t <= 0 {
		return time.Second
	}
	return t
}

// RunConfig is the immutable configuration snapshot for one invocation.
type RunConfig struct {
	// Cell selection
	Cells     []string // repeatable -c values, comma separated
	GroupFile string   // -g file of cells, # comments ignored

	// Remote work
	Args      []string // command words after options
	CopyFiles []string // -f files to copy
	ExecFile  string   // -x file to copy and execute
	DestFile  string   // -d destination directory or file

	// Transport pass-through
	User       string
	SSHOptions string
	SCPOptions string

	// Flags
	PushKey       bool
	DropKey       bool
	HideStderr    bool
	Serialize     bool
	ShowBanner    bool
	ListOnly      bool
	ListNegatives bool
	Regexp        string

	// Limits
	BatchSize int // 0 means one batch of all cells
	MaxLines  int

	// Sampling
	VmstatSet bool
	VmstatOps string

	Verbose bool

	// Environment
	SSHPath      string
	SCPPath      string
	Port         int
	ProbeTimeout time.Duration
}

// HasWork reports whether the invocation requests anything beyond listing.
func (c *RunConfig) HasWork() bool {
	return len(c.Args) > 0 || c.ExecFile != "" || len(c.CopyFiles) > 0 ||
		c.PushKey || c.DropKey || c.VmstatSet
}

// Validate checks the option combinations that are rejected before any cell
// is contacted.
func (c *RunConfig) Validate() error {
	if len(c.Args) == 0 && !c.ListOnly && c.ExecFile == "" && len(c.CopyFiles) == 0 &&
		!c.PushKey && !c.DropKey && !c.VmstatSet {
		return Usagef("No command specified.")
	}
	if len(c.Args) > 0 && c.ExecFile != "" {
		return Usagef("Cannot specify both command and exec file")
	}
	if len(c.CopyFiles) > 0 && c.ExecFile != "" {
		return Usagef("Cannot specify both copy file and exec file")
	}
	if c.HideStderr && len(c.Args) == 0 {
		return Usagef("hidestderr option is only used when remote command is specified")
	}
	if c.ListNegatives && c.Regexp != "" {
		return Usagef("Cannot specify both non-error and regular expression abbreviation options")
	}
	if c.VmstatSet {
		if c.ExecFile != "" || len(c.CopyFiles) > 0 || len(c.Args) > 0 {
			return Usagef("Cannot specify vmstat option with copy file, exec file, or command")
		}
		if c.ListNegatives || c.Regexp != "" {
			return Usagef("Cannot specify vmstat option with abbreviate options")
		}
	}
	if c.BatchSize != 0 {
		if c.Serialize {
			return Usagef("Cannot specify both serial mode and batch mode")
		}
		if c.BatchSize < 1 {
			return Usagef("Cannot specify batchsize less than 1")
		}
	}
	if c.DestFile != "" && c.ExecFile == "" && len(c.CopyFiles) == 0 {
		return Usagef("Cannot specify destination without copy file or exec file")
	}
	return nil
}

// CheckFile verifies existence and permissions of a file to be copied or
// executed remotely. Shell-style globs and ~ are expanded; every match must
// exist, and an exec file must be a regular file with the owner execute bit.
func CheckFile(path string, isExec bool) ([]string, error) {
	files, err := findFiles(path)
	if err != nil || len(files) == 0 {
		return nil, Envf("File does not exist: %s", path)
	}
	for _, f := range files {
		fi, err := os.Stat(f)
		if err != nil {
			return nil, Envf("File does not exist: %s", f)
		}
		if isExec {
			if !fi.Mode().IsRegular() {
				return nil, Envf("Exec file is not a regular file: %s", f)
			}
			if fi.Mode().Perm()&0100 == 0 {
				return nil, Envf("Exec file does not have owner execute permissions")
			}
		} else if !fi.Mode().IsRegular() && !fi.IsDir() {
			return nil, Envf("File is not a regular file or directory: %s", f)
		}
	}
	return files, nil
}

// findFiles expands ~ and environment variables, then globs.
func findFiles(path string) ([]string, error) {
	path = os.ExpandEnv(path)
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			if len(path) == 1 {
				path = home
			} else if path[1] == '/' {
				path = filepath.Join(home, path[2:])
			}
		}
	}
	return filepath.Glob(path)
}
