package executor

import (
	"net"
	"path"
	"regexp"
	"strings"

	"github.com/cellsh/cellsh/pkg/config"
	"github.com/cellsh/cellsh/pkg/keys"
	"github.com/cellsh/cellsh/pkg/probe"
)

// Job is the ordered per-cell pipeline derived from one RunConfig: an
// optional key-push step, an optional copy step, an optional command step,
// and an optional key-drop step. It is built once per invocation and shared
// read-only by every job executor.
type Job struct {
	PushKey bool
	DropKey bool
	Keys    []string

	Files    []string // files for the copy step
	DestName string   // scp destination, may be empty

	Command string // quoted remote command, empty when none

	User       string
	SSHOptions string
	SCPOptions string
	ShowBanner bool

	execPayload bool // the copy carries an executable payload
}

// scriptExt is the extension dispatched through the cellcli interpreter
// instead of direct execution.
const scriptExt = ".scl"

// BuildJob derives the pipeline from the run configuration. sshKeys may be
// nil when neither key step was requested.
func BuildJob(cfg *config.RunConfig, sshKeys []string) *Job {
	job := &Job{
		PushKey:    cfg.PushKey,
		DropKey:    cfg.DropKey,
		Keys:       sshKeys,
		User:       cfg.User,
		SSHOptions: cfg.SSHOptions,
		SCPOptions: cfg.SCPOptions,
		ShowBanner: cfg.ShowBanner,
	}

	command := ""
	if len(cfg.Args) > 0 {
		command = BuildCommand(cfg.Args, cfg.HideStderr)
	}

	if len(cfg.CopyFiles) > 0 {
		for _, f := range cfg.CopyFiles {
			job.Files = append(job.Files, strings.TrimSpace(f))
		}
		job.DestName = ""
	}

	if cfg.ExecFile != "" {
		execFile := strings.TrimSpace(cfg.ExecFile)
		job.Files = append(job.Files, execFile)
		job.execPayload = true

		basename := path.Base(execFile)
		destname := basename
		if cfg.DestFile != "" {
			destname = cfg.DestFile
		}
		job.DestName = destname

		// The payload may land in a directory or under a different file
		// name; the remote side decides at execution time.
		command = "("
		if strings.HasSuffix(execFile, scriptExt) {
			command += "if [[ -d " + destname + " ]]; then cellcli -e @" +
				destname + "/" + basename + " ; else cellcli -e @" +
				destname + " ; fi"
		} else {
			absdestname := destname
			if !path.IsAbs(destname) {
				absdestname = "./" + destname
			}
			command += "if [[ -d " + destname + " ]]; then " +
				absdestname + "/" + basename + " ; else " +
				absdestname + " ; fi"
		}
		command += ")"
		if cfg.HideStderr {
			command += " 2>/dev/null"
		} else {
			command += " 2>&1"
		}
	} else if cfg.DestFile != "" {
		job.DestName = cfg.DestFile
	}

	job.Command = QuoteCommand(command)
	return job
}

// WithCommand returns a copy of the job carrying only the given raw command,
// used by the sampling loop which rewrites the command every round.
func (j *Job) WithCommand(raw string) *Job {
	clone := *j
	clone.Files = nil
	clone.PushKey = false
	clone.DropKey = false
	clone.Command = QuoteCommand(raw)
	return &clone
}

// BuildCommand joins the command words inside a subshell and routes remote
// stderr according to hideStderr.
func BuildCommand(args []string, hideStderr bool) string {
	command := "("
	for _, word := range args {
		command += " " + word
	}
	if hideStderr {
		command += ") 2>/dev/null"
	} else {
		command += ") 2>&1"
	}
	return command
}

var singleQuoted = regexp.MustCompile(`^'.*'$`)
var doubleQuoted = regexp.MustCompile(`^".*"$`)

// QuoteCommand encloses the command in single quotes so the remote shell
// does not interpret arguments. Pre-existing single quotes are escaped to
// survive; an already fully quoted command is left alone.
func QuoteCommand(command string) string {
	if command == "" {
		return command
	}
	if singleQuoted.MatchString(command) || doubleQuoted.MatchString(command) {
		return command
	}
	return "'" + strings.ReplaceAll(command, "'", `'\''`) + "'"
}

// command line assembly for the individual pipeline steps

func (j *Job) opString() string {
	op := " "
	if j.SSHOptions != "" {
		op += j.SSHOptions + " "
	}
	return op
}

func (j *Job) scpOpString() string {
	op := " "
	if j.SCPOptions != "" {
		op += j.SCPOptions + " "
	} else {
		op = j.opString()
	}
	// preserve timestamps on executable payloads
	if j.execPayload && !strings.Contains(op, "-p") {
		op += "-p "
	}
	return op
}

func (j *Job) sshUser() string {
	if j.User == "" {
		return ""
	}
	return "-l " + j.User + " "
}

// scpHost returns the copy target, bracketing raw IPv6 addresses and
// prefixing the login user.
func (j *Job) scpHost(cell probe.Cell) string {
	host := cell.Name
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}
	if j.User != "" {
		host = j.User + "@" + host
	}
	return host
}

// pushCmdLine builds the full key-push invocation for one cell.
func (j *Job) pushCmdLine(sshPath string, cell probe.Cell) string {
	return sshPath + j.opString() + j.sshUser() + cell.Name + " " + keys.PushCommand(j.Keys)
}

// dropCmdLine builds the full key-drop invocation for one cell.
func (j *Job) dropCmdLine(sshPath string, cell probe.Cell) string {
	return sshPath + j.opString() + j.sshUser() + cell.Name + " " + keys.DropCommand(j.Keys)
}

// copyCmdLine builds the scp invocation for one cell.
func (j *Job) copyCmdLine(scpPath string, cell probe.Cell) string {
	var list string
	for _, f := range j.Files {
		list += " " + f
	}
	return scpPath + j.scpOpString() + list + " " + j.scpHost(cell) + ":" + j.DestName
}

// execCmdLine builds the remote command invocation for one cell.
func (j *Job) execCmdLine(sshPath string, cell probe.Cell) string {
	return sshPath + j.opString() + j.sshUser() + cell.Name + " " + j.Command
}
