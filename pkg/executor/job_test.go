package executor

import (
	"strings"
	"testing"

	"github.com/cellsh/cellsh/pkg/config"
	"github.com/cellsh/cellsh/pkg/probe"
)

func TestBuildCommand(t *testing.T) {
	if got := BuildCommand([]string{"date", "-u"}, false); got != "( date -u) 2>&1" {
		t.Errorf("BuildCommand = %q", got)
	}
	if got := BuildCommand([]string{"date"}, true); got != "( date) 2>/dev/null" {
		t.Errorf("BuildCommand = %q", got)
	}
}

func TestQuoteCommand(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"( date) 2>&1", "'( date) 2>&1'"},
		{"echo it's", `'echo it'\''s'`},
		{"'already quoted'", "'already quoted'"},
		{`"already quoted"`, `"already quoted"`},
	}
	for _, tt := range tests {
		if got := QuoteCommand(tt.in); got != tt.want {
			t.Errorf("QuoteCommand(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBuildJobCommand(t *testing.T) {
	cfg := &config.RunConfig{Args: []string{"date", "-u"}, User: "celladmin"}
	job := BuildJob(cfg, nil)
	if job.Command != "'( date -u) 2>&1'" {
		t.Errorf("command = %q", job.Command)
	}
	if len(job.Files) != 0 {
		t.Errorf("unexpected files: %v", job.Files)
	}
}

func TestBuildJobExecFile(t *testing.T) {
	cfg := &config.RunConfig{ExecFile: "/local/patch.sh", User: "celladmin"}
	job := BuildJob(cfg, nil)

	if len(job.Files) != 1 || job.Files[0] != "/local/patch.sh" {
		t.Errorf("files = %v", job.Files)
	}
	if job.DestName != "patch.sh" {
		t.Errorf("destname = %q", job.DestName)
	}
	// the remote side decides whether the destination was a directory
	if !strings.Contains(job.Command, "if [[ -d patch.sh ]]") {
		t.Errorf("command missing directory test: %q", job.Command)
	}
	if !strings.Contains(job.Command, "./patch.sh/patch.sh") {
		t.Errorf("command missing directory form: %q", job.Command)
	}
	if !strings.Contains(job.Command, "else ./patch.sh ;") {
		t.Errorf("command missing file form: %q", job.Command)
	}
}

func TestBuildJobExecFileWithDest(t *testing.T) {
	cfg := &config.RunConfig{ExecFile: "/local/patch.sh", DestFile: "/opt/stage"}
	job := BuildJob(cfg, nil)
	if job.DestName != "/opt/stage" {
		t.Errorf("destname = %q", job.DestName)
	}
	if !strings.Contains(job.Command, "/opt/stage/patch.sh") {
		t.Errorf("command = %q", job.Command)
	}
}

func TestBuildJobScriptFile(t *testing.T) {
	cfg := &config.RunConfig{ExecFile: "/local/report.scl"}
	job := BuildJob(cfg, nil)
	if !strings.Contains(job.Command, "cellcli -e @report.scl") {
		t.Errorf("script not dispatched through cellcli: %q", job.Command)
	}
}

func TestWithCommand(t *testing.T) {
	cfg := &config.RunConfig{ExecFile: "/local/patch.sh", PushKey: true}
	job := BuildJob(cfg, []string{"KEY1"})
	clone := job.WithCommand("vmstat 3 2")

	if clone.Command != "'vmstat 3 2'" {
		t.Errorf("command = %q", clone.Command)
	}
	if len(clone.Files) != 0 || clone.PushKey || clone.DropKey {
		t.Error("clone kept copy or key steps")
	}
	// the original job is untouched
	if len(job.Files) != 1 || !job.PushKey {
		t.Error("original job modified by WithCommand")
	}
}

func TestScpHost(t *testing.T) {
	j := &Job{User: "celladmin"}
	if got := j.scpHost(probe.Cell{Name: "cell01"}); got != "celladmin@cell01" {
		t.Errorf("scpHost = %q", got)
	}
	if got := j.scpHost(probe.Cell{Name: "fe80::1"}); got != "celladmin@[fe80::1]" {
		t.Errorf("scpHost = %q", got)
	}
	j = &Job{}
	if got := j.scpHost(probe.Cell{Name: "cell01"}); got != "cell01" {
		t.Errorf("scpHost = %q", got)
	}
}

func TestCopyCmdLine(t *testing.T) {
	cfg := &config.RunConfig{CopyFiles: []string{"a.txt", "b.txt"}, DestFile: "/tmp", User: "celladmin"}
	job := BuildJob(cfg, nil)
	line := job.copyCmdLine("/usr/bin/scp", probe.Cell{Name: "cell01"})
	if !strings.Contains(line, "a.txt b.txt celladmin@cell01:/tmp") {
		t.Errorf("copy command = %q", line)
	}
}

func TestCopyCmdLineExecPayload(t *testing.T) {
	cfg := &config.RunConfig{ExecFile: "/local/patch.sh"}
	job := BuildJob(cfg, nil)
	line := job.copyCmdLine("/usr/bin/scp", probe.Cell{Name: "cell01"})
	// timestamps are preserved for executable payloads
	if !strings.Contains(line, "-p ") {
		t.Errorf("copy command missing -p: %q", line)
	}
}

func TestExecCmdLineOptions(t *testing.T) {
	cfg := &config.RunConfig{Args: []string{"date"}, User: "root", SSHOptions: "-o ConnectTimeout=5"}
	job := BuildJob(cfg, nil)
	line := job.execCmdLine("/usr/bin/ssh", probe.Cell{Name: "cell01"})
	if !strings.HasPrefix(line, "/usr/bin/ssh -o ConnectTimeout=5 -l root cell01 ") {
		t.Errorf("exec command = %q", line)
	}
}
