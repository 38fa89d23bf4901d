package runner

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutput(t *testing.T) {
	r := &Runner{MaxLines: 100}
	res := r.Run(context.Background(), "cell01", "echo one; echo two")
	if res.Status != 0 {
		t.Fatalf("status = %d", res.Status)
	}
	if !reflect.DeepEqual(res.Lines, []string{"one", "two"}) {
		t.Errorf("lines = %v", res.Lines)
	}
}

func TestRunExitStatus(t *testing.T) {
	r := &Runner{MaxLines: 100}
	res := r.Run(context.Background(), "cell01", "exit 3")
	if res.Status != 3 {
		t.Errorf("status = %d, want 3", res.Status)
	}
}

func TestRunDiagPrintedOnFailure(t *testing.T) {
	var out bytes.Buffer
	r := &Runner{MaxLines: 100, Out: &out}
	res := r.Run(context.Background(), "cell01", "echo oops >&2; exit 1")
	if res.Status != 1 {
		t.Fatalf("status = %d", res.Status)
	}
	// without a remote command step, failures surface the stderr capture
	if got := out.String(); got != "cell01:oops\n" {
		t.Errorf("diagnostic output = %q", got)
	}
	if len(res.Diag) != 1 || res.Diag[0] != "oops" {
		t.Errorf("diag = %v", res.Diag)
	}
}

func TestRunDiagSilentOnRemoteFailure(t *testing.T) {
	var out bytes.Buffer
	r := &Runner{MaxLines: 100, HasRemoteCmd: true, Out: &out}
	res := r.Run(context.Background(), "cell01", "echo warn >&2; exit 1")
	if res.Status != 1 {
		t.Fatalf("status = %d", res.Status)
	}
	// a failing remote command keeps its stderr out of the display
	if out.Len() != 0 {
		t.Errorf("unexpected diagnostic output: %q", out.String())
	}
}

func TestRunShowBanner(t *testing.T) {
	r := &Runner{MaxLines: 100, HasRemoteCmd: true, ShowBanner: true}
	res := r.Run(context.Background(), "cell01", "echo banner >&2; echo out")
	want := []string{"******BANNER******", "banner", "******BANNER******", "out"}
	if !reflect.DeepEqual(res.Lines, want) {
		t.Errorf("lines = %v, want %v", res.Lines, want)
	}
}

func TestRunTruncates(t *testing.T) {
	var warn bytes.Buffer
	var flushed [][]string
	r := &Runner{
		MaxLines: 5,
		Warn:     &warn,
		Flush: func(cell string, lines []string) {
			flushed = append(flushed, lines)
		},
	}
	res := r.Run(context.Background(), "cell01", "seq 1 100")
	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if res.Status != 1 {
		t.Errorf("status = %d, want 1", res.Status)
	}
	if len(res.Lines) != 0 {
		t.Errorf("truncated run should not keep lines: %v", res.Lines)
	}
	// the chunk that hit the cap is still displayed
	if len(flushed) != 1 || len(flushed[0]) != 6 {
		t.Errorf("flushed = %v", flushed)
	}
	if !strings.Contains(warn.String(), "output is truncated") {
		t.Errorf("warning = %q", warn.String())
	}
	if !strings.Contains(warn.String(), "--serial") {
		t.Errorf("warning should suggest serial mode: %q", warn.String())
	}
}

func TestRunChunked(t *testing.T) {
	var warn bytes.Buffer
	var flushed [][]string
	r := &Runner{
		MaxLines:      2,
		DisplayChunks: true,
		Warn:          &warn,
		Flush: func(cell string, lines []string) {
			flushed = append(flushed, lines)
		},
	}
	res := r.Run(context.Background(), "cell01", "seq 1 5")
	if res.Truncated {
		t.Fatal("chunked mode must not truncate")
	}
	if res.Status != 0 {
		t.Errorf("status = %d", res.Status)
	}
	if len(flushed) != 1 || !reflect.DeepEqual(flushed[0], []string{"1", "2", "3"}) {
		t.Errorf("flushed = %v", flushed)
	}
	if !reflect.DeepEqual(res.Lines, []string{"4", "5"}) {
		t.Errorf("remaining lines = %v", res.Lines)
	}
	if warn.Len() != 0 {
		t.Errorf("unexpected warning: %q", warn.String())
	}
}

func TestRunTruncationKillsChild(t *testing.T) {
	var warn bytes.Buffer
	r := &Runner{
		MaxLines: 5,
		Warn:     &warn,
		Flush:    func(string, []string) {},
	}

	// the child would write forever; truncation must terminate it and
	// drain the pipe before the run returns
	start := time.Now()
	res := r.Run(context.Background(), "cell01", "yes truncate-me")
	elapsed := time.Since(start)

	if !res.Truncated {
		t.Fatal("expected truncation")
	}
	if res.Status != 1 {
		t.Errorf("status = %d, want 1", res.Status)
	}
	if elapsed > GracePeriod+3*time.Second {
		t.Errorf("run did not terminate promptly: %v", elapsed)
	}
}

func TestRunCancelTerminatesChild(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	r := &Runner{MaxLines: 100}
	start := time.Now()
	res := r.Run(ctx, "cell01", "sleep 60")
	elapsed := time.Since(start)

	if res.Status == 0 {
		t.Error("cancelled run reported success")
	}
	if elapsed > GracePeriod+3*time.Second {
		t.Errorf("run did not terminate promptly: %v", elapsed)
	}
}
