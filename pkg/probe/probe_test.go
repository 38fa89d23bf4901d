package probe

import (
	"net"
	"testing"
	"time"
)

func TestHostPort(t *testing.T) {
	c := Cell{Name: "cell01", Addr: "10.0.0.1"}
	if got := c.HostPort(22); got != "10.0.0.1:22" {
		t.Errorf("HostPort = %q", got)
	}
	c = Cell{Name: "fe80::1", Addr: "fe80::1"}
	if got := c.HostPort(22); got != "[fe80::1]:22" {
		t.Errorf("HostPort = %q", got)
	}
}

func TestTestReachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	p := New(port, time.Second, nil)
	good, bad := p.Test([]string{"localhost"})
	if len(bad) != 0 {
		t.Fatalf("unexpected unreachable cells: %v", bad)
	}
	if len(good) != 1 || good[0].Name != "localhost" {
		t.Fatalf("good = %v", good)
	}
	if good[0].Addr == "" {
		t.Error("reachable cell has no resolved address")
	}
}

func TestTestUnreachable(t *testing.T) {
	// grab a free port and close it again so the connect is refused
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := l.Addr().(*net.TCPAddr).Port
	l.Close()

	p := New(port, 200*time.Millisecond, nil)
	good, bad := p.Test([]string{"localhost", "no-such-host.invalid"})
	if len(good) != 0 {
		t.Errorf("unexpected reachable cells: %v", good)
	}
	if len(bad) != 2 {
		t.Errorf("bad = %v", bad)
	}
}

func TestTestPartitionCoversAll(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port

	p := New(port, time.Second, nil)
	good, bad := p.Test([]string{"localhost", "no-such-host.invalid"})
	if len(good)+len(bad) != 2 {
		t.Errorf("partition lost a cell: good=%v bad=%v", good, bad)
	}
	if len(bad) != 1 || bad[0] != "no-such-host.invalid" {
		t.Errorf("bad = %v", bad)
	}
}
