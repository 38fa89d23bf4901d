// Package probe resolves cell names and tests whether their transport port
// accepts connections.
package probe

import (
	"net"
	"strconv"
	"time"

	"github.com/cellsh/cellsh/pkg/logger"
)

// Cell is a reachable cell paired with its resolved socket address.
type Cell struct {
	Name string // identifier as given by the user
	Addr string // resolved IP address, IPv4 preferred
}

// HostPort returns the cell's address joined with the probe port, bracketing
// IPv6 addresses.
func (c Cell) HostPort(port int) string {
	return net.JoinHostPort(c.Addr, strconv.Itoa(port))
}

// Prober partitions a cell list into reachable and unreachable sets.
type Prober struct {
	Port    int
	Timeout time.Duration
	Log     *logger.Logger

	// dial is swappable for tests.
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)
}

// New creates a Prober with the given transport port and connect timeout.
func New(port int, timeout time.Duration, log *logger.Logger) *Prober {
	if timeout <= 0 {
		timeout = time.Second
	}
	return &Prober{Port: port, Timeout: timeout, Log: log, dial: net.DialTimeout}
}

// Test resolves and probes every cell, returning the reachable cells with
// their addresses and the names of the unreachable ones. An individual
// resolution or connect failure never returns an error; it classifies the
// cell as unreachable.
func (p *Prober) Test(cells []string) (good []Cell, bad []string) {
	for _, cell := range cells {
		c, ok := p.testOne(cell)
		if ok {
			good = append(good, c)
		} else {
			bad = append(bad, cell)
		}
	}
	return good, bad
}

func (p *Prober) testOne(name string) (Cell, bool) {
	ips, err := net.LookupIP(name)
	if err != nil || len(ips) == 0 {
		if p.Log != nil {
			p.Log.Debug("resolve error for %s: %v", name, err)
		}
		return Cell{}, false
	}

	// Prefer an IPv4 address, fall back to IPv6.
	var addr string
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			addr = v4.String()
			break
		}
		if addr == "" {
			addr = ip.String()
		}
	}
	if addr == "" {
		return Cell{}, false
	}

	c := Cell{Name: name, Addr: addr}
	conn, err := p.dial("tcp", c.HostPort(p.Port), p.Timeout)
	if err != nil {
		if p.Log != nil {
			p.Log.Debug("connect error for %s: %v", name, err)
		}
		return Cell{}, false
	}
	conn.Close()
	return c, true
}
