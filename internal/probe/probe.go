package probe

import (
	"net"
	"strconv"
	"time"
)

// DefaultTimeout bounds a single TCP connect attempt.
const DefaultTimeout = 1 * time.Second

// Prober checks whether a TCP listener is present on a port.
type Prober struct {
	host    string
	timeout time.Duration
}

// New creates a Prober for the given host. A zero timeout falls back to
// DefaultTimeout.
func New(host string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Prober{host: host, timeout: timeout}
}

// IsOpen reports whether a TCP connection to the port succeeds within the
// timeout. Connection errors and timeouts both resolve to false; the transient
// socket is closed immediately.
func (p *Prober) IsOpen(port int) bool {
	addr := net.JoinHostPort(p.host, strconv.Itoa(port))

	conn, err := net.DialTimeout("tcp", addr, p.timeout)
	if err != nil {
		return false
	}

	conn.Close()
	return true
}
