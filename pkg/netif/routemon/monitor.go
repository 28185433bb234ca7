//go:build linux || darwin || freebsd || netbsd

package routemon

import (
	"golang.org/x/sys/unix"
)

// Monitor owns the kernel notification socket for one interface.
type Monitor struct {
	fd      int
	ifIndex int
}

// Fd returns the notification descriptor for readiness registration.
func (m *Monitor) Fd() int {
	return m.fd
}

// Close releases the notification socket.  Safe to call more than once.
func (m *Monitor) Close() error {
	if m.fd == -1 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}
