//go:build darwin || freebsd || netbsd

package routemon

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Open creates a non-blocking routing socket.  The kernel broadcasts every
// routing message to every listener, so filtering to the owned interface
// happens during decode.
func Open(ifIndex int) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening routing socket: %w", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error setting routing socket non-blocking: %w", err)
	}
	unix.CloseOnExec(fd)
	return &Monitor{fd: fd, ifIndex: ifIndex}, nil
}

// Receive drains all pending routing messages, one per read, and returns
// the decoded events for the owned interface.
func (m *Monitor) Receive() ([]Event, error) {
	buf := make([]byte, 2048)
	var events []Event
	for {
		n, err := unix.Read(m.fd, buf)
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("routing socket read: %w", err)
		}
		if n <= 0 {
			return events, nil
		}
		if ev, ok := decodeRouteMessage(buf[:n], m.ifIndex, rtParams); ok {
			events = append(events, ev)
		}
	}
}
