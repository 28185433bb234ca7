//go:build linux

package routemon

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Open creates a non-blocking rtnetlink socket subscribed to the link and
// IPv6 address notification groups.
func Open(ifIndex int) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, fmt.Errorf("error opening netlink socket: %w", err)
	}
	sa := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: unix.RTMGRP_LINK | unix.RTMGRP_IPV6_IFADDR,
	}
	if err = unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error binding netlink socket: %w", err)
	}
	return &Monitor{fd: fd, ifIndex: ifIndex}, nil
}

// Receive drains all pending netlink messages and returns the decoded
// events for the owned interface.
func (m *Monitor) Receive() ([]Event, error) {
	buf := make([]byte, 8192)
	var events []Event
	for {
		n, err := unix.Read(m.fd, buf)
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return events, nil
		}
		if err != nil {
			return events, fmt.Errorf("netlink read: %w", err)
		}
		if n <= 0 {
			return events, nil
		}
		events = append(events, decodeNetlink(buf[:n], m.ifIndex)...)
	}
}
