//go:build linux

package mldmon

import (
	"fmt"
	"net"

	"github.com/ghjm/meshbridge/pkg/mesh"
	"golang.org/x/sys/unix"
)

// allMLDv2Routers is ff02::16, the group every MLDv2 report is sent to.
var allMLDv2Routers = [16]byte{0xff, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x16}

// Monitor owns a raw ICMPv6 socket joined to the MLDv2 routers group on
// one interface.
type Monitor struct {
	fd         int
	ifName     string
	localAddrs func() ([]mesh.Addr, error)
}

// Open creates the snooping socket.  Joining ff02::16 must succeed or no
// reports will ever arrive, so a failure here fails the open.
func Open(ifName string, ifIndex int) (*Monitor, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_ICMPV6)
	if err != nil {
		return nil, fmt.Errorf("error opening MLD socket: %w", err)
	}
	mreq := &unix.IPv6Mreq{
		Multiaddr: allMLDv2Routers,
		Interface: uint32(ifIndex),
	}
	if err = unix.SetsockoptIPv6Mreq(fd, unix.IPPROTO_IPV6, unix.IPV6_JOIN_GROUP, mreq); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error joining MLDv2 routers group: %w", err)
	}
	if err = unix.BindToDevice(fd, ifName); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error binding MLD socket to %s: %w", ifName, err)
	}
	m := &Monitor{fd: fd, ifName: ifName}
	m.localAddrs = m.interfaceAddrs
	return m, nil
}

// Fd returns the snooping descriptor for readiness registration.
func (m *Monitor) Fd() int {
	return m.fd
}

// Close releases the snooping socket.  Safe to call more than once.
func (m *Monitor) Close() error {
	if m.fd == -1 {
		return nil
	}
	err := unix.Close(m.fd)
	m.fd = -1
	return err
}

// Receive drains pending reports and returns the membership decisions from
// those the host sent on the monitored interface.
func (m *Monitor) Receive() ([]Decision, error) {
	buf := make([]byte, 1536)
	var decisions []Decision
	var addrs []mesh.Addr
	for {
		n, from, err := unix.Recvfrom(m.fd, buf, 0)
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return decisions, nil
		}
		if err != nil {
			return decisions, fmt.Errorf("MLD socket read: %w", err)
		}
		if n <= 0 {
			return decisions, nil
		}
		sa, ok := from.(*unix.SockaddrInet6)
		if !ok {
			continue
		}
		if addrs == nil {
			addrs, err = m.localAddrs()
			if err != nil {
				return decisions, fmt.Errorf("error listing %s addresses: %w", m.ifName, err)
			}
		}
		decisions = append(decisions, filterReport(buf[:n], mesh.Addr(sa.Addr), addrs)...)
	}
}

func (m *Monitor) interfaceAddrs() ([]mesh.Addr, error) {
	ifi, err := net.InterfaceByName(m.ifName)
	if err != nil {
		return nil, err
	}
	ifAddrs, err := ifi.Addrs()
	if err != nil {
		return nil, err
	}
	var addrs []mesh.Addr
	for _, a := range ifAddrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.To4() != nil {
			continue
		}
		if addr, ok := mesh.AddrFromSlice(ipNet.IP.To16()); ok {
			addrs = append(addrs, addr)
		}
	}
	return addrs, nil
}
