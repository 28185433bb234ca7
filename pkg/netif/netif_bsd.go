//go:build darwin || freebsd || netbsd

package netif

import (
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"

	"github.com/ghjm/meshbridge/pkg/mesh"
	"github.com/ghjm/meshbridge/pkg/netif/routemon"
	"github.com/ghjm/meshbridge/pkg/netif/tundev"
	"golang.org/x/sys/unix"
)

// New opens the tunnel device and kernel sockets for one bridged interface
// and wires them to stack.  The routing socket reports multicast
// membership changes on these platforms, so there is no separate group
// monitor; NetBSD lacks even those messages and runs the stack multicast
// promiscuous instead.
func New(stack mesh.Stack, opts Options) (*Netif, error) {
	dev, err := tundev.Open(opts.InterfaceName, opts.DevicePath)
	if err != nil {
		return nil, err
	}
	routes, err := routemon.Open(dev.Index())
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	sys, err := newBSDSys(dev.Name(), dev.Index())
	if err != nil {
		_ = routes.Close()
		_ = dev.Close()
		return nil, err
	}
	return newNetif(stack, dev, routes, nil, sys, opts.LogPackets, true, runtime.GOOS == "netbsd"), nil
}

// bsdSys mirrors stack state onto the host interface.  Address and link
// changes go through ifconfig, whose inet6 alias handling matches across
// the BSDs; multicast membership uses a plain IPv6 socket.
type bsdSys struct {
	name  string
	index int
	ipFd  int
}

func newBSDSys(name string, index int) (*bsdSys, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_DGRAM, unix.IPPROTO_IP)
	if err != nil {
		return nil, fmt.Errorf("error opening control socket: %w", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error setting control socket non-blocking: %w", err)
	}
	unix.CloseOnExec(fd)
	return &bsdSys{name: name, index: index, ipFd: fd}, nil
}

func (s *bsdSys) ifconfig(args ...string) error {
	out, err := exec.Command("ifconfig", append([]string{s.name}, args...)...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("ifconfig %s %s: %w: %s", s.name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *bsdSys) addAddress(addr mesh.Addr, prefixLen uint8) error {
	return s.ifconfig("inet6", fmt.Sprintf("%s/%d", addr, prefixLen), "alias")
}

func (s *bsdSys) removeAddress(addr mesh.Addr, prefixLen uint8) error {
	return s.ifconfig("inet6", fmt.Sprintf("%s/%d", addr, prefixLen), "-alias")
}

func (s *bsdSys) joinGroup(addr mesh.Addr) error {
	mreq := &unix.IPv6Mreq{
		Multiaddr: addr,
		Interface: uint32(s.index),
	}
	return unix.SetsockoptIPv6Mreq(s.ipFd, unix.IPPROTO_IPV6, unix.IPV6_JOIN_GROUP, mreq)
}

func (s *bsdSys) leaveGroup(addr mesh.Addr) error {
	mreq := &unix.IPv6Mreq{
		Multiaddr: addr,
		Interface: uint32(s.index),
	}
	return unix.SetsockoptIPv6Mreq(s.ipFd, unix.IPPROTO_IPV6, unix.IPV6_LEAVE_GROUP, mreq)
}

func (s *bsdSys) linkUp() (bool, error) {
	ifi, err := net.InterfaceByName(s.name)
	if err != nil {
		return false, err
	}
	return ifi.Flags&net.FlagUp != 0, nil
}

func (s *bsdSys) setLinkUp(up bool) error {
	if up {
		return s.ifconfig("up")
	}
	return s.ifconfig("down")
}

// destroy removes the logical interface on the platforms where it outlives
// the descriptor.  Darwin utun devices vanish on their own.
func (s *bsdSys) destroy() error {
	if runtime.GOOS == "darwin" {
		return nil
	}
	return s.ifconfig("destroy")
}

func (s *bsdSys) close() error {
	if s.ipFd == -1 {
		return nil
	}
	err := unix.Close(s.ipFd)
	s.ipFd = -1
	return err
}
