//go:build linux

package netif

import (
	"fmt"
	"net"

	"github.com/ghjm/meshbridge/pkg/mesh"
	"github.com/ghjm/meshbridge/pkg/netif/mldmon"
	"github.com/ghjm/meshbridge/pkg/netif/routemon"
	"github.com/ghjm/meshbridge/pkg/netif/tundev"
	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// New opens the tunnel device and kernel sockets for one bridged interface
// and wires them to stack.  Any failure here is a startup failure; nothing
// is retried.
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
	groups, err := mldmon.Open(dev.Name(), dev.Index())
	if err != nil {
		_ = routes.Close()
		_ = dev.Close()
		return nil, err
	}
	sys, err := newLinuxSys(dev.Index())
	if err != nil {
		_ = groups.Close()
		_ = routes.Close()
		_ = dev.Close()
		return nil, err
	}
	return newNetif(stack, dev, routes, groups, sys, opts.LogPackets, false, false), nil
}

// linuxSys mirrors stack state onto the host interface using rtnetlink for
// addresses and link state, plus a plain IPv6 socket for multicast
// membership.
type linuxSys struct {
	index int
	ipFd  int
}

func newLinuxSys(index int) (*linuxSys, error) {
	fd, err := unix.Socket(unix.AF_INET6, unix.SOCK_DGRAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_IP)
	if err != nil {
		return nil, fmt.Errorf("error opening control socket: %w", err)
	}
	return &linuxSys{index: index, ipFd: fd}, nil
}

func (s *linuxSys) nlAddr(addr mesh.Addr, prefixLen uint8) *netlink.Addr {
	return &netlink.Addr{
		IPNet: &net.IPNet{
			IP:   net.IP(addr[:]),
			Mask: net.CIDRMask(int(prefixLen), 128),
		},
		// The stack already ran duplicate detection on its own terms.
		Flags: unix.IFA_F_NODAD,
	}
}

func (s *linuxSys) addAddress(addr mesh.Addr, prefixLen uint8) error {
	link, err := netlink.LinkByIndex(s.index)
	if err != nil {
		return err
	}
	return netlink.AddrAdd(link, s.nlAddr(addr, prefixLen))
}

func (s *linuxSys) removeAddress(addr mesh.Addr, prefixLen uint8) error {
	link, err := netlink.LinkByIndex(s.index)
	if err != nil {
		return err
	}
	return netlink.AddrDel(link, s.nlAddr(addr, prefixLen))
}

func (s *linuxSys) joinGroup(addr mesh.Addr) error {
	mreq := &unix.IPv6Mreq{
		Multiaddr: addr,
		Interface: uint32(s.index),
	}
	return unix.SetsockoptIPv6Mreq(s.ipFd, unix.IPPROTO_IPV6, unix.IPV6_JOIN_GROUP, mreq)
}

func (s *linuxSys) leaveGroup(addr mesh.Addr) error {
	mreq := &unix.IPv6Mreq{
		Multiaddr: addr,
		Interface: uint32(s.index),
	}
	return unix.SetsockoptIPv6Mreq(s.ipFd, unix.IPPROTO_IPV6, unix.IPV6_LEAVE_GROUP, mreq)
}

func (s *linuxSys) linkUp() (bool, error) {
	link, err := netlink.LinkByIndex(s.index)
	if err != nil {
		return false, err
	}
	return link.Attrs().Flags&net.FlagUp != 0, nil
}

func (s *linuxSys) setLinkUp(up bool) error {
	link, err := netlink.LinkByIndex(s.index)
	if err != nil {
		return err
	}
	if up {
		return netlink.LinkSetUp(link)
	}
	return netlink.LinkSetDown(link)
}

// destroy is a no-op: a Linux tun interface vanishes with its descriptor.
func (s *linuxSys) destroy() error {
	return nil
}

func (s *linuxSys) close() error {
	if s.ipFd == -1 {
		return nil
	}
	err := unix.Close(s.ipFd)
	s.ipFd = -1
	return err
}
