//go:build linux || darwin || freebsd || netbsd

// Package netif keeps a host network interface and a mesh IPv6 stack in
// agreement: addresses, multicast subscriptions and up/down state are
// mirrored in both directions, and datagrams are forwarded between the
// tunnel device and the stack.  Everything runs single-threaded from an
// externally owned select loop; the bridge registers its descriptors via
// UpdateFdSet and is dispatched via Process.
package netif

import (
	"encoding/hex"
	"errors"

	"github.com/ghjm/meshbridge/pkg/mesh"
	"github.com/ghjm/meshbridge/pkg/netif/fdset"
	"github.com/ghjm/meshbridge/pkg/netif/mldmon"
	"github.com/ghjm/meshbridge/pkg/netif/routemon"
	"github.com/ghjm/meshbridge/pkg/netif/tundev"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
	"gvisor.dev/gvisor/pkg/tcpip/header"
)

// Options configures New.
type Options struct {
	// InterfaceName is the name hint for the created interface.
	InterfaceName string
	// DevicePath overrides the platform default device node.
	DevicePath string
	// LogPackets hex-dumps forwarded packets at debug level.
	LogPackets bool
}

// The platform resources, narrowed so tests can substitute fakes.

type device interface {
	Fd() int
	Name() string
	Index() int
	ReadPacket() ([]byte, error)
	WritePacket(pkt []byte) error
	Close() error
}

type routeMonitor interface {
	Fd() int
	Receive() ([]routemon.Event, error)
	Close() error
}

type groupMonitor interface {
	Fd() int
	Receive() ([]mldmon.Decision, error)
	Close() error
}

// sysOps are the host-side mirror operations.  Implementations live in the
// platform files.
type sysOps interface {
	addAddress(addr mesh.Addr, prefixLen uint8) error
	removeAddress(addr mesh.Addr, prefixLen uint8) error
	joinGroup(addr mesh.Addr) error
	leaveGroup(addr mesh.Addr) error
	linkUp() (bool, error)
	setLinkUp(up bool) error
	destroy() error
	close() error
}

// Netif is one bridged interface.
type Netif struct {
	stack      mesh.Stack
	dev        device
	routes     routeMonitor
	groups     groupMonitor
	sys        sysOps
	name       string
	logPackets bool
	closed     bool

	// Platforms whose kernel assigns its own link-local address get that
	// address removed from the interface instead of mirrored.
	removeKernelLinkLocal bool
}

func newNetif(stack mesh.Stack, dev device, routes routeMonitor, groups groupMonitor,
	sys sysOps, logPackets, removeKernelLinkLocal, multicastPromiscuous bool) *Netif {
	n := &Netif{
		stack:                 stack,
		dev:                   dev,
		routes:                routes,
		groups:                groups,
		sys:                   sys,
		name:                  dev.Name(),
		logPackets:            logPackets,
		removeKernelLinkLocal: removeKernelLinkLocal,
	}
	stack.SetReceiveCallback(n.handleStackReceive)
	stack.SetAddressCallback(n.handleStackAddress)
	stack.SetStateChangedCallback(n.handleStackState)
	// The host kernel answers pings on the bridged addresses, so the
	// stack's own responder must stay quiet.
	stack.SetICMPv6EchoEnabled(false)
	if multicastPromiscuous {
		stack.SetMulticastPromiscuous(true)
	}
	return n
}

// Name returns the OS-assigned interface name.
func (n *Netif) Name() string {
	return n.name
}

func (n *Netif) ownedFds() []int {
	fds := []int{n.dev.Fd(), n.routes.Fd()}
	if n.groups != nil {
		fds = append(fds, n.groups.Fd())
	}
	return fds
}

// UpdateFdSet registers the bridge's descriptors for read and error
// interest and raises maxFd as needed.
func (n *Netif) UpdateFdSet(read, errs *fdset.Set, maxFd *int) {
	for _, fd := range n.ownedFds() {
		if fd < 0 {
			continue
		}
		read.Set(fd)
		errs.Set(fd)
		if fd > *maxFd {
			*maxFd = fd
		}
	}
}

// Process dispatches whatever the last select pass found ready.  Handlers
// never block; the descriptors are non-blocking and a would-block ends the
// handler's pass.
func (n *Netif) Process(read, errs *fdset.Set) {
	for _, fd := range n.ownedFds() {
		if fd >= 0 && errs.IsSet(fd) {
			log.Fatalf("netif %s: error condition on descriptor %d", n.name, fd)
		}
	}
	if fd := n.dev.Fd(); fd >= 0 && read.IsSet(fd) {
		n.processDeviceRead()
	}
	if fd := n.routes.Fd(); fd >= 0 && read.IsSet(fd) {
		n.processRouteEvents()
	}
	if n.groups != nil {
		if fd := n.groups.Fd(); fd >= 0 && read.IsSet(fd) {
			n.processGroupDecisions()
		}
	}
}

// processDeviceRead forwards one host-originated datagram to the stack.
func (n *Netif) processDeviceRead() {
	pkt, err := n.dev.ReadPacket()
	if err != nil {
		log.Warnf("netif %s: device read failed: %s", n.name, err)
		return
	}
	if len(pkt) == 0 {
		return
	}
	if header.IPVersion(pkt) != header.IPv6Version {
		log.Debugf("netif %s: dropping non-IPv6 packet from host", n.name)
		return
	}
	if n.logPackets {
		log.Debugf("netif %s: packet to stack:\n%s", n.name, hex.Dump(pkt))
	}
	msg, err := n.stack.NewMessage()
	if err != nil {
		log.Warnf("netif %s: out of stack messages: %s", n.name, err)
		return
	}
	if err = msg.Append(pkt); err != nil {
		msg.Free()
		log.Warnf("netif %s: error filling stack message: %s", n.name, err)
		return
	}
	if err = n.stack.Send(msg); err != nil {
		log.Warnf("netif %s: error sending packet to stack: %s", n.name, err)
	}
}

func (n *Netif) processRouteEvents() {
	events, err := n.routes.Receive()
	if err != nil {
		log.Warnf("netif %s: error receiving route events: %s", n.name, err)
	}
	for _, ev := range events {
		n.applyRouteEvent(ev)
	}
}

func (n *Netif) applyRouteEvent(ev routemon.Event) {
	switch ev.Kind {
	case routemon.LinkChanged:
		n.updateStackEnabled(ev.LinkUp)
	case routemon.AddrAdded:
		if ev.Addr.IsMulticast() {
			n.subscribeStack(ev.Addr)
		} else {
			n.addStackUnicast(ev.Addr, ev.PrefixLen)
		}
	case routemon.AddrRemoved:
		if ev.Addr.IsMulticast() {
			n.unsubscribeStack(ev.Addr)
		} else {
			n.removeStackUnicast(ev.Addr)
		}
	case routemon.MulticastAdded:
		n.subscribeStack(ev.Addr)
	case routemon.MulticastRemoved:
		n.unsubscribeStack(ev.Addr)
	}
}

func (n *Netif) processGroupDecisions() {
	decisions, err := n.groups.Receive()
	if err != nil {
		log.Warnf("netif %s: error receiving multicast reports: %s", n.name, err)
	}
	for _, d := range decisions {
		if d.Join {
			n.subscribeStack(d.Addr)
		} else {
			n.unsubscribeStack(d.Addr)
		}
	}
}

func (n *Netif) stackHasUnicast(addr mesh.Addr) bool {
	for _, ua := range n.stack.UnicastAddresses() {
		if ua.Addr == addr {
			return true
		}
	}
	return false
}

func (n *Netif) addStackUnicast(addr mesh.Addr, prefixLen uint8) {
	if n.removeKernelLinkLocal && addr.IsLinkLocal() && !n.stackHasUnicast(addr) {
		// The kernel assigned this link-local address on its own.  The
		// stack manages the interface's address set, so take it back off
		// rather than mirror it.
		if err := n.sys.removeAddress(addr, prefixLen); err != nil {
			log.Warnf("netif %s: error removing kernel-assigned %s: %s", n.name, addr, err)
		} else {
			log.Infof("netif %s: removed kernel-assigned %s", n.name, addr)
		}
		return
	}
	err := n.stack.AddUnicastAddress(addr, prefixLen)
	switch {
	case err == nil:
		log.Infof("netif %s: ADD [U] %s/%d", n.name, addr, prefixLen)
	case errors.Is(err, mesh.ErrAlreadySubscribed):
		log.Debugf("netif %s: ADD [U] %s/%d (already present)", n.name, addr, prefixLen)
	default:
		log.Warnf("netif %s: error adding %s/%d to stack: %s", n.name, addr, prefixLen, err)
	}
}

func (n *Netif) removeStackUnicast(addr mesh.Addr) {
	err := n.stack.RemoveUnicastAddress(addr)
	switch {
	case err == nil:
		log.Infof("netif %s: DEL [U] %s", n.name, addr)
	case errors.Is(err, mesh.ErrNotFound):
		log.Debugf("netif %s: DEL [U] %s (not present)", n.name, addr)
	default:
		log.Warnf("netif %s: error removing %s from stack: %s", n.name, addr, err)
	}
}

func (n *Netif) subscribeStack(addr mesh.Addr) {
	err := n.stack.SubscribeMulticast(addr)
	switch {
	case err == nil:
		log.Infof("netif %s: ADD [M] %s", n.name, addr)
	case errors.Is(err, mesh.ErrAlreadySubscribed):
		log.Debugf("netif %s: ADD [M] %s (already subscribed)", n.name, addr)
	default:
		log.Warnf("netif %s: error subscribing stack to %s: %s", n.name, addr, err)
	}
}

func (n *Netif) unsubscribeStack(addr mesh.Addr) {
	err := n.stack.UnsubscribeMulticast(addr)
	switch {
	case err == nil:
		log.Infof("netif %s: DEL [M] %s", n.name, addr)
	case errors.Is(err, mesh.ErrNotFound):
		log.Debugf("netif %s: DEL [M] %s (not subscribed)", n.name, addr)
	default:
		log.Warnf("netif %s: error unsubscribing stack from %s: %s", n.name, addr, err)
	}
}

func (n *Netif) updateStackEnabled(up bool) {
	if n.stack.IsEnabled() == up {
		return
	}
	if err := n.stack.SetEnabled(up); err != nil {
		log.Warnf("netif %s: error setting stack state: %s", n.name, err)
		return
	}
	log.Infof("netif %s: stack IPv6 %s", n.name, upDown(up))
}

// handleStackAddress mirrors one stack address change onto the host
// interface.  Failures here are logged and otherwise ignored; the kernel
// may legitimately refuse, for instance a join of a link-local-scope group
// it already joined on its own.
func (n *Netif) handleStackAddress(addr mesh.Addr, prefixLen uint8, added bool) {
	var err error
	var kind string
	if addr.IsMulticast() {
		kind = "M"
		if added {
			err = n.sys.joinGroup(addr)
		} else {
			err = n.sys.leaveGroup(addr)
		}
		if errors.Is(err, unix.EINVAL) && addr.IsMulticastLinkLocal() {
			log.Debugf("netif %s: kernel already tracks link-local group %s", n.name, addr)
			err = nil
		}
	} else {
		kind = "U"
		if added {
			err = n.sys.addAddress(addr, prefixLen)
		} else {
			err = n.sys.removeAddress(addr, prefixLen)
		}
	}
	verb := "ADD"
	if !added {
		verb = "DEL"
	}
	if err != nil {
		log.Warnf("netif %s: error mirroring %s [%s] %s: %s", n.name, verb, kind, addr, err)
		return
	}
	log.Infof("netif %s: host %s [%s] %s", n.name, verb, kind, addr)
}

// handleStackState mirrors the stack's enabled flag onto the host link,
// touching the link only when the two actually disagree.
func (n *Netif) handleStackState(flags mesh.ChangedFlags) {
	if flags&mesh.ChangedNetifState == 0 {
		return
	}
	enabled := n.stack.IsEnabled()
	up, err := n.sys.linkUp()
	if err != nil {
		log.Warnf("netif %s: error reading link state: %s", n.name, err)
		return
	}
	if up == enabled {
		log.Debugf("netif %s: link already %s", n.name, upDown(up))
		return
	}
	if err = n.sys.setLinkUp(enabled); err != nil {
		log.Warnf("netif %s: error setting link %s: %s", n.name, upDown(enabled), err)
		return
	}
	log.Infof("netif %s: link %s", n.name, upDown(enabled))
}

// handleStackReceive forwards one stack-originated datagram to the host.
func (n *Netif) handleStackReceive(msg mesh.Message) {
	defer msg.Free()
	length := msg.Length()
	if length > tundev.MaxPacketSize {
		log.Warnf("netif %s: dropping oversized %d byte packet from stack", n.name, length)
		return
	}
	buf := make([]byte, length)
	if _, err := msg.Read(0, buf); err != nil {
		log.Warnf("netif %s: error reading stack message: %s", n.name, err)
		return
	}
	if n.logPackets {
		log.Debugf("netif %s: packet from stack:\n%s", n.name, hex.Dump(buf))
	}
	if err := n.dev.WritePacket(buf); err != nil {
		if errors.Is(err, tundev.ErrPacketTooLarge) {
			log.Warnf("netif %s: dropping oversized packet from stack", n.name)
			return
		}
		log.Fatalf("netif %s: device write failed: %s", n.name, err)
	}
}

// Close tears the bridge down in order: device first so no more traffic
// arrives, then the interface itself, then the remaining sockets.  Safe to
// call more than once; repeated calls do nothing.
func (n *Netif) Close() {
	if n.closed {
		return
	}
	n.closed = true
	if err := n.dev.Close(); err != nil {
		log.Warnf("netif %s: error closing device: %s", n.name, err)
	}
	if err := n.sys.destroy(); err != nil {
		log.Warnf("netif %s: error destroying interface: %s", n.name, err)
	}
	if err := n.sys.close(); err != nil {
		log.Warnf("netif %s: error closing control socket: %s", n.name, err)
	}
	if err := n.routes.Close(); err != nil {
		log.Warnf("netif %s: error closing route monitor: %s", n.name, err)
	}
	if n.groups != nil {
		if err := n.groups.Close(); err != nil {
			log.Warnf("netif %s: error closing multicast monitor: %s", n.name, err)
		}
	}
}

func upDown(up bool) string {
	if up {
		return "up"
	}
	return "down"
}
