package routemon

import (
	"encoding/binary"

	"github.com/ghjm/meshbridge/pkg/mesh"
	log "github.com/sirupsen/logrus"
)

// Routing socket constants shared by all BSDs.
const (
	rtaxNetmask = 2
	rtaxIFA     = 5
	rtaxMax     = 8

	rtIffUp = 0x1

	// Offsets within ifa_msghdr / ifma_msghdr / if_msghdr.  All three
	// share msglen(u16)/version(u8)/type(u8)/addrs(i32)/flags(i32)/
	// index(u16); ifa_msghdr additionally carries a metric, pushing its
	// payload out by one word.
	rtAddrsOff  = 4
	rtFlagsOff  = 8
	rtIndexOff  = 12
	ifaHdrLen   = 20
	ifmaHdrLen  = 16
	ifInfoLen   = 16
	saAddrOff   = 8
	saInet6Size = 24 // through the address bytes; scope id follows
)

// rtsockParams carries the values that differ between BSD variants: the
// sockaddr length alignment, the AF_INET6 value, and the message type
// numbers (zero when the platform lacks multicast membership messages).
type rtsockParams struct {
	align    int
	afInet6  byte
	newAddr  uint8
	delAddr  uint8
	ifInfo   uint8
	newMAddr uint8
	delMAddr uint8
}

func rtRoundup(n, align int) int {
	if n == 0 {
		return align
	}
	return (n + align - 1) &^ (align - 1)
}

// decodeRouteMessage decodes one routing-socket message (the kernel sends
// exactly one per read) into an event for the interface with index
// ifIndex.
func decodeRouteMessage(buf []byte, ifIndex int, p rtsockParams) (Event, bool) {
	if len(buf) < ifmaHdrLen {
		return Event{}, false
	}
	msgLen := int(binary.NativeEndian.Uint16(buf[0:2]))
	if msgLen > len(buf) {
		msgLen = len(buf)
	}
	msgType := buf[3]
	index := int(binary.NativeEndian.Uint16(buf[rtIndexOff : rtIndexOff+2]))
	if index != ifIndex {
		return Event{}, false
	}

	var kind Kind
	var hdrLen int
	switch {
	case msgType == p.ifInfo:
		if msgLen < ifInfoLen {
			return Event{}, false
		}
		flags := binary.NativeEndian.Uint32(buf[rtFlagsOff : rtFlagsOff+4])
		return Event{Kind: LinkChanged, LinkUp: flags&rtIffUp != 0}, true
	case msgType == p.newAddr:
		kind, hdrLen = AddrAdded, ifaHdrLen
	case msgType == p.delAddr:
		kind, hdrLen = AddrRemoved, ifaHdrLen
	case p.newMAddr != 0 && msgType == p.newMAddr:
		kind, hdrLen = MulticastAdded, ifmaHdrLen
	case p.delMAddr != 0 && msgType == p.delMAddr:
		kind, hdrLen = MulticastRemoved, ifmaHdrLen
	default:
		log.Debugf("routemon: ignoring route message type %d", msgType)
		return Event{}, false
	}
	if msgLen < hdrLen {
		return Event{}, false
	}
	addrsMask := binary.NativeEndian.Uint32(buf[rtAddrsOff : rtAddrsOff+4])
	ifa, netmask := walkSockaddrs(buf[hdrLen:msgLen], addrsMask, p)
	if ifa == nil || len(ifa) < saInet6Size {
		return Event{}, false
	}
	addr, _ := mesh.AddrFromSlice(ifa[saAddrOff : saAddrOff+16])
	if addr.IsLinkLocal() || addr.IsMulticastLinkLocal() {
		// The kernel embeds the scope identifier in the address it
		// reports; clear it before the address is compared or
		// forwarded anywhere.
		addr[3] = 0
	}
	return Event{Kind: kind, Addr: addr, PrefixLen: prefixFromNetmask(netmask)}, true
}

// walkSockaddrs walks the fixed-ordinal sockaddr slots named by addrsMask
// and returns the raw interface-address and netmask sockaddrs, each
// truncated to its declared sa_len.  Slot lengths advance rounded up to
// the platform alignment; a slot that does not fit ends the walk.
func walkSockaddrs(buf []byte, addrsMask uint32, p rtsockParams) (ifa, netmask []byte) {
	for i := 0; i < rtaxMax && len(buf) > 0; i++ {
		if addrsMask&(1<<uint(i)) == 0 {
			continue
		}
		saLen := int(buf[0])
		sa := buf
		if saLen < len(sa) {
			sa = sa[:saLen]
		}
		if len(sa) >= 2 && sa[1] == p.afInet6 {
			switch i {
			case rtaxIFA:
				ifa = sa
			case rtaxNetmask:
				netmask = sa
			}
		}
		adv := rtRoundup(saLen, p.align)
		if adv >= len(buf) {
			break
		}
		buf = buf[adv:]
	}
	return ifa, netmask
}

// prefixFromNetmask counts the leading one-bits of a (possibly truncated)
// sockaddr_in6 netmask, byte by byte, stopping at the first byte that is
// not 0xff.
func prefixFromNetmask(netmask []byte) uint8 {
	var bits uint8
	if len(netmask) <= saAddrOff {
		return 0
	}
	maskBytes := netmask[saAddrOff:]
	if len(maskBytes) > 16 {
		maskBytes = maskBytes[:16]
	}
	for _, b := range maskBytes {
		if b == 0xff {
			bits += 8
			continue
		}
		for bit := 7; bit >= 0; bit-- {
			if b&(1<<uint(bit)) == 0 {
				break
			}
			bits++
		}
		break
	}
	return bits
}
