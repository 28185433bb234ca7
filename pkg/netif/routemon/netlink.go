package routemon

import (
	"encoding/binary"

	"github.com/ghjm/meshbridge/pkg/mesh"
	log "github.com/sirupsen/logrus"
)

// rtnetlink wire constants.  Values are the kernel ABI and do not vary by
// architecture.
const (
	nlMsgHdrLen = 16
	nlMsgAlign  = 4

	nlMsgDone  = 3
	rtmNewLink = 16
	rtmDelLink = 17
	rtmNewAddr = 20
	rtmDelAddr = 21

	ifAddrMsgLen = 8
	ifInfoMsgLen = 16
	rtAttrHdrLen = 4

	nlAFInet6 = 10
	nlIffUp   = 0x1

	ifaAddress   = 1
	ifaLocal     = 2
	ifaBroadcast = 4
	ifaAnycast   = 5
	ifaMulticast = 7
)

func nlAlign(n int) int {
	return (n + nlMsgAlign - 1) &^ (nlMsgAlign - 1)
}

// decodeNetlink walks a buffer of netlink messages and returns the events
// relevant to the interface with index ifIndex.  Numeric fields are host
// endian per the netlink ABI.
func decodeNetlink(buf []byte, ifIndex int) []Event {
	var events []Event
	for len(buf) >= nlMsgHdrLen {
		msgLen := int(binary.NativeEndian.Uint32(buf[0:4]))
		msgType := binary.NativeEndian.Uint16(buf[4:6])
		if msgLen < nlMsgHdrLen || msgLen > len(buf) {
			break
		}
		body := buf[nlMsgHdrLen:msgLen]
		switch msgType {
		case rtmNewAddr, rtmDelAddr:
			events = append(events, decodeAddrMsg(body, msgType == rtmNewAddr, ifIndex)...)
		case rtmNewLink, rtmDelLink:
			if ev, ok := decodeLinkMsg(body, ifIndex); ok {
				events = append(events, ev)
			}
		case nlMsgDone:
		default:
			log.Debugf("routemon: ignoring netlink message type %d", msgType)
		}
		next := nlAlign(msgLen)
		if next >= len(buf) {
			break
		}
		buf = buf[next:]
	}
	return events
}

// decodeAddrMsg decodes one RTM_NEWADDR/RTM_DELADDR body: an ifaddrmsg
// followed by route attributes.  Only IPv6 address-bearing attribute kinds
// produce events; each carries one 16-byte address.
func decodeAddrMsg(body []byte, added bool, ifIndex int) []Event {
	if len(body) < ifAddrMsgLen {
		return nil
	}
	family := body[0]
	prefixLen := body[1]
	index := int(binary.NativeEndian.Uint32(body[4:8]))
	if family != nlAFInet6 || index != ifIndex {
		return nil
	}
	kind := AddrAdded
	if !added {
		kind = AddrRemoved
	}
	var events []Event
	attrs := body[ifAddrMsgLen:]
	for len(attrs) >= rtAttrHdrLen {
		attrLen := int(binary.NativeEndian.Uint16(attrs[0:2]))
		attrType := binary.NativeEndian.Uint16(attrs[2:4])
		if attrLen < rtAttrHdrLen || attrLen > len(attrs) {
			break
		}
		switch attrType {
		case ifaAddress, ifaLocal, ifaBroadcast, ifaAnycast, ifaMulticast:
			addr, ok := mesh.AddrFromSlice(attrs[rtAttrHdrLen:attrLen])
			if ok {
				events = append(events, Event{Kind: kind, Addr: addr, PrefixLen: prefixLen})
			}
		default:
			log.Debugf("routemon: skipping address attribute type %d", attrType)
		}
		next := nlAlign(attrLen)
		if next >= len(attrs) {
			break
		}
		attrs = attrs[next:]
	}
	return events
}

// decodeLinkMsg decodes one RTM_NEWLINK/RTM_DELLINK body (an ifinfomsg)
// into a LinkChanged event carrying the IFF_UP bit.
func decodeLinkMsg(body []byte, ifIndex int) (Event, bool) {
	if len(body) < ifInfoMsgLen {
		return Event{}, false
	}
	index := int(int32(binary.NativeEndian.Uint32(body[4:8])))
	flags := binary.NativeEndian.Uint32(body[8:12])
	if index != ifIndex {
		return Event{}, false
	}
	return Event{Kind: LinkChanged, LinkUp: flags&nlIffUp != 0}, true
}
