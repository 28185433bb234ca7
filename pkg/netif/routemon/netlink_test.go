package routemon

import (
	"encoding/binary"
	"testing"
)

func nlMsg(msgType uint16, body []byte) []byte {
	msg := make([]byte, nlMsgHdrLen+len(body))
	binary.NativeEndian.PutUint32(msg[0:4], uint32(len(msg)))
	binary.NativeEndian.PutUint16(msg[4:6], msgType)
	copy(msg[nlMsgHdrLen:], body)
	return msg
}

func rtAttr(attrType uint16, payload []byte) []byte {
	attr := make([]byte, nlAlign(rtAttrHdrLen+len(payload)))
	binary.NativeEndian.PutUint16(attr[0:2], uint16(rtAttrHdrLen+len(payload)))
	binary.NativeEndian.PutUint16(attr[2:4], attrType)
	copy(attr[rtAttrHdrLen:], payload)
	return attr
}

func addrMsgBody(family byte, prefixLen byte, index uint32, attrs ...[]byte) []byte {
	body := make([]byte, ifAddrMsgLen)
	body[0] = family
	body[1] = prefixLen
	binary.NativeEndian.PutUint32(body[4:8], index)
	for _, a := range attrs {
		body = append(body, a...)
	}
	return body
}

func linkMsgBody(index uint32, flags uint32) []byte {
	body := make([]byte, ifInfoMsgLen)
	binary.NativeEndian.PutUint32(body[4:8], index)
	binary.NativeEndian.PutUint32(body[8:12], flags)
	return body
}

func testAddr6(last byte) []byte {
	a := make([]byte, 16)
	a[0] = 0xfd
	a[1] = 0x11
	a[15] = last
	return a
}

func TestDecodeNetlinkAddrAdd(t *testing.T) {
	buf := nlMsg(rtmNewAddr, addrMsgBody(nlAFInet6, 64, 7, rtAttr(ifaAddress, testAddr6(1))))
	events := decodeNetlink(buf, 7)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Kind != AddrAdded {
		t.Errorf("expected AddrAdded, got %s", ev.Kind)
	}
	if ev.PrefixLen != 64 {
		t.Errorf("expected prefix 64, got %d", ev.PrefixLen)
	}
	if ev.Addr[0] != 0xfd || ev.Addr[15] != 1 {
		t.Errorf("wrong address decoded: %s", ev.Addr)
	}
}

func TestDecodeNetlinkAddrRemove(t *testing.T) {
	buf := nlMsg(rtmDelAddr, addrMsgBody(nlAFInet6, 128, 7, rtAttr(ifaLocal, testAddr6(2))))
	events := decodeNetlink(buf, 7)
	if len(events) != 1 || events[0].Kind != AddrRemoved {
		t.Fatalf("expected one AddrRemoved event, got %v", events)
	}
}

func TestDecodeNetlinkWrongInterface(t *testing.T) {
	buf := nlMsg(rtmNewAddr, addrMsgBody(nlAFInet6, 64, 9, rtAttr(ifaAddress, testAddr6(1))))
	if events := decodeNetlink(buf, 7); len(events) != 0 {
		t.Errorf("expected no events for other interface, got %v", events)
	}
}

func TestDecodeNetlinkWrongFamily(t *testing.T) {
	buf := nlMsg(rtmNewAddr, addrMsgBody(2, 24, 7, rtAttr(ifaAddress, []byte{10, 0, 0, 1})))
	if events := decodeNetlink(buf, 7); len(events) != 0 {
		t.Errorf("expected no events for AF_INET, got %v", events)
	}
}

func TestDecodeNetlinkSkipsUnknownAttrs(t *testing.T) {
	// IFA_CACHEINFO (6) carries timing data, not an address.
	buf := nlMsg(rtmNewAddr, addrMsgBody(nlAFInet6, 64, 7,
		rtAttr(6, make([]byte, 16)),
		rtAttr(ifaAddress, testAddr6(3))))
	events := decodeNetlink(buf, 7)
	if len(events) != 1 || events[0].Addr[15] != 3 {
		t.Fatalf("expected one event from the address attribute, got %v", events)
	}
}

func TestDecodeNetlinkLinkFlags(t *testing.T) {
	up := decodeNetlink(nlMsg(rtmNewLink, linkMsgBody(7, nlIffUp|0x40)), 7)
	if len(up) != 1 || up[0].Kind != LinkChanged || !up[0].LinkUp {
		t.Fatalf("expected link-up event, got %v", up)
	}
	down := decodeNetlink(nlMsg(rtmNewLink, linkMsgBody(7, 0x40)), 7)
	if len(down) != 1 || down[0].LinkUp {
		t.Fatalf("expected link-down event, got %v", down)
	}
}

func TestDecodeNetlinkMultipleMessages(t *testing.T) {
	buf := append(
		nlMsg(rtmNewAddr, addrMsgBody(nlAFInet6, 64, 7, rtAttr(ifaAddress, testAddr6(1)))),
		nlMsg(rtmNewLink, linkMsgBody(7, nlIffUp))...)
	events := decodeNetlink(buf, 7)
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Kind != AddrAdded || events[1].Kind != LinkChanged {
		t.Errorf("wrong event kinds: %s, %s", events[0].Kind, events[1].Kind)
	}
}

func TestDecodeNetlinkTruncated(t *testing.T) {
	full := nlMsg(rtmNewAddr, addrMsgBody(nlAFInet6, 64, 7, rtAttr(ifaAddress, testAddr6(1))))
	for n := 0; n < len(full); n++ {
		if events := decodeNetlink(full[:n], 7); len(events) != 0 {
			t.Errorf("truncation at %d produced events: %v", n, events)
		}
	}
}

func TestDecodeNetlinkBadLength(t *testing.T) {
	buf := nlMsg(rtmNewAddr, addrMsgBody(nlAFInet6, 64, 7))
	binary.NativeEndian.PutUint32(buf[0:4], uint32(len(buf)+100))
	if events := decodeNetlink(buf, 7); len(events) != 0 {
		t.Errorf("oversized length claim produced events: %v", events)
	}
}
