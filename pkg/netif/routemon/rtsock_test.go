package routemon

import (
	"encoding/binary"
	"testing"
)

// Message type numbers matching the 4.4BSD values; the decoder only
// compares them against the params, so the tests fix a set here.
var testParams = rtsockParams{
	align:    4,
	afInet6:  30,
	newAddr:  0xc,
	delAddr:  0xd,
	ifInfo:   0xe,
	newMAddr: 0xf,
	delMAddr: 0x10,
}

func sockaddrIn6(p rtsockParams, addr []byte, saLen byte) []byte {
	sa := make([]byte, rtRoundup(int(saLen), p.align))
	sa[0] = saLen
	sa[1] = p.afInet6
	if int(saLen) > saAddrOff {
		copy(sa[saAddrOff:saLen], addr)
	}
	return sa
}

func netmaskIn6(p rtsockParams, prefixLen int, saLen byte) []byte {
	mask := make([]byte, 16)
	for i := 0; i < prefixLen/8; i++ {
		mask[i] = 0xff
	}
	if rem := prefixLen % 8; rem != 0 {
		mask[prefixLen/8] = byte(0xff << (8 - rem))
	}
	return sockaddrIn6(p, mask, saLen)
}

func routeMsg(p rtsockParams, msgType byte, hdrLen int, index uint16, slots map[int][]byte) []byte {
	msg := make([]byte, hdrLen)
	msg[3] = msgType
	binary.NativeEndian.PutUint16(msg[rtIndexOff:rtIndexOff+2], index)
	var addrsMask uint32
	for i := 0; i < rtaxMax; i++ {
		sa, ok := slots[i]
		if !ok {
			continue
		}
		addrsMask |= 1 << uint(i)
		msg = append(msg, sa...)
	}
	binary.NativeEndian.PutUint32(msg[rtAddrsOff:rtAddrsOff+4], addrsMask)
	binary.NativeEndian.PutUint16(msg[0:2], uint16(len(msg)))
	return msg
}

func ifInfoMsg(p rtsockParams, index uint16, flags uint32) []byte {
	msg := make([]byte, ifInfoLen)
	msg[3] = p.ifInfo
	binary.NativeEndian.PutUint32(msg[rtFlagsOff:rtFlagsOff+4], flags)
	binary.NativeEndian.PutUint16(msg[rtIndexOff:rtIndexOff+2], index)
	binary.NativeEndian.PutUint16(msg[0:2], uint16(len(msg)))
	return msg
}

func TestDecodeRouteAddrAdd(t *testing.T) {
	buf := routeMsg(testParams, testParams.newAddr, ifaHdrLen, 7, map[int][]byte{
		rtaxNetmask: netmaskIn6(testParams, 64, 28),
		rtaxIFA:     sockaddrIn6(testParams, testAddr6(1), 28),
	})
	ev, ok := decodeRouteMessage(buf, 7, testParams)
	if !ok {
		t.Fatal("expected an event")
	}
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

func TestDecodeRouteAddrRemove(t *testing.T) {
	buf := routeMsg(testParams, testParams.delAddr, ifaHdrLen, 7, map[int][]byte{
		rtaxIFA: sockaddrIn6(testParams, testAddr6(2), 28),
	})
	ev, ok := decodeRouteMessage(buf, 7, testParams)
	if !ok || ev.Kind != AddrRemoved {
		t.Fatalf("expected AddrRemoved, got %v %v", ev, ok)
	}
}

func TestDecodeRouteClearsLinkLocalScope(t *testing.T) {
	ll := make([]byte, 16)
	ll[0] = 0xfe
	ll[1] = 0x80
	ll[3] = 7 // kernel-embedded scope identifier
	ll[15] = 1
	buf := routeMsg(testParams, testParams.newAddr, ifaHdrLen, 7, map[int][]byte{
		rtaxIFA: sockaddrIn6(testParams, ll, 28),
	})
	ev, ok := decodeRouteMessage(buf, 7, testParams)
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.Addr[3] != 0 {
		t.Errorf("scope byte not cleared: %s", ev.Addr)
	}
	if ev.Addr[15] != 1 {
		t.Errorf("address body damaged: %s", ev.Addr)
	}
}

func TestDecodeRouteMulticast(t *testing.T) {
	mc := make([]byte, 16)
	mc[0] = 0xff
	mc[1] = 0x02
	mc[3] = 7
	mc[15] = 0xfb
	buf := routeMsg(testParams, testParams.newMAddr, ifmaHdrLen, 7, map[int][]byte{
		rtaxIFA: sockaddrIn6(testParams, mc, 28),
	})
	ev, ok := decodeRouteMessage(buf, 7, testParams)
	if !ok || ev.Kind != MulticastAdded {
		t.Fatalf("expected MulticastAdded, got %v %v", ev, ok)
	}
	if ev.Addr[3] != 0 {
		t.Errorf("scope byte not cleared on multicast address: %s", ev.Addr)
	}
	buf = routeMsg(testParams, testParams.delMAddr, ifmaHdrLen, 7, map[int][]byte{
		rtaxIFA: sockaddrIn6(testParams, mc, 28),
	})
	ev, ok = decodeRouteMessage(buf, 7, testParams)
	if !ok || ev.Kind != MulticastRemoved {
		t.Fatalf("expected MulticastRemoved, got %v %v", ev, ok)
	}
}

func TestDecodeRouteLinkFlags(t *testing.T) {
	ev, ok := decodeRouteMessage(ifInfoMsg(testParams, 7, rtIffUp|0x8000), 7, testParams)
	if !ok || ev.Kind != LinkChanged || !ev.LinkUp {
		t.Fatalf("expected link-up event, got %v %v", ev, ok)
	}
	ev, ok = decodeRouteMessage(ifInfoMsg(testParams, 7, 0x8000), 7, testParams)
	if !ok || ev.LinkUp {
		t.Fatalf("expected link-down event, got %v %v", ev, ok)
	}
}

func TestDecodeRouteWrongInterface(t *testing.T) {
	buf := routeMsg(testParams, testParams.newAddr, ifaHdrLen, 9, map[int][]byte{
		rtaxIFA: sockaddrIn6(testParams, testAddr6(1), 28),
	})
	if _, ok := decodeRouteMessage(buf, 7, testParams); ok {
		t.Error("expected no event for other interface")
	}
}

func TestDecodeRouteTruncatedNetmask(t *testing.T) {
	// Kernels shorten trailing-zero netmask sockaddrs; sa_len 9 leaves a
	// single 0xff mask byte.
	buf := routeMsg(testParams, testParams.newAddr, ifaHdrLen, 7, map[int][]byte{
		rtaxNetmask: netmaskIn6(testParams, 64, 9),
		rtaxIFA:     sockaddrIn6(testParams, testAddr6(1), 28),
	})
	ev, ok := decodeRouteMessage(buf, 7, testParams)
	if !ok {
		t.Fatal("expected an event")
	}
	if ev.PrefixLen != 8 {
		t.Errorf("expected prefix 8 from truncated netmask, got %d", ev.PrefixLen)
	}
}

func TestDecodeRouteEightByteAlign(t *testing.T) {
	p := testParams
	p.align = 8
	buf := routeMsg(p, p.newAddr, ifaHdrLen, 7, map[int][]byte{
		rtaxNetmask: netmaskIn6(p, 48, 28),
		rtaxIFA:     sockaddrIn6(p, testAddr6(4), 28),
	})
	ev, ok := decodeRouteMessage(buf, 7, p)
	if !ok || ev.PrefixLen != 48 || ev.Addr[15] != 4 {
		t.Fatalf("wrong decode with 8-byte alignment: %v %v", ev, ok)
	}
}

func TestDecodeRouteTruncated(t *testing.T) {
	full := routeMsg(testParams, testParams.newAddr, ifaHdrLen, 7, map[int][]byte{
		rtaxNetmask: netmaskIn6(testParams, 64, 28),
		rtaxIFA:     sockaddrIn6(testParams, testAddr6(1), 28),
	})
	for n := 0; n < ifaHdrLen+saInet6Size; n++ {
		if ev, ok := decodeRouteMessage(full[:n], 7, testParams); ok {
			t.Errorf("truncation at %d produced event %v", n, ev)
		}
	}
}
