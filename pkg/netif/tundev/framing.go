// Package tundev opens and drives the OS virtual point-to-point network
// device used to exchange raw IPv6 datagrams with the host.  Platform
// differences (Linux ioctl TUN, BSD framed tun nodes, the Darwin utun
// control socket) are hidden behind one Device contract.
package tundev

import (
	"encoding/binary"
	"errors"
)

// MaxPacketSize is the largest IPv6 datagram the device will carry.
const MaxPacketSize = 1536

// framingSize is the length of the address-family prefix BSD-family tun
// devices put in front of every datagram.
const framingSize = 4

// ErrPacketTooLarge is returned by WritePacket for datagrams over
// MaxPacketSize.  Callers treat it as a droppable packet, not a device
// failure.
var ErrPacketTooLarge = errors.New("packet exceeds maximum size")

// frameAF prepends the 4-byte address-family prefix (big endian) to pkt.
func frameAF(pkt []byte, af int) []byte {
	framed := make([]byte, framingSize+len(pkt))
	binary.BigEndian.PutUint32(framed[:framingSize], uint32(af))
	copy(framed[framingSize:], pkt)
	return framed
}

// stripAF removes the address-family prefix from a framed datagram.  Short
// buffers and buffers without a recognizable prefix are returned unchanged.
func stripAF(buf []byte) []byte {
	if len(buf) >= framingSize && buf[0] == 0 && buf[1] == 0 {
		return buf[framingSize:]
	}
	return buf
}
