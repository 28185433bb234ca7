//go:build linux || darwin || freebsd || netbsd

package tundev

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Device is an open virtual network device.  The descriptor is
// non-blocking; callers multiplex on Fd and then call ReadPacket once per
// readiness notification.
type Device struct {
	fd     int
	name   string
	index  int
	framed bool
}

// Name returns the interface name the OS assigned.
func (d *Device) Name() string {
	return d.name
}

// Index returns the OS interface index.
func (d *Device) Index() int {
	return d.index
}

// Fd returns the device descriptor for readiness registration.
func (d *Device) Fd() int {
	return d.fd
}

// ReadPacket reads one IPv6 datagram from the device, with any
// address-family framing already stripped.  It returns (nil, nil) when no
// datagram is pending.
func (d *Device) ReadPacket() ([]byte, error) {
	buf := make([]byte, MaxPacketSize+framingSize)
	n, err := unix.Read(d.fd, buf)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tun read: %w", err)
	}
	if n <= 0 {
		return nil, nil
	}
	pkt := buf[:n]
	if d.framed {
		pkt = stripAF(pkt)
	}
	return pkt, nil
}

// WritePacket writes one IPv6 datagram to the device, adding the
// address-family framing where the platform requires it.  The device
// accepts a datagram atomically or not at all, so a short write is
// reported as an error with no recovery attempted.
func (d *Device) WritePacket(pkt []byte) error {
	if len(pkt) > MaxPacketSize {
		return ErrPacketTooLarge
	}
	out := pkt
	if d.framed {
		out = frameAF(pkt, unix.AF_INET6)
	}
	n, err := unix.Write(d.fd, out)
	if err != nil {
		return fmt.Errorf("tun write: %w", err)
	}
	if n != len(out) {
		return fmt.Errorf("tun short write: %d of %d bytes", n, len(out))
	}
	return nil
}

// Close releases the device descriptor.  It is safe to call more than
// once.
func (d *Device) Close() error {
	if d.fd == -1 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

func interfaceIndex(name string) (int, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return 0, fmt.Errorf("error looking up interface %s: %w", name, err)
	}
	return ifi.Index, nil
}
