//go:build linux

package tundev

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const defaultDevicePath = "/dev/net/tun"

// Open creates and configures a Linux TUN device.  nameHint may contain a
// %d pattern for the kernel to fill in; an empty hint defaults to wpan%d.
// devicePath overrides the clone device node, normally /dev/net/tun.
func Open(nameHint, devicePath string) (*Device, error) {
	if devicePath == "" {
		devicePath = defaultDevicePath
	}
	if nameHint == "" {
		nameHint = "wpan%d"
	}
	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", devicePath, err)
	}
	ifr, err := unix.NewIfreq(nameHint)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("invalid interface name %q: %w", nameHint, err)
	}
	ifr.SetUint16(unix.IFF_TUN | unix.IFF_NO_PI)
	if err = unix.IoctlIfreq(fd, unix.TUNSETIFF, ifr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error configuring tun device: %w", err)
	}
	// Without this the kernel advertises the interface as raw IP over
	// no particular link type and some tools refuse to touch it.
	if err = unix.IoctlSetInt(fd, unix.TUNSETLINK, unix.ARPHRD_VOID); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error setting tun link type: %w", err)
	}
	name := ifr.Name()
	index, err := interfaceIndex(name)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Device{fd: fd, name: name, index: index}, nil
}
