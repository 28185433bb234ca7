//go:build freebsd

package tundev

import (
	"fmt"
	"path"

	"golang.org/x/sys/unix"
)

const defaultDevicePath = "/dev/tun0"

// Open opens a FreeBSD tun node.  The interface name is fixed by the node
// path, so nameHint is ignored.  The device is switched to
// broadcast+multicast mode and address-family framing is enabled.
func Open(nameHint, devicePath string) (*Device, error) {
	_ = nameHint
	if devicePath == "" {
		devicePath = defaultDevicePath
	}
	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", devicePath, err)
	}
	if err = unix.IoctlSetPointerInt(fd, unix.TUNSIFMODE, unix.IFF_BROADCAST|unix.IFF_MULTICAST); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error setting tun mode: %w", err)
	}
	if err = unix.IoctlSetPointerInt(fd, unix.TUNSIFHEAD, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error enabling tun framing: %w", err)
	}
	name := path.Base(devicePath)
	index, err := interfaceIndex(name)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Device{fd: fd, name: name, index: index, framed: true}, nil
}
