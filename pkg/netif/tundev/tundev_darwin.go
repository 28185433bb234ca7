//go:build darwin

package tundev

import (
	"fmt"
	"path"
	"strings"

	"golang.org/x/sys/unix"
)

const defaultDevicePath = "/dev/tun0"

// tunSIFHEAD is _IOW('t', 96, int) from the third-party tuntap kernel
// extension's tun_ioctl.h; it is not in any SDK header.
const tunSIFHEAD = 0x80047460

const utunControlName = "com.apple.net.utun_control"

// utunOptIfname is UTUN_OPT_IFNAME from net/if_utun.h.
const utunOptIfname = 2

// Open opens a Darwin tunnel device.  A nameHint beginning with "utun"
// selects the built-in utun kernel control device; otherwise a tuntap
// /dev/tunN node is opened with address-family framing enabled.  Note that
// utun interfaces are pinned IFF_POINTTOPOINT, which breaks mDNS over the
// interface, so the tun node is the default.
func Open(nameHint, devicePath string) (*Device, error) {
	if strings.HasPrefix(nameHint, "utun") {
		return openUtun()
	}
	if devicePath == "" {
		devicePath = defaultDevicePath
	}
	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("error opening %s: %w", devicePath, err)
	}
	if err = unix.IoctlSetPointerInt(fd, tunSIFHEAD, 1); err != nil {
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

// openUtun connects to the utun kernel control, letting the kernel assign
// the next free unit.
func openUtun() (*Device, error) {
	fd, err := unix.Socket(unix.AF_SYSTEM, unix.SOCK_DGRAM, unix.SYSPROTO_CONTROL)
	if err != nil {
		return nil, fmt.Errorf("error opening utun control socket: %w", err)
	}
	info := &unix.CtlInfo{}
	copy(info.Name[:], utunControlName)
	if err = unix.IoctlCtlInfo(fd, info); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error resolving %s: %w", utunControlName, err)
	}
	if err = unix.Connect(fd, &unix.SockaddrCtl{ID: info.Id, Unit: 0}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error connecting utun control: %w", err)
	}
	name, err := unix.GetsockoptString(fd, unix.SYSPROTO_CONTROL, utunOptIfname)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error reading utun interface name: %w", err)
	}
	if err = unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("error setting utun non-blocking: %w", err)
	}
	unix.CloseOnExec(fd)
	index, err := interfaceIndex(name)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return &Device{fd: fd, name: name, index: index, framed: true}, nil
}
