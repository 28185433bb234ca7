//go:build netbsd

package routemon

import (
	"golang.org/x/sys/unix"
)

// NetBSD aligns routing sockaddrs to the long word and has no multicast
// membership messages; the stack runs multicast promiscuous to compensate.
var rtParams = rtsockParams{
	align:   8,
	afInet6: unix.AF_INET6,
	newAddr: unix.RTM_NEWADDR,
	delAddr: unix.RTM_DELADDR,
	ifInfo:  unix.RTM_IFINFO,
}
