//go:build darwin

package routemon

import (
	"golang.org/x/sys/unix"
)

var rtParams = rtsockParams{
	align:    4,
	afInet6:  unix.AF_INET6,
	newAddr:  unix.RTM_NEWADDR,
	delAddr:  unix.RTM_DELADDR,
	ifInfo:   unix.RTM_IFINFO,
	newMAddr: unix.RTM_NEWMADDR,
	delMAddr: unix.RTM_DELMADDR,
}
