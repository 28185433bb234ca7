// Package routemon watches the kernel's interface notification socket and
// turns platform-native address, link and multicast change messages into a
// canonical event type.  Two incompatible wire families exist: netlink
// (Linux) and the 4.4BSD routing socket (Darwin, FreeBSD, NetBSD).  The
// decoders are explicit byte parsers that validate remaining length before
// every field access; a malformed message yields no events, never a read
// past the buffer.
package routemon

import (
	"fmt"

	"github.com/ghjm/meshbridge/pkg/mesh"
)

// Kind discriminates route events.
type Kind int

const (
	AddrAdded Kind = iota
	AddrRemoved
	LinkChanged
	MulticastAdded
	MulticastRemoved
)

func (k Kind) String() string {
	switch k {
	case AddrAdded:
		return "addr-added"
	case AddrRemoved:
		return "addr-removed"
	case LinkChanged:
		return "link-changed"
	case MulticastAdded:
		return "multicast-added"
	case MulticastRemoved:
		return "multicast-removed"
	}
	return fmt.Sprintf("kind-%d", int(k))
}

// Event is one decoded kernel notification.  Addr and PrefixLen are valid
// for the address kinds, LinkUp for LinkChanged.
type Event struct {
	Kind      Kind
	Addr      mesh.Addr
	PrefixLen uint8
	LinkUp    bool
}
