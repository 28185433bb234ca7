package mesh

import (
	"errors"
	"net/netip"
)

// Addr is a raw 16-byte IPv6 address as the mesh stack represents it.
type Addr [16]byte

// UnicastAddress is one entry in the stack's unicast address set.
type UnicastAddress struct {
	Addr      Addr
	PrefixLen uint8
}

// ChangedFlags describes which parts of the stack's state changed in a
// state-change callback.
type ChangedFlags uint32

const (
	// ChangedNetifState is set when the stack's IPv6 enabled flag changed.
	ChangedNetifState ChangedFlags = 1 << iota
)

// Sentinel errors defining the idempotent outcomes of address and
// multicast operations.  Adding an address the stack already has, or
// removing one it never had, is not a failure.
var (
	ErrAlreadySubscribed = errors.New("already subscribed")
	ErrNotFound          = errors.New("address not found")
)

// IsMulticast reports whether a is a multicast address.
func (a Addr) IsMulticast() bool {
	return a[0] == 0xff
}

// IsLinkLocal reports whether a is a unicast link-local address (fe80::/10).
func (a Addr) IsLinkLocal() bool {
	return a[0] == 0xfe && a[1]&0xc0 == 0x80
}

// IsMulticastLinkLocal reports whether a is a link-local-scope multicast
// address (ff?2::/16).
func (a Addr) IsMulticastLinkLocal() bool {
	return a[0] == 0xff && a[1]&0x0f == 0x02
}

func (a Addr) String() string {
	return netip.AddrFrom16(a).String()
}

// AddrFromSlice copies b into an Addr.  It returns false if b is not
// exactly 16 bytes long.
func AddrFromSlice(b []byte) (Addr, bool) {
	var a Addr
	if len(b) != len(a) {
		return a, false
	}
	copy(a[:], b)
	return a, true
}

// Message is one datagram-sized buffer owned by the mesh stack's
// allocator.  A Message obtained from Stack.NewMessage must be released
// exactly once, either by passing it to Stack.Send (which takes ownership
// whether or not it returns an error) or by calling Free.
type Message interface {
	// Length returns the number of bytes currently in the message.
	Length() int
	// Read copies message bytes starting at offset into p, returning the
	// number of bytes copied.
	Read(offset int, p []byte) (int, error)
	// Append adds p to the end of the message.
	Append(p []byte) error
	// Free releases the message back to the allocator.
	Free()
}

// Stack is the surface of the mesh networking engine consumed by the
// bridge.  Implementations are external to this repository; the bridge
// only mirrors state into and out of them.
//
// All methods are called from a single goroutine (the readiness dispatch
// loop), so implementations need no internal locking on behalf of the
// bridge.
type Stack interface {
	// SetReceiveCallback registers fn to be called with each IPv6
	// datagram the stack wants delivered to the host.  Ownership of the
	// Message passes to fn.
	SetReceiveCallback(fn func(Message))
	// SetAddressCallback registers fn to be called when the stack adds or
	// removes a unicast or multicast address.
	SetAddressCallback(fn func(addr Addr, prefixLen uint8, added bool))
	// SetStateChangedCallback registers fn to be called on stack state
	// transitions.
	SetStateChangedCallback(fn func(flags ChangedFlags))

	// AddUnicastAddress adds an address to the stack's unicast set.
	// Returns ErrAlreadySubscribed if it is already present.
	AddUnicastAddress(addr Addr, prefixLen uint8) error
	// RemoveUnicastAddress removes an address from the stack's unicast
	// set.  Returns ErrNotFound if it was not present.
	RemoveUnicastAddress(addr Addr) error
	// UnicastAddresses returns the stack's current unicast address set.
	UnicastAddresses() []UnicastAddress
	// SubscribeMulticast joins the stack to a multicast group.  Returns
	// ErrAlreadySubscribed if already joined.
	SubscribeMulticast(addr Addr) error
	// UnsubscribeMulticast leaves a multicast group.  Returns ErrNotFound
	// if not joined.
	UnsubscribeMulticast(addr Addr) error

	// IsEnabled reports whether the stack's IPv6 interface is enabled.
	IsEnabled() bool
	// SetEnabled raises or lowers the stack's IPv6 interface.
	SetEnabled(enabled bool) error

	// NewMessage allocates an empty message from the stack's buffer pool.
	NewMessage() (Message, error)
	// Send hands an IPv6 datagram to the stack for transmission.  Send
	// takes ownership of msg in all cases.
	Send(msg Message) error

	// SetMulticastPromiscuous asks the stack to pass up all multicast
	// packets regardless of group membership.  Used on platforms where
	// membership cannot be observed at all.
	SetMulticastPromiscuous(enabled bool)
	// SetICMPv6EchoEnabled enables or disables the stack's own ICMPv6
	// echo responder.  The bridge disables it so the host kernel answers
	// pings instead.
	SetICMPv6EchoEnabled(enabled bool)
}
