// Package meshtest provides a recording in-memory mesh.Stack for use in
// tests of code that mirrors state into a mesh stack.
package meshtest

import (
	"github.com/ghjm/meshbridge/pkg/mesh"
)

// Stack is a fake mesh.Stack.  It records every mutating call and keeps
// plain in-memory address sets, so tests can assert on the final state and
// on how many underlying operations were attempted.
type Stack struct {
	Unicasts   map[mesh.Addr]uint8
	Multicasts map[mesh.Addr]bool
	Enabled    bool

	AddCalls        int
	RemoveCalls     int
	SubscribeCalls  int
	UnsubCalls      int
	SetEnabledCalls int
	Promiscuous     bool
	EchoEnabled     bool

	Sent [][]byte

	receiveCb func(mesh.Message)
	addressCb func(addr mesh.Addr, prefixLen uint8, added bool)
	stateCb   func(flags mesh.ChangedFlags)
}

// New returns an empty fake stack.
func New() *Stack {
	return &Stack{
		Unicasts:    map[mesh.Addr]uint8{},
		Multicasts:  map[mesh.Addr]bool{},
		EchoEnabled: true,
	}
}

func (s *Stack) SetReceiveCallback(fn func(mesh.Message)) {
	s.receiveCb = fn
}

func (s *Stack) SetAddressCallback(fn func(addr mesh.Addr, prefixLen uint8, added bool)) {
	s.addressCb = fn
}

func (s *Stack) SetStateChangedCallback(fn func(flags mesh.ChangedFlags)) {
	s.stateCb = fn
}

func (s *Stack) AddUnicastAddress(addr mesh.Addr, prefixLen uint8) error {
	s.AddCalls++
	if _, ok := s.Unicasts[addr]; ok {
		return mesh.ErrAlreadySubscribed
	}
	s.Unicasts[addr] = prefixLen
	return nil
}

func (s *Stack) RemoveUnicastAddress(addr mesh.Addr) error {
	s.RemoveCalls++
	if _, ok := s.Unicasts[addr]; !ok {
		return mesh.ErrNotFound
	}
	delete(s.Unicasts, addr)
	return nil
}

func (s *Stack) UnicastAddresses() []mesh.UnicastAddress {
	addrs := make([]mesh.UnicastAddress, 0, len(s.Unicasts))
	for a, p := range s.Unicasts {
		addrs = append(addrs, mesh.UnicastAddress{Addr: a, PrefixLen: p})
	}
	return addrs
}

func (s *Stack) SubscribeMulticast(addr mesh.Addr) error {
	s.SubscribeCalls++
	if s.Multicasts[addr] {
		return mesh.ErrAlreadySubscribed
	}
	s.Multicasts[addr] = true
	return nil
}

func (s *Stack) UnsubscribeMulticast(addr mesh.Addr) error {
	s.UnsubCalls++
	if !s.Multicasts[addr] {
		return mesh.ErrNotFound
	}
	delete(s.Multicasts, addr)
	return nil
}

func (s *Stack) IsEnabled() bool {
	return s.Enabled
}

func (s *Stack) SetEnabled(enabled bool) error {
	s.SetEnabledCalls++
	s.Enabled = enabled
	return nil
}

func (s *Stack) NewMessage() (mesh.Message, error) {
	return mesh.NewSliceMessage(), nil
}

// Send records the raw packet bytes and frees the message.
func (s *Stack) Send(msg mesh.Message) error {
	buf := make([]byte, msg.Length())
	_, err := msg.Read(0, buf)
	msg.Free()
	if err != nil {
		return err
	}
	s.Sent = append(s.Sent, buf)
	return nil
}

func (s *Stack) SetMulticastPromiscuous(enabled bool) {
	s.Promiscuous = enabled
}

func (s *Stack) SetICMPv6EchoEnabled(enabled bool) {
	s.EchoEnabled = enabled
}

// Deliver invokes the registered receive callback with a message holding
// packet, as the real stack would when delivering a datagram to the host.
func (s *Stack) Deliver(packet []byte) {
	if s.receiveCb == nil {
		return
	}
	msg := mesh.NewSliceMessage()
	_ = msg.Append(packet)
	s.receiveCb(msg)
}

// EmitAddressChange invokes the registered address callback.
func (s *Stack) EmitAddressChange(addr mesh.Addr, prefixLen uint8, added bool) {
	if s.addressCb != nil {
		s.addressCb(addr, prefixLen, added)
	}
}

// EmitStateChange invokes the registered state-change callback.
func (s *Stack) EmitStateChange(flags mesh.ChangedFlags) {
	if s.stateCb != nil {
		s.stateCb(flags)
	}
}
