// Package loopstack implements a minimal mesh.Stack that loops every sent
// datagram straight back to the receive callback.  It stands in for a real
// mesh stack in smoke runs of the bridge daemon and in round-trip tests.
package loopstack

import (
	"github.com/ghjm/meshbridge/pkg/mesh"
)

type Stack struct {
	unicasts   map[mesh.Addr]uint8
	multicasts map[mesh.Addr]bool
	enabled    bool

	receiveCb func(mesh.Message)
	addressCb func(addr mesh.Addr, prefixLen uint8, added bool)
	stateCb   func(flags mesh.ChangedFlags)
}

func New() *Stack {
	return &Stack{
		unicasts:   map[mesh.Addr]uint8{},
		multicasts: map[mesh.Addr]bool{},
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
	if _, ok := s.unicasts[addr]; ok {
		return mesh.ErrAlreadySubscribed
	}
	s.unicasts[addr] = prefixLen
	if s.addressCb != nil {
		s.addressCb(addr, prefixLen, true)
	}
	return nil
}

func (s *Stack) RemoveUnicastAddress(addr mesh.Addr) error {
	prefixLen, ok := s.unicasts[addr]
	if !ok {
		return mesh.ErrNotFound
	}
	delete(s.unicasts, addr)
	if s.addressCb != nil {
		s.addressCb(addr, prefixLen, false)
	}
	return nil
}

func (s *Stack) UnicastAddresses() []mesh.UnicastAddress {
	addrs := make([]mesh.UnicastAddress, 0, len(s.unicasts))
	for a, p := range s.unicasts {
		addrs = append(addrs, mesh.UnicastAddress{Addr: a, PrefixLen: p})
	}
	return addrs
}

func (s *Stack) SubscribeMulticast(addr mesh.Addr) error {
	if s.multicasts[addr] {
		return mesh.ErrAlreadySubscribed
	}
	s.multicasts[addr] = true
	if s.addressCb != nil {
		s.addressCb(addr, 0, true)
	}
	return nil
}

func (s *Stack) UnsubscribeMulticast(addr mesh.Addr) error {
	if !s.multicasts[addr] {
		return mesh.ErrNotFound
	}
	delete(s.multicasts, addr)
	if s.addressCb != nil {
		s.addressCb(addr, 0, false)
	}
	return nil
}

func (s *Stack) IsEnabled() bool {
	return s.enabled
}

func (s *Stack) SetEnabled(enabled bool) error {
	if s.enabled != enabled && s.stateCb != nil {
		defer s.stateCb(mesh.ChangedNetifState)
	}
	s.enabled = enabled
	return nil
}

func (s *Stack) NewMessage() (mesh.Message, error) {
	return mesh.NewSliceMessage(), nil
}

// Send loops the datagram back to the receive callback.
func (s *Stack) Send(msg mesh.Message) error {
	if s.receiveCb == nil {
		msg.Free()
		return nil
	}
	s.receiveCb(msg)
	return nil
}

func (s *Stack) SetMulticastPromiscuous(bool) {}

func (s *Stack) SetICMPv6EchoEnabled(bool) {}
