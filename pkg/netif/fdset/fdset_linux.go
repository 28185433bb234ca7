//go:build linux

package fdset

const wordBits = 64

// Set marks fd as a member of the set.
func (s *Set) Set(fd int) {
	s.Bits[fd/wordBits] |= 1 << (uint(fd) % wordBits)
}

// IsSet reports whether fd is a member of the set.
func (s *Set) IsSet(fd int) bool {
	return s.Bits[fd/wordBits]&(1<<(uint(fd)%wordBits)) != 0
}
