//go:build linux || darwin || freebsd || netbsd

package fdset

import "testing"

func TestSetIsSet(t *testing.T) {
	var s Set
	for _, fd := range []int{0, 1, 31, 32, 63, 64, 100} {
		if s.IsSet(fd) {
			t.Errorf("fd %d set in empty set", fd)
		}
		s.Set(fd)
		if !s.IsSet(fd) {
			t.Errorf("fd %d not set after Set", fd)
		}
	}
	if s.IsSet(2) || s.IsSet(65) {
		t.Errorf("unrelated fds reported set")
	}
	s.Zero()
	for _, fd := range []int{0, 1, 31, 32, 63, 64, 100} {
		if s.IsSet(fd) {
			t.Errorf("fd %d still set after Zero", fd)
		}
	}
}
