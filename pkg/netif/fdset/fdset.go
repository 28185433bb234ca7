//go:build linux || darwin || freebsd || netbsd

// Package fdset wraps the select(2) descriptor sets so the bridge and the
// wait loop that owns it speak the same type.
package fdset

import (
	"golang.org/x/sys/unix"
)

// Set is a select(2) file descriptor set.
type Set struct {
	unix.FdSet
}

// Zero clears the set.
func (s *Set) Zero() {
	s.FdSet = unix.FdSet{}
}

// Select waits until one of the descriptors in the given sets is ready.
// nfd must be one greater than the highest descriptor in any set.  A nil
// timeout blocks indefinitely.
func Select(nfd int, read, write, errs *Set, timeout *unix.Timeval) (int, error) {
	var r, w, e *unix.FdSet
	if read != nil {
		r = &read.FdSet
	}
	if write != nil {
		w = &write.FdSet
	}
	if errs != nil {
		e = &errs.FdSet
	}
	return unix.Select(nfd, r, w, e, timeout)
}
