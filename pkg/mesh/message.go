package mesh

import "fmt"

// SliceMessage is a slice-backed reference implementation of Message.
// Real mesh stacks bring their own pooled allocators; this one exists for
// in-process stacks and tests.
type SliceMessage struct {
	buf   []byte
	freed bool
}

// NewSliceMessage returns an empty SliceMessage.
func NewSliceMessage() *SliceMessage {
	return &SliceMessage{}
}

func (m *SliceMessage) Length() int {
	return len(m.buf)
}

func (m *SliceMessage) Read(offset int, p []byte) (int, error) {
	if m.freed {
		return 0, fmt.Errorf("read from freed message")
	}
	if offset < 0 || offset > len(m.buf) {
		return 0, fmt.Errorf("read offset %d out of range (message length %d)", offset, len(m.buf))
	}
	return copy(p, m.buf[offset:]), nil
}

func (m *SliceMessage) Append(p []byte) error {
	if m.freed {
		return fmt.Errorf("append to freed message")
	}
	m.buf = append(m.buf, p...)
	return nil
}

func (m *SliceMessage) Free() {
	m.freed = true
	m.buf = nil
}
