package mesh

import (
	"bytes"
	"testing"
)

func TestAddrClassification(t *testing.T) {
	multicast := Addr{0xff, 0x02, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x16}
	if !multicast.IsMulticast() {
		t.Errorf("%s should be multicast", multicast)
	}
	if !multicast.IsMulticastLinkLocal() {
		t.Errorf("%s should be link-local multicast", multicast)
	}
	linkLocal := Addr{0xfe, 0x80, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	if !linkLocal.IsLinkLocal() {
		t.Errorf("%s should be link-local", linkLocal)
	}
	if linkLocal.IsMulticast() {
		t.Errorf("%s should not be multicast", linkLocal)
	}
	global := Addr{0xfd, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	if global.IsMulticast() || global.IsLinkLocal() {
		t.Errorf("%s misclassified", global)
	}
	siteMulticast := Addr{0xff, 0x05, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}
	if siteMulticast.IsMulticastLinkLocal() {
		t.Errorf("%s should not be link-local multicast", siteMulticast)
	}
}

func TestAddrFromSlice(t *testing.T) {
	if _, ok := AddrFromSlice(make([]byte, 15)); ok {
		t.Errorf("15-byte slice should not convert")
	}
	b := make([]byte, 16)
	b[0] = 0xfe
	b[15] = 7
	a, ok := AddrFromSlice(b)
	if !ok || a[0] != 0xfe || a[15] != 7 {
		t.Errorf("conversion lost bytes: %v", a)
	}
}

func TestSliceMessage(t *testing.T) {
	m := NewSliceMessage()
	if err := m.Append([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if err := m.Append([]byte{4, 5}); err != nil {
		t.Fatal(err)
	}
	if m.Length() != 5 {
		t.Errorf("length = %d, want 5", m.Length())
	}
	buf := make([]byte, 5)
	n, err := m.Read(0, buf)
	if err != nil || n != 5 {
		t.Fatalf("read = %d, %v", n, err)
	}
	if !bytes.Equal(buf, []byte{1, 2, 3, 4, 5}) {
		t.Errorf("read returned %v", buf)
	}
	n, err = m.Read(3, buf)
	if err != nil || n != 2 || buf[0] != 4 {
		t.Errorf("offset read = %d, %v, %v", n, err, buf[:n])
	}
	if _, err = m.Read(6, buf); err == nil {
		t.Errorf("out of range read should fail")
	}
	m.Free()
	if err = m.Append([]byte{9}); err == nil {
		t.Errorf("append to freed message should fail")
	}
	if _, err = m.Read(0, buf); err == nil {
		t.Errorf("read from freed message should fail")
	}
}
