//go:build !linux && !darwin && !freebsd && !netbsd

package main

import (
	"fmt"
	"os"
)

func main() {
	_, _ = fmt.Fprintln(os.Stderr, "Error: this platform has no tunnel device support")
	os.Exit(1)
}
