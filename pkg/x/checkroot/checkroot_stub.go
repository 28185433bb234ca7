//go:build !linux

package checkroot

import (
	"os"
)

// Capabilities are a Linux concept; elsewhere only euid 0 counts.

func CheckNetAdmin() bool {
	return CheckRoot()
}

func CheckRoot() bool {
	return os.Geteuid() == 0
}
