package testutil

import (
	"net"
)

// RandomPort asks the kernel for a free TCP port
func RandomPort() (int, error) {
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}
	defer l.Close() // nolint:errcheck

	return l.Addr().(*net.TCPAddr).Port, nil
}
