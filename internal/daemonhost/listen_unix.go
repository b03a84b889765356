//go:build !windows

package daemonhost

import (
	"net"
	"os"
)

// Listen binds the local socket at path, unlinking any stale file first.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(parentDir(path), 0o700); err != nil {
		return nil, err
	}
	if err := unlinkStale(path); err != nil {
		return nil, err
	}
	return net.Listen("unix", path)
}

func unlinkStale(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
