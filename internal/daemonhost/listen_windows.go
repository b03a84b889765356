//go:build windows

package daemonhost

import (
	"fmt"
	"net"
)

// Listen on Windows would bind a named pipe at an equivalent logical path
// (spec.md §6.1). No named-pipe dependency is part of this module's wired
// stack, so this seam is left unimplemented rather than faked.
func Listen(path string) (net.Listener, error) {
	return nil, fmt.Errorf("daemonhost: windows named-pipe listener not implemented for %q", path)
}
