//go:build !windows

package stdiosupervisor

import "syscall"

func terminationSignal() syscall.Signal {
	return syscall.SIGTERM
}
