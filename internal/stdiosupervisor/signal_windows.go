//go:build windows

package stdiosupervisor

import "os"

func terminationSignal() os.Signal {
	return os.Interrupt
}
