//go:build !windows

package keepalive

import (
	"os/exec"
	"syscall"
)

// setDetached puts the spawned daemon in its own session so it survives
// the launching process exiting, mirroring the detach convention used for
// other spawned stdio transports in the corpus.
func setDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
