//go:build !windows

package cmd

import (
	"os/exec"
	"syscall"
)

func setDaemonDetached(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
