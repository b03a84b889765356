//go:build windows

package cmd

import "os/exec"

func setDaemonDetached(cmd *exec.Cmd) {}
