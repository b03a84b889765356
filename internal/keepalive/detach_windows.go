//go:build windows

package keepalive

import "os/exec"

// setDetached is a no-op on Windows; CREATE_NEW_PROCESS_GROUP handling is
// left to the named-pipe daemon work (see daemonhost's Listen seam).
func setDetached(cmd *exec.Cmd) {}
