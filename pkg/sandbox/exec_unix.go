//go:build !windows

package sandbox

import (
	"os/exec"
	"syscall"
)

// setSysProcAttr sets Unix-specific process attributes so the whole
// process group can be signaled on timeout/cancellation.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
}
