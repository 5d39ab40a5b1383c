//go:build windows

package sandbox

import "os/exec"

// setSysProcAttr is a no-op on Windows; Setpgid has no equivalent here.
func setSysProcAttr(cmd *exec.Cmd) {}
