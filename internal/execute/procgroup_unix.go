//go:build !windows

package execute

import (
	"os/exec"
	"syscall"
	"time"
)

// setProcGroup runs cmd in its own process group so cancellation kills the
// test runner together with the workers it forks.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 3 * time.Second
}
