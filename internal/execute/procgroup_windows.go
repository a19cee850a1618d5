//go:build windows

package execute

import (
	"os/exec"
	"time"
)

// setProcGroup only sets a drain delay; Windows has no Unix process groups
// and CommandContext already kills the direct child.
func setProcGroup(cmd *exec.Cmd) {
	cmd.WaitDelay = 3 * time.Second
}
