//go:build windows

package supervisor

import (
	"os"
	"os/exec"
)

// setSysProcAttr is a no-op on Windows; there are no process groups to join.
func setSysProcAttr(cmd *exec.Cmd) {}

// terminateProcess kills outright. Windows has no deliverable SIGTERM for
// console-less children.
func terminateProcess(p *os.Process) error {
	return p.Kill()
}

func killProcess(p *os.Process) error {
	return p.Kill()
}
