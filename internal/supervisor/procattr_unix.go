//go:build unix

package supervisor

import (
	"os"
	"os/exec"
	"syscall"
)

// setSysProcAttr puts the sidecar in its own process group so the whole
// tree can be signalled at shutdown.
func setSysProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func terminateProcess(p *os.Process) error {
	return signalGroup(p, syscall.SIGTERM)
}

func killProcess(p *os.Process) error {
	return signalGroup(p, syscall.SIGKILL)
}

// signalGroup signals the process group, falling back to the process alone
func signalGroup(p *os.Process, sig syscall.Signal) error {
	pgid, err := syscall.Getpgid(p.Pid)
	if err != nil {
		return p.Signal(sig)
	}
	return syscall.Kill(-pgid, sig)
}
