package runstate

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// reapGracePeriod is how long a stale sidecar gets to exit after terminate
const reapGracePeriod = 2 * time.Second

// PIDFile records the pid of the running sidecar so a host that crashed
// without shutting it down can reap the orphan on its next start.
//
// PIDFile is not safe for concurrent use.
type PIDFile struct {
	path string
}

// NewPIDFile creates a new PIDFile manager for the given path
func NewPIDFile(path string) *PIDFile {
	return &PIDFile{path: path}
}

// Path returns the pid file location
func (p *PIDFile) Path() string {
	return p.path
}

// Write records pid, replacing any previous content
func (p *PIDFile) Write(pid int) error {
	if pid <= 0 {
		return fmt.Errorf("invalid PID: %d", pid)
	}
	if err := os.MkdirAll(filepath.Dir(p.path), 0700); err != nil {
		return fmt.Errorf("creating PID file directory: %w", err)
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(pid)+"\n"), 0600); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing PID file: %w", err)
	}
	return nil
}

// Read returns the recorded pid
func (p *PIDFile) Read() (int, error) {
	return ReadPID(p.path)
}

// Remove deletes the pid file. A missing file is not an error.
func (p *PIDFile) Remove() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing PID file: %w", err)
	}
	return nil
}

// ReapStale kills the process named in the pid file if it is still alive and
// its executable name starts with name, then removes the file. It reports
// whether a process was killed. A missing file is not an error.
func (p *PIDFile) ReapStale(name string) (bool, error) {
	pid, err := p.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		// Unparseable content is as good as stale
		return false, p.Remove()
	}

	killed, err := reap(pid, filepath.Base(name))
	if rmErr := p.Remove(); rmErr != nil && err == nil {
		err = rmErr
	}
	return killed, err
}

func reap(pid int, name string) (bool, error) {
	if pid == os.Getpid() {
		return false, nil
	}
	exists, err := process.PidExists(int32(pid))
	if err != nil || !exists {
		return false, nil
	}
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return false, nil
	}

	// The pid may have been recycled by an unrelated process
	procName, err := proc.Name()
	if err != nil || !strings.HasPrefix(procName, name) {
		return false, nil
	}

	if err := proc.Terminate(); err != nil {
		return false, fmt.Errorf("terminating stale sidecar %d: %w", pid, err)
	}

	deadline := time.Now().Add(reapGracePeriod)
	for time.Now().Before(deadline) {
		if running, err := proc.IsRunning(); err != nil || !running {
			return true, nil
		}
		time.Sleep(50 * time.Millisecond)
	}

	if err := proc.Kill(); err != nil {
		return false, fmt.Errorf("killing stale sidecar %d: %w", pid, err)
	}
	return true, nil
}

// ReadPID reads the PID from a PID file
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parsing PID: %w", err)
	}

	return pid, nil
}

// ProcessExists checks if a process with the given PID exists
func ProcessExists(pid int) bool {
	if pid <= 0 {
		return false
	}
	exists, err := process.PidExists(int32(pid))
	return err == nil && exists
}
