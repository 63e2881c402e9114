// Package supervisor owns the lifecycle of a single sidecar process: it
// launches the binary, drains its output into a sink on background
// goroutines, and terminates it best-effort on shutdown.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// Command describes how to launch the sidecar
type Command struct {
	Path          string
	Args          []string
	Env           []string // KEY=VALUE pairs appended to the host environment
	Dir           string
	CaptureStderr bool
}

// ProcessRunner creates and starts processes
type ProcessRunner interface {
	Start(ctx context.Context, cmd Command) (Process, error)
}

// Process represents a running child process
type Process interface {
	PID() int
	Wait() error
	// Terminate asks the process to exit (SIGTERM to its group on unix)
	Terminate() error
	// Kill forces the process to exit
	Kill() error
	Stdout() io.Reader
	// Stderr returns nil when stderr is not captured
	Stderr() io.Reader
	// Close releases the read side of the output pipes, unblocking readers
	Close() error
}

// ExecRunner implements ProcessRunner using os/exec
type ExecRunner struct{}

// NewExecRunner creates a new ExecRunner
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Start launches the command. ctx bounds the launch only; the process is not
// tied to ctx and lives until terminated.
func (r *ExecRunner) Start(ctx context.Context, c Command) (Process, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := exec.Command(c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = append(os.Environ(), c.Env...)
	setSysProcAttr(cmd)

	// Manual pipes instead of cmd.StdoutPipe: Wait must not close the read
	// side while a reader is still draining output left by grandchildren.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW

	var stderrR, stderrW *os.File
	if c.CaptureStderr {
		stderrR, stderrW, err = os.Pipe()
		if err != nil {
			closeAll(stdoutR, stdoutW)
			return nil, fmt.Errorf("creating stderr pipe: %w", err)
		}
		cmd.Stderr = stderrW
	}

	if err := cmd.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("starting process: %w", err)
	}

	// The child holds its own copies of the write ends
	closeAll(stdoutW, stderrW)

	p := &execProcess{cmd: cmd, stdout: stdoutR}
	if stderrR != nil {
		p.stderr = stderrR
	}
	return p, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		if f != nil {
			_ = f.Close()
		}
	}
}

// execProcess wraps exec.Cmd to implement Process
type execProcess struct {
	cmd       *exec.Cmd
	stdout    *os.File
	stderr    *os.File
	closeOnce sync.Once
}

func (p *execProcess) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *execProcess) Wait() error {
	return p.cmd.Wait()
}

func (p *execProcess) Terminate() error {
	if p.cmd.Process == nil {
		return nil
	}
	return terminateProcess(p.cmd.Process)
}

func (p *execProcess) Kill() error {
	if p.cmd.Process == nil {
		return nil
	}
	return killProcess(p.cmd.Process)
}

func (p *execProcess) Stdout() io.Reader {
	return p.stdout
}

func (p *execProcess) Stderr() io.Reader {
	if p.stderr == nil {
		return nil
	}
	return p.stderr
}

func (p *execProcess) Close() error {
	var errs []error
	p.closeOnce.Do(func() {
		if err := p.stdout.Close(); err != nil {
			errs = append(errs, err)
		}
		if p.stderr != nil {
			if err := p.stderr.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	})
	return errors.Join(errs...)
}
