package profiler

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"
)

// Environment passed to the server so it reports its own startup timing on
// stderr alongside ours.
var serverEnv = []string{
	"RAVEN_PERF=1",
	"RUST_LOG=raven=info",
}

// ServerProcess is the language server subprocess with its stdio pipes.
type ServerProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// CheckExecutable verifies that path names an executable file. It runs
// before any spawn attempt so a bad path fails with a clear message instead
// of an exec error.
func CheckExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("server binary not found: %s", path)
	}
	if info.IsDir() || info.Mode().Perm()&0o111 == 0 {
		return fmt.Errorf("server binary is not executable: %s", path)
	}
	return nil
}

// StartServer launches the server in stdio mode with the workspace as its
// working directory and perf logging enabled.
func StartServer(path, workspace string) (*ServerProcess, error) {
	cmd := exec.Command(path, "--stdio")
	cmd.Dir = workspace
	cmd.Env = append(os.Environ(), serverEnv...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start server %s: %w", path, err)
	}

	return &ServerProcess{cmd: cmd, stdin: stdin, stdout: stdout, stderr: stderr}, nil
}

// Stdin is the client-to-server protocol stream.
func (p *ServerProcess) Stdin() io.Writer { return p.stdin }

// Stdout is the server-to-client protocol stream.
func (p *ServerProcess) Stdout() io.Reader { return p.stdout }

// Stderr is the server's log stream.
func (p *ServerProcess) Stderr() io.Reader { return p.stderr }

// Kill terminates the server immediately.
func (p *ServerProcess) Kill() {
	_ = p.cmd.Process.Kill()
	_ = p.cmd.Wait()
}

// WaitTimeout waits for the server to exit on its own, force-killing it if
// it has not exited within d.
func (p *ServerProcess) WaitTimeout(d time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- p.cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-time.After(d):
		_ = p.cmd.Process.Kill()
		<-done
		return fmt.Errorf("server did not exit within %s; killed", d)
	}
}
