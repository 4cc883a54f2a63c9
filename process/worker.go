package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"
)

// stderrTailSize bounds how much worker stderr is kept for error reports.
const stderrTailSize = 8 << 10

// Worker is a long-lived subprocess driven over its stdin and stdout.
// Stderr is retained as a bounded tail for diagnostics.
type Worker struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	stdoutF *os.File
	stderr  *tailBuffer
	grace   time.Duration

	done    chan struct{}
	waitErr error

	stopOnce sync.Once
	stopErr  error
}

// Start launches cmd and returns once the process is running. The worker is
// not bound to ctx; call Stop to end it.
func Start(ctx context.Context, cmd Command) (*Worker, error) {
	if cmd.Binary == "" {
		return nil, fmt.Errorf("process: binary is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("process: %w", err)
	}

	c := exec.Command(cmd.Binary, cmd.Args...) //nolint:gosec // dynamic args are the purpose of this package
	c.Dir = cmd.Dir
	c.Env = mergeEnv(cmd.Env)
	setProcessGroup(c)

	stdin, err := c.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdin pipe: %w", err)
	}
	// A plain pipe instead of StdoutPipe: Wait must not close the read end
	// while buffered output is still unread.
	stdout, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	c.Stdout = stdoutW
	tail := &tailBuffer{limit: stderrTailSize}
	c.Stderr = tail
	c.WaitDelay = cmd.gracePeriod()

	err = c.Start()
	_ = stdoutW.Close()
	if err != nil {
		_ = stdout.Close()
		return nil, fmt.Errorf("process: start %s: %w", cmd.Binary, err)
	}

	w := &Worker{
		cmd:     c,
		stdin:   stdin,
		stdout:  bufio.NewReaderSize(stdout, 64<<10),
		stdoutF: stdout,
		stderr:  tail,
		grace:   cmd.gracePeriod(),
		done:    make(chan struct{}),
	}
	go func() {
		w.waitErr = c.Wait()
		close(w.done)
	}()
	return w, nil
}

// Stdin returns the writer connected to the worker's standard input.
func (w *Worker) Stdin() io.Writer { return w.stdin }

// Stdout returns the buffered reader over the worker's standard output.
func (w *Worker) Stdout() *bufio.Reader { return w.stdout }

// Stderr returns the most recent stderr output.
func (w *Worker) Stderr() string { return w.stderr.String() }

// Pid returns the worker's process id.
func (w *Worker) Pid() int { return w.cmd.Process.Pid }

// Done is closed when the process has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Exited reports whether the process has exited.
func (w *Worker) Exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the exit code once the process has exited, or -1.
func (w *Worker) ExitCode() int {
	if !w.Exited() {
		return -1
	}
	return w.cmd.ProcessState.ExitCode()
}

// Stop closes stdin and waits for the worker to exit. A worker still running
// after the grace period gets SIGTERM, then SIGKILL after another grace period
// or when ctx ends. Stop is safe to call more than once.
func (w *Worker) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		_ = w.stdin.Close()
		w.stopErr = w.waitOrSignal(ctx)
		_ = w.stdoutF.Close()
	})
	return w.stopErr
}

func (w *Worker) waitOrSignal(ctx context.Context) error {
	for _, sig := range []syscall.Signal{syscall.SIGTERM, syscall.SIGKILL} {
		timer := time.NewTimer(w.grace)
		select {
		case <-w.done:
			timer.Stop()
			return w.exitError()
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			sig = syscall.SIGKILL
		}
		_ = syscall.Kill(-w.cmd.Process.Pid, sig)
		if sig == syscall.SIGKILL {
			break
		}
	}
	<-w.done
	return w.exitError()
}

// exitError reports a non-zero exit. Exits caused by Stop's own signals are
// not errors.
func (w *Worker) exitError() error {
	if w.waitErr == nil {
		return nil
	}
	if ws, ok := w.cmd.ProcessState.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return nil
	}
	return fmt.Errorf("process: exit code %d: %w", w.cmd.ProcessState.ExitCode(), w.waitErr)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
