// Package process spawns and tears down the external commands behind project
// scaffolding and dev servers.
package process

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// MaxOutputBytes bounds the output kept for diagnostics.
const MaxOutputBytes = 64 * 1024

var (
	ErrTimeout = errors.New("process: timed out")
	// ErrPortLookupUnavailable means listeners cannot be found on this host.
	ErrPortLookupUnavailable = errors.New("process: port lookup unavailable")
)

// Spec describes one command invocation.
type Spec struct {
	Name    string
	Command string
	Args    []string
	Env     []string
	Dir     string
}

func (s Spec) String() string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}

type Result struct {
	Output   string
	ExitCode int
	Duration time.Duration
}

// Handle is a live long-running process.
type Handle interface {
	Pid() int
	Done() <-chan struct{}
	Output() string
	Stop(timeout time.Duration) error
}

// Runner is the process-spawning facility.
type Runner interface {
	// Run executes a command to completion, killing it after timeout.
	Run(ctx context.Context, spec Spec, timeout time.Duration) (*Result, error)
	// Start launches a command that outlives the calling request.
	Start(spec Spec) (Handle, error)
	// KillPort terminates whatever listens on port. Nothing listening is not
	// an error.
	KillPort(ctx context.Context, port int) error
}

type OSRunner struct {
	lsof string
}

func NewOSRunner() *OSRunner {
	return &OSRunner{lsof: "lsof"}
}

func (r *OSRunner) Run(ctx context.Context, spec Spec, timeout time.Duration) (*Result, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, errors.New("process: command required")
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := newTailBuffer(MaxOutputBytes)
	cmd := exec.CommandContext(runCtx, spec.Command, spec.Args...)
	configure(cmd, spec, out)
	cmd.Cancel = func() error {
		return killGroup(cmd, syscall.SIGKILL)
	}
	cmd.WaitDelay = 5 * time.Second

	started := time.Now()
	err := cmd.Run()
	res := &Result{Output: out.String(), Duration: time.Since(started)}
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return res, fmt.Errorf("%s after %s: %w", spec, timeout, ErrTimeout)
	}
	if err != nil {
		return res, fmt.Errorf("process: %s: %w", spec, err)
	}
	return res, nil
}

func (r *OSRunner) Start(spec Spec) (Handle, error) {
	if strings.TrimSpace(spec.Command) == "" {
		return nil, errors.New("process: command required")
	}

	out := newTailBuffer(MaxOutputBytes)
	cmd := exec.Command(spec.Command, spec.Args...)
	configure(cmd, spec, out)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", spec, err)
	}

	h := &handle{cmd: cmd, out: out, done: make(chan struct{})}
	go func() {
		h.waitErr = cmd.Wait()
		close(h.done)
	}()
	return h, nil
}

func (r *OSRunner) KillPort(ctx context.Context, port int) error {
	if port <= 0 {
		return fmt.Errorf("process: invalid port %d", port)
	}

	out, err := exec.CommandContext(ctx, r.lsof, "-ti:"+strconv.Itoa(port)).Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("%w: %s: %w", ErrPortLookupUnavailable, r.lsof, err)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// lsof exits 1 when nothing matches
			return nil
		}
		return fmt.Errorf("process: lookup port %d: %w", port, err)
	}

	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil || pid <= 0 {
			continue
		}
		if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("process: kill pid %d on port %d: %w", pid, port, err)
		}
	}
	return nil
}

func configure(cmd *exec.Cmd, spec Spec, out *tailBuffer) {
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}
	cmd.Stdout = out
	cmd.Stderr = out
	// own process group so children (npm -> node) die with the parent
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func killGroup(cmd *exec.Cmd, sig syscall.Signal) error {
	if cmd.Process == nil {
		return nil
	}
	err := syscall.Kill(-cmd.Process.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return nil
	}
	return err
}

type handle struct {
	cmd     *exec.Cmd
	out     *tailBuffer
	done    chan struct{}
	waitErr error
}

func (h *handle) Pid() int {
	return h.cmd.Process.Pid
}

func (h *handle) Done() <-chan struct{} {
	return h.done
}

func (h *handle) Output() string {
	return h.out.String()
}

// Stop interrupts the process group and kills it if it has not exited
// within timeout.
func (h *handle) Stop(timeout time.Duration) error {
	select {
	case <-h.done:
		return nil
	default:
	}

	if err := killGroup(h.cmd, syscall.SIGINT); err != nil {
		return fmt.Errorf("process: interrupt %d: %w", h.Pid(), err)
	}

	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
	}

	if err := killGroup(h.cmd, syscall.SIGKILL); err != nil {
		return fmt.Errorf("process: kill %d: %w", h.Pid(), err)
	}
	<-h.done
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	mu  sync.Mutex
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - b.max; over > 0 {
		b.buf = append([]byte(nil), b.buf[over:]...)
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
