package process

import (
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"golang.org/x/sys/unix"
)

type Status int

const (
	StatusRunning Status = iota
	StatusSucceeded
	StatusFailed
)

// Exited reports whether the status is terminal.
func (s Status) Exited() bool {
	return s != StatusRunning
}

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle is a live child process. Drain, SendInput and PollStatus never
// block and are meant to be called from a UI tick. A Handle has one owner;
// after Terminate the owner must stop using it.
type Handle struct {
	cmd         *exec.Cmd
	pid         int
	lines       <-chan string
	reapTimeout time.Duration

	stdinMu sync.Mutex
	stdin   io.WriteCloser

	// done is closed by reap once waitErr and exitCode are final
	done     chan struct{}
	waitErr  error
	exitCode int

	abandon       chan struct{}
	terminateOnce sync.Once
	cancelled     atomic.Bool
	drained       atomic.Bool
}

func newHandle(cmd *exec.Cmd, stdin io.WriteCloser, reapTimeout time.Duration) *Handle {
	return &Handle{
		cmd:         cmd,
		pid:         cmd.Process.Pid,
		stdin:       stdin,
		reapTimeout: reapTimeout,
		done:        make(chan struct{}),
		abandon:     make(chan struct{}),
		exitCode:    -1,
	}
}

func (h *Handle) reap() {
	err := h.cmd.Wait()
	if h.cmd.ProcessState != nil {
		h.exitCode = h.cmd.ProcessState.ExitCode()
	}
	h.waitErr = err
	log.Debugf("pid=%d exited: code=%d err=%v", h.pid, h.exitCode, err)

	// Wait already closed the pipe; drop our reference too
	h.closeStdin()
	close(h.done)
}

// Pid returns the child's process id.
func (h *Handle) Pid() int {
	return h.pid
}

// Drain returns every line buffered so far without blocking.
func (h *Handle) Drain() []string {
	var out []string
	for {
		select {
		case line, ok := <-h.lines:
			if !ok {
				h.drained.Store(true)
				return out
			}
			out = append(out, line)
		default:
			return out
		}
	}
}

// Closed reports whether both output streams have ended and every line has
// been handed out by Drain.
func (h *Handle) Closed() bool {
	return h.drained.Load()
}

// SendInput writes text plus a newline to the child's stdin. It is a no-op
// once stdin has been closed. A child that stops reading can block the
// write; Terminate still goes through and the write then fails.
func (h *Handle) SendInput(text string) {
	h.stdinMu.Lock()
	w := h.stdin
	h.stdinMu.Unlock()

	if w == nil {
		return
	}
	// the pipe is unbuffered, so a successful write is already flushed
	if _, err := io.WriteString(w, text+"\n"); err != nil {
		log.Debugf("pid=%d stdin write: %v", h.pid, err)
	}
}

// CloseInput closes stdin so the child sees EOF.
func (h *Handle) CloseInput() {
	h.closeStdin()
}

func (h *Handle) closeStdin() {
	h.stdinMu.Lock()
	defer h.stdinMu.Unlock()

	if h.stdin != nil {
		h.stdin.Close()
		h.stdin = nil
	}
}

// PollStatus reports whether the child is still running and, once it has
// been reaped, whether it succeeded. A terminated handle never succeeds.
func (h *Handle) PollStatus() Status {
	select {
	case <-h.done:
		if h.waitErr != nil || h.cancelled.Load() {
			return StatusFailed
		}
		return StatusSucceeded
	default:
		return StatusRunning
	}
}

// Done is closed once the child has been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// ExitCode is the child's exit code, or -1 while it runs or when it was
// killed by a signal.
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
		return h.exitCode
	default:
		return -1
	}
}

// Terminate closes stdin, kills the child's process group and waits up to
// the reap timeout for it to be collected. Safe to call repeatedly.
func (h *Handle) Terminate() {
	h.terminateOnce.Do(func() {
		h.closeStdin()
		close(h.abandon)

		select {
		case <-h.done:
			return
		default:
		}

		h.cancelled.Store(true)
		if err := unix.Kill(-h.pid, unix.SIGKILL); err != nil {
			log.Debugf("pid=%d group kill: %v", h.pid, err)
			if err := h.cmd.Process.Kill(); err != nil {
				log.Debugf("pid=%d kill: %v", h.pid, err)
			}
		}
	})

	timer := time.NewTimer(h.reapTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
	case <-timer.C:
		log.Warnf("pid=%d not reaped within %s", h.pid, h.reapTimeout)
	}
}
