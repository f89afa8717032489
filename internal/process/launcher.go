package process

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/AvengeMedia/dankcenter/internal/errdefs"
	"github.com/AvengeMedia/dankcenter/internal/log"
	"golang.org/x/sync/errgroup"
)

const (
	defaultLineBuffer  = 4096
	defaultReapTimeout = 2 * time.Second
)

// Launcher starts external commands with piped stdio and streams their
// combined, sanitized output. The zero value is ready to use.
type Launcher struct {
	// Dir is the working directory of the child; empty means the caller's.
	Dir string
	// Env is appended to the current environment.
	Env []string
	// LineBuffer is the capacity of the output channel.
	LineBuffer int
	// ReapTimeout bounds how long Terminate waits for the child to be reaped.
	ReapTimeout time.Duration
}

// Spawn runs executable with args using a zero-value Launcher.
func Spawn(executable string, args ...string) (*Handle, error) {
	return (&Launcher{}).Spawn(executable, args...)
}

// Spawn starts the child and its two output readers. The only error it
// returns is a launch error; everything after a successful start is
// reported through the handle.
func (l *Launcher) Spawn(executable string, args ...string) (*Handle, error) {
	cmd := exec.Command(executable, args...)
	cmd.Dir = l.Dir
	if len(l.Env) > 0 {
		cmd.Env = append(os.Environ(), l.Env...)
	}
	// own process group so Terminate reaches helpers the child forks
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, launchError(executable, err)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, launchError(executable, err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		closeAll(stdoutR, stdoutW)
		return nil, launchError(executable, err)
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		log.Debugf("spawn failed: %s %s: %v", executable, strings.Join(args, " "), err)
		return nil, launchError(executable, err)
	}

	// the child holds its own copies; ours must go so readers see EOF
	closeAll(stdoutW, stderrW)

	h := newHandle(cmd, stdin, l.reapTimeout())
	lines := make(chan string, l.lineBuffer())
	h.lines = lines

	var readers errgroup.Group
	readers.Go(func() error { return h.readLines(stdoutR, lines) })
	readers.Go(func() error { return h.readLines(stderrR, lines) })
	go func() {
		_ = readers.Wait()
		close(lines)
	}()

	go h.reap()

	log.Debugf("spawned pid=%d: %s %s", cmd.Process.Pid, executable, strings.Join(args, " "))
	return h, nil
}

// readLines forwards sanitized lines from r until EOF or a read error. It
// gives up early once the handle is abandoned so a caller that stopped
// draining never pins the goroutine.
func (h *Handle) readLines(r io.ReadCloser, out chan<- string) error {
	defer r.Close()

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			select {
			case out <- Sanitize(strings.TrimSuffix(line, "\n")):
			case <-h.abandon:
				return nil
			}
		}
		if err != nil {
			return nil
		}
	}
}

func (l *Launcher) lineBuffer() int {
	if l.LineBuffer > 0 {
		return l.LineBuffer
	}
	return defaultLineBuffer
}

func (l *Launcher) reapTimeout() time.Duration {
	if l.ReapTimeout > 0 {
		return l.ReapTimeout
	}
	return defaultReapTimeout
}

func launchError(executable string, err error) error {
	return errdefs.NewCustomError(errdefs.ErrTypeLaunch, fmt.Sprintf("Could not run %s: %v", executable, err))
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}
