package ops

import (
	"context"
	"sync"
	"time"

	"github.com/AvengeMedia/dankcenter/internal/errdefs"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/process"
	"github.com/AvengeMedia/dankcenter/internal/supervisor"
)

// Slot holds at most one operation at a time. A reservation is taken before
// the supervisor is asked to start anything so that two clients racing on
// ops.perform cannot both spawn.
type Slot struct {
	mu sync.Mutex

	// gen identifies the current reservation
	gen      uint64
	reserved bool
	// stop cancels the Perform call still preparing the reservation
	stop     context.CancelFunc
	stream   supervisor.Stream
	kind     policy.OperationKind
	name     string
	lines    []string
	status   process.Status
	exitedAt time.Time

	// last is the outcome of the most recent finished operation
	last *policy.Outcome

	// onFinish runs on its own goroutine after every release
	onFinish func(kind policy.OperationKind, name string, outcome policy.Outcome)
}

// Reserve claims the slot for kind on name and returns the reservation
// token Attach expects. stop, if set, is called when the reservation is
// cancelled before Attach.
func (s *Slot) Reserve(kind policy.OperationKind, name string, stop context.CancelFunc) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reserved {
		return 0, errdefs.ErrBusy
	}
	s.gen++
	s.reserved = true
	s.stop = stop
	s.stream = nil
	s.kind = kind
	s.name = name
	s.lines = nil
	s.status = process.StatusRunning
	s.exitedAt = time.Time{}
	s.last = nil
	return s.gen, nil
}

// Attach settles reservation token with what the supervisor returned. The
// outcome is non-nil for immediate results. It reports false when the
// reservation was cancelled in the meantime; a stream has then already
// been terminated.
func (s *Slot) Attach(token uint64, res supervisor.Result) (*policy.Outcome, bool) {
	s.mu.Lock()
	if token != s.gen || !s.reserved || s.stream != nil {
		s.mu.Unlock()
		if res.Streaming() {
			res.Stream.Terminate()
		}
		return nil, false
	}
	defer s.mu.Unlock()
	s.stop = nil

	if !res.Streaming() {
		outcome := res.Outcome
		s.release(&outcome)
		return &outcome, true
	}

	s.stream = res.Stream
	return nil, true
}

// Drain returns the lines produced since the previous call, the current
// status, and the outcome once the operation has settled.
func (s *Slot) Drain() ([]string, process.Status, *policy.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream == nil {
		if s.last != nil {
			return nil, statusOf(s.last), s.last
		}
		return nil, s.status, nil
	}

	batch := s.stream.Drain()
	s.lines = append(s.lines, batch...)
	tail, outcome := s.settle()
	return append(batch, tail...), s.status, outcome
}

// Status reports the slot. A stream that has settled is finished here and
// the slot freed; output nobody drained yet only survives in a failure
// outcome.
func (s *Slot) Status() StatusResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stream != nil {
		s.lines = append(s.lines, s.stream.Drain()...)
		s.settle()
	}

	res := StatusResult{
		Active:  s.reserved,
		Lines:   len(s.lines),
		Outcome: outcomeResult(s.last),
	}
	if s.reserved || s.last != nil {
		res.Kind = s.kind.String()
		res.Name = s.name
		res.Status = s.status.String()
		if s.last != nil {
			res.Status = statusOf(s.last).String()
		}
	}
	return res
}

// SendInput forwards one line to the running child. Without one it is a
// no-op.
func (s *Slot) SendInput(text string) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()

	if stream != nil {
		stream.SendInput(text)
	}
}

// Cancel terminates whatever owns the slot and records the cancellation
// outcome. It reports false when the slot was idle. The slot is free again
// before the child is killed, so Terminate never runs under mu.
func (s *Slot) Cancel() (*policy.Outcome, bool) {
	s.mu.Lock()
	if !s.reserved {
		last := s.last
		s.mu.Unlock()
		return last, false
	}
	stream, stop := s.stream, s.stop
	s.lines = nil
	outcome := supervisor.Cancelled()
	s.release(&outcome)
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if stream != nil {
		stream.Terminate()
	}
	return &outcome, true
}

// settle finishes an exited stream once its output is complete, returning
// lines drained on the way. It must be called with mu held.
func (s *Slot) settle() ([]string, *policy.Outcome) {
	if s.exitedAt.IsZero() {
		s.status = s.stream.PollStatus()
		if !s.status.Exited() {
			return nil, nil
		}
		s.exitedAt = time.Now()
	}
	if !supervisor.Settled(s.stream, s.exitedAt) {
		return nil, nil
	}

	tail := s.stream.Drain()
	s.lines = append(s.lines, tail...)
	outcome := supervisor.Finish(s.kind, s.name, s.status, s.lines)
	s.release(&outcome)
	return tail, &outcome
}

// release must be called with mu held.
func (s *Slot) release(outcome *policy.Outcome) {
	s.stream = nil
	s.stop = nil
	s.reserved = false
	s.last = outcome
	if s.onFinish != nil {
		go s.onFinish(s.kind, s.name, *outcome)
	}
}

func statusOf(o *policy.Outcome) process.Status {
	if o.Success {
		return process.StatusSucceeded
	}
	return process.StatusFailed
}
