package tui

import (
	"context"
	"sync"

	"github.com/AvengeMedia/dankcenter/internal/supervisor"
)

// flight is shared by every copy of a Model. It outlives the program run, so
// a Perform that returns after the user cancelled and quit still has its
// stream terminated.
type flight struct {
	ctx  context.Context
	stop context.CancelFunc

	mu        sync.Mutex
	stream    supervisor.Stream
	cancelled bool
	finished  bool
}

func newFlight() *flight {
	ctx, stop := context.WithCancel(context.Background())
	return &flight{ctx: ctx, stop: stop}
}

// adopt records s as the live stream. When the operation was already
// cancelled it terminates s instead and reports false.
func (f *flight) adopt(s supervisor.Stream) bool {
	f.mu.Lock()
	if !f.cancelled {
		f.stream = s
		f.mu.Unlock()
		return true
	}
	f.mu.Unlock()

	s.Terminate()
	return false
}

// cancel stops a Perform still preparing and terminates the adopted stream.
// It does nothing once the operation finished on its own.
func (f *flight) cancel() {
	f.mu.Lock()
	if f.cancelled || f.finished {
		f.mu.Unlock()
		return
	}
	f.cancelled = true
	s := f.stream
	f.stream = nil
	f.mu.Unlock()

	f.stop()
	if s != nil {
		s.Terminate()
	}
}

func (f *flight) finish() {
	f.mu.Lock()
	f.finished = true
	f.stream = nil
	f.mu.Unlock()
	f.stop()
}
