package supervisor

import (
	"context"
	"time"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/process"
)

// OutputGrace is how long to keep draining after exit when the output
// channel has not closed yet (a grandchild may still hold the pipe).
const OutputGrace = 500 * time.Millisecond

type closer interface {
	Closed() bool
}

// Follow polls stream every interval until it exits or ctx is cancelled,
// handing each batch of lines to onLines. Cancelling ctx terminates the
// stream and yields the cancellation outcome.
func Follow(ctx context.Context, stream Stream, interval time.Duration, kind policy.OperationKind, name string, onLines func([]string)) policy.Outcome {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var (
		lines    []string
		exitedAt time.Time
		status   process.Status
	)

	drain := func() {
		if batch := stream.Drain(); len(batch) > 0 {
			lines = append(lines, batch...)
			if onLines != nil {
				onLines(batch)
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			log.Infof("%s %s cancelled", kind, name)
			stream.Terminate()
			return Cancelled()
		case <-ticker.C:
		}

		drain()

		if exitedAt.IsZero() {
			status = stream.PollStatus()
			if !status.Exited() {
				continue
			}
			exitedAt = time.Now()
		}

		if Settled(stream, exitedAt) {
			// lines written just before exit may land after the drain above
			drain()
			log.Debugf("%s %s finished: %s", kind, name, status)
			return Finish(kind, name, status, lines)
		}
	}
}

// Settled reports whether the output of a stream that exited at exitedAt
// is complete: its channel has closed or the grace period is over.
func Settled(stream Stream, exitedAt time.Time) bool {
	return outputDone(stream) || time.Since(exitedAt) >= OutputGrace
}

func outputDone(stream Stream) bool {
	if c, ok := stream.(closer); ok {
		return c.Closed()
	}
	return true
}
