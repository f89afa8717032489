package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/notify"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/supervisor"
	"github.com/AvengeMedia/dankcenter/internal/tui"
)

type inputCloser interface {
	CloseInput()
}

// runPlain streams the operation to stdout and forwards stdin lines to the
// child. SIGINT or SIGTERM cancels it. streamed reports whether a child ran,
// in which case its output has already been printed.
func runPlain(ctx context.Context, a *app, op tui.Operation) (outcome policy.Outcome, streamed bool) {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println(supervisor.ProgressMessage(op.Kind, op.Name))

	res := a.supervisor.Perform(ctx, op.Kind, op.Source, op.ID, op.Name)
	if !res.Streaming() {
		notify.Outcome(a.notifier, op.Kind, op.Name, res.Outcome)
		return res.Outcome, false
	}

	if res.Command != nil {
		fmt.Printf("$ %s\n", res.Command)
	}

	go forwardInput(os.Stdin, res.Stream)

	outcome = supervisor.Follow(ctx, res.Stream, settings.PollInterval, op.Kind, op.Name, func(lines []string) {
		for _, line := range lines {
			fmt.Println(line)
		}
	})

	notify.Outcome(a.notifier, op.Kind, op.Name, outcome)
	return outcome, true
}

// forwardInput sends each line read from r to the stream. At EOF the
// child's stdin is closed too.
func forwardInput(r io.Reader, stream supervisor.Stream) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		stream.SendInput(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		log.Debugf("stdin: %v", err)
	}
	if c, ok := stream.(inputCloser); ok {
		c.CloseInput()
	}
}
