package supervisor

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/process"
	"github.com/spf13/afero"
)

// Stream is the live side of an operation. *process.Handle implements it.
type Stream interface {
	Drain() []string
	SendInput(text string)
	PollStatus() process.Status
	Terminate()
}

// Launcher turns a command spec into a running stream.
type Launcher interface {
	Launch(spec policy.CommandSpec) (Stream, error)
}

// PrepareRunner runs a best-effort step to completion before the real
// command starts.
type PrepareRunner interface {
	Run(ctx context.Context, spec policy.CommandSpec) error
}

// ProcessLauncher launches commands as real child processes.
type ProcessLauncher struct {
	*process.Launcher
}

func (l ProcessLauncher) Launch(spec policy.CommandSpec) (Stream, error) {
	launcher := l.Launcher
	if launcher == nil {
		launcher = &process.Launcher{}
	}
	h, err := launcher.Spawn(spec.Executable, spec.Args...)
	if err != nil {
		return nil, err
	}
	return h, nil
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, spec policy.CommandSpec) error {
	out, err := exec.CommandContext(ctx, spec.Executable, spec.Args...).CombinedOutput()
	if err != nil {
		log.Debugf("prepare output: %s", strings.TrimSpace(string(out)))
	}
	return err
}

// Result is either a live stream (Stream != nil) or an immediate outcome.
type Result struct {
	Stream  Stream
	Outcome policy.Outcome
	// Command is what was launched, nil for immediate results.
	Command *policy.CommandSpec
}

// Streaming reports whether the result carries a live stream.
func (r Result) Streaming() bool {
	return r.Stream != nil
}

type Supervisor struct {
	policy   *policy.Policy
	launcher Launcher
	prepare  PrepareRunner
	fs       afero.Fs
}

type Option func(*Supervisor)

func WithLauncher(l Launcher) Option {
	return func(s *Supervisor) { s.launcher = l }
}

func WithPrepareRunner(r PrepareRunner) Option {
	return func(s *Supervisor) { s.prepare = r }
}

// WithFs sets the filesystem used for direct file removals.
func WithFs(fs afero.Fs) Option {
	return func(s *Supervisor) { s.fs = fs }
}

func New(p *policy.Policy, opts ...Option) *Supervisor {
	s := &Supervisor{
		policy:   p,
		launcher: ProcessLauncher{},
		prepare:  execRunner{},
		fs:       afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Perform asks the policy how to run kind on id and either starts the
// command or returns the outcome straight away. It never returns an error:
// launch failures come back as failed immediate outcomes.
func (s *Supervisor) Perform(ctx context.Context, kind policy.OperationKind, source policy.Source, id, name string) Result {
	log.Infof("%s %s (%s)", kind, id, source)

	decision := s.policy.Select(kind, source, id, name)

	if decision.Immediate() {
		s.removeAll(decision.Remove)
		outcome := policy.Outcome{Success: false, Message: "No action available"}
		if decision.Outcome != nil {
			outcome = *decision.Outcome
		}
		log.Debugf("immediate outcome: success=%t message=%q", outcome.Success, outcome.Message)
		return Result{Outcome: outcome}
	}

	for _, step := range decision.Prepare {
		if err := s.prepare.Run(ctx, step); err != nil {
			log.Debugf("prepare step %s failed (ignored): %v", step, err)
		}
	}

	// a cancel that arrived while probing or preparing must not start anything
	if ctx.Err() != nil {
		log.Infof("%s %s cancelled before launch", kind, id)
		return Result{Outcome: Cancelled()}
	}

	spec := *decision.Command
	stream, err := s.launcher.Launch(spec)
	if err != nil {
		log.Errorf("launch failed: %v", err)
		return Result{Outcome: policy.Outcome{Success: false, Message: err.Error()}}
	}

	return Result{Stream: stream, Command: &spec}
}

// removeAll deletes paths, ignoring ones that are already gone.
func (s *Supervisor) removeAll(paths []string) {
	for _, path := range paths {
		err := s.fs.Remove(path)
		switch {
		case err == nil:
			log.Infof("Removed %s", path)
		case errors.Is(err, os.ErrNotExist):
		default:
			log.Warnf("failed to remove %s: %v", path, err)
		}
	}
}
