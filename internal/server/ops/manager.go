package ops

import (
	"context"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/notify"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/supervisor"
)

type Manager struct {
	performer Performer
	installed InstalledChecker
	slot      *Slot
}

func NewManager(performer Performer, installed InstalledChecker, notifier notify.Notifier) *Manager {
	slot := &Slot{}
	if notifier != nil {
		slot.onFinish = func(kind policy.OperationKind, name string, outcome policy.Outcome) {
			notify.Outcome(notifier, kind, name, outcome)
		}
	}
	return &Manager{
		performer: performer,
		installed: installed,
		slot:      slot,
	}
}

// Perform starts kind on id unless another operation owns the slot.
func (m *Manager) Perform(ctx context.Context, kind policy.OperationKind, source policy.Source, id, name string) (PerformResult, error) {
	if name == "" {
		name = id
	}

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	token, err := m.slot.Reserve(kind, name, stop)
	if err != nil {
		return PerformResult{}, err
	}

	res := m.performer.Perform(ctx, kind, source, id, name)

	outcome, ok := m.slot.Attach(token, res)
	if !ok {
		log.Debugf("%s %s was cancelled before it started", kind, name)
		cancelled := supervisor.Cancelled()
		return PerformResult{Outcome: outcomeResult(&cancelled)}, nil
	}
	if outcome != nil {
		return PerformResult{Outcome: outcomeResult(outcome)}, nil
	}

	result := PerformResult{Streaming: true}
	if res.Command != nil {
		result.Command = res.Command.String()
	}
	return result, nil
}

func (m *Manager) Drain() DrainResult {
	lines, status, outcome := m.slot.Drain()
	if lines == nil {
		lines = []string{}
	}
	return DrainResult{
		Lines:   lines,
		Status:  status.String(),
		Outcome: outcomeResult(outcome),
	}
}

func (m *Manager) SendInput(text string) {
	m.slot.SendInput(text)
}

func (m *Manager) Status() StatusResult {
	return m.slot.Status()
}

// Cancel reports false when nothing was running.
func (m *Manager) Cancel() (*OutcomeResult, bool) {
	outcome, ok := m.slot.Cancel()
	return outcomeResult(outcome), ok
}

func (m *Manager) Installed(ctx context.Context, source policy.Source, id, name string) bool {
	if m.installed == nil {
		return false
	}
	if name == "" {
		name = id
	}
	return m.installed.Installed(ctx, source, id, name)
}
