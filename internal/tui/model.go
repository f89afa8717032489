package tui

import (
	"context"
	"time"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/notify"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/process"
	"github.com/AvengeMedia/dankcenter/internal/supervisor"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

type ApplicationState int

const (
	StateStarting ApplicationState = iota
	StateStreaming
	StateDone
)

// Operation is the single install or uninstall this view drives.
type Operation struct {
	Kind   policy.OperationKind
	Source policy.Source
	ID     string
	Name   string
}

// Performer starts operations; *supervisor.Supervisor implements it.
type Performer interface {
	Perform(ctx context.Context, kind policy.OperationKind, source policy.Source, id, name string) supervisor.Result
}

type Model struct {
	performer Performer
	op        Operation
	interval  time.Duration
	notifier  notify.Notifier

	state  ApplicationState
	flight *flight
	// active is the single-flight slot: at most one live stream per view
	active    supervisor.Stream
	command   string
	lines     []string
	exitedAt  time.Time
	exitState process.Status
	outcome   *policy.Outcome
	cancelled bool

	spinner spinner.Model
	input   textinput.Model
	styles  Styles
	width   int
	height  int
}

func NewModel(performer Performer, op Operation, interval time.Duration, notifier notify.Notifier) Model {
	if op.Name == "" {
		op.Name = op.ID
	}
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}

	styles := NewStyles(PurpleTheme())

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = styles.SpinnerStyle

	in := textinput.New()
	in.Placeholder = "answer a prompt and press Enter"
	in.Prompt = "> "
	in.CharLimit = 256
	in.Focus()

	return Model{
		performer: performer,
		op:        op,
		interval:  interval,
		notifier:  notifier,
		state:     StateStarting,
		flight:    newFlight(),
		spinner:   s,
		input:     in,
		styles:    styles,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, textinput.Blink, m.perform())
}

// Outcome is the final result, nil while the operation is still running.
func (m Model) Outcome() *policy.Outcome {
	return m.outcome
}

func (m Model) State() ApplicationState {
	return m.state
}

// Shutdown cancels an operation the program left unfinished, including one
// whose Perform has not returned yet. Call it after the program exits.
func (m Model) Shutdown() {
	m.flight.cancel()
}

// perform runs off the UI goroutine: the policy may probe helper tools. The
// stream is adopted here as well as in Update because the program may have
// exited before the message is delivered.
func (m Model) perform() tea.Cmd {
	performer, op, f := m.performer, m.op, m.flight
	return func() tea.Msg {
		res := performer.Perform(f.ctx, op.Kind, op.Source, op.ID, op.Name)
		if res.Streaming() && !f.adopt(res.Stream) {
			return performedMsg{result: supervisor.Result{Outcome: supervisor.Cancelled()}}
		}
		return performedMsg{result: res}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return pollMsg{}
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-6, 10)
		return m, nil
	case performedMsg:
		return m.handlePerformed(msg)
	case pollMsg:
		return m.poll()
	case tea.KeyMsg:
		return m.handleKey(msg)
	case spinner.TickMsg:
		if m.state == StateDone {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handlePerformed(msg performedMsg) (tea.Model, tea.Cmd) {
	res := msg.result

	// a cancel that raced the spawn still wins
	if res.Streaming() && !m.flight.adopt(res.Stream) {
		return m, nil
	}
	if m.cancelled {
		return m, nil
	}

	if !res.Streaming() {
		return m.finish(res.Outcome)
	}

	m.active = res.Stream
	if res.Command != nil {
		m.command = res.Command.String()
	}
	m.state = StateStreaming
	return m, m.tick()
}

func (m Model) poll() (tea.Model, tea.Cmd) {
	if m.active == nil {
		return m, nil
	}

	m.lines = append(m.lines, m.active.Drain()...)

	if m.exitedAt.IsZero() {
		m.exitState = m.active.PollStatus()
		if !m.exitState.Exited() {
			return m, m.tick()
		}
		m.exitedAt = time.Now()
	}

	if !supervisor.Settled(m.active, m.exitedAt) {
		return m, m.tick()
	}

	m.lines = append(m.lines, m.active.Drain()...)
	m.active = nil
	return m.finish(supervisor.Finish(m.op.Kind, m.op.Name, m.exitState, m.lines))
}

func (m Model) finish(outcome policy.Outcome) (tea.Model, tea.Cmd) {
	m.flight.finish()
	m.outcome = &outcome
	m.state = StateDone
	m.input.Blur()
	log.Debugf("operation finished: success=%t", outcome.Success)

	notifier, kind, name := m.notifier, m.op.Kind, m.op.Name
	return m, func() tea.Msg {
		notify.Outcome(notifier, kind, name, outcome)
		return notifiedMsg{}
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		if m.state == StateDone {
			return m, tea.Quit
		}
		return m.cancel()
	case "enter":
		if m.state == StateDone {
			return m, tea.Quit
		}
		if m.active != nil {
			m.active.SendInput(m.input.Value())
			m.input.SetValue("")
		}
		return m, nil
	case "q", "esc":
		if m.state == StateDone {
			return m, tea.Quit
		}
	}

	if m.state == StateDone {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// cancel terminates the active stream and reports the fixed cancellation
// outcome. Output collected so far is dropped.
func (m Model) cancel() (tea.Model, tea.Cmd) {
	m.cancelled = true
	m.flight.cancel()
	m.active = nil
	m.lines = nil
	return m.finish(supervisor.Cancelled())
}
