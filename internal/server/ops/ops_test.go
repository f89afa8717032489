package ops

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/AvengeMedia/dankcenter/internal/errdefs"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/process"
	"github.com/AvengeMedia/dankcenter/internal/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu         sync.Mutex
	pending    []string
	status     process.Status
	inputs     []string
	terminated int
}

func (f *fakeStream) Drain() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out
}

func (f *fakeStream) SendInput(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, text)
}

func (f *fakeStream) PollStatus() process.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.terminated > 0 {
		return process.StatusFailed
	}
	return f.status
}

func (f *fakeStream) Terminate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.terminated++
}

func (f *fakeStream) push(status process.Status, lines ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, lines...)
	f.status = status
}

type fakePerformer struct {
	mu     sync.Mutex
	result supervisor.Result
	calls  int
	// gate, when set, blocks Perform until closed
	gate chan struct{}
}

func (f *fakePerformer) Perform(context.Context, policy.OperationKind, policy.Source, string, string) supervisor.Result {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.result
}

type fakeInstalled map[string]bool

func (f fakeInstalled) Installed(_ context.Context, _ policy.Source, id, _ string) bool {
	return f[id]
}

type capturedNotifier struct {
	mu      sync.Mutex
	summary []string
}

func (c *capturedNotifier) Notify(summary, _ string, _ bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.summary = append(c.summary, summary)
	return nil
}

func (c *capturedNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.summary)
}

func TestPerformStreamsUntilSettled(t *testing.T) {
	stream := &fakeStream{status: process.StatusRunning}
	cmd := &policy.CommandSpec{Executable: "paru", Args: []string{"-S", "--noconfirm", "htop"}}
	notifier := &capturedNotifier{}
	m := NewManager(&fakePerformer{result: supervisor.Result{Stream: stream, Command: cmd}}, nil, notifier)

	res, err := m.Perform(context.Background(), policy.Install, policy.SourceRepo, "htop", "")
	require.NoError(t, err)
	assert.True(t, res.Streaming)
	assert.Equal(t, "paru -S --noconfirm htop", res.Command)

	stream.push(process.StatusRunning, "resolving dependencies...")
	drained := m.Drain()
	assert.Equal(t, []string{"resolving dependencies..."}, drained.Lines)
	assert.Equal(t, "running", drained.Status)
	assert.Nil(t, drained.Outcome)

	status := m.Status()
	assert.True(t, status.Active)
	assert.Equal(t, "install", status.Kind)
	assert.Equal(t, "htop", status.Name)

	stream.push(process.StatusSucceeded, "done")
	drained = m.Drain()
	assert.Equal(t, []string{"done"}, drained.Lines)
	require.NotNil(t, drained.Outcome)
	assert.Equal(t, OutcomeResult{Success: true, Message: "Installed htop"}, *drained.Outcome)

	status = m.Status()
	assert.False(t, status.Active)
	require.NotNil(t, status.Outcome)
	assert.True(t, status.Outcome.Success)
	assert.Equal(t, "succeeded", status.Status)

	assert.Eventually(t, func() bool { return notifier.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestPerformIsSingleFlight(t *testing.T) {
	stream := &fakeStream{status: process.StatusRunning}
	performer := &fakePerformer{result: supervisor.Result{Stream: stream}}
	m := NewManager(performer, nil, nil)

	_, err := m.Perform(context.Background(), policy.Install, policy.SourceRepo, "htop", "htop")
	require.NoError(t, err)

	_, err = m.Perform(context.Background(), policy.Install, policy.SourceRepo, "vlc", "VLC")
	require.Error(t, err)
	assert.True(t, errdefs.IsType(err, errdefs.ErrTypeBusy))
	assert.Equal(t, 1, performer.calls)

	stream.push(process.StatusFailed, "error: target not found: htop")
	drained := m.Drain()
	require.NotNil(t, drained.Outcome)
	assert.Equal(t, "error: target not found: htop", drained.Outcome.Message)

	// the slot is free again
	_, err = m.Perform(context.Background(), policy.Install, policy.SourceRepo, "vlc", "VLC")
	assert.NoError(t, err)
}

func TestPerformImmediateOutcome(t *testing.T) {
	outcome := policy.Outcome{Success: false, Message: "flatpak is not installed. Run: sudo pacman -S flatpak"}
	m := NewManager(&fakePerformer{result: supervisor.Result{Outcome: outcome}}, nil, nil)

	res, err := m.Perform(context.Background(), policy.Install, policy.SourceFlatpak, "org.gimp.GIMP", "GIMP")
	require.NoError(t, err)
	assert.False(t, res.Streaming)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, outcome.Message, res.Outcome.Message)
	assert.False(t, m.Status().Active)
}

func TestCancelRunning(t *testing.T) {
	stream := &fakeStream{status: process.StatusRunning}
	m := NewManager(&fakePerformer{result: supervisor.Result{Stream: stream}}, nil, nil)

	_, ok := m.Cancel()
	assert.False(t, ok, "nothing to cancel yet")

	_, err := m.Perform(context.Background(), policy.Uninstall, policy.SourceAUR, "yay", "yay")
	require.NoError(t, err)
	stream.push(process.StatusRunning, "checking dependencies...")

	outcome, ok := m.Cancel()
	require.True(t, ok)
	assert.Equal(t, "cancelled by user", outcome.Message)
	assert.Equal(t, 1, stream.terminated)

	status := m.Status()
	assert.False(t, status.Active)
	assert.Equal(t, 0, status.Lines)
	assert.Equal(t, "failed", status.Status)
}

func TestCancelBeforeSpawnTerminatesLateStream(t *testing.T) {
	stream := &fakeStream{status: process.StatusRunning}
	performer := &fakePerformer{result: supervisor.Result{Stream: stream}, gate: make(chan struct{})}
	m := NewManager(performer, nil, nil)

	done := make(chan PerformResult)
	go func() {
		res, err := m.Perform(context.Background(), policy.Install, policy.SourceRepo, "htop", "htop")
		assert.NoError(t, err)
		done <- res
	}()

	require.Eventually(t, func() bool { return m.Status().Active }, time.Second, time.Millisecond)
	_, ok := m.Cancel()
	require.True(t, ok)

	close(performer.gate)
	res := <-done

	assert.False(t, res.Streaming)
	require.NotNil(t, res.Outcome)
	assert.Equal(t, "cancelled by user", res.Outcome.Message)
	assert.Equal(t, 1, stream.terminated)
	assert.False(t, m.Status().Active)
}

// blockingStream holds Terminate until release is closed.
type blockingStream struct {
	fakeStream
	entered chan struct{}
	release chan struct{}
}

func (b *blockingStream) Terminate() {
	close(b.entered)
	<-b.release
	b.fakeStream.Terminate()
}

func TestCancelDoesNotHoldSlotWhileTerminating(t *testing.T) {
	stream := &blockingStream{
		fakeStream: fakeStream{status: process.StatusRunning},
		entered:    make(chan struct{}),
		release:    make(chan struct{}),
	}
	m := NewManager(&fakePerformer{result: supervisor.Result{Stream: stream}}, nil, nil)

	_, err := m.Perform(context.Background(), policy.Install, policy.SourceRepo, "htop", "htop")
	require.NoError(t, err)

	cancelled := make(chan struct{})
	go func() {
		defer close(cancelled)
		m.Cancel()
	}()
	<-stream.entered

	status := make(chan StatusResult)
	go func() { status <- m.Status() }()
	select {
	case st := <-status:
		assert.False(t, st.Active)
		require.NotNil(t, st.Outcome)
		assert.Equal(t, "cancelled by user", st.Outcome.Message)
	case <-time.After(time.Second):
		t.Fatal("status blocked behind a terminating child")
	}

	drained := make(chan DrainResult)
	go func() { drained <- m.Drain() }()
	select {
	case <-drained:
	case <-time.After(time.Second):
		t.Fatal("drain blocked behind a terminating child")
	}

	close(stream.release)
	<-cancelled
	assert.Equal(t, 1, stream.terminated)
}

// ctxPerformer reports cancellation the way the supervisor does when its
// context ends before launch.
type ctxPerformer struct {
	entered chan struct{}
}

func (c *ctxPerformer) Perform(ctx context.Context, _ policy.OperationKind, _ policy.Source, _, _ string) supervisor.Result {
	close(c.entered)
	<-ctx.Done()
	return supervisor.Result{Outcome: supervisor.Cancelled()}
}

func TestCancelStopsPerformInFlight(t *testing.T) {
	performer := &ctxPerformer{entered: make(chan struct{})}
	m := NewManager(performer, nil, nil)

	done := make(chan PerformResult)
	go func() {
		res, err := m.Perform(context.Background(), policy.Install, policy.SourceFlatpak, "org.gimp.GIMP", "GIMP")
		assert.NoError(t, err)
		done <- res
	}()

	<-performer.entered
	_, ok := m.Cancel()
	require.True(t, ok)

	select {
	case res := <-done:
		assert.False(t, res.Streaming)
		require.NotNil(t, res.Outcome)
		assert.Equal(t, "cancelled by user", res.Outcome.Message)
	case <-time.After(time.Second):
		t.Fatal("perform kept preparing after cancel")
	}
	assert.False(t, m.Status().Active)
}

func TestSendInputWithoutStream(t *testing.T) {
	m := NewManager(&fakePerformer{}, nil, nil)
	assert.NotPanics(t, func() { m.SendInput("y") })
}

func roundTrip(t *testing.T, m *Manager, method string, params map[string]interface{}) map[string]interface{} {
	t.Helper()
	server, client := net.Pipe()
	defer client.Close()

	go func() {
		defer server.Close()
		HandleRequest(server, Request{ID: 1, Method: method, Params: params}, m)
	}()

	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(client).Decode(&resp))
	return resp
}

func TestHandleRequest(t *testing.T) {
	stream := &fakeStream{status: process.StatusRunning}
	m := NewManager(
		&fakePerformer{result: supervisor.Result{Stream: stream}},
		fakeInstalled{"htop": true},
		nil,
	)

	resp := roundTrip(t, m, "ops.perform", map[string]interface{}{"kind": "install", "source": "repo", "id": "htop"})
	require.Empty(t, resp["error"])
	result := resp["result"].(map[string]interface{})
	assert.Equal(t, true, result["streaming"])

	resp = roundTrip(t, m, "ops.input", map[string]interface{}{"text": "y"})
	assert.Equal(t, "ok", resp["result"])
	assert.Equal(t, []string{"y"}, stream.inputs)

	stream.push(process.StatusRunning, "line one")
	resp = roundTrip(t, m, "ops.drain", nil)
	result = resp["result"].(map[string]interface{})
	assert.Equal(t, []interface{}{"line one"}, result["lines"])

	resp = roundTrip(t, m, "ops.perform", map[string]interface{}{"kind": "install", "source": "repo", "id": "vlc"})
	assert.Equal(t, "another operation is already running", resp["error"])

	resp = roundTrip(t, m, "ops.cancel", nil)
	result = resp["result"].(map[string]interface{})
	assert.Equal(t, "cancelled by user", result["message"])

	resp = roundTrip(t, m, "ops.cancel", nil)
	assert.Equal(t, "no operation is running", resp["error"])

	resp = roundTrip(t, m, "ops.installed", map[string]interface{}{"source": "aur", "id": "htop"})
	result = resp["result"].(map[string]interface{})
	assert.Equal(t, true, result["installed"])
}

func TestHandleRequestRejectsBadParams(t *testing.T) {
	m := NewManager(&fakePerformer{}, nil, nil)

	tests := []struct {
		method string
		params map[string]interface{}
		want   string
	}{
		{"ops.perform", nil, "missing or invalid 'kind' parameter"},
		{"ops.perform", map[string]interface{}{"kind": "upgrade", "source": "repo", "id": "x"}, `unknown operation: "upgrade"`},
		{"ops.perform", map[string]interface{}{"kind": "install", "id": "x"}, "missing or invalid 'source' parameter"},
		{"ops.perform", map[string]interface{}{"kind": "install", "source": "repo"}, "missing or invalid 'id' parameter"},
		{"ops.input", nil, "missing or invalid 'text' parameter"},
		{"ops.bogus", nil, "unknown method: ops.bogus"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			resp := roundTrip(t, m, tt.method, tt.params)
			assert.Equal(t, tt.want, resp["error"])
		})
	}
}
