package tui

import (
	"github.com/AvengeMedia/dankcenter/internal/supervisor"
)

type performedMsg struct {
	result supervisor.Result
}

// pollMsg fires on every UI tick while a stream is active.
type pollMsg struct{}

type notifiedMsg struct{}
