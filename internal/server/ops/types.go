package ops

import (
	"context"

	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/supervisor"
)

type Request struct {
	ID     interface{}            `json:"id,omitempty"`
	Method string                 `json:"method"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Performer starts operations; *supervisor.Supervisor implements it.
type Performer interface {
	Perform(ctx context.Context, kind policy.OperationKind, source policy.Source, id, name string) supervisor.Result
}

// InstalledChecker answers installed-state queries; *pkgmanager.SystemProber
// implements it.
type InstalledChecker interface {
	Installed(ctx context.Context, source policy.Source, id, name string) bool
}

type OutcomeResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type PerformResult struct {
	Streaming bool           `json:"streaming"`
	Command   string         `json:"command,omitempty"`
	Outcome   *OutcomeResult `json:"outcome,omitempty"`
}

type DrainResult struct {
	Lines   []string       `json:"lines"`
	Status  string         `json:"status"`
	Outcome *OutcomeResult `json:"outcome,omitempty"`
}

type StatusResult struct {
	Active  bool           `json:"active"`
	Kind    string         `json:"kind,omitempty"`
	Name    string         `json:"name,omitempty"`
	Status  string         `json:"status,omitempty"`
	Lines   int            `json:"lines"`
	Outcome *OutcomeResult `json:"outcome,omitempty"`
}

type InstalledResult struct {
	Installed bool `json:"installed"`
}

func outcomeResult(o *policy.Outcome) *OutcomeResult {
	if o == nil {
		return nil
	}
	return &OutcomeResult{Success: o.Success, Message: o.Message}
}
