package supervisor

import (
	"fmt"
	"strings"

	"github.com/AvengeMedia/dankcenter/internal/errdefs"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/process"
)

// Cancelled is the outcome reported after the user stops an operation.
// Whatever the child printed is deliberately not part of it.
func Cancelled() policy.Outcome {
	return policy.Outcome{Success: false, Message: errdefs.ErrCancelled.Error()}
}

// Finish builds the outcome for a stream that exited with status. Success
// gets a short status line; failure gets the whole accumulated log.
func Finish(kind policy.OperationKind, name string, status process.Status, lines []string) policy.Outcome {
	if status == process.StatusSucceeded {
		return policy.Outcome{Success: true, Message: doneMessage(kind, name)}
	}

	logText := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if strings.TrimSpace(logText) == "" {
		logText = fmt.Sprintf("Failed to %s %s", kind, name)
	}
	return policy.Outcome{Success: false, Message: logText}
}

// ProgressMessage is the status shown while an operation runs.
func ProgressMessage(kind policy.OperationKind, name string) string {
	if kind == policy.Uninstall {
		return fmt.Sprintf("Removing %s...", name)
	}
	return fmt.Sprintf("Installing %s...", name)
}

func doneMessage(kind policy.OperationKind, name string) string {
	if kind == policy.Uninstall {
		return fmt.Sprintf("Removed %s", name)
	}
	return fmt.Sprintf("Installed %s", name)
}
