package ops

import (
	"context"
	"fmt"
	"net"

	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/AvengeMedia/dankcenter/internal/server/models"
)

func HandleRequest(conn net.Conn, req Request, manager *Manager) {
	switch req.Method {
	case "ops.perform":
		handlePerform(conn, req, manager)
	case "ops.drain":
		models.Respond(conn, req.ID, manager.Drain())
	case "ops.input":
		handleInput(conn, req, manager)
	case "ops.status":
		models.Respond(conn, req.ID, manager.Status())
	case "ops.cancel":
		handleCancel(conn, req, manager)
	case "ops.installed":
		handleInstalled(conn, req, manager)
	default:
		models.RespondError(conn, req.ID, fmt.Sprintf("unknown method: %s", req.Method))
	}
}

func handlePerform(conn net.Conn, req Request, manager *Manager) {
	kindStr, ok := req.Params["kind"].(string)
	if !ok {
		models.RespondError(conn, req.ID, "missing or invalid 'kind' parameter")
		return
	}
	kind, err := policy.ParseKind(kindStr)
	if err != nil {
		models.RespondError(conn, req.ID, err.Error())
		return
	}

	source, id, name, ok := target(conn, req)
	if !ok {
		return
	}

	result, err := manager.Perform(context.Background(), kind, source, id, name)
	if err != nil {
		models.RespondError(conn, req.ID, err.Error())
		return
	}

	models.Respond(conn, req.ID, result)
}

func handleInput(conn net.Conn, req Request, manager *Manager) {
	text, ok := req.Params["text"].(string)
	if !ok {
		models.RespondError(conn, req.ID, "missing or invalid 'text' parameter")
		return
	}

	manager.SendInput(text)
	models.Respond(conn, req.ID, "ok")
}

func handleCancel(conn net.Conn, req Request, manager *Manager) {
	outcome, ok := manager.Cancel()
	if !ok {
		models.RespondError(conn, req.ID, "no operation is running")
		return
	}

	models.Respond(conn, req.ID, *outcome)
}

func handleInstalled(conn net.Conn, req Request, manager *Manager) {
	source, id, name, ok := target(conn, req)
	if !ok {
		return
	}

	models.Respond(conn, req.ID, InstalledResult{
		Installed: manager.Installed(context.Background(), source, id, name),
	})
}

// target reads the source, id and optional name parameters, answering the
// request itself when they are unusable.
func target(conn net.Conn, req Request) (policy.Source, string, string, bool) {
	sourceStr, ok := req.Params["source"].(string)
	if !ok {
		models.RespondError(conn, req.ID, "missing or invalid 'source' parameter")
		return 0, "", "", false
	}
	source, err := policy.ParseSource(sourceStr)
	if err != nil {
		models.RespondError(conn, req.ID, err.Error())
		return 0, "", "", false
	}

	id, ok := req.Params["id"].(string)
	if !ok || id == "" {
		models.RespondError(conn, req.ID, "missing or invalid 'id' parameter")
		return 0, "", "", false
	}

	name, _ := req.Params["name"].(string)
	return source, id, name, true
}
