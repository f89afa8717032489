package server

import (
	"fmt"
	"net"
	"strings"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/server/models"
	"github.com/AvengeMedia/dankcenter/internal/server/ops"
)

func RouteRequest(conn net.Conn, req models.Request, opsManager *ops.Manager) {
	log.Debugf("API request: method=%s id=%v", req.Method, req.ID)

	if strings.HasPrefix(req.Method, "ops.") {
		if opsManager == nil {
			models.RespondError(conn, req.ID, "operation manager not initialized")
			return
		}
		opsReq := ops.Request{
			ID:     req.ID,
			Method: req.Method,
			Params: req.Params,
		}
		ops.HandleRequest(conn, opsReq, opsManager)
		return
	}

	switch req.Method {
	case "ping":
		models.Respond(conn, req.ID, "pong")
	default:
		models.RespondError(conn, req.ID, fmt.Sprintf("unknown method: %s", req.Method))
	}
}
