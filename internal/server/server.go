package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/server/models"
	"github.com/AvengeMedia/dankcenter/internal/server/ops"
	"golang.org/x/sys/unix"
)

const socketPrefix = "dankcenter-"

func getSocketDir() string {
	if runtime := os.Getenv("XDG_RUNTIME_DIR"); runtime != "" {
		return runtime
	}

	if os.Getuid() == 0 {
		if _, err := os.Stat("/run"); err == nil {
			return "/run/dankcenter"
		}
		return "/var/run/dankcenter"
	}

	return os.TempDir()
}

func GetSocketPath() string {
	return filepath.Join(getSocketDir(), fmt.Sprintf("%s%d.sock", socketPrefix, os.Getpid()))
}

// socketPID extracts the owner pid from dankcenter-<pid>.sock.
func socketPID(name string) (int, bool) {
	if !strings.HasPrefix(name, socketPrefix) || !strings.HasSuffix(name, ".sock") {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, socketPrefix), ".sock"))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

func cleanupStaleSockets(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	for _, entry := range entries {
		pid, ok := socketPID(entry.Name())
		if !ok {
			continue
		}

		// signal 0 only checks that the process exists
		if err := unix.Kill(pid, 0); err == nil || errors.Is(err, unix.EPERM) {
			continue
		}

		socketPath := filepath.Join(dir, entry.Name())
		os.Remove(socketPath)
		log.Debugf("Removed stale socket: %s", socketPath)
	}
}

func handleConnection(conn net.Conn, opsManager *ops.Manager) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Bytes()

		var req models.Request
		if err := json.Unmarshal(line, &req); err != nil {
			models.RespondError(conn, nil, "invalid json")
			continue
		}

		RouteRequest(conn, req, opsManager)
	}
}

// Start listens on the per-process socket until ctx is cancelled. A running
// operation is cancelled on the way out.
func Start(ctx context.Context, opsManager *ops.Manager) error {
	cleanupStaleSockets(getSocketDir())

	socketPath := GetSocketPath()
	os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return err
	}
	defer os.Remove(socketPath)

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Infof("API server listening on: %s", socketPath)
	log.Info("Protocol: JSON over Unix socket, one request per line")
	log.Info("Request format: {\"id\": <any>, \"method\": \"...\", \"params\": {...}}")
	log.Info("Response format: {\"id\": <any>, \"result\": {...}} or {\"id\": <any>, \"error\": \"...\"}")
	log.Info("Available methods:")
	log.Info("  ping - Test connection")
	log.Info("  ops.perform - Start an operation (params: kind, source, id, name?)")
	log.Info("  ops.drain - Fetch new output lines and the outcome once finished")
	log.Info("  ops.input - Send a line to the running command (params: text)")
	log.Info("  ops.status - Report the current or last operation")
	log.Info("  ops.cancel - Cancel the running operation")
	log.Info("  ops.installed - Check installed state (params: source, id, name?)")

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				if opsManager != nil {
					opsManager.Cancel()
				}
				return nil
			}
			return err
		}
		go handleConnection(conn, opsManager)
	}
}
