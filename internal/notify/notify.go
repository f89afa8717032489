package notify

import (
	"fmt"
	"strings"
	"sync"

	"github.com/AvengeMedia/dankcenter/internal/log"
	"github.com/AvengeMedia/dankcenter/internal/policy"
	"github.com/godbus/dbus/v5"
)

const (
	notificationsDest  = "org.freedesktop.Notifications"
	notificationsPath  = "/org/freedesktop/Notifications"
	notifyMethod       = "org.freedesktop.Notifications.Notify"
	appName            = "dankcenter"
	defaultExpireMsecs = int32(5000)
)

type Notifier interface {
	Notify(summary, body string, success bool) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(string, string, bool) error { return nil }

// DBusNotifier posts to the session notification daemon. The bus is
// connected lazily on first use.
type DBusNotifier struct {
	mu   sync.Mutex
	conn *dbus.Conn
}

func NewDBusNotifier() *DBusNotifier {
	return &DBusNotifier{}
}

func (n *DBusNotifier) Notify(summary, body string, success bool) error {
	conn, err := n.connect()
	if err != nil {
		return err
	}

	icon := "emblem-ok-symbolic"
	urgency := byte(1)
	if !success {
		icon = "dialog-error-symbolic"
		urgency = 2
	}
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant(urgency),
	}

	obj := conn.Object(notificationsDest, dbus.ObjectPath(notificationsPath))
	call := obj.Call(notifyMethod, 0,
		appName, uint32(0), icon, summary, body, []string{}, hints, defaultExpireMsecs)
	if call.Err != nil {
		return fmt.Errorf("failed to send notification: %w", call.Err)
	}
	return nil
}

func (n *DBusNotifier) connect() (*dbus.Conn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn != nil {
		return n.conn, nil
	}
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	n.conn = conn
	return conn, nil
}

func (n *DBusNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}

// Outcome posts the result of an operation, logging instead of failing
// when no notification daemon is reachable.
func Outcome(n Notifier, kind policy.OperationKind, name string, outcome policy.Outcome) {
	if n == nil {
		return
	}
	summary := fmt.Sprintf("%s finished", name)
	body := outcome.Message
	if !outcome.Success {
		summary = fmt.Sprintf("Could not %s %s", kind, name)
		body = lastLine(outcome.Message)
	}
	if err := n.Notify(summary, body, outcome.Success); err != nil {
		log.Debugf("notification skipped: %v", err)
	}
}

// lastLine keeps failure notifications short; the full log stays in the UI.
func lastLine(text string) string {
	text = strings.TrimRight(text, "\n")
	if i := strings.LastIndexByte(text, '\n'); i >= 0 {
		return text[i+1:]
	}
	return text
}
