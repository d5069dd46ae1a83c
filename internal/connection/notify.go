package connection

import (
	"log/slog"
)

// Severity of a user-facing notification.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "info"
	}
}

// User-facing notification texts.
const (
	MsgConnectionLost = "Connection lost. Please check your internet connection."
	MsgQueued         = "Message will be sent when connection is restored"
	MsgPendingExpired = "Some queued messages expired before the connection was restored"
)

// Notification is a message meant for the end user.
type Notification struct {
	Severity Severity
	Message  string
}

// Notifier surfaces notifications to the end user.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc is a function adapter for Notifier.
type NotifierFunc func(n Notification)

func (f NotifierFunc) Notify(n Notification) {
	f(n)
}

// logNotifier writes notifications to the logger.
type logNotifier struct {
	logger *slog.Logger
}

func (l logNotifier) Notify(n Notification) {
	switch n.Severity {
	case SeverityError:
		l.logger.Error(n.Message, "notification", true)
	case SeverityWarning:
		l.logger.Warn(n.Message, "notification", true)
	default:
		l.logger.Info(n.Message, "notification", true)
	}
}
