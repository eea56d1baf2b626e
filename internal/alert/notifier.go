package alert

import (
	"context"
	"log/slog"
)

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. Pass nil to use the default logger.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs n at warn level when critical and info level otherwise.
func (l *LogNotifier) Notify(n Notification) {
	level := slog.LevelInfo
	if n.Critical {
		level = slog.LevelWarn
	}
	l.logger.Log(context.Background(), level, n.Title,
		"endpoint", n.EndpointName,
		"url", n.URL,
		"status", n.Status,
		"previous_status", n.PreviousStatus,
		"critical", n.Critical,
	)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

// Notify forwards n to each notifier.
func (m Multi) Notify(n Notification) {
	for _, nt := range m {
		if nt != nil {
			nt.Notify(n)
		}
	}
}
