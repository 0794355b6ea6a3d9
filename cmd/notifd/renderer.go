package main

import (
	"log/slog"

	"github.com/fluxshell/notifd/internal/engine"
)

// logRenderer is the built-in read model consumer: it logs state
// transitions so the daemon is observable even without an attached
// rendering layer. A real renderer subscribes the same way.
type logRenderer struct {
	logger *slog.Logger
}

func newLogRenderer(logger *slog.Logger) *logRenderer {
	return &logRenderer{logger: logger}
}

func (r *logRenderer) Render(rm engine.ReadModel) {
	if !rm.Visible {
		r.logger.Debug("notification area hidden")
		return
	}

	current := ""
	if rm.Cursor >= 0 && rm.Cursor < len(rm.Records) {
		current = rm.Records[rm.Cursor].ID
	}
	r.logger.Debug("notification area updated",
		"records", len(rm.Records),
		"cursor", rm.Cursor,
		"current", current)
}
