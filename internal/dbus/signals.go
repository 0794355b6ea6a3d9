package dbus

import (
	"fmt"

	"github.com/fluxshell/notifd/internal/engine"
)

// NotificationClosed emits the NotificationClosed signal for a retired
// record. Together with ActionInvoked this makes the Server the
// engine's outbound sink.
func (s *Server) NotificationClosed(sourceID uint32, reason engine.CloseReason) {
	if err := s.emitClosed(sourceID, WireReason(reason)); err != nil {
		s.logger.Warn("failed to emit NotificationClosed signal",
			"id", sourceID, "reason", reason, "error", err)
	}
}

// ActionInvoked emits the ActionInvoked signal for an activated action.
func (s *Server) ActionInvoked(sourceID uint32, actionKey string) {
	if s.conn == nil {
		return
	}
	err := s.conn.Emit(DBusPath, DBusInterface+".ActionInvoked", sourceID, actionKey)
	if err != nil {
		s.logger.Warn("failed to emit ActionInvoked signal",
			"id", sourceID, "action_key", actionKey, "error", err)
		return
	}
	s.logger.Debug("emitted ActionInvoked signal", "id", sourceID, "action_key", actionKey)
}

func (s *Server) emitClosed(id uint32, reason CloseReason) error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}
	err := s.conn.Emit(DBusPath, DBusInterface+".NotificationClosed", id, uint32(reason))
	if err != nil {
		return fmt.Errorf("failed to emit NotificationClosed signal: %w", err)
	}
	s.logger.Debug("emitted NotificationClosed signal", "id", id, "reason", reason.String())
	return nil
}

// EmitActivationToken emits the ActivationToken signal (spec 1.2+),
// sent before ActionInvoked when the compositor provides a token.
func (s *Server) EmitActivationToken(id uint32, activationToken string) error {
	if s.conn == nil {
		return fmt.Errorf("not connected to D-Bus")
	}
	err := s.conn.Emit(DBusPath, DBusInterface+".ActivationToken", id, activationToken)
	if err != nil {
		return fmt.Errorf("failed to emit ActivationToken signal: %w", err)
	}
	s.logger.Debug("emitted ActivationToken signal", "id", id)
	return nil
}
