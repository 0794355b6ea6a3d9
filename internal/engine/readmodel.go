package engine

import (
	"time"

	"github.com/fluxshell/notifd/internal/model"
)

// CloseReason describes why a record left the stack.
type CloseReason int

const (
	// ReasonExpired means the display timeout ran out, or the record
	// was evicted to make room for a newer one.
	ReasonExpired CloseReason = iota + 1
	// ReasonDismissed means the user closed the record.
	ReasonDismissed
	// ReasonClosedBySource means the originating source asked for the
	// record to be withdrawn.
	ReasonClosedBySource
	// ReasonUndelivered means the record was routed straight to
	// history without ever being shown.
	ReasonUndelivered
)

// String returns the string representation of CloseReason.
func (r CloseReason) String() string {
	switch r {
	case ReasonExpired:
		return "expired"
	case ReasonDismissed:
		return "dismissed"
	case ReasonClosedBySource:
		return "closed-by-source"
	case ReasonUndelivered:
		return "undelivered"
	default:
		return "unknown"
	}
}

// Sink receives outbound lifecycle events for the source boundary.
// Implementations must not block and must not call back into the
// engine from within the callback.
type Sink interface {
	// ActionInvoked reports that the user activated an action.
	ActionInvoked(sourceID uint32, actionKey string)
	// NotificationClosed reports that a record was retired.
	NotificationClosed(sourceID uint32, reason CloseReason)
}

// RecordView is one record's snapshot inside a ReadModel, enriched
// with its live timer state.
type RecordView struct {
	model.Record

	// Remaining is the time left before expiry: frozen while paused,
	// negative when the record never expires.
	Remaining time.Duration
	// Paused reports whether the timeout is currently suspended.
	Paused bool
}

// ReadModel is the complete displayable state, published after every
// mutation. It is a detached snapshot: the rendering layer may hold it
// as long as it likes without observing later changes.
type ReadModel struct {
	// Visible is false exactly when no records are active.
	Visible bool
	// Cursor indexes Records, or is -1 when Records is empty.
	Cursor int
	// Records holds the active records, oldest first.
	Records []RecordView
}

// Renderer consumes read models. Render is called from the engine
// loop and must return promptly.
type Renderer interface {
	Render(ReadModel)
}

type nopSink struct{}

func (nopSink) ActionInvoked(uint32, string)        {}
func (nopSink) NotificationClosed(uint32, CloseReason) {}

type nopRenderer struct{}

func (nopRenderer) Render(ReadModel) {}
