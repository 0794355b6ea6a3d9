// Package model defines the core data structures for notifd.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Urgency levels matching the freedesktop notification spec.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// UrgencyNames maps urgency levels to human-readable names.
var UrgencyNames = map[int]string{
	UrgencyLow:      "low",
	UrgencyNormal:   "normal",
	UrgencyCritical: "critical",
}

// TimeoutNever is the requested-timeout sentinel for "never expire
// automatically". Zero means "use the per-urgency policy default".
const TimeoutNever = -1

// IconKind discriminates the two icon forms a record can carry.
type IconKind int

const (
	// IconNone means the record carries no icon at all.
	IconNone IconKind = iota
	// IconNamed is a themed icon lookup key (e.g. "dialog-information").
	IconNamed
	// IconInline is raw encoded image bytes delivered with the notification.
	IconInline
)

// Icon is either a named-icon lookup key or inline image data.
type Icon struct {
	Kind IconKind `json:"kind"`
	Name string   `json:"name,omitempty"`
	Data []byte   `json:"-"`
}

// NamedIcon returns an Icon referencing a themed icon by name.
func NamedIcon(name string) Icon {
	if name == "" {
		return Icon{Kind: IconNone}
	}
	return Icon{Kind: IconNamed, Name: name}
}

// InlineIcon returns an Icon carrying raw encoded image bytes.
func InlineIcon(data []byte) Icon {
	if len(data) == 0 {
		return Icon{Kind: IconNone}
	}
	return Icon{Kind: IconInline, Data: data}
}

// Action represents a notification action with key and label.
type Action struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Record is one notification's descriptive data. Everything except the
// icon handle is immutable after creation; lifecycle state lives in the
// engine, not here.
type Record struct {
	// ID is the notifd-assigned ULID, unique across restarts.
	ID string `json:"id"`
	// SourceID is the identifier assigned on the source boundary,
	// unique among currently active records only.
	SourceID uint32 `json:"source_id"`

	AppName string `json:"app_name"`
	Summary string `json:"summary"`
	Body    string `json:"body"`

	Icon Icon `json:"icon,omitempty"`
	// IconPath is filled in once the image cache has persisted an
	// inline icon, or resolved a named one.
	IconPath string `json:"icon_path,omitempty"`

	Urgency     int    `json:"urgency"`
	UrgencyName string `json:"urgency_name"`

	Actions []Action `json:"actions,omitempty"`

	// RequestedTimeout is the source-requested display time.
	// Zero = policy default, TimeoutNever = never expire.
	RequestedTimeout time.Duration `json:"requested_timeout_ms,omitempty"`

	// Transient records are displayed but never retained in history.
	Transient bool `json:"transient,omitempty"`
	// Resident records stay on the stack after an action is invoked.
	Resident bool `json:"resident,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Validation errors.
var (
	ErrEmptyID          = errors.New("record id cannot be empty")
	ErrEmptyAppName     = errors.New("app_name cannot be empty")
	ErrInvalidUrgency   = errors.New("urgency must be 0, 1, or 2")
	ErrInvalidCreatedAt = errors.New("created_at must be set")
)

// NewRecord creates a Record with a generated ULID and the given source id.
func NewRecord(sourceID uint32) (*Record, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	return &Record{
		ID:          id.String(),
		SourceID:    sourceID,
		Urgency:     UrgencyNormal,
		UrgencyName: UrgencyNames[UrgencyNormal],
		CreatedAt:   time.Now(),
	}, nil
}

// Validate checks that the record has all required fields.
// Summary and body may be empty strings; they must merely be present,
// which the type system already guarantees.
func (r *Record) Validate() error {
	if r.ID == "" {
		return ErrEmptyID
	}
	if r.AppName == "" {
		return ErrEmptyAppName
	}
	if r.Urgency < UrgencyLow || r.Urgency > UrgencyCritical {
		return ErrInvalidUrgency
	}
	if r.CreatedAt.IsZero() {
		return ErrInvalidCreatedAt
	}
	return nil
}

// SetUrgency sets the urgency level and its human-readable name.
// Out-of-range values fall back to normal.
func (r *Record) SetUrgency(level int) {
	if level < UrgencyLow || level > UrgencyCritical {
		level = UrgencyNormal
	}
	r.Urgency = level
	r.UrgencyName = UrgencyNames[level]
}

// HasAction reports whether the record declares the given action key.
func (r *Record) HasAction(key string) bool {
	for _, a := range r.Actions {
		if a.Key == key {
			return true
		}
	}
	return false
}

// Clone creates a deep copy of the record.
func (r *Record) Clone() *Record {
	clone := *r
	if r.Actions != nil {
		clone.Actions = make([]Action, len(r.Actions))
		copy(clone.Actions, r.Actions)
	}
	if r.Icon.Data != nil {
		clone.Icon.Data = make([]byte, len(r.Icon.Data))
		copy(clone.Icon.Data, r.Icon.Data)
	}
	return &clone
}

// BodyTruncated returns the body collapsed to a single line and
// truncated to maxLen characters with a "..." suffix.
func (r *Record) BodyTruncated(maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	body := strings.Join(strings.Fields(r.Body), " ")

	if len(body) <= maxLen {
		return body
	}
	if maxLen <= 3 {
		return body[:maxLen]
	}
	return body[:maxLen-3] + "..."
}
