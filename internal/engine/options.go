package engine

import (
	"time"

	"github.com/fluxshell/notifd/internal/model"
	"github.com/fluxshell/notifd/internal/stack"
)

// FallbackIcon is shown when an inline image cannot be decoded.
const FallbackIcon = "dialog-information-symbolic"

// TimeoutPolicy holds the per-urgency display durations used when a
// source does not request an explicit timeout. A non-positive duration
// means the record never expires on its own.
type TimeoutPolicy struct {
	Low      time.Duration
	Normal   time.Duration
	Critical time.Duration
}

// DefaultTimeoutPolicy returns the stock policy: 5s low, 10s normal,
// critical never expires.
func DefaultTimeoutPolicy() TimeoutPolicy {
	return TimeoutPolicy{
		Low:    5 * time.Second,
		Normal: 10 * time.Second,
	}
}

// For returns the display duration for the given urgency level.
func (p TimeoutPolicy) For(urgency int) time.Duration {
	switch urgency {
	case model.UrgencyLow:
		return p.Low
	case model.UrgencyCritical:
		return p.Critical
	default:
		return p.Normal
	}
}

// Options configures the presentation engine.
type Options struct {
	// MaxVisible caps the number of simultaneously active records.
	MaxVisible int

	// Timeouts provides default display durations by urgency.
	Timeouts TimeoutPolicy

	// PauseOnHover suspends every timeout while the pointer is over
	// the notification area.
	PauseOnHover bool

	// DoNotDisturb routes new notifications straight to history
	// without showing them.
	DoNotDisturb bool

	// DnDCriticalBypass lets critical notifications through even in
	// do-not-disturb mode.
	DnDCriticalBypass bool

	// ReplaceApps lists app names whose notifications replace any
	// still-active notification from the same app instead of stacking.
	ReplaceApps []string

	// FallbackIcon overrides the icon used when decoding fails.
	FallbackIcon string
}

// DefaultOptions returns the stock engine configuration.
func DefaultOptions() Options {
	return Options{
		MaxVisible:   stack.DefaultCapacity,
		Timeouts:     DefaultTimeoutPolicy(),
		PauseOnHover: true,
		FallbackIcon: FallbackIcon,
	}
}

func (o Options) replacesApp(appName string) bool {
	for _, app := range o.ReplaceApps {
		if app == appName {
			return true
		}
	}
	return false
}
