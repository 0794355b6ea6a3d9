// Package timeout implements per-notification expiry countdowns with
// pause/resume and synchronous cancellation.
package timeout

import (
	"sync"
	"time"
)

// State is the controller lifecycle state.
type State int

const (
	// StateRunning means the countdown is ticking (or, for a
	// never-expiring controller, armed indefinitely).
	StateRunning State = iota
	// StatePaused means the countdown is frozen with budget preserved.
	StatePaused
	// StateExpired means the budget reached zero. Terminal.
	StateExpired
	// StateCancelled means the controller was cancelled. Terminal.
	StateCancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateExpired:
		return "expired"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Controller counts down a single notification's display budget.
// Expiry is pushed through the onExpire callback exactly once; every
// other transition is a synchronous method call. The generation
// counter guarantees that no expiry lands after Cancel or Pause, even
// when the underlying timer has already fired.
type Controller struct {
	mu sync.Mutex

	state     State
	never     bool
	remaining time.Duration // budget while paused
	deadline  time.Time     // valid while running with a timer armed
	timer     *time.Timer
	gen       uint64

	onExpire func()
}

// New creates a controller and starts it immediately. A negative
// duration means "never expire automatically": the controller stays
// running until cancelled. onExpire is invoked from a timer goroutine
// when the budget reaches zero.
func New(d time.Duration, onExpire func()) *Controller {
	c := &Controller{
		state:    StateRunning,
		onExpire: onExpire,
	}
	if d < 0 {
		c.never = true
		return c
	}
	c.armLocked(d)
	return c
}

// armLocked starts the timer for the given budget. Caller holds no
// lock during New; for Resume the caller holds c.mu.
func (c *Controller) armLocked(d time.Duration) {
	c.deadline = time.Now().Add(d)
	gen := c.gen
	c.timer = time.AfterFunc(d, func() { c.fire(gen) })
}

// fire handles timer expiry. A stale generation means the controller
// was paused or cancelled after this timer was scheduled; the signal
// is dropped.
func (c *Controller) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.state != StateRunning {
		c.mu.Unlock()
		return
	}
	c.state = StateExpired
	c.timer = nil
	cb := c.onExpire
	c.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// Pause freezes the countdown, preserving the remaining budget
// exactly. Pausing an already-paused or terminal controller is a
// no-op, as is pausing a never-expiring one.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRunning || c.never {
		return
	}

	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.remaining = time.Until(c.deadline)
	if c.remaining < 0 {
		c.remaining = 0
	}
	c.state = StatePaused
}

// Resume restarts a paused countdown with the preserved budget.
// Resuming a running or terminal controller is a no-op.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePaused {
		return
	}

	c.state = StateRunning
	c.gen++
	c.armLocked(c.remaining)
}

// Cancel terminates the controller. It is synchronous: once Cancel
// returns, no expiry callback will be delivered, even one already in
// flight. Cancelling a terminal controller is a no-op.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateExpired || c.state == StateCancelled {
		return
	}

	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.state = StateCancelled
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Remaining returns the unexpended display budget. For a running
// controller this is live; for a paused one it is the frozen budget.
// Never-expiring controllers report a negative value, terminal ones
// zero.
func (c *Controller) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case c.never && c.state == StateRunning:
		return -1
	case c.state == StateRunning:
		d := time.Until(c.deadline)
		if d < 0 {
			d = 0
		}
		return d
	case c.state == StatePaused:
		return c.remaining
	default:
		return 0
	}
}
