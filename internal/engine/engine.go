// Package engine orchestrates the notification lifecycle: admission,
// the bounded visible stack, per-record timeouts, retirement into
// history, and read-model publication for the rendering layer.
//
// One goroutine owns all mutable state. Source events, timer expiries,
// user interaction, and decode completions are delivered to it as
// closures on a single command channel, so no operation ever observes
// a half-applied transition.
package engine

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fluxshell/notifd/internal/history"
	"github.com/fluxshell/notifd/internal/imagecache"
	"github.com/fluxshell/notifd/internal/model"
	"github.com/fluxshell/notifd/internal/stack"
	"github.com/fluxshell/notifd/internal/timeout"
)

// Payload carries the already-parsed fields of an inbound notification
// across the source boundary.
type Payload struct {
	SourceID   uint32
	ReplacesID uint32

	AppName string
	Summary string
	Body    string

	Icon model.Icon

	// Urgency is nil when the source omitted it; the record then
	// defaults to normal.
	Urgency *int

	Actions []model.Action

	// RequestedTimeout is the source-requested display duration:
	// zero for the policy default, negative for never.
	RequestedTimeout time.Duration

	Transient bool
	Resident  bool
}

// Direction selects which neighbor Navigate moves the cursor to.
type Direction int

const (
	// DirectionOlder moves the cursor toward the oldest record.
	DirectionOlder Direction = iota
	// DirectionNewer moves the cursor toward the newest record.
	DirectionNewer
)

// Controller is the presentation engine. All exported methods are safe
// for concurrent use; each one is applied atomically on the engine
// loop.
type Controller struct {
	logger   *slog.Logger
	cache    *imagecache.Cache
	history  *history.Store
	sink     Sink
	renderer Renderer

	// Loop-owned state. Only the run goroutine touches these.
	opts          Options
	st            *stack.Stack
	timers        map[string]*timeout.Controller
	pointerInside bool
	visible       bool

	cmds     chan func()
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a Controller. The history store and image cache are
// required; sink and renderer may be nil when no consumer exists.
// History entries hydrated before this call have their icon files
// re-adopted so the cache keeps owning them.
func New(logger *slog.Logger, cache *imagecache.Cache, hist *history.Store, sink Sink, renderer Renderer, opts Options) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if sink == nil {
		sink = nopSink{}
	}
	if renderer == nil {
		renderer = nopRenderer{}
	}
	if opts.MaxVisible <= 0 {
		opts.MaxVisible = stack.DefaultCapacity
	}
	if opts.FallbackIcon == "" {
		opts.FallbackIcon = FallbackIcon
	}

	c := &Controller{
		logger:   logger,
		cache:    cache,
		history:  hist,
		sink:     sink,
		renderer: renderer,
		opts:     opts,
		st:       stack.New(opts.MaxVisible),
		timers:   make(map[string]*timeout.Controller),
		cmds:     make(chan func(), 64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	// Dropped history entries release their cached icon file. This is
	// the only way a history-owned file is ever cleaned up.
	hist.SetOnEvict(func(e history.Entry) {
		cache.Release(e.ID)
	})
	for _, e := range hist.All() {
		cache.Adopt(e.ID, e.IconPath)
	}

	return c
}

// Start launches the engine loop.
func (c *Controller) Start() {
	go c.run()
}

// Stop shuts the loop down, cancelling every live timeout. It blocks
// until the loop has exited and is safe to call more than once.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Controller) run() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.cmds:
			fn()
		case <-c.stop:
			for id, t := range c.timers {
				t.Cancel()
				delete(c.timers, id)
			}
			return
		}
	}
}

// enqueue posts a command to the loop without waiting for it.
func (c *Controller) enqueue(fn func()) error {
	select {
	case c.cmds <- fn:
		return nil
	case <-c.stop:
		return ErrStopped
	}
}

// call posts a command and waits for the loop to apply it.
func (c *Controller) call(fn func()) error {
	applied := make(chan struct{})
	if err := c.enqueue(func() {
		fn()
		close(applied)
	}); err != nil {
		return err
	}
	select {
	case <-applied:
		return nil
	case <-c.done:
		return ErrStopped
	}
}

// OnNewNotification admits a notification and returns the assigned
// record id. Invalid payloads fail with ErrValidation and change
// nothing.
func (c *Controller) OnNewNotification(p Payload) (string, error) {
	var (
		id    string
		opErr error
	)
	if err := c.call(func() { id, opErr = c.admit(p) }); err != nil {
		return "", err
	}
	return id, opErr
}

func (c *Controller) admit(p Payload) (string, error) {
	urgency := model.UrgencyNormal
	if p.Urgency != nil {
		if *p.Urgency < model.UrgencyLow || *p.Urgency > model.UrgencyCritical {
			return "", fmt.Errorf("%w: urgency %d out of range", ErrValidation, *p.Urgency)
		}
		urgency = *p.Urgency
	}
	if p.AppName == "" {
		return "", fmt.Errorf("%w: %s", ErrValidation, model.ErrEmptyAppName)
	}

	r, err := model.NewRecord(p.SourceID)
	if err != nil {
		return "", err
	}
	r.AppName = p.AppName
	r.Summary = p.Summary
	r.Body = p.Body
	r.Icon = p.Icon
	r.Actions = p.Actions
	r.RequestedTimeout = p.RequestedTimeout
	r.Transient = p.Transient
	r.Resident = p.Resident
	r.SetUrgency(urgency)

	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("%w: %s", ErrValidation, err)
	}

	if c.suppressed(r) {
		c.routeToHistory(r)
		return r.ID, nil
	}

	target := c.replacementTarget(p, r)
	if target != nil {
		c.replace(target, r)
	} else {
		for _, evicted := range c.st.Push(r) {
			c.logger.Debug("evicting to make room",
				"id", evicted.ID, "app", evicted.AppName)
			c.finalize(evicted, ReasonExpired)
		}
	}

	c.resolveIcon(r)
	c.armTimeout(r)
	c.syncVisible()

	c.logger.Info("notification admitted",
		"id", r.ID,
		"source_id", r.SourceID,
		"app", r.AppName,
		"urgency", r.UrgencyName,
		"active", c.st.Len())
	return r.ID, nil
}

// suppressed reports whether do-not-disturb keeps this record off the
// stack.
func (c *Controller) suppressed(r *model.Record) bool {
	if !c.opts.DoNotDisturb {
		return false
	}
	if c.opts.DnDCriticalBypass && r.Urgency == model.UrgencyCritical {
		return false
	}
	return true
}

// routeToHistory retires a record that was never shown. Inline icons
// are not decoded for suppressed records; named icons still resolve.
func (c *Controller) routeToHistory(r *model.Record) {
	if r.Icon.Kind == model.IconNamed {
		r.IconPath, _ = c.cache.Acquire(r.ID, r.Icon)
	}
	c.logger.Info("notification suppressed",
		"id", r.ID, "app", r.AppName, "reason", ReasonUndelivered)
	c.finalize(r, ReasonUndelivered)
}

// replacementTarget picks the active record the new one replaces, if
// any: an explicit replaces-id wins, then the per-app policy.
func (c *Controller) replacementTarget(p Payload, r *model.Record) *model.Record {
	if p.ReplacesID != 0 {
		if target := c.st.GetBySourceID(p.ReplacesID); target != nil {
			return target
		}
	}
	if !c.opts.replacesApp(r.AppName) {
		return nil
	}
	for _, candidate := range c.st.Records() {
		if candidate.AppName == r.AppName {
			return candidate
		}
	}
	return nil
}

// replace swaps target for r in place, keeping the stack position.
// The replaced record vanishes silently: no history entry, no closed
// event.
func (c *Controller) replace(target *model.Record, r *model.Record) {
	if t := c.timers[target.ID]; t != nil {
		t.Cancel()
		delete(c.timers, target.ID)
	}
	c.cache.Release(target.ID)
	c.st.Replace(target.ID, r)

	if c.opts.replacesApp(r.AppName) {
		// Replacement-policy apps keep a single history entry too.
		if err := c.history.RemoveApp(r.AppName); err != nil {
			c.logger.Warn("failed to prune history for app",
				"app", r.AppName, "error", err)
		}
	}
	c.logger.Debug("replaced active notification",
		"old_id", target.ID, "new_id", r.ID, "app", r.AppName)
}

// resolveIcon fills IconPath. Named icons resolve synchronously; inline
// payloads are decoded off the loop and applied later, or discarded if
// the record is retired before the decode lands.
func (c *Controller) resolveIcon(r *model.Record) {
	switch r.Icon.Kind {
	case model.IconNamed:
		r.IconPath, _ = c.cache.Acquire(r.ID, r.Icon)
	case model.IconInline:
		id, icon := r.ID, r.Icon
		go func() {
			path, err := c.cache.Acquire(id, icon)
			_ = c.enqueue(func() { c.applyIcon(id, path, err) })
		}()
	}
}

func (c *Controller) applyIcon(id, path string, err error) {
	r, _ := c.st.Get(id)
	if r == nil {
		// Retired while decoding: nothing references the file.
		c.cache.Release(id)
		return
	}
	if err != nil {
		c.logger.Warn("inline icon decode failed", "id", id, "error", err)
		r.IconPath = c.opts.FallbackIcon
	} else {
		r.IconPath = path
	}
	c.publish()
}

// armTimeout starts the record's expiry timer. A pointer already
// inside the notification area pauses it immediately.
func (c *Controller) armTimeout(r *model.Record) {
	d := r.RequestedTimeout
	if d == 0 {
		d = c.opts.Timeouts.For(r.Urgency)
	}
	if d <= 0 {
		d = model.TimeoutNever
	}

	id := r.ID
	t := timeout.New(d, func() {
		_ = c.enqueue(func() {
			if !c.retire(id, ReasonExpired) {
				c.logger.Debug("expiry for retired record", "id", id)
			}
		})
	})
	if c.pointerInside && c.opts.PauseOnHover {
		t.Pause()
	}
	c.timers[r.ID] = t
}

// finalize releases a record that is already off the stack: timer,
// icon ownership, history retention, and the closed event.
func (c *Controller) finalize(r *model.Record, reason CloseReason) {
	if t := c.timers[r.ID]; t != nil {
		t.Cancel()
		delete(c.timers, r.ID)
	}

	if r.Transient {
		// Transient records leave no trace.
		c.cache.Release(r.ID)
	} else {
		entry := history.Entry{
			Record:    *r.Clone(),
			Reason:    reason.String(),
			RetiredAt: time.Now(),
		}
		if err := c.history.Append(entry); err != nil {
			c.logger.Warn("failed to append history entry",
				"id", r.ID, "error", err)
		}
	}

	c.sink.NotificationClosed(r.SourceID, reason)
}

// retire removes a record from the stack and finalizes it. It reports
// false when the id has no active record.
func (c *Controller) retire(id string, reason CloseReason) bool {
	r := c.st.Remove(id)
	if r == nil {
		return false
	}
	c.finalize(r, reason)
	c.syncVisible()
	c.logger.Info("notification retired",
		"id", r.ID, "app", r.AppName, "reason", reason, "active", c.st.Len())
	return true
}

// OnSourceClose withdraws the record the source registered under the
// given id. Unknown ids are a silent no-op: the record may simply have
// expired already.
func (c *Controller) OnSourceClose(sourceID uint32) error {
	return c.call(func() {
		r := c.st.GetBySourceID(sourceID)
		if r == nil {
			c.logger.Debug("close for unknown source id", "source_id", sourceID)
			return
		}
		c.retire(r.ID, ReasonClosedBySource)
	})
}

// DismissCurrent retires the record under the cursor. With an empty
// stack it is a no-op.
func (c *Controller) DismissCurrent() error {
	return c.call(func() {
		r := c.st.Current()
		if r == nil {
			return
		}
		c.retire(r.ID, ReasonDismissed)
	})
}

// InvokeAction activates an action on an active record. Non-resident
// records are dismissed afterwards; resident ones stay put. An unknown
// id fails with ErrNotFound so the caller can drop its stale view;
// nothing is forwarded to the source.
func (c *Controller) InvokeAction(id, actionKey string) error {
	var opErr error
	if err := c.call(func() {
		r, _ := c.st.Get(id)
		if r == nil {
			// The record may have expired between render and click;
			// callers treat this as stale input, the source never
			// hears about it.
			c.logger.Debug("action for unknown record", "id", id, "action_key", actionKey)
			opErr = fmt.Errorf("%w: %s", ErrNotFound, id)
			return
		}
		if !r.HasAction(actionKey) {
			opErr = fmt.Errorf("%w: %q", ErrInvalidAction, actionKey)
			return
		}
		c.sink.ActionInvoked(r.SourceID, actionKey)
		if !r.Resident {
			c.retire(r.ID, ReasonDismissed)
		}
	}); err != nil {
		return err
	}
	return opErr
}

// Navigate moves the cursor one record in the given direction. At a
// boundary it is a no-op.
func (c *Controller) Navigate(dir Direction) error {
	return c.call(func() {
		var moved bool
		if dir == DirectionOlder {
			moved = c.st.Previous()
		} else {
			moved = c.st.Next()
		}
		if moved {
			c.publish()
		}
	})
}

// CloseAll dismisses every active record at once.
func (c *Controller) CloseAll() error {
	return c.call(func() {
		for _, r := range c.st.Clear() {
			c.finalize(r, ReasonDismissed)
		}
		c.syncVisible()
	})
}

// PointerEnter suspends every running timeout while the pointer stays
// over the notification area. Repeated calls are idempotent.
func (c *Controller) PointerEnter() error {
	return c.call(func() {
		if c.pointerInside {
			return
		}
		c.pointerInside = true
		if !c.opts.PauseOnHover {
			return
		}
		for _, t := range c.timers {
			t.Pause()
		}
		c.publish()
	})
}

// PointerLeave resumes every paused timeout with its remaining budget.
func (c *Controller) PointerLeave() error {
	return c.call(func() {
		if !c.pointerInside {
			return
		}
		c.pointerInside = false
		if !c.opts.PauseOnHover {
			return
		}
		for _, t := range c.timers {
			t.Resume()
		}
		c.publish()
	})
}

// Reset abandons every active record: timers cancelled, icon files
// released, nothing retained in history and no closed events emitted.
// Used when the source connection goes away entirely.
func (c *Controller) Reset() error {
	return c.call(func() {
		for _, r := range c.st.Clear() {
			if t := c.timers[r.ID]; t != nil {
				t.Cancel()
				delete(c.timers, r.ID)
			}
			c.cache.Release(r.ID)
		}
		c.pointerInside = false
		c.syncVisible()
		c.logger.Info("presentation state reset")
	})
}

// SetOptions applies a new configuration. Shrinking the visible cap
// evicts immediately; timers already running keep their original
// durations.
func (c *Controller) SetOptions(opts Options) error {
	return c.call(func() {
		if opts.MaxVisible <= 0 {
			opts.MaxVisible = stack.DefaultCapacity
		}
		if opts.FallbackIcon == "" {
			opts.FallbackIcon = FallbackIcon
		}
		c.opts = opts
		for _, evicted := range c.st.SetCapacity(opts.MaxVisible) {
			c.finalize(evicted, ReasonExpired)
		}
		c.syncVisible()
	})
}

// Snapshot returns the current read model without publishing it.
func (c *Controller) Snapshot() (ReadModel, error) {
	var rm ReadModel
	if err := c.call(func() { rm = c.readModel() }); err != nil {
		return ReadModel{}, err
	}
	return rm, nil
}

func (c *Controller) syncVisible() {
	c.visible = c.st.Len() > 0
	c.publish()
}

func (c *Controller) readModel() ReadModel {
	rm := ReadModel{
		Visible: c.visible,
		Cursor:  c.st.Cursor(),
	}
	for _, r := range c.st.Records() {
		view := RecordView{Record: *r.Clone()}
		if t := c.timers[r.ID]; t != nil {
			view.Remaining = t.Remaining()
			view.Paused = t.State() == timeout.StatePaused
		}
		rm.Records = append(rm.Records, view)
	}
	return rm
}

func (c *Controller) publish() {
	c.renderer.Render(c.readModel())
}
