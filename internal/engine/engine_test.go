package engine

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxshell/notifd/internal/history"
	"github.com/fluxshell/notifd/internal/imagecache"
	"github.com/fluxshell/notifd/internal/model"
)

type closedEvent struct {
	sourceID uint32
	reason   CloseReason
}

type recordingSink struct {
	mu      sync.Mutex
	actions []string
	closed  []closedEvent
}

func (s *recordingSink) ActionInvoked(sourceID uint32, actionKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, actionKey)
}

func (s *recordingSink) NotificationClosed(sourceID uint32, reason CloseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = append(s.closed, closedEvent{sourceID: sourceID, reason: reason})
}

func (s *recordingSink) closedEvents() []closedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]closedEvent(nil), s.closed...)
}

func (s *recordingSink) invokedActions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.actions...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	ctrl  *Controller
	sink  *recordingSink
	hist  *history.Store
	cache *imagecache.Cache
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()

	cache, err := imagecache.New(t.TempDir(), discardLogger())
	require.NoError(t, err)

	hist := history.NewStore(history.DefaultCapacity, nil)
	sink := &recordingSink{}

	ctrl := New(discardLogger(), cache, hist, sink, nil, opts)
	ctrl.Start()
	t.Cleanup(ctrl.Stop)

	return &testEnv{ctrl: ctrl, sink: sink, hist: hist, cache: cache}
}

func payload(sourceID uint32) Payload {
	return Payload{
		SourceID: sourceID,
		AppName:  "testapp",
		Summary:  "hello",
		Body:     "world",
	}
}

func urgencyPtr(u int) *int { return &u }

func (e *testEnv) snapshot(t *testing.T) ReadModel {
	t.Helper()
	rm, err := e.ctrl.Snapshot()
	require.NoError(t, err)
	return rm
}

func TestControllerAdmit(t *testing.T) {
	t.Run("basic admission", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		id, err := env.ctrl.OnNewNotification(payload(1))
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		rm := env.snapshot(t)
		assert.True(t, rm.Visible)
		assert.Equal(t, 0, rm.Cursor)
		require.Len(t, rm.Records, 1)
		assert.Equal(t, id, rm.Records[0].ID)
		assert.Equal(t, "testapp", rm.Records[0].AppName)
	})

	t.Run("cursor follows newest", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		for i := uint32(1); i <= 3; i++ {
			_, err := env.ctrl.OnNewNotification(payload(i))
			require.NoError(t, err)
		}

		rm := env.snapshot(t)
		require.Len(t, rm.Records, 3)
		assert.Equal(t, 2, rm.Cursor)
	})

	t.Run("invalid urgency is rejected", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.Urgency = urgencyPtr(7)
		_, err := env.ctrl.OnNewNotification(p)
		require.ErrorIs(t, err, ErrValidation)

		rm := env.snapshot(t)
		assert.False(t, rm.Visible)
		assert.Empty(t, rm.Records)
		assert.Equal(t, 0, env.hist.Len())
	})

	t.Run("empty app name is rejected", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.AppName = ""
		_, err := env.ctrl.OnNewNotification(p)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("omitted urgency defaults to normal", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		_, err := env.ctrl.OnNewNotification(payload(1))
		require.NoError(t, err)

		rm := env.snapshot(t)
		require.Len(t, rm.Records, 1)
		assert.Equal(t, model.UrgencyNormal, rm.Records[0].Urgency)
	})
}

func TestControllerEviction(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxVisible = 2

	env := newTestEnv(t, opts)

	first, err := env.ctrl.OnNewNotification(payload(1))
	require.NoError(t, err)
	_, err = env.ctrl.OnNewNotification(payload(2))
	require.NoError(t, err)
	_, err = env.ctrl.OnNewNotification(payload(3))
	require.NoError(t, err)

	rm := env.snapshot(t)
	assert.Len(t, rm.Records, 2)

	// The oldest record was evicted into history.
	entries := env.hist.All()
	require.Len(t, entries, 1)
	assert.Equal(t, first, entries[0].ID)
	assert.Equal(t, ReasonExpired.String(), entries[0].Reason)

	closed := env.sink.closedEvents()
	require.Len(t, closed, 1)
	assert.Equal(t, uint32(1), closed[0].sourceID)
}

func TestControllerExpiry(t *testing.T) {
	t.Run("record expires into history", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.RequestedTimeout = 20 * time.Millisecond
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			return env.hist.Len() == 1
		}, time.Second, 5*time.Millisecond)

		rm := env.snapshot(t)
		assert.False(t, rm.Visible)
		assert.Empty(t, rm.Records)

		entries := env.hist.All()
		require.Len(t, entries, 1)
		assert.Equal(t, ReasonExpired.String(), entries[0].Reason)
	})

	t.Run("dismissal before expiry wins", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.RequestedTimeout = 50 * time.Millisecond
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		require.NoError(t, env.ctrl.DismissCurrent())
		time.Sleep(100 * time.Millisecond)

		entries := env.hist.All()
		require.Len(t, entries, 1)
		assert.Equal(t, ReasonDismissed.String(), entries[0].Reason)
		assert.Len(t, env.sink.closedEvents(), 1)
	})

	t.Run("critical never expires by default", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.Urgency = urgencyPtr(model.UrgencyCritical)
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		rm := env.snapshot(t)
		require.Len(t, rm.Records, 1)
		assert.Negative(t, rm.Records[0].Remaining)
	})
}

func TestControllerHover(t *testing.T) {
	t.Run("hover pauses all timeouts", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.RequestedTimeout = 40 * time.Millisecond
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		require.NoError(t, env.ctrl.PointerEnter())
		time.Sleep(100 * time.Millisecond)

		rm := env.snapshot(t)
		require.Len(t, rm.Records, 1)
		assert.True(t, rm.Records[0].Paused)

		require.NoError(t, env.ctrl.PointerLeave())
		require.Eventually(t, func() bool {
			return env.hist.Len() == 1
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("record admitted while hovered starts paused", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		require.NoError(t, env.ctrl.PointerEnter())

		p := payload(1)
		p.RequestedTimeout = 20 * time.Millisecond
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		time.Sleep(60 * time.Millisecond)
		rm := env.snapshot(t)
		require.Len(t, rm.Records, 1)
		assert.True(t, rm.Records[0].Paused)
	})

	t.Run("enter is idempotent", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		_, err := env.ctrl.OnNewNotification(payload(1))
		require.NoError(t, err)

		require.NoError(t, env.ctrl.PointerEnter())
		require.NoError(t, env.ctrl.PointerEnter())
		require.NoError(t, env.ctrl.PointerLeave())

		rm := env.snapshot(t)
		require.Len(t, rm.Records, 1)
		assert.False(t, rm.Records[0].Paused)
	})
}

func TestControllerInvokeAction(t *testing.T) {
	withAction := func(sourceID uint32) Payload {
		p := payload(sourceID)
		p.Actions = []model.Action{{Key: "default", Label: "Open"}}
		return p
	}

	t.Run("valid action dismisses", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		id, err := env.ctrl.OnNewNotification(withAction(1))
		require.NoError(t, err)

		require.NoError(t, env.ctrl.InvokeAction(id, "default"))
		assert.Equal(t, []string{"default"}, env.sink.invokedActions())

		rm := env.snapshot(t)
		assert.Empty(t, rm.Records)

		entries := env.hist.All()
		require.Len(t, entries, 1)
		assert.Equal(t, ReasonDismissed.String(), entries[0].Reason)
	})

	t.Run("resident record survives action", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := withAction(1)
		p.Resident = true
		id, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		require.NoError(t, env.ctrl.InvokeAction(id, "default"))

		rm := env.snapshot(t)
		assert.Len(t, rm.Records, 1)
	})

	t.Run("undeclared action is rejected", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		id, err := env.ctrl.OnNewNotification(withAction(1))
		require.NoError(t, err)

		err = env.ctrl.InvokeAction(id, "delete")
		require.ErrorIs(t, err, ErrInvalidAction)

		// The record is untouched.
		rm := env.snapshot(t)
		assert.Len(t, rm.Records, 1)
		assert.Empty(t, env.sink.invokedActions())
	})

	t.Run("unknown id", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		err := env.ctrl.InvokeAction("01ARZ3NDEKTSV4RRFFQ69G5FAV", "default")
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestControllerSourceClose(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	_, err := env.ctrl.OnNewNotification(payload(7))
	require.NoError(t, err)

	require.NoError(t, env.ctrl.OnSourceClose(7))

	entries := env.hist.All()
	require.Len(t, entries, 1)
	assert.Equal(t, ReasonClosedBySource.String(), entries[0].Reason)

	// Unknown source ids are a silent no-op.
	require.NoError(t, env.ctrl.OnSourceClose(99))
	assert.Len(t, env.hist.All(), 1)
}

func TestControllerNavigate(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	for i := uint32(1); i <= 3; i++ {
		_, err := env.ctrl.OnNewNotification(payload(i))
		require.NoError(t, err)
	}

	require.NoError(t, env.ctrl.Navigate(DirectionOlder))
	require.NoError(t, env.ctrl.Navigate(DirectionOlder))
	assert.Equal(t, 0, env.snapshot(t).Cursor)

	// At the oldest record, another step is a no-op.
	require.NoError(t, env.ctrl.Navigate(DirectionOlder))
	assert.Equal(t, 0, env.snapshot(t).Cursor)

	require.NoError(t, env.ctrl.Navigate(DirectionNewer))
	assert.Equal(t, 1, env.snapshot(t).Cursor)
}

func TestControllerCloseAll(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	for i := uint32(1); i <= 3; i++ {
		_, err := env.ctrl.OnNewNotification(payload(i))
		require.NoError(t, err)
	}

	require.NoError(t, env.ctrl.CloseAll())

	rm := env.snapshot(t)
	assert.False(t, rm.Visible)
	assert.Empty(t, rm.Records)
	assert.Equal(t, -1, rm.Cursor)
	assert.Equal(t, 3, env.hist.Len())
	assert.Len(t, env.sink.closedEvents(), 3)
}

func TestControllerDoNotDisturb(t *testing.T) {
	t.Run("suppressed straight to history", func(t *testing.T) {
		opts := DefaultOptions()
		opts.DoNotDisturb = true
		env := newTestEnv(t, opts)

		id, err := env.ctrl.OnNewNotification(payload(1))
		require.NoError(t, err)
		assert.NotEmpty(t, id)

		rm := env.snapshot(t)
		assert.False(t, rm.Visible)
		assert.Empty(t, rm.Records)

		entries := env.hist.All()
		require.Len(t, entries, 1)
		assert.Equal(t, ReasonUndelivered.String(), entries[0].Reason)
	})

	t.Run("critical bypasses when allowed", func(t *testing.T) {
		opts := DefaultOptions()
		opts.DoNotDisturb = true
		opts.DnDCriticalBypass = true
		env := newTestEnv(t, opts)

		p := payload(1)
		p.Urgency = urgencyPtr(model.UrgencyCritical)
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		rm := env.snapshot(t)
		assert.True(t, rm.Visible)
		assert.Len(t, rm.Records, 1)
	})
}

func TestControllerReplacement(t *testing.T) {
	t.Run("replaces-id swaps in place", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		_, err := env.ctrl.OnNewNotification(payload(1))
		require.NoError(t, err)
		_, err = env.ctrl.OnNewNotification(payload(2))
		require.NoError(t, err)

		p := payload(3)
		p.ReplacesID = 1
		p.Summary = "updated"
		_, err = env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		rm := env.snapshot(t)
		require.Len(t, rm.Records, 2)
		assert.Equal(t, "updated", rm.Records[0].Summary)
		assert.Equal(t, 0, rm.Cursor)

		// Replacement leaves no history entry and no closed event.
		assert.Equal(t, 0, env.hist.Len())
		assert.Empty(t, env.sink.closedEvents())
	})

	t.Run("per-app policy keeps one active", func(t *testing.T) {
		opts := DefaultOptions()
		opts.ReplaceApps = []string{"Spotify"}
		env := newTestEnv(t, opts)

		p := payload(1)
		p.AppName = "Spotify"
		p.Summary = "track one"
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		p = payload(2)
		p.AppName = "Spotify"
		p.Summary = "track two"
		_, err = env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		rm := env.snapshot(t)
		require.Len(t, rm.Records, 1)
		assert.Equal(t, "track two", rm.Records[0].Summary)
	})
}

func TestControllerTransient(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	p := payload(1)
	p.Transient = true
	_, err := env.ctrl.OnNewNotification(p)
	require.NoError(t, err)

	require.NoError(t, env.ctrl.DismissCurrent())

	assert.Equal(t, 0, env.hist.Len())
	assert.Len(t, env.sink.closedEvents(), 1)
}

func TestControllerReset(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	for i := uint32(1); i <= 2; i++ {
		_, err := env.ctrl.OnNewNotification(payload(i))
		require.NoError(t, err)
	}

	require.NoError(t, env.ctrl.Reset())

	rm := env.snapshot(t)
	assert.False(t, rm.Visible)
	assert.Empty(t, rm.Records)

	// Abandoned records leave no trace.
	assert.Equal(t, 0, env.hist.Len())
	assert.Empty(t, env.sink.closedEvents())
}

func TestControllerSetOptions(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())

	for i := uint32(1); i <= 4; i++ {
		_, err := env.ctrl.OnNewNotification(payload(i))
		require.NoError(t, err)
	}

	opts := DefaultOptions()
	opts.MaxVisible = 2
	require.NoError(t, env.ctrl.SetOptions(opts))

	rm := env.snapshot(t)
	assert.Len(t, rm.Records, 2)
	assert.Equal(t, 2, env.hist.Len())
}

func TestControllerStopped(t *testing.T) {
	env := newTestEnv(t, DefaultOptions())
	env.ctrl.Stop()

	_, err := env.ctrl.OnNewNotification(payload(1))
	assert.ErrorIs(t, err, ErrStopped)

	_, err = env.ctrl.Snapshot()
	assert.ErrorIs(t, err, ErrStopped)
}

func inlinePNG(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestControllerInlineIcon(t *testing.T) {
	t.Run("decode lands on the live record", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.Icon = model.InlineIcon(inlinePNG(t))
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			rm, err := env.ctrl.Snapshot()
			require.NoError(t, err)
			return len(rm.Records) == 1 && rm.Records[0].IconPath != ""
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, 1, env.cache.Len())
	})

	t.Run("undecodable data falls back to the named icon", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.Icon = model.InlineIcon([]byte("not an image"))
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)

		require.Eventually(t, func() bool {
			rm, err := env.ctrl.Snapshot()
			require.NoError(t, err)
			return len(rm.Records) == 1 && rm.Records[0].IconPath == FallbackIcon
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, 0, env.cache.Len())
	})

	t.Run("transient record retired around decode leaves no cache file", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.Icon = model.InlineIcon(inlinePNG(t))
		p.Transient = true
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)
		require.NoError(t, env.ctrl.DismissCurrent())

		// Whichever side of the dismissal the decode lands on, the
		// file must end up released.
		require.Eventually(t, func() bool {
			return env.cache.Len() == 0
		}, time.Second, 5*time.Millisecond)
	})

	t.Run("history handoff survives retirement then eviction", func(t *testing.T) {
		env := newTestEnv(t, DefaultOptions())

		p := payload(1)
		p.Icon = model.InlineIcon(inlinePNG(t))
		_, err := env.ctrl.OnNewNotification(p)
		require.NoError(t, err)
		require.NoError(t, env.ctrl.DismissCurrent())

		// Either the record was retired before the decode landed (the
		// completion releases the file) or the history entry now owns
		// it; clearing history drops that ownership too.
		require.NoError(t, env.hist.Clear())
		require.Eventually(t, func() bool {
			return env.cache.Len() == 0
		}, time.Second, 5*time.Millisecond)
	})
}
