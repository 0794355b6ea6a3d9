package dbus

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fluxshell/notifd/internal/engine"
	"github.com/fluxshell/notifd/internal/model"
)

func TestCloseReasonString(t *testing.T) {
	tests := []struct {
		reason   CloseReason
		expected string
	}{
		{CloseReasonExpired, "expired"},
		{CloseReasonDismissed, "dismissed"},
		{CloseReasonClosed, "closed"},
		{CloseReasonUndefined, "undefined"},
		{CloseReason(99), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.reason.String())
		})
	}
}

func TestWireReason(t *testing.T) {
	assert.Equal(t, CloseReasonExpired, WireReason(engine.ReasonExpired))
	assert.Equal(t, CloseReasonDismissed, WireReason(engine.ReasonDismissed))
	assert.Equal(t, CloseReasonClosed, WireReason(engine.ReasonClosedBySource))
	assert.Equal(t, CloseReasonUndefined, WireReason(engine.ReasonUndelivered))
}

func TestParsedActions(t *testing.T) {
	tests := []struct {
		name     string
		actions  []string
		expected []model.Action
	}{
		{
			name:     "empty",
			actions:  nil,
			expected: []model.Action{},
		},
		{
			name:     "single action",
			actions:  []string{"default", "Open"},
			expected: []model.Action{{Key: "default", Label: "Open"}},
		},
		{
			name:    "multiple actions",
			actions: []string{"default", "Open", "dismiss", "Dismiss", "reply", "Reply"},
			expected: []model.Action{
				{Key: "default", Label: "Open"},
				{Key: "dismiss", Label: "Dismiss"},
				{Key: "reply", Label: "Reply"},
			},
		},
		{
			name:     "odd number (incomplete pair ignored)",
			actions:  []string{"default", "Open", "orphan"},
			expected: []model.Action{{Key: "default", Label: "Open"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{Actions: tt.actions}
			assert.Equal(t, tt.expected, n.ParsedActions())
		})
	}
}

func TestUrgencyHint(t *testing.T) {
	t.Run("absent hint means nil", func(t *testing.T) {
		n := &Notification{Hints: map[string]dbus.Variant{}}
		assert.Nil(t, n.Urgency())
	})

	t.Run("byte hint is extracted", func(t *testing.T) {
		n := &Notification{Hints: map[string]dbus.Variant{
			"urgency": dbus.MakeVariant(byte(2)),
		}}
		u := n.Urgency()
		require.NotNil(t, u)
		assert.Equal(t, model.UrgencyCritical, *u)
	})

	t.Run("wrong type means nil", func(t *testing.T) {
		n := &Notification{Hints: map[string]dbus.Variant{
			"urgency": dbus.MakeVariant("critical"),
		}}
		assert.Nil(t, n.Urgency())
	})
}

func TestBoolHints(t *testing.T) {
	n := &Notification{Hints: map[string]dbus.Variant{
		"transient":      dbus.MakeVariant(true),
		"suppress-sound": dbus.MakeVariant(true),
	}}
	assert.True(t, n.Transient())
	assert.True(t, n.SuppressSound())
	assert.False(t, n.Resident())
}

func TestRequestedTimeout(t *testing.T) {
	tests := []struct {
		name     string
		wire     int32
		expected time.Duration
	}{
		{"server default", -1, 0},
		{"never expire", 0, model.TimeoutNever},
		{"explicit milliseconds", 5000, 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &Notification{ExpireTimeout: tt.wire}
			assert.Equal(t, tt.expected, n.RequestedTimeout())
		})
	}
}

// rawImageVariant builds an image-data hint value the way godbus
// delivers it: a 7-element struct as []interface{}.
func rawImageVariant(w, h int) dbus.Variant {
	channels := 4
	rowstride := w * channels
	data := make([]byte, rowstride*h)
	for i := 0; i < len(data); i += channels {
		data[i] = 0xff   // R
		data[i+3] = 0xff // A
	}
	return dbus.MakeVariant([]interface{}{
		int32(w), int32(h), int32(rowstride),
		true, int32(8), int32(channels), data,
	})
}

func TestImagePNG(t *testing.T) {
	t.Run("raw pixbuf becomes decodable png", func(t *testing.T) {
		n := &Notification{Hints: map[string]dbus.Variant{
			"image-data": rawImageVariant(4, 4),
		}}

		data := n.ImagePNG()
		require.NotNil(t, data)

		img, err := png.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 4, 4), img.Bounds())
	})

	t.Run("legacy icon_data spelling", func(t *testing.T) {
		n := &Notification{Hints: map[string]dbus.Variant{
			"icon_data": rawImageVariant(2, 2),
		}}
		assert.NotNil(t, n.ImagePNG())
	})

	t.Run("absent hint", func(t *testing.T) {
		n := &Notification{Hints: map[string]dbus.Variant{}}
		assert.Nil(t, n.ImagePNG())
	})

	t.Run("truncated data is rejected", func(t *testing.T) {
		n := &Notification{Hints: map[string]dbus.Variant{
			"image-data": dbus.MakeVariant([]interface{}{
				int32(16), int32(16), int32(64),
				true, int32(8), int32(4), []byte{1, 2, 3},
			}),
		}}
		assert.Nil(t, n.ImagePNG())
	})
}

func TestIconPrecedence(t *testing.T) {
	t.Run("image data wins", func(t *testing.T) {
		n := &Notification{
			AppIcon: "app-icon",
			Hints: map[string]dbus.Variant{
				"image-data": rawImageVariant(2, 2),
				"image-path": dbus.MakeVariant("/tmp/x.png"),
			},
		}
		assert.Equal(t, model.IconInline, n.Icon().Kind)
	})

	t.Run("image path beats app icon", func(t *testing.T) {
		n := &Notification{
			AppIcon: "app-icon",
			Hints: map[string]dbus.Variant{
				"image-path": dbus.MakeVariant("/tmp/x.png"),
			},
		}
		icon := n.Icon()
		assert.Equal(t, model.IconNamed, icon.Kind)
		assert.Equal(t, "/tmp/x.png", icon.Name)
	})

	t.Run("app icon fallback", func(t *testing.T) {
		n := &Notification{AppIcon: "mail-unread"}
		icon := n.Icon()
		assert.Equal(t, model.IconNamed, icon.Kind)
		assert.Equal(t, "mail-unread", icon.Name)
	})

	t.Run("nothing at all", func(t *testing.T) {
		n := &Notification{}
		assert.Equal(t, model.IconNone, n.Icon().Kind)
	})
}

func TestPayload(t *testing.T) {
	n := &Notification{
		AppName:       "mailer",
		ReplacesID:    3,
		Summary:       "New mail",
		Body:          "You have 2 unread messages",
		Actions:       []string{"default", "Open"},
		ExpireTimeout: 2500,
		Hints: map[string]dbus.Variant{
			"urgency":  dbus.MakeVariant(byte(0)),
			"resident": dbus.MakeVariant(true),
		},
	}

	p := n.Payload(42)
	assert.Equal(t, uint32(42), p.SourceID)
	assert.Equal(t, uint32(3), p.ReplacesID)
	assert.Equal(t, "mailer", p.AppName)
	assert.Equal(t, "New mail", p.Summary)
	require.NotNil(t, p.Urgency)
	assert.Equal(t, model.UrgencyLow, *p.Urgency)
	assert.Equal(t, []model.Action{{Key: "default", Label: "Open"}}, p.Actions)
	assert.Equal(t, 2500*time.Millisecond, p.RequestedTimeout)
	assert.True(t, p.Resident)
	assert.False(t, p.Transient)
}
