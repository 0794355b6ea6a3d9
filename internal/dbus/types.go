package dbus

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"time"

	"github.com/godbus/dbus/v5"

	"github.com/fluxshell/notifd/internal/engine"
	"github.com/fluxshell/notifd/internal/model"
)

// CloseReason is a wire-level close reason as defined by the
// freedesktop.org notification specification.
type CloseReason uint32

const (
	// CloseReasonExpired indicates the notification expired (timeout reached).
	CloseReasonExpired CloseReason = 1
	// CloseReasonDismissed indicates the user dismissed the notification.
	CloseReasonDismissed CloseReason = 2
	// CloseReasonClosed indicates the notification was closed via CloseNotification.
	CloseReasonClosed CloseReason = 3
	// CloseReasonUndefined is reserved/undefined per the spec.
	CloseReasonUndefined CloseReason = 4
)

// String returns the string representation of the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonClosed:
		return "closed"
	case CloseReasonUndefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// WireReason maps an engine close reason onto its wire code. Records
// that were never delivered have no code of their own and go out as
// undefined.
func WireReason(reason engine.CloseReason) CloseReason {
	switch reason {
	case engine.ReasonExpired:
		return CloseReasonExpired
	case engine.ReasonDismissed:
		return CloseReasonDismissed
	case engine.ReasonClosedBySource:
		return CloseReasonClosed
	default:
		return CloseReasonUndefined
	}
}

// Notification represents an incoming D-Bus Notify call with the raw
// parameters of the org.freedesktop.Notifications.Notify method.
type Notification struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string // Alternating key, label pairs
	Hints         map[string]dbus.Variant
	ExpireTimeout int32 // -1 = server default, 0 = never expire
}

// ParsedActions converts the D-Bus action array to structured form.
// D-Bus actions are passed as alternating key/label pairs; an orphan
// trailing key is ignored.
func (n *Notification) ParsedActions() []model.Action {
	actions := make([]model.Action, 0, len(n.Actions)/2)
	for i := 0; i+1 < len(n.Actions); i += 2 {
		actions = append(actions, model.Action{
			Key:   n.Actions[i],
			Label: n.Actions[i+1],
		})
	}
	return actions
}

// Urgency extracts the urgency hint. Returns nil when the hint is
// absent or malformed, so the engine applies its default.
func (n *Notification) Urgency() *int {
	v, ok := n.Hints["urgency"]
	if !ok {
		return nil
	}
	b, ok := v.Value().(byte)
	if !ok {
		return nil
	}
	u := int(b)
	return &u
}

func (n *Notification) stringHint(key string) string {
	if v, ok := n.Hints[key]; ok {
		if s, ok := v.Value().(string); ok {
			return s
		}
	}
	return ""
}

func (n *Notification) boolHint(key string) bool {
	if v, ok := n.Hints[key]; ok {
		if b, ok := v.Value().(bool); ok {
			return b
		}
	}
	return false
}

// Category extracts the category hint.
func (n *Notification) Category() string { return n.stringHint("category") }

// DesktopEntry extracts the desktop-entry hint.
func (n *Notification) DesktopEntry() string { return n.stringHint("desktop-entry") }

// SoundFile extracts the sound-file hint.
func (n *Notification) SoundFile() string { return n.stringHint("sound-file") }

// SoundName extracts the sound-name hint.
func (n *Notification) SoundName() string { return n.stringHint("sound-name") }

// SuppressSound reports whether the suppress-sound hint is set.
func (n *Notification) SuppressSound() bool { return n.boolHint("suppress-sound") }

// Transient reports whether the transient hint is set. Transient
// notifications are shown but never retained in history.
func (n *Notification) Transient() bool { return n.boolHint("transient") }

// Resident reports whether the resident hint is set. Resident
// notifications stay up after an action is invoked.
func (n *Notification) Resident() bool { return n.boolHint("resident") }

// ImagePath extracts the image-path hint.
func (n *Notification) ImagePath() string { return n.stringHint("image-path") }

// imageData is the (iiibiiay) struct carried by the image-data hint:
// raw pixbuf rows, not an encoded image.
type imageData struct {
	Width         int32
	Height        int32
	Rowstride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

// imageDataHintKeys lists the hint names carrying raw image data, in
// priority order. The underscore and icon_data variants are legacy
// spellings still produced by older clients.
var imageDataHintKeys = []string{"image-data", "image_data", "icon_data"}

func (n *Notification) imageData() (imageData, bool) {
	for _, key := range imageDataHintKeys {
		v, ok := n.Hints[key]
		if !ok {
			continue
		}
		fields, ok := v.Value().([]interface{})
		if !ok || len(fields) != 7 {
			continue
		}
		var img imageData
		err := dbus.Store(fields,
			&img.Width, &img.Height, &img.Rowstride,
			&img.HasAlpha, &img.BitsPerSample, &img.Channels, &img.Data)
		if err != nil {
			continue
		}
		return img, true
	}
	return imageData{}, false
}

// ImagePNG converts the image-data hint into encoded PNG bytes. It
// returns nil when no usable image data is present.
func (n *Notification) ImagePNG() []byte {
	img, ok := n.imageData()
	if !ok {
		return nil
	}
	data, err := encodePNG(img)
	if err != nil {
		return nil
	}
	return data
}

// encodePNG rebuilds an image from raw pixbuf rows. Only the layout
// every real client sends is supported: 8 bits per sample, 3 or 4
// channels.
func encodePNG(img imageData) ([]byte, error) {
	if img.BitsPerSample != 8 {
		return nil, fmt.Errorf("unsupported bits per sample: %d", img.BitsPerSample)
	}
	if img.Channels != 3 && img.Channels != 4 {
		return nil, fmt.Errorf("unsupported channel count: %d", img.Channels)
	}
	if img.Width <= 0 || img.Height <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", img.Width, img.Height)
	}
	need := int(img.Rowstride)*(int(img.Height)-1) + int(img.Width)*int(img.Channels)
	if len(img.Data) < need {
		return nil, fmt.Errorf("truncated image data: have %d bytes, need %d", len(img.Data), need)
	}

	out := image.NewNRGBA(image.Rect(0, 0, int(img.Width), int(img.Height)))
	for y := 0; y < int(img.Height); y++ {
		row := img.Data[y*int(img.Rowstride):]
		for x := 0; x < int(img.Width); x++ {
			px := row[x*int(img.Channels):]
			a := byte(255)
			if img.Channels == 4 && img.HasAlpha {
				a = px[3]
			}
			out.SetNRGBA(x, y, color.NRGBA{R: px[0], G: px[1], B: px[2], A: a})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Icon resolves the notification's icon with the precedence the
// freedesktop spec prescribes: raw image data beats image-path beats
// app_icon.
func (n *Notification) Icon() model.Icon {
	if data := n.ImagePNG(); data != nil {
		return model.InlineIcon(data)
	}
	if path := n.ImagePath(); path != "" {
		return model.NamedIcon(path)
	}
	return model.NamedIcon(n.AppIcon)
}

// RequestedTimeout maps the wire expire_timeout onto the engine's
// convention: -1 (server default) becomes zero, 0 (never) becomes the
// never sentinel, positive values are milliseconds.
func (n *Notification) RequestedTimeout() time.Duration {
	switch {
	case n.ExpireTimeout < 0:
		return 0
	case n.ExpireTimeout == 0:
		return model.TimeoutNever
	default:
		return time.Duration(n.ExpireTimeout) * time.Millisecond
	}
}

// Payload translates the wire notification into the engine's inbound
// form. The source id is assigned by the server, not the client.
func (n *Notification) Payload(sourceID uint32) engine.Payload {
	return engine.Payload{
		SourceID:         sourceID,
		ReplacesID:       n.ReplacesID,
		AppName:          n.AppName,
		Summary:          n.Summary,
		Body:             n.Body,
		Icon:             n.Icon(),
		Urgency:          n.Urgency(),
		Actions:          n.ParsedActions(),
		RequestedTimeout: n.RequestedTimeout(),
		Transient:        n.Transient(),
		Resident:         n.Resident(),
	}
}

// ServerCapabilities lists the capabilities advertised by notifd.
var ServerCapabilities = []string{
	"actions",     // Support notification actions
	"body",        // Support body text
	"icon-static", // Support static icons
	"persistence", // Persist notifications to history
	"sound",       // Play sounds
}

// ServerInfo contains information about the notification server.
type ServerInfo struct {
	Name        string // "notifd"
	Vendor      string // "fluxshell"
	Version     string // Build version
	SpecVersion string // "1.2"
}

// DefaultServerInfo returns the default server information.
func DefaultServerInfo() ServerInfo {
	return ServerInfo{
		Name:        "notifd",
		Vendor:      "fluxshell",
		Version:     "0.1.0",
		SpecVersion: "1.2",
	}
}
