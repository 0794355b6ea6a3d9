package dbus

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// Client is a thin caller for a running notification server. The
// control CLI uses it to send test notifications and to query the
// daemon.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// NewClient connects to the session bus and binds the notification
// service object.
func NewClient() (*Client, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	return &Client{
		conn: conn,
		obj:  conn.Object(DBusBusName, dbus.ObjectPath(DBusPath)),
	}, nil
}

// SendOptions carries the optional parts of an outgoing notification.
type SendOptions struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Urgency       *int
	Transient     bool
	ExpireTimeout int32 // -1 = server default, 0 = never
	Actions       []string
}

// Send calls Notify on the running server and returns the assigned
// wire id.
func (c *Client) Send(summary, body string, opts SendOptions) (uint32, error) {
	appName := opts.AppName
	if appName == "" {
		appName = "notifctl"
	}

	hints := map[string]dbus.Variant{}
	if opts.Urgency != nil {
		hints["urgency"] = dbus.MakeVariant(byte(*opts.Urgency))
	}
	if opts.Transient {
		hints["transient"] = dbus.MakeVariant(true)
	}

	var id uint32
	err := c.obj.Call(DBusInterface+".Notify", 0,
		appName,
		opts.ReplacesID,
		opts.AppIcon,
		summary,
		body,
		opts.Actions,
		hints,
		opts.ExpireTimeout,
	).Store(&id)
	if err != nil {
		return 0, fmt.Errorf("Notify call failed: %w", err)
	}
	return id, nil
}

// Close asks the server to withdraw a notification by wire id.
func (c *Client) Close(id uint32) error {
	if err := c.obj.Call(DBusInterface+".CloseNotification", 0, id).Err; err != nil {
		return fmt.Errorf("CloseNotification call failed: %w", err)
	}
	return nil
}

// ServerInformation queries the running server's identity.
func (c *Client) ServerInformation() (ServerInfo, error) {
	var info ServerInfo
	err := c.obj.Call(DBusInterface+".GetServerInformation", 0).Store(
		&info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("GetServerInformation call failed: %w", err)
	}
	return info, nil
}

// Capabilities queries the running server's advertised capabilities.
func (c *Client) Capabilities() ([]string, error) {
	var caps []string
	if err := c.obj.Call(DBusInterface+".GetCapabilities", 0).Store(&caps); err != nil {
		return nil, fmt.Errorf("GetCapabilities call failed: %w", err)
	}
	return caps, nil
}
