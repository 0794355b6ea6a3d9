// Package dbus implements the org.freedesktop.Notifications D-Bus
// interface. It is the source boundary of the daemon: inbound Notify
// and CloseNotification calls are translated into presentation engine
// operations, and engine retirements come back out as
// NotificationClosed and ActionInvoked signals.
package dbus
