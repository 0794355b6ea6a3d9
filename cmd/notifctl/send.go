package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fluxshell/notifd/internal/dbus"
)

var sendOpts struct {
	app       string
	icon      string
	urgency   string
	timeout   int32
	transient bool
	replaces  uint32
	actions   []string
}

var sendCmd = &cobra.Command{
	Use:   "send SUMMARY [BODY]",
	Short: "Send a notification to the running daemon",
	Long: `Send a notification through the org.freedesktop.Notifications
interface of the running daemon.

Examples:
  # Simple notification
  notifctl send "Build finished"

  # Critical, never expires
  notifctl send --urgency critical --timeout 0 "Disk full" "/ is at 98%"

  # Replace a previous notification by its id
  notifctl send --replaces 42 "Download" "87% complete"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendOpts.app, "app", "notifctl",
		"App name to report")
	sendCmd.Flags().StringVar(&sendOpts.icon, "icon", "",
		"Icon name or file path")
	sendCmd.Flags().StringVar(&sendOpts.urgency, "urgency", "",
		"Urgency (low, normal, critical)")
	sendCmd.Flags().Int32Var(&sendOpts.timeout, "timeout", -1,
		"Expire timeout in milliseconds (-1=server default, 0=never)")
	sendCmd.Flags().BoolVar(&sendOpts.transient, "transient", false,
		"Do not retain in history")
	sendCmd.Flags().Uint32Var(&sendOpts.replaces, "replaces", 0,
		"Id of a notification to replace")
	sendCmd.Flags().StringArrayVar(&sendOpts.actions, "action", nil,
		"Action as key=label (repeatable)")
}

func runSend(cmd *cobra.Command, args []string) error {
	summary := args[0]
	body := ""
	if len(args) > 1 {
		body = args[1]
	}

	opts := dbus.SendOptions{
		AppName:       sendOpts.app,
		ReplacesID:    sendOpts.replaces,
		AppIcon:       sendOpts.icon,
		Transient:     sendOpts.transient,
		ExpireTimeout: sendOpts.timeout,
	}
	if sendOpts.urgency != "" {
		u, err := parseUrgency(sendOpts.urgency)
		if err != nil {
			return err
		}
		opts.Urgency = &u
	}
	for _, a := range sendOpts.actions {
		key, label, ok := splitAction(a)
		if !ok {
			return fmt.Errorf("invalid action %q (want key=label)", a)
		}
		opts.Actions = append(opts.Actions, key, label)
	}

	client, err := dbus.NewClient()
	if err != nil {
		return err
	}

	id, err := client.Send(summary, body, opts)
	if err != nil {
		return err
	}
	fmt.Println(id)
	return nil
}

func splitAction(s string) (key, label string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '=' {
			if i == 0 || i == len(s)-1 {
				return "", "", false
			}
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}
