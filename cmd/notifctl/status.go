package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxshell/notifd/internal/dbus"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query the running daemon",
	RunE:  runStatus,
}

var closeCmd = &cobra.Command{
	Use:   "close ID",
	Short: "Withdraw an active notification by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runClose,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(closeCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := dbus.NewClient()
	if err != nil {
		return err
	}

	info, err := client.ServerInformation()
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}
	caps, err := client.Capabilities()
	if err != nil {
		return err
	}

	fmt.Printf("Server:       %s %s (%s)\n", info.Name, info.Version, info.Vendor)
	fmt.Printf("Spec version: %s\n", info.SpecVersion)
	fmt.Printf("Capabilities: %s\n", strings.Join(caps, ", "))
	return nil
}

func runClose(cmd *cobra.Command, args []string) error {
	var id uint32
	if _, err := fmt.Sscanf(args[0], "%d", &id); err != nil {
		return fmt.Errorf("invalid id %q", args[0])
	}

	client, err := dbus.NewClient()
	if err != nil {
		return err
	}
	return client.Close(id)
}
