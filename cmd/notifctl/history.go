package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fluxshell/notifd/internal/history"
	"github.com/fluxshell/notifd/internal/model"
	"github.com/fluxshell/notifd/internal/output"
)

var historyOpts struct {
	app     string
	urgency string
	limit   int
	format  string
	noBody  bool
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse retained notification history",
	Long: `List notifications retained in history, newest first.

Examples:
  # Show the 20 most recent notifications
  notifctl history --limit 20

  # Only critical notifications from one app
  notifctl history --app Spotify --urgency critical

  # Machine-readable output
  notifctl history --format json`,
	RunE: runHistoryList,
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every retained history entry",
	RunE:  runHistoryClear,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyClearCmd)

	historyCmd.Flags().StringVar(&historyOpts.app, "app", "",
		"Only entries from this app name")
	historyCmd.Flags().StringVar(&historyOpts.urgency, "urgency", "",
		"Only entries with this urgency (low, normal, critical)")
	historyCmd.Flags().IntVar(&historyOpts.limit, "limit", 0,
		"Maximum entries to show (0=all retained)")
	historyCmd.Flags().StringVar(&historyOpts.format, "format", string(output.FormatPlain),
		"Output format (plain, json, yaml)")
	historyCmd.Flags().BoolVar(&historyOpts.noBody, "no-body", false,
		"Omit notification bodies from plain output")
}

// parseUrgency accepts both names and the wire levels 0..2.
func parseUrgency(s string) (int, error) {
	switch strings.ToLower(s) {
	case "low", "0":
		return model.UrgencyLow, nil
	case "normal", "1":
		return model.UrgencyNormal, nil
	case "critical", "2":
		return model.UrgencyCritical, nil
	default:
		return 0, fmt.Errorf("invalid urgency %q (want low, normal, or critical)", s)
	}
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	filter := history.FilterOptions{
		AppFilter: historyOpts.app,
		Limit:     historyOpts.limit,
	}
	if historyOpts.urgency != "" {
		u, err := parseUrgency(historyOpts.urgency)
		if err != nil {
			return err
		}
		filter.Urgency = &u
	}

	entries := store.List(filter)
	if len(entries) == 0 {
		fmt.Println("No notifications in history")
		return nil
	}

	opts := output.DefaultOptions()
	if historyOpts.noBody {
		opts.BodyMaxLen = -1
	}
	formatter := output.New(output.FormatType(historyOpts.format), opts)
	return formatter.Format(os.Stdout, entries)
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := openHistory()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	count := store.Len()
	if err := store.Clear(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	fmt.Printf("Removed %d entries\n", count)
	return nil
}
