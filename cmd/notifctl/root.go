// Package main provides the control CLI for the notifd daemon.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fluxshell/notifd/internal/config"
	"github.com/fluxshell/notifd/internal/history"
)

// Build-time variables (set via ldflags).
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

var (
	cfg        *config.Config
	logger     *slog.Logger
	globalOpts struct {
		verbose     bool
		configPath  string
		historyFile string
	}
)

var rootCmd = &cobra.Command{
	Use:   "notifctl",
	Short: "Control CLI for the notifd notification daemon",
	Long: `notifctl talks to a running notifd daemon and to its history file.

Use it to browse and clear notification history, send test
notifications, and query the daemon.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.Load(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: ~/.config/notifd/config.toml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.historyFile, "history-file", "",
		"Path to history file (default: ~/.local/state/notifd/history.jsonl)")
}

func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// openHistory opens the history store backing file read-write and
// hydrates the retained window.
func openHistory() (*history.Store, error) {
	path := globalOpts.historyFile
	if path == "" {
		path = config.HistoryPath()
	}

	persistence, err := history.NewJSONLPersistence(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}

	store := history.NewStore(cfg.Behavior.HistoryLength, persistence)
	if err := store.Hydrate(); err != nil {
		logger.Warn("failed to hydrate history", "error", err)
	}
	return store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
