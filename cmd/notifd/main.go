// Package main is the entry point for the notifd notification daemon.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluxshell/notifd/internal/audio"
	"github.com/fluxshell/notifd/internal/config"
	"github.com/fluxshell/notifd/internal/dbus"
	"github.com/fluxshell/notifd/internal/engine"
	"github.com/fluxshell/notifd/internal/history"
	"github.com/fluxshell/notifd/internal/imagecache"
	"github.com/fluxshell/notifd/internal/model"
)

// Build-time variables (set via ldflags).
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file (default: ~/.config/notifd/config.toml)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("notifd version", version)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	if err := run(logger, *configPath); err != nil {
		logger.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, configPath string) error {
	logger.Info("starting notifd", "version", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// History store with JSONL persistence.
	if err := config.EnsureStateDir(); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	persistence, err := history.NewJSONLPersistence(config.HistoryPath())
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	histStore := history.NewStore(cfg.Behavior.HistoryLength, persistence)
	if err := histStore.Hydrate(); err != nil {
		logger.Warn("failed to hydrate history", "error", err)
	}
	logger.Info("history store initialized",
		"path", config.HistoryPath(), "entries", histStore.Len())

	// Image cache for inline icons.
	cache, err := imagecache.New(config.ImageCacheDir(), logger)
	if err != nil {
		return fmt.Errorf("failed to create image cache: %w", err)
	}

	// The D-Bus server is both the inbound source and the engine's
	// outbound sink.
	server := dbus.NewServer(logger)

	eng := engine.New(logger, cache, histStore, server, newLogRenderer(logger), cfg.EngineOptions())
	eng.Start()
	server.SetEngine(eng)

	// Startup is the one safe moment to drop icon files nothing owns:
	// the engine has re-adopted every history-referenced file by now.
	if err := cache.Sweep(); err != nil {
		logger.Warn("image cache sweep failed", "error", err)
	}

	audioMgr := audio.NewManager(cfg, logger)
	audioMgr.Preload()
	server.SetObserver(func(n *dbus.Notification) {
		urgency := model.UrgencyNormal
		if u := n.Urgency(); u != nil {
			urgency = *u
		}
		audioMgr.PlayFor(urgency, n.SoundFile(), n.SuppressSound())
	})

	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start D-Bus server: %w", err)
	}

	// Hot reload: engine options and audio follow the config file.
	// The history capacity applies on the next restart.
	watcher, err := config.NewWatcher(configPath, logger, func(next *config.Config) {
		if err := eng.SetOptions(next.EngineOptions()); err != nil {
			logger.Warn("failed to apply engine options", "error", err)
		}
		audioMgr.Reload(next)
		audioMgr.Preload()
	})
	if err != nil {
		logger.Warn("config watcher unavailable", "error", err)
	} else if err := watcher.Start(); err != nil {
		logger.Warn("failed to start config watcher", "error", err)
	}

	logger.Info("notifd ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	// Active records are abandoned, not retired: clients of a dying
	// daemon get no synthetic close events.
	if err := eng.Reset(); err != nil {
		logger.Warn("failed to reset presentation state", "error", err)
	}

	if watcher != nil {
		_ = watcher.Stop()
	}
	if err := server.Stop(); err != nil {
		logger.Warn("failed to stop D-Bus server", "error", err)
	}
	eng.Stop()
	audioMgr.Close()
	if err := histStore.Close(); err != nil {
		logger.Warn("failed to close history store", "error", err)
	}

	logger.Info("notifd stopped")
	return nil
}
