package audio

import (
	"log/slog"
	"os"
	"sync"

	"github.com/fluxshell/notifd/internal/config"
	"github.com/fluxshell/notifd/internal/model"
)

// Manager maps notifications onto sounds: per-urgency defaults from
// the configuration, overridable per notification by a sound-file
// hint, suppressible entirely.
type Manager struct {
	mu     sync.RWMutex
	logger *slog.Logger
	player *Player

	enabled bool
	// Urgency to sound path mapping.
	sounds map[int]string
}

// NewManager creates an audio manager from the given configuration.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		logger: logger,
		player: NewPlayer(logger),
		sounds: make(map[int]string),
	}
	m.Reload(cfg)
	return m
}

// Reload applies a new configuration: volume, enablement, and the
// per-urgency sound set. The decode cache is dropped so changed files
// are re-read.
func (m *Manager) Reload(cfg *config.Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cfg == nil {
		return
	}

	m.enabled = cfg.Audio.Enabled
	m.player.SetVolume(float64(cfg.Audio.Volume) / 100.0)
	m.player.ClearCache()

	m.sounds = make(map[int]string)
	for _, urgency := range []int{model.UrgencyLow, model.UrgencyNormal, model.UrgencyCritical} {
		path := cfg.SoundForUrgency(urgency)
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			m.logger.Warn("sound file not found", "urgency", urgency, "path", path)
			continue
		}
		m.sounds[urgency] = path
	}
}

// Preload decodes every configured sound ahead of time.
func (m *Manager) Preload() {
	m.mu.RLock()
	paths := make([]string, 0, len(m.sounds))
	for _, path := range m.sounds {
		paths = append(paths, path)
	}
	m.mu.RUnlock()

	for _, path := range paths {
		if err := m.player.Preload(path); err != nil {
			m.logger.Warn("failed to preload sound", "path", path, "error", err)
		}
	}
}

// soundFor resolves the sound to play: an explicit file hint wins over
// the per-urgency default.
func (m *Manager) soundFor(urgency int, soundFile string) string {
	if soundFile != "" {
		return soundFile
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sounds[urgency]
}

// PlayFor plays the sound for a delivered notification. Playback
// happens on a separate goroutine so the caller never waits on the
// audio device.
func (m *Manager) PlayFor(urgency int, soundFile string, suppress bool) {
	m.mu.RLock()
	enabled := m.enabled
	m.mu.RUnlock()

	if !enabled || suppress {
		return
	}

	path := m.soundFor(urgency, soundFile)
	if path == "" {
		return
	}

	go func() {
		if err := m.player.Play(path); err != nil {
			m.logger.Debug("sound playback failed", "path", path, "error", err)
		}
	}()
}

// Close releases the player.
func (m *Manager) Close() {
	m.player.Close()
}
