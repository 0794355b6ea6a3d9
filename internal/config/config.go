// Package config handles daemon configuration: TOML loading, defaults,
// validation, and the on-disk locations for history and cached images.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"

	"github.com/fluxshell/notifd/internal/engine"
)

// appDir is the subdirectory used under every XDG base directory.
const appDir = "notifd"

// Duration is a time.Duration that can be unmarshaled from
// human-readable strings like "5s", "1m", "1h30m", or from integer
// milliseconds. A value of 0 means never expire.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler for TOML parsing.
func (d *Duration) UnmarshalText(text []byte) error {
	s := string(text)

	// Integer milliseconds for backwards compatibility.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		*d = Duration(time.Duration(ms) * time.Millisecond)
		return nil
	}

	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: must be like '5s', '1m', '1h30m' or milliseconds: %w", s, err)
	}
	*d = Duration(dur)
	return nil
}

// MarshalText implements encoding.TextMarshaler for TOML output.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Position represents the notification area's anchor on screen. The
// daemon never positions anything itself; the value is display intent
// passed through to the rendering layer.
type Position string

const (
	PositionTopLeft      Position = "top-left"
	PositionTopRight     Position = "top-right"
	PositionTopCenter    Position = "top-center"
	PositionBottomLeft   Position = "bottom-left"
	PositionBottomRight  Position = "bottom-right"
	PositionBottomCenter Position = "bottom-center"
)

// ValidPositions returns all valid position values.
func ValidPositions() []Position {
	return []Position{
		PositionTopLeft,
		PositionTopRight,
		PositionTopCenter,
		PositionBottomLeft,
		PositionBottomRight,
		PositionBottomCenter,
	}
}

// Config is the daemon configuration, loaded from
// ~/.config/notifd/config.toml.
type Config struct {
	Display  DisplayConfig  `toml:"display"`
	Timeouts TimeoutConfig  `toml:"timeouts"`
	Behavior BehaviorConfig `toml:"behavior"`
	DnD      DnDConfig      `toml:"dnd"`
	Audio    AudioConfig    `toml:"audio"`
}

// DisplayConfig contains display intent handed to the rendering layer.
type DisplayConfig struct {
	Position   string `toml:"position"`    // "top-right", "top-left", etc.
	OffsetX    int    `toml:"offset_x"`    // Pixels from screen edge
	OffsetY    int    `toml:"offset_y"`    // Pixels from screen edge
	Gap        int    `toml:"gap"`         // Gap between stacked notifications
	MaxVisible int    `toml:"max_visible"` // Maximum simultaneous notifications
}

// TimeoutConfig contains per-urgency display durations. Durations can
// be "5s", "10s", "1m", etc. or integer milliseconds; 0 means never
// expire.
type TimeoutConfig struct {
	Low      Duration `toml:"low"`
	Normal   Duration `toml:"normal"`
	Critical Duration `toml:"critical"`
}

// BehaviorConfig contains behavior settings.
type BehaviorConfig struct {
	PauseOnHover  bool `toml:"pause_on_hover"` // Pause timeouts while hovered
	HistoryLength int  `toml:"history_length"` // Max retained history entries
	// ReplaceApps lists apps whose notifications replace each other
	// instead of stacking.
	ReplaceApps []string `toml:"replace_apps"`
}

// DnDConfig contains Do Not Disturb settings.
type DnDConfig struct {
	Enabled        bool `toml:"enabled"`         // Initial state
	CriticalBypass bool `toml:"critical_bypass"` // Show critical even in DnD mode
}

// AudioConfig contains audio settings.
type AudioConfig struct {
	Enabled bool        `toml:"enabled"`
	Volume  int         `toml:"volume"` // 0-100
	Sounds  SoundConfig `toml:"sounds"`
}

// SoundConfig contains per-urgency sound file paths.
type SoundConfig struct {
	Low      string `toml:"low"`
	Normal   string `toml:"normal"`
	Critical string `toml:"critical"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Display: DisplayConfig{
			Position:   string(PositionTopRight),
			OffsetX:    10,
			OffsetY:    10,
			Gap:        5,
			MaxVisible: 5,
		},
		Timeouts: TimeoutConfig{
			Low:      Duration(5 * time.Second),
			Normal:   Duration(10 * time.Second),
			Critical: Duration(0), // Never expires
		},
		Behavior: BehaviorConfig{
			PauseOnHover:  true,
			HistoryLength: 100,
			ReplaceApps:   []string{"Spotify"},
		},
		DnD: DnDConfig{
			Enabled:        false,
			CriticalBypass: true,
		},
		Audio: AudioConfig{
			Enabled: true,
			Volume:  80,
		},
	}
}

// Path returns the config file location.
func Path() string {
	return filepath.Join(xdg.ConfigHome, appDir, "config.toml")
}

// HistoryPath returns the history JSONL file location.
func HistoryPath() string {
	return filepath.Join(xdg.StateHome, appDir, "history.jsonl")
}

// ImageCacheDir returns the directory holding cached icon files.
func ImageCacheDir() string {
	return filepath.Join(xdg.CacheHome, appDir, "images")
}

// EnsureStateDir creates the state directory holding the history file.
func EnsureStateDir() error {
	return os.MkdirAll(filepath.Dir(HistoryPath()), 0700)
}

// Load reads configuration from the given path, or from the default
// location when path is empty. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		path = Path()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Save writes the configuration to the given path atomically, creating
// parent directories as needed.
func (c *Config) Save(path string) error {
	if path == "" {
		path = Path()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	validPos := false
	for _, p := range ValidPositions() {
		if c.Display.Position == string(p) {
			validPos = true
			break
		}
	}
	if !validPos {
		return fmt.Errorf("invalid position %q, must be one of: %v", c.Display.Position, ValidPositions())
	}

	if c.Display.MaxVisible < 1 || c.Display.MaxVisible > 20 {
		return fmt.Errorf("max_visible must be between 1 and 20, got %d", c.Display.MaxVisible)
	}
	if c.Behavior.HistoryLength < 1 {
		return fmt.Errorf("history_length must be positive, got %d", c.Behavior.HistoryLength)
	}
	if c.Audio.Volume < 0 || c.Audio.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", c.Audio.Volume)
	}
	return nil
}

// EngineOptions maps the configuration onto presentation engine
// options.
func (c *Config) EngineOptions() engine.Options {
	return engine.Options{
		MaxVisible: c.Display.MaxVisible,
		Timeouts: engine.TimeoutPolicy{
			Low:      c.Timeouts.Low.Duration(),
			Normal:   c.Timeouts.Normal.Duration(),
			Critical: c.Timeouts.Critical.Duration(),
		},
		PauseOnHover:      c.Behavior.PauseOnHover,
		DoNotDisturb:      c.DnD.Enabled,
		DnDCriticalBypass: c.DnD.CriticalBypass,
		ReplaceApps:       append([]string(nil), c.Behavior.ReplaceApps...),
	}
}

// SoundForUrgency returns the configured sound file for the given
// urgency level, with ~ expanded.
func (c *Config) SoundForUrgency(urgency int) string {
	var path string
	switch urgency {
	case 0:
		path = c.Audio.Sounds.Low
	case 2:
		path = c.Audio.Sounds.Critical
	default:
		path = c.Audio.Sounds.Normal
	}
	return expandPath(path)
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
