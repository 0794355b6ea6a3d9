package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, string(PositionTopRight), cfg.Display.Position)
	assert.Equal(t, 5, cfg.Display.MaxVisible)
	assert.Equal(t, 5*time.Second, cfg.Timeouts.Low.Duration())
	assert.Equal(t, 10*time.Second, cfg.Timeouts.Normal.Duration())
	assert.Equal(t, time.Duration(0), cfg.Timeouts.Critical.Duration())
	assert.True(t, cfg.Behavior.PauseOnHover)
	assert.Equal(t, 100, cfg.Behavior.HistoryLength)
	assert.True(t, cfg.DnD.CriticalBypass)
	assert.False(t, cfg.DnD.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.toml")
	require.NoError(t, err)
	assert.Equal(t, Default().Display.MaxVisible, cfg.Display.MaxVisible)
}

func TestLoadParsesTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[display]
position = "bottom-left"
offset_x = 20
max_visible = 3

[timeouts]
low = "3s"
normal = 8000
critical = "1m"

[behavior]
pause_on_hover = false
history_length = 50
replace_apps = ["Spotify", "mpd"]

[dnd]
enabled = true
critical_bypass = false

[audio]
enabled = true
volume = 40

[audio.sounds]
critical = "/usr/share/sounds/alert.ogg"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bottom-left", cfg.Display.Position)
	assert.Equal(t, 20, cfg.Display.OffsetX)
	assert.Equal(t, 3, cfg.Display.MaxVisible)
	assert.Equal(t, 3*time.Second, cfg.Timeouts.Low.Duration())
	assert.Equal(t, 8*time.Second, cfg.Timeouts.Normal.Duration())
	assert.Equal(t, time.Minute, cfg.Timeouts.Critical.Duration())
	assert.False(t, cfg.Behavior.PauseOnHover)
	assert.Equal(t, 50, cfg.Behavior.HistoryLength)
	assert.Equal(t, []string{"Spotify", "mpd"}, cfg.Behavior.ReplaceApps)
	assert.True(t, cfg.DnD.Enabled)
	assert.False(t, cfg.DnD.CriticalBypass)
	assert.Equal(t, 40, cfg.Audio.Volume)
	assert.Equal(t, "/usr/share/sounds/alert.ogg", cfg.Audio.Sounds.Critical)
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	content := `
[display]
position = "middle"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid position")
}

func TestDurationUnmarshal(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Duration
		wantErr  bool
	}{
		{"duration string", "5s", 5 * time.Second, false},
		{"compound duration", "1h30m", 90 * time.Minute, false},
		{"integer milliseconds", "5000", 5 * time.Second, false},
		{"zero", "0", 0, false},
		{"garbage", "soon", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := d.UnmarshalText([]byte(tt.input))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.Duration())
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Display.MaxVisible = 7
	cfg.Timeouts.Normal = Duration(15 * time.Second)
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Display.MaxVisible)
	assert.Equal(t, 15*time.Second, loaded.Timeouts.Normal.Duration())
}

func TestEngineOptions(t *testing.T) {
	cfg := Default()
	cfg.Display.MaxVisible = 4
	cfg.DnD.Enabled = true

	opts := cfg.EngineOptions()
	assert.Equal(t, 4, opts.MaxVisible)
	assert.Equal(t, 10*time.Second, opts.Timeouts.Normal)
	assert.True(t, opts.DoNotDisturb)
	assert.True(t, opts.DnDCriticalBypass)
	assert.Equal(t, cfg.Behavior.ReplaceApps, opts.ReplaceApps)
}

func TestSoundForUrgency(t *testing.T) {
	cfg := Default()
	cfg.Audio.Sounds = SoundConfig{
		Low:      "/s/low.ogg",
		Normal:   "/s/normal.ogg",
		Critical: "/s/critical.ogg",
	}

	assert.Equal(t, "/s/low.ogg", cfg.SoundForUrgency(0))
	assert.Equal(t, "/s/normal.ogg", cfg.SoundForUrgency(1))
	assert.Equal(t, "/s/critical.ogg", cfg.SoundForUrgency(2))
	// Unknown urgencies fall back to normal.
	assert.Equal(t, "/s/normal.ogg", cfg.SoundForUrgency(9))
}

func TestWatcherReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, Default().Save(path))

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(path, nil, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	require.NoError(t, err)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })

	cfg := Default()
	cfg.Display.MaxVisible = 2
	require.NoError(t, cfg.Save(path))

	select {
	case got := <-reloaded:
		assert.Equal(t, 2, got.Display.MaxVisible)
	case <-time.After(3 * time.Second):
		t.Fatal("config reload callback never fired")
	}
}
