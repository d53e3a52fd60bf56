package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseGeometry(t *testing.T) {
	tests := []struct {
		in   string
		want Geometry
		err  bool
	}{
		{in: "1024x640", want: Geometry{1024, 640}},
		{in: "1x1", want: Geometry{1, 1}},
		{in: "1024", err: true},
		{in: "ax640", err: true},
		{in: "1024xb", err: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			g, err := ParseGeometry(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, g)
			assert.Equal(t, tt.in, g.String())
		})
	}
}

func TestGeometryFlag(t *testing.T) {
	var g Geometry
	require.NoError(t, g.Set("800x600"))
	assert.Equal(t, Geometry{800, 600}, g)
	assert.Equal(t, "WxH", g.Type())
	assert.Error(t, g.Set("800"))
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
background = "/usr/share/backgrounds/default.png"
geometry = "800x600"
outputs = 2
idle_time = 60
cursor_theme = "Adwaita"
debug = true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/usr/share/backgrounds/default.png", cfg.Background)
	assert.Equal(t, Geometry{800, 600}, cfg.Geometry)
	assert.Equal(t, 2, cfg.Outputs)
	assert.Equal(t, time.Minute, cfg.IdleDuration())
	assert.Equal(t, "Adwaita", cfg.CursorTheme)
	assert.True(t, cfg.Debug)

	// Settings missing from the file keep their defaults.
	assert.Equal(t, DefaultCursorSize, cfg.CursorSize)
	assert.Equal(t, float64(DefaultRefresh), cfg.Refresh)
	assert.NoError(t, cfg.Validate())
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", `geometry = `},
		{"bad geometry", `geometry = "big"`},
		{"wrong type", `outputs = "two"`},
		{"unknown key", `colour = "red"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.content)
			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), path)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	assert.Equal(t, filepath.Join(dir, "wlcomp", "config.toml"), DefaultPath())

	cfg, err := LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "wlcomp"), 0755))
	require.NoError(t, os.WriteFile(DefaultPath(), []byte(`socket = "/tmp/wlcomp-test"`), 0644))

	cfg, err = LoadDefault()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/wlcomp-test", cfg.Socket)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		valid  bool
	}{
		{"default", func(*Config) {}, true},
		{"zero idle", func(c *Config) { c.IdleTime = 0 }, true},
		{"zero width", func(c *Config) { c.Geometry.Width = 0 }, false},
		{"negative height", func(c *Config) { c.Geometry.Height = -1 }, false},
		{"no outputs", func(c *Config) { c.Outputs = 0 }, false},
		{"negative idle", func(c *Config) { c.IdleTime = -5 }, false},
		{"zero refresh", func(c *Config) { c.Refresh = 0 }, false},
		{"zero cursor", func(c *Config) { c.CursorSize = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestOutputRects(t *testing.T) {
	cfg := Default()
	cfg.Geometry = Geometry{100, 50}
	cfg.Outputs = 3

	assert.Equal(t, []image.Rectangle{
		image.Rect(0, 0, 100, 50),
		image.Rect(100, 0, 200, 50),
		image.Rect(200, 0, 300, 50),
	}, cfg.OutputRects())
}
