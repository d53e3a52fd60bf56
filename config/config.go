// Package config holds the startup settings of the compositor and
// loads them from a TOML file.
package config

import (
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	DefaultWidth      = 1024
	DefaultHeight     = 640
	DefaultIdleTime   = 300
	DefaultCursorSize = 24
	DefaultRefresh    = 60
)

// Geometry is the size of an output. Its text form is "WxH".
type Geometry struct {
	Width, Height int
}

// ParseGeometry parses a string of the form "WxH".
func ParseGeometry(str string) (Geometry, error) {
	w, h, ok := strings.Cut(str, "x")
	if !ok {
		return Geometry{}, fmt.Errorf("geometry %q is not of the form WxH", str)
	}

	width, err := strconv.Atoi(w)
	if err != nil {
		return Geometry{}, fmt.Errorf("parse width: %w", err)
	}
	height, err := strconv.Atoi(h)
	if err != nil {
		return Geometry{}, fmt.Errorf("parse height: %w", err)
	}

	return Geometry{Width: width, Height: height}, nil
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d", g.Width, g.Height)
}

func (g Geometry) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

func (g *Geometry) UnmarshalText(text []byte) error {
	p, err := ParseGeometry(string(text))
	if err != nil {
		return err
	}
	*g = p
	return nil
}

// Set and Type let a Geometry be used directly as a command-line flag.
func (g *Geometry) Set(str string) error {
	return g.UnmarshalText([]byte(str))
}

func (g *Geometry) Type() string {
	return "WxH"
}

// Config is the full set of startup settings.
type Config struct {
	// Background is the path of an image drawn behind every surface.
	Background string `toml:"background"`

	// Geometry is the size of each output.
	Geometry Geometry `toml:"geometry"`

	// Outputs is the number of outputs, placed side by side.
	Outputs int `toml:"outputs"`

	// Refresh is the rate, in Hz, at which outputs complete frames.
	Refresh float64 `toml:"refresh"`

	// Socket is the path of the listening socket. If it is empty, the
	// first free wayland-N socket in XDG_RUNTIME_DIR is used.
	Socket string `toml:"socket"`

	// IdleTime is the number of seconds without input before the
	// outputs fade to black.
	IdleTime int `toml:"idle_time"`

	CursorTheme string `toml:"cursor_theme"`
	CursorSize  int    `toml:"cursor_size"`

	ScreenshotDir string `toml:"screenshot_dir"`

	Debug bool `toml:"debug"`
}

// Default returns the settings used when nothing else is specified.
func Default() Config {
	return Config{
		Geometry:   Geometry{Width: DefaultWidth, Height: DefaultHeight},
		Outputs:    1,
		Refresh:    DefaultRefresh,
		IdleTime:   DefaultIdleTime,
		CursorSize: DefaultCursorSize,
	}
}

// DefaultPath returns the path of the configuration file in the user's
// configuration directory.
func DefaultPath() string {
	dir, ok := os.LookupEnv("XDG_CONFIG_HOME")
	if !ok || (dir == "") {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "wlcomp", "config.toml")
}

// Load reads the file at path on top of the defaults. Keys in the file
// that do not match a setting are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("parsing %s: unknown setting %q", path, undecoded[0].String())
	}
	return cfg, nil
}

// LoadDefault loads the file at DefaultPath. It returns the defaults if
// the file does not exist.
func LoadDefault() (Config, error) {
	path := DefaultPath()
	_, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return Load(path)
}

// Validate reports the first setting that the compositor cannot run
// with.
func (cfg Config) Validate() error {
	if (cfg.Geometry.Width <= 0) || (cfg.Geometry.Height <= 0) {
		return fmt.Errorf("invalid geometry %v", cfg.Geometry)
	}
	if cfg.Outputs <= 0 {
		return fmt.Errorf("invalid number of outputs %v", cfg.Outputs)
	}
	if cfg.IdleTime < 0 {
		return fmt.Errorf("invalid idle time %v", cfg.IdleTime)
	}
	if cfg.Refresh <= 0 {
		return fmt.Errorf("invalid refresh rate %v", cfg.Refresh)
	}
	if cfg.CursorSize <= 0 {
		return fmt.Errorf("invalid cursor size %v", cfg.CursorSize)
	}
	return nil
}

// IdleDuration returns IdleTime as a time.Duration.
func (cfg Config) IdleDuration() time.Duration {
	return time.Duration(cfg.IdleTime) * time.Second
}

// OutputRects returns the rectangle of each output. Outputs are laid
// out left to right starting at the origin.
func (cfg Config) OutputRects() []image.Rectangle {
	rects := make([]image.Rectangle, 0, cfg.Outputs)
	for i := 0; i < cfg.Outputs; i++ {
		x := i * cfg.Geometry.Width
		rects = append(rects, image.Rect(x, 0, x+cfg.Geometry.Width, cfg.Geometry.Height))
	}
	return rects
}
