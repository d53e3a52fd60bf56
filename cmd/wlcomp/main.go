// Command wlcomp runs the compositor on a set of in-memory outputs and
// serves clients on a Wayland-style socket.
package main

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"syscall"
	"time"

	"deedles.dev/wlcomp/backend/headless"
	"deedles.dev/wlcomp/compositor"
	"deedles.dev/wlcomp/config"
	"deedles.dev/wlcomp/cursor"
	"deedles.dev/wlcomp/loop"
	"deedles.dev/wlcomp/render"
	"deedles.dev/wlcomp/server"
	"deedles.dev/wlcomp/wire"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// flags holds the command-line settings. Only flags that were given
// explicitly override the configuration file.
type flags struct {
	File string
	config.Config
}

func main() {
	var f flags

	rootCmd := &cobra.Command{
		Use:   "wlcomp [flags]",
		Short: "A small compositor with in-memory outputs",
		Long: `wlcomp composites the surfaces of its clients onto one or more
in-memory outputs. Clients connect over a Unix socket in XDG_RUNTIME_DIR.

Settings are read from $XDG_CONFIG_HOME/wlcomp/config.toml, if it exists,
and then overridden by any flags given.`,
		Example: `  # Run with a background image
  wlcomp -b ~/Pictures/wallpaper.png

  # Two 800x600 outputs side by side, fading after a minute
  wlcomp -g 800x600 --outputs 2 -i 60`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	defaults := config.Default()
	f.Geometry = defaults.Geometry
	fl := rootCmd.Flags()
	fl.StringVar(&f.File, "config", "", "configuration file (default $XDG_CONFIG_HOME/wlcomp/config.toml)")
	fl.StringVarP(&f.Background, "background", "b", "", "background image")
	fl.VarP(&f.Geometry, "geometry", "g", "output size")
	fl.StringVarP(&f.Socket, "socket", "S", "", "socket path (default first free wayland-N)")
	fl.IntVarP(&f.IdleTime, "idle-time", "i", defaults.IdleTime, "seconds without input before fading out")
	fl.StringVar(&f.CursorTheme, "cursor-theme", "", "XCursor theme name")
	fl.IntVar(&f.CursorSize, "cursor-size", defaults.CursorSize, "nominal cursor size")
	fl.IntVar(&f.Outputs, "outputs", defaults.Outputs, "number of outputs")
	fl.Float64Var(&f.Refresh, "refresh", defaults.Refresh, "output refresh rate in Hz")
	fl.StringVar(&f.ScreenshotDir, "screenshot-dir", "", "directory for Super+S screenshots")
	fl.BoolVarP(&f.Debug, "debug", "d", false, "enable debug logging")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "wlcomp: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies the flags that
// were set on top of it.
func loadConfig(cmd *cobra.Command, f flags) (config.Config, error) {
	var cfg config.Config
	var err error
	if f.File != "" {
		cfg, err = config.Load(f.File)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		return config.Config{}, err
	}

	fl := cmd.Flags()
	override := func(name string, apply func()) {
		if fl.Changed(name) {
			apply()
		}
	}
	override("background", func() { cfg.Background = f.Background })
	override("geometry", func() { cfg.Geometry = f.Geometry })
	override("socket", func() { cfg.Socket = f.Socket })
	override("idle-time", func() { cfg.IdleTime = f.IdleTime })
	override("cursor-theme", func() { cfg.CursorTheme = f.CursorTheme })
	override("cursor-size", func() { cfg.CursorSize = f.CursorSize })
	override("outputs", func() { cfg.Outputs = f.Outputs })
	override("refresh", func() { cfg.Refresh = f.Refresh })
	override("screenshot-dir", func() { cfg.ScreenshotDir = f.ScreenshotDir })
	override("debug", func() { cfg.Debug = f.Debug })

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	}))
}

func loadBackground(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open background: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("decode background %v: %w", path, err)
	}
	return img, nil
}

func loadPointerImages(cfg config.Config, log *slog.Logger) []compositor.PointerImage {
	types := compositor.PointerTypes()
	names := make([]string, 0, len(types))
	for _, t := range types {
		names = append(names, t.String())
	}

	images := cursor.Load(cfg.CursorTheme, cfg.CursorSize, names, log)
	pointers := make([]compositor.PointerImage, len(images))
	for i, img := range images {
		if img == nil {
			continue
		}
		pointers[i] = compositor.PointerImage{
			Image:   img.Image,
			Hotspot: img.Hotspot(),
		}
	}
	return pointers
}

func run(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg)
	slog.SetDefault(log)

	var background image.Image
	if cfg.Background != "" {
		img, err := loadBackground(cfg.Background)
		if err != nil {
			return err
		}
		background = img
	}

	l := loop.New(log)
	renderer := render.New(log)

	backend, err := headless.New(headless.Config{
		Outputs:       cfg.OutputRects(),
		Refresh:       cfg.Refresh,
		ScreenshotDir: cfg.ScreenshotDir,
		Renderer:      renderer,
		Loop:          l,
		Logger:        log,
	})
	if err != nil {
		return fmt.Errorf("create backend: %w", err)
	}

	comp, err := compositor.New(compositor.Config{
		Backend:       backend,
		Renderer:      renderer,
		Loop:          l,
		Logger:        log,
		IdleTime:      cfg.IdleDuration(),
		Background:    background,
		PointerImages: loadPointerImages(cfg, log),
	})
	if err != nil {
		return fmt.Errorf("create compositor: %w", err)
	}
	defer comp.Close()

	err = backend.Start(comp)
	if err != nil {
		return fmt.Errorf("start backend: %w", err)
	}
	defer backend.Close()

	srv := server.New(comp, l, log)
	defer srv.Close()
	for _, out := range backend.Outputs() {
		srv.AddOutput(out)
	}
	srv.AddInputDevice(backend.InputDevice())

	socket := cfg.Socket
	if socket == "" {
		socket, err = wire.NewSocketPath()
		if err != nil {
			return fmt.Errorf("find socket path: %w", err)
		}
	}
	err = srv.ListenAndServe(socket)
	if err != nil {
		return err
	}

	for _, sig := range []os.Signal{syscall.SIGINT, syscall.SIGTERM} {
		l.AddSignal(sig, func() {
			log.Info("terminating", "signal", sig)
			l.Terminate()
		})
	}

	err = l.Run(ctx)
	if err != nil {
		return fmt.Errorf("run event loop: %w", err)
	}
	return nil
}
