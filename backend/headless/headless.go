// Package headless implements a compositor backend whose outputs are
// framebuffers in memory. Presenting a frame completes after one
// refresh interval, as if the output had a vertical blank at that
// rate.
package headless

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"deedles.dev/wlcomp/compositor"
	"deedles.dev/wlcomp/input"
	"deedles.dev/wlcomp/internal/debug"
	"deedles.dev/wlcomp/loop"
	"deedles.dev/wlcomp/render"
)

// DefaultRefresh is the refresh rate, in Hz, used when none is given.
const DefaultRefresh = 60

type Config struct {
	// Outputs is the geometry of each output in the global coordinate
	// space.
	Outputs []image.Rectangle

	// Refresh is the rate, in Hz, at which frames complete.
	Refresh float64

	// ScreenshotDir is where screenshots are written. It defaults to
	// the current directory.
	ScreenshotDir string

	Renderer *render.Renderer
	Loop     compositor.Loop
	Logger   *slog.Logger
}

type output struct {
	out     *compositor.Output
	vblank  loop.Timer
	frames  int
	pending bool
}

// Backend is a compositor.Backend without any real display hardware.
type Backend struct {
	cfg      Config
	renderer *render.Renderer
	loop     compositor.Loop
	log      *slog.Logger
	interval time.Duration

	comp    *compositor.Compositor
	outputs map[*compositor.Output]*output
	order   []*output
	device  *compositor.InputDevice
	binding *compositor.Binding
}

func New(cfg Config) (*Backend, error) {
	if cfg.Renderer == nil {
		return nil, errors.New("no renderer")
	}
	if cfg.Loop == nil {
		return nil, errors.New("no event loop")
	}
	if len(cfg.Outputs) == 0 {
		return nil, errors.New("no outputs configured")
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}

	return &Backend{
		cfg:      cfg,
		renderer: cfg.Renderer,
		loop:     cfg.Loop,
		log:      debug.Logger(cfg.Logger),
		interval: time.Duration(float64(time.Second) / cfg.Refresh),
		outputs:  make(map[*compositor.Output]*output),
	}, nil
}

// Start creates the configured outputs and an input device in comp,
// which must be the compositor that uses b as its backend. It also
// registers Super+S to save a screenshot of every output.
func (b *Backend) Start(comp *compositor.Compositor) error {
	if b.comp != nil {
		return errors.New("already started")
	}
	b.comp = comp

	for i, r := range b.cfg.Outputs {
		out, err := comp.AddOutput(fmt.Sprintf("headless-%v", i), r, false)
		if err != nil {
			b.Close()
			return fmt.Errorf("add output: %w", err)
		}

		o := output{out: out}
		o.vblank = b.loop.AddTimer(func() { b.finish(&o) })
		b.outputs[out] = &o
		b.order = append(b.order, &o)

		b.log.Info("output added", "output", out, "geometry", out.Bounds(), "refresh", b.cfg.Refresh)
	}

	dev, err := comp.AddInputDevice()
	if err != nil {
		b.Close()
		return fmt.Errorf("add input device: %w", err)
	}
	b.device = dev

	b.binding = comp.AddBinding(input.KeyS, 0, input.ModifierSuper, b.screenshotBinding)

	return nil
}

// Close removes every output that b created.
func (b *Backend) Close() {
	if b.binding != nil {
		b.binding.Destroy()
		b.binding = nil
	}
	for _, o := range b.order {
		o.vblank.Update(0)
		b.renderer.RemoveOutput(o.out)
		b.comp.RemoveOutput(o.out)
	}
	b.order = nil
	clear(b.outputs)
}

// Outputs returns the outputs created by Start.
func (b *Backend) Outputs() []*compositor.Output {
	outs := make([]*compositor.Output, 0, len(b.order))
	for _, o := range b.order {
		outs = append(outs, o.out)
	}
	return outs
}

// InputDevice returns the input device created by Start.
func (b *Backend) InputDevice() *compositor.InputDevice {
	return b.device
}

// Frames returns the number of frames that have been presented on out.
func (b *Backend) Frames(out *compositor.Output) int {
	o, ok := b.outputs[out]
	if !ok {
		return 0
	}
	return o.frames
}

func (b *Backend) output(out *compositor.Output) (*output, error) {
	o, ok := b.outputs[out]
	if !ok {
		return nil, fmt.Errorf("%v is not a headless output", out)
	}
	return o, nil
}

func (b *Backend) PrepareRender(out *compositor.Output) error {
	_, err := b.output(out)
	return err
}

// Present completes the frame after one refresh interval.
func (b *Backend) Present(out *compositor.Output) error {
	o, err := b.output(out)
	if err != nil {
		return err
	}

	o.frames++
	o.pending = true
	o.vblank.Update(b.interval)
	return nil
}

func (b *Backend) finish(o *output) {
	if !o.pending {
		return
	}
	o.pending = false
	b.comp.FinishFrame(o.out, b.comp.Time())
}

// PrepareScanoutSurface always fails, as there is no hardware to scan
// out from.
func (b *Backend) PrepareScanoutSurface(out *compositor.Output, s *compositor.Surface) error {
	return compositor.ErrUnsupported
}

// SetHardwareCursor always fails. The cursor is drawn in software.
func (b *Backend) SetHardwareCursor(out *compositor.Output, dev *compositor.InputDevice) error {
	return compositor.ErrUnsupported
}

// Screenshot writes the current contents of every output to a PNG file
// in the screenshot directory and returns the paths of the files.
func (b *Backend) Screenshot() ([]string, error) {
	stamp := time.Now().Format("20060102-150405.000")

	var paths []string
	var errs []error
	for _, o := range b.order {
		path := filepath.Join(b.cfg.ScreenshotDir, fmt.Sprintf("wlcomp-%v-%v.png", o.out.Name(), stamp))
		err := b.writeScreenshot(path, o.out)
		if err != nil {
			errs = append(errs, fmt.Errorf("screenshot %v: %w", o.out, err))
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

func (b *Backend) writeScreenshot(path string, out *compositor.Output) (err error) {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		cerr := file.Close()
		if err == nil {
			err = cerr
		}
	}()

	return b.renderer.Screenshot(file, out)
}

func (b *Backend) screenshotBinding(dev *compositor.InputDevice, time uint32, key input.Key, button input.Button, pressed bool) {
	if !pressed {
		return
	}

	paths, err := b.Screenshot()
	for _, path := range paths {
		b.log.Info("screenshot saved", "path", path)
	}
	if err != nil {
		b.log.Error("screenshot failed", "err", err)
	}
}
