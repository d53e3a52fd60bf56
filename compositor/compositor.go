// Package compositor implements the core of a display server: the
// surface registry and its map-state machine, the damage-driven repaint
// scheduler and compositing pass, and input focus, grab and idle
// handling.
//
// A Compositor is not safe for concurrent use. Every method must be
// called from the goroutine running the event loop that owns its
// timers.
package compositor

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math/rand/v2"
	"slices"
	"time"

	"deedles.dev/wlcomp/input"
	"deedles.dev/wlcomp/internal/debug"
	"deedles.dev/wlcomp/internal/set"
	"deedles.dev/wlcomp/loop"
	"deedles.dev/wlcomp/region"
	"deedles.dev/wlcomp/tween"
	"golang.org/x/image/colornames"
)

var (
	// ErrUnsupported is returned by backends and renderers for optional
	// capabilities that they lack.
	ErrUnsupported = errors.New("unsupported")

	// ErrNoOutputs is returned when an operation needs an output but
	// none exist.
	ErrNoOutputs = errors.New("no outputs")

	// ErrStaleSurface is returned when a SurfaceID refers to a surface
	// that has been destroyed.
	ErrStaleSurface = errors.New("surface no longer exists")
)

const (
	// DefaultIdleTime is how long the compositor waits without input
	// before fading out.
	DefaultIdleTime = 300 * time.Second

	repaintDelay = time.Millisecond
	retryDelay   = time.Millisecond
	finishDelay  = 5 * time.Millisecond

	fadeK       = 0.8
	fadeEpsilon = 0.001
)

// State is the compositor's power state.
type State int

const (
	StateActive State = iota
	StateSleeping
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateSleeping:
		return "sleeping"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// PointerImage is a pointer sprite and the offset of its active
// point.
type PointerImage struct {
	Image   image.Image
	Hotspot image.Point
}

// Config holds the collaborators and settings of a Compositor.
type Config struct {
	Backend  Backend
	Renderer Renderer
	Loop     Loop

	// Shell is optional.
	Shell Shell

	// Logger defaults to a logger that discards everything.
	Logger *slog.Logger

	// IdleTime defaults to DefaultIdleTime.
	IdleTime time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time

	// Background, if not nil, is scaled to fill every output.
	Background image.Image

	// FadeColor defaults to black.
	FadeColor color.Color

	// PointerImages is indexed by PointerType. Missing entries leave
	// the pointer invisible when that type is selected.
	PointerImages []PointerImage

	// Rand picks default surface positions. It defaults to the global
	// source.
	Rand *rand.Rand
}

// Compositor is the process-wide compositor state.
type Compositor struct {
	backend  Backend
	renderer Renderer
	shell    Shell
	loop     Loop
	log      *slog.Logger
	clock    func() time.Time
	epoch    time.Time
	rand     *rand.Rand

	surfaces    arena
	paint       []SurfaceID
	overlay     SurfaceID
	attachments map[Buffer]set.Set[SurfaceID]

	outputs    []*Output
	devices    []*InputDevice
	bindings   []*Binding
	animations []*Animation

	damage region.Region

	state       State
	focus       bool
	idleInhibit int
	idleTime    time.Duration
	idleTimer   loop.Timer

	repaintTimer     loop.Timer
	repaintScheduled bool

	fade struct {
		tweener   tween.Tweener
		animation *Animation
		color     color.Color
	}

	background     *Sprite
	pointerSprites []*Sprite
}

// New creates a compositor. Startup failures, such as a renderer that
// cannot hold the pointer images, are returned as errors.
func New(cfg Config) (*Compositor, error) {
	if cfg.Backend == nil {
		return nil, errors.New("no backend")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("no renderer")
	}
	if cfg.Loop == nil {
		return nil, errors.New("no event loop")
	}

	c := Compositor{
		backend:     cfg.Backend,
		renderer:    cfg.Renderer,
		shell:       cfg.Shell,
		loop:        cfg.Loop,
		log:         cfg.Logger,
		clock:       cfg.Clock,
		rand:        cfg.Rand,
		idleTime:    cfg.IdleTime,
		attachments: make(map[Buffer]set.Set[SurfaceID]),
	}
	if c.shell == nil {
		c.shell = nopShell{}
	}
	c.log = debug.Logger(c.log)
	if c.clock == nil {
		c.clock = time.Now
	}
	c.epoch = c.clock()
	if c.idleTime <= 0 {
		c.idleTime = DefaultIdleTime
	}

	c.fade.tweener = tween.New(fadeK, 0, 0)
	c.fade.animation = &Animation{Frame: c.fadeFrame}
	c.fade.color = cfg.FadeColor
	if c.fade.color == nil {
		c.fade.color = colornames.Black
	}

	if cfg.Background != nil {
		bg, err := c.newSprite(cfg.Background, image.Point{})
		if err != nil {
			return nil, fmt.Errorf("create background: %w", err)
		}
		c.background = bg
	}

	c.pointerSprites = make([]*Sprite, numPointerTypes)
	for i, img := range cfg.PointerImages {
		if (i >= len(c.pointerSprites)) || (img.Image == nil) {
			continue
		}
		sprite, err := c.newSprite(img.Image, img.Hotspot)
		if err != nil {
			return nil, fmt.Errorf("create %v pointer sprite: %w", PointerType(i), err)
		}
		c.pointerSprites[i] = sprite
	}

	c.AddBinding(input.KeyBackspace, 0, input.ModifierCtrl|input.ModifierAlt, c.terminateBinding)

	c.idleTimer = c.loop.AddTimer(c.idleHandler)
	c.idleTimer.Update(c.idleTime)

	c.repaintTimer = c.loop.AddTimer(c.repaint)
	c.ScheduleRepaint()

	return &c, nil
}

// Close releases every resource held by the compositor. Surfaces owned
// by clients are expected to have been destroyed already.
func (c *Compositor) Close() {
	for _, dev := range c.devices {
		c.destroySurface(c.surfaces.get(dev.sprite))
	}
	for _, out := range c.outputs {
		c.destroySurface(c.surfaces.get(out.background))
	}
	c.devices = nil
	c.outputs = nil

	// Destroying surfaces damages the screen, so the timers are
	// disarmed only once nothing else can arm them.
	c.idleTimer.Update(0)
	c.repaintTimer.Update(0)

	if c.background != nil {
		c.renderer.DestroyTexture(c.background.Texture)
	}
	for _, sprite := range c.pointerSprites {
		if sprite != nil {
			c.renderer.DestroyTexture(sprite.Texture)
		}
	}
}

// Time returns the milliseconds since the compositor was created,
// truncated to 32 bits as used by input and frame events. It follows
// the monotonic clock, so changes to the wall clock do not affect it.
func (c *Compositor) Time() uint32 {
	return uint32(c.clock().Sub(c.epoch).Milliseconds())
}

// Logger returns the compositor's logger.
func (c *Compositor) Logger() *slog.Logger {
	return c.log
}

// State returns the compositor's power state.
func (c *Compositor) State() State {
	return c.state
}

// IdleInhibitCount returns the number of outstanding idle inhibitors,
// such as held keys and buttons.
func (c *Compositor) IdleInhibitCount() int {
	return c.idleInhibit
}

// Focused reports whether the compositor's window or seat currently has
// pointer focus, which is required for cursors to be drawn.
func (c *Compositor) Focused() bool {
	return c.focus
}

// Damage returns the damage that has not yet been repainted.
func (c *Compositor) Damage() region.Region {
	return c.damage
}

// DamageRect adds r to the damaged area and schedules a repaint.
func (c *Compositor) DamageRect(r image.Rectangle) {
	c.damage = c.damage.UnionRect(r)
	c.ScheduleRepaint()
}

// DamageAll damages every output.
func (c *Compositor) DamageAll() {
	for _, out := range c.outputs {
		out.Damage()
	}
}

// Terminate stops the event loop.
func (c *Compositor) Terminate() {
	c.loop.Terminate()
}

func (c *Compositor) terminateBinding(dev *InputDevice, time uint32, key input.Key, button input.Button, pressed bool) {
	if pressed {
		c.log.Info("terminate binding pressed")
		c.Terminate()
	}
}

// Animation is called on every finished frame of every output while it
// is registered.
type Animation struct {
	Frame func(a *Animation, out *Output, msecs uint32)

	active bool
}

// AddAnimation registers a. Adding an animation that is already
// registered has no effect.
func (c *Compositor) AddAnimation(a *Animation) {
	if a.active {
		return
	}
	a.active = true
	c.animations = append(c.animations, a)
}

// RemoveAnimation unregisters a.
func (c *Compositor) RemoveAnimation(a *Animation) {
	if !a.active {
		return
	}
	a.active = false
	c.animations = slices.DeleteFunc(c.animations, func(v *Animation) bool { return v == a })
}

// Animating reports whether a is registered.
func (a *Animation) Animating() bool {
	return a.active
}

type nopShell struct{}

func (nopShell) Lock()           {}
func (nopShell) Attach(*Surface) {}
func (nopShell) Map(*Surface)    {}
