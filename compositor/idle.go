package compositor

import "deedles.dev/wlcomp/tween"

// Wake cancels any fade to black and restarts the idle timer. It does
// nothing while something inhibits idling, since the idle timer cannot
// fire then anyway.
func (c *Compositor) Wake() {
	if c.idleInhibit > 0 {
		return
	}

	c.state = StateActive
	c.Fade(0)

	c.idleTimer.Update(c.idleTime)
}

// IdleInhibit prevents the compositor from going to sleep until a
// matching call to IdleRelease.
func (c *Compositor) IdleInhibit() {
	c.Wake()
	c.idleInhibit++
}

// IdleRelease undoes a call to IdleInhibit.
func (c *Compositor) IdleRelease() {
	if c.idleInhibit > 0 {
		c.idleInhibit--
	}
	c.Wake()
}

func (c *Compositor) idleHandler() {
	if c.idleInhibit > 0 {
		return
	}

	c.log.Debug("idle timeout, fading out")
	c.Fade(1)
}

// Fade starts animating the fade tint towards tint, where 0 is fully
// visible and 1 is fully faded out.
func (c *Compositor) Fade(tint float64) {
	done := c.fade.tweener.Done()
	c.fade.tweener.Target = tint
	if c.fade.tweener.Done() {
		return
	}

	if done {
		c.fade.tweener.Timestamp = c.Time()
	}

	c.DamageAll()
	c.AddAnimation(c.fade.animation)
}

// FadeTweener returns the state of the fade animation.
func (c *Compositor) FadeTweener() tween.Tweener {
	return c.fade.tweener
}

func (c *Compositor) fadeFrame(a *Animation, out *Output, msecs uint32) {
	t := &c.fade.tweener
	t.Update(msecs)
	if t.Done() {
		if t.Current > 0.999 {
			c.state = StateSleeping
			c.log.Info("faded out, sleeping")
			c.shell.Lock()
		}
		t.Current = t.Target
		c.RemoveAnimation(a)
	}

	out.Damage()
}
