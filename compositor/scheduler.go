package compositor

import "slices"

// ScheduleRepaint marks every output as needing a repaint and arms the
// repaint timer if it is not already running. It does nothing while
// the compositor is asleep.
func (c *Compositor) ScheduleRepaint() {
	if c.state == StateSleeping {
		return
	}

	for _, out := range c.outputs {
		out.repaintNeeded = true
	}

	if c.repaintScheduled {
		return
	}
	c.repaintTimer.Update(repaintDelay)
	c.repaintScheduled = true
}

// repaint paints and presents every output that needs it and has
// finished presenting its previous frame. Outputs that are still busy
// are retried shortly.
func (c *Compositor) repaint() {
	all := true
	for _, out := range c.outputs {
		if !out.repaintNeeded {
			continue
		}
		if !out.finished {
			all = false
			continue
		}

		c.repaintOutput(out)
		out.finished = false
		out.repaintNeeded = false

		err := c.backend.Present(out)
		if err != nil {
			c.log.Error("present failed", "output", out, "err", err)
			out.finished = true
		}
	}

	if all {
		c.repaintScheduled = false
		return
	}
	c.repaintTimer.Update(retryDelay)
}

// FinishFrame is called by the backend once the last frame presented
// on out is visible. msecs is the presentation time.
func (c *Compositor) FinishFrame(out *Output, msecs uint32) {
	for _, id := range c.paint {
		s := c.surfaces.get(id)
		if (s == nil) || (s.output != out) || (s.client == nil) {
			continue
		}
		s.client.Frame(s, msecs)
	}

	out.finished = true

	c.repaintTimer.Update(finishDelay)
	c.repaintScheduled = true

	for _, a := range slices.Clone(c.animations) {
		if a.active {
			a.Frame(a, out, msecs)
		}
	}
}
