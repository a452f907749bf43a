package compositor

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// ZoneFilter is a post-processing pass scoped to a named canvas zone,
// applied after the raw per-script composite.
type ZoneFilter struct {
	Zone string  `yaml:"zone"`
	Dim  float64 `yaml:"dim,omitempty"`  // brightness multiplier, 1 = no-op
	Mask bool    `yaml:"mask,omitempty"` // blank the zone entirely
}

// Compositor merges script layers into the canvas in profile-declared
// order, lowest priority first. All buffers are pre-sized; Compose does
// not allocate in steady state.
type Compositor struct {
	cv  *canvas.Canvas
	log zerolog.Logger

	out      []canvas.Color
	fadeFrom []canvas.Color
	override []canvas.Color

	fading    bool
	fadeTick  int
	fadeTotal int

	overrideArmed bool
	filters       []ZoneFilter
}

func New(cv *canvas.Canvas, log zerolog.Logger) *Compositor {
	n := cv.Len()
	return &Compositor{
		cv:       cv,
		log:      log.With().Str("component", "compositor").Logger(),
		out:      make([]canvas.Color, n),
		fadeFrom: make([]canvas.Color, n),
		override: make([]canvas.Color, n),
	}
}

// SetFilters installs the zone post-processing chain. Unknown zones are
// rejected so a typo surfaces at profile load, not silently per frame.
func (c *Compositor) SetFilters(filters []ZoneFilter) error {
	for _, f := range filters {
		if _, ok := c.cv.Zone(f.Zone); !ok {
			return fmt.Errorf("zone filter references unknown zone %q", f.Zone)
		}
	}
	c.filters = filters
	return nil
}

// BeginFade snapshots the current composite as the outgoing side of a
// crossfade lasting durationTicks. Retargeting mid-fade snapshots the
// blended frame, so switching back converges to the original composite.
func (c *Compositor) BeginFade(durationTicks int) {
	if durationTicks <= 0 {
		c.fading = false
		return
	}
	copy(c.fadeFrom, c.out)
	c.fading = true
	c.fadeTick = 0
	c.fadeTotal = durationTicks
}

// Fading reports whether a crossfade is in progress.
func (c *Compositor) Fading() bool { return c.fading }

// SubmitOverride arms an externally supplied frame that replaces the
// scripted composite for exactly one tick.
func (c *Compositor) SubmitOverride(frame []canvas.Color) error {
	if len(frame) != len(c.override) {
		return fmt.Errorf("override frame has %d cells, canvas has %d", len(frame), len(c.override))
	}
	copy(c.override, frame)
	c.overrideArmed = true
	return nil
}

// Compose produces the frame for this tick: merge layers (or consume a
// pending override), advance any crossfade, run zone filters, then
// publish to the canvas. The returned slice is reused next tick.
func (c *Compositor) Compose(layers [][]canvas.Color) []canvas.Color {
	mode := c.cv.Rounding()

	if c.overrideArmed {
		copy(c.out, c.override)
		c.overrideArmed = false
	} else {
		for i := range c.out {
			c.out[i] = canvas.Color{A: 0xff} // opaque black base
		}
		for _, layer := range layers {
			if layer == nil {
				continue
			}
			canvas.Over(c.out, layer, mode)
		}
	}

	if c.fading {
		c.fadeTick++
		alpha := float64(c.fadeTick) / float64(c.fadeTotal)
		canvas.Mix(c.out, c.fadeFrom, c.out, alpha)
		if c.fadeTick >= c.fadeTotal {
			c.fading = false
		}
	}

	c.applyFilters()

	copy(c.cv.Cells(), c.out)
	return c.out
}

func (c *Compositor) applyFilters() {
	w := c.cv.Width()
	for _, f := range c.filters {
		r, ok := c.cv.Zone(f.Zone)
		if !ok {
			continue
		}
		for y := r.Y; y <= r.Y2; y++ {
			row := y * w
			for x := r.X; x <= r.X2; x++ {
				i := row + x
				if i >= len(c.out) {
					continue
				}
				if f.Mask {
					c.out[i] = canvas.Color{A: 0xff}
					continue
				}
				if f.Dim > 0 && f.Dim < 1 {
					c.out[i] = canvas.Color{
						R: uint8(float64(c.out[i].R) * f.Dim),
						G: uint8(float64(c.out[i].G) * f.Dim),
						B: uint8(float64(c.out[i].B) * f.Dim),
						A: c.out[i].A,
					}
				}
			}
		}
	}
}
