package canvas

import (
	"fmt"
	"math"
)

// Color is one canvas cell. Alpha is the blend weight used by the
// compositor; 255 is fully opaque.
type Color struct {
	R, G, B, A uint8
}

// Transparent is the zero Color; compositing it over anything is a no-op.
var Transparent = Color{}

// RGB returns an opaque color.
func RGB(r, g, b uint8) Color { return Color{R: r, G: g, B: b, A: 0xff} }

// PackARGB packs a color into the 0xAARRGGBB layout used by the script API.
func PackARGB(c Color) uint32 {
	return uint32(c.A)<<24 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

// UnpackARGB is the inverse of PackARGB.
func UnpackARGB(v uint32) Color {
	return Color{
		A: uint8(v >> 24),
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}
}

// Rounding selects how float channel values are converted back to 8 bit
// after a blend.
type Rounding int

const (
	RoundNearest Rounding = iota
	RoundFloor
)

// Rect is a zone rectangle in canvas grid coordinates, inclusive on all
// edges.
type Rect struct {
	X, Y, X2, Y2 int
}

// Contains reports whether the grid cell (x,y) lies inside the rect.
func (r Rect) Contains(x, y int) bool {
	return x >= r.X && x <= r.X2 && y >= r.Y && y <= r.Y2
}

// Canvas is the unified pixel buffer spanning all bound devices, laid out
// row-major on a fixed-width grid. Exactly one compositor writes it.
type Canvas struct {
	cells    []Color
	width    int
	height   int
	zones    map[string]Rect
	rounding Rounding
}

// New allocates a canvas of width*height cells.
func New(width, height int) (*Canvas, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid canvas dimensions %dx%d", width, height)
	}
	return &Canvas{
		cells:  make([]Color, width*height),
		width:  width,
		height: height,
		zones:  map[string]Rect{},
	}, nil
}

func (c *Canvas) Len() int    { return len(c.cells) }
func (c *Canvas) Width() int  { return c.width }
func (c *Canvas) Height() int { return c.height }

// Cells exposes the backing buffer for the compositor's final write.
func (c *Canvas) Cells() []Color { return c.cells }

// SetRounding selects the channel rounding used by Over on this canvas.
func (c *Canvas) SetRounding(r Rounding) { c.rounding = r }

func (c *Canvas) Rounding() Rounding { return c.rounding }

// Fill sets every cell to col.
func (c *Canvas) Fill(col Color) {
	for i := range c.cells {
		c.cells[i] = col
	}
}

// Set writes one cell; out-of-range indices are ignored.
func (c *Canvas) Set(i int, col Color) {
	if i >= 0 && i < len(c.cells) {
		c.cells[i] = col
	}
}

// Get reads one cell; out-of-range indices read transparent.
func (c *Canvas) Get(i int) Color {
	if i >= 0 && i < len(c.cells) {
		return c.cells[i]
	}
	return Transparent
}

// DefineZone registers a named rectangular zone. Zones may overlap.
func (c *Canvas) DefineZone(name string, r Rect) error {
	if name == "" {
		return fmt.Errorf("zone name must not be empty")
	}
	if r.X < 0 || r.Y < 0 || r.X2 >= c.width || r.Y2 >= c.height || r.X > r.X2 || r.Y > r.Y2 {
		return fmt.Errorf("zone %q out of bounds for %dx%d canvas", name, c.width, c.height)
	}
	c.zones[name] = r
	return nil
}

// Zone looks up a named zone.
func (c *Canvas) Zone(name string) (Rect, bool) {
	r, ok := c.zones[name]
	return r, ok
}

// Zones returns a copy of the zone table.
func (c *Canvas) Zones() map[string]Rect {
	out := make(map[string]Rect, len(c.zones))
	for k, v := range c.zones {
		out[k] = v
	}
	return out
}

// OverCell blends src over dst using standard "over" alpha compositing,
// evaluated in floating point and quantized back to 8 bit per mode.
func OverCell(dst, src Color, mode Rounding) Color {
	if src.A == 0 {
		return dst
	}
	if src.A == 0xff {
		return src
	}
	sa := float64(src.A) / 255.0
	da := float64(dst.A) / 255.0
	oa := sa + da*(1-sa)
	return Color{
		R: quant(float64(src.R)*sa+float64(dst.R)*(1-sa), mode),
		G: quant(float64(src.G)*sa+float64(dst.G)*(1-sa), mode),
		B: quant(float64(src.B)*sa+float64(dst.B)*(1-sa), mode),
		A: quant(oa*255.0, mode),
	}
}

// Over composites src over dst in place, cell by cell in canonical order.
// Buffers must be the same length.
func Over(dst, src []Color, mode Rounding) {
	n := len(dst)
	if len(src) < n {
		n = len(src)
	}
	for i := 0; i < n; i++ {
		dst[i] = OverCell(dst[i], src[i], mode)
	}
}

// Mix writes a linear crossfade of a and b into dst; alpha 0 is all a,
// alpha 1 is all b. Used for profile switch fades.
func Mix(dst, a, b []Color, alpha float64) {
	if alpha <= 0 {
		copy(dst, a)
		return
	}
	if alpha >= 1 {
		copy(dst, b)
		return
	}
	af := 1.0 - alpha
	for i := range dst {
		dst[i] = Color{
			R: quant(float64(a[i].R)*af+float64(b[i].R)*alpha, RoundNearest),
			G: quant(float64(a[i].G)*af+float64(b[i].G)*alpha, RoundNearest),
			B: quant(float64(a[i].B)*af+float64(b[i].B)*alpha, RoundNearest),
			A: quant(float64(a[i].A)*af+float64(b[i].A)*alpha, RoundNearest),
		}
	}
}

func quant(v float64, mode Rounding) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	if mode == RoundFloor {
		return uint8(v)
	}
	return uint8(math.Round(v))
}
