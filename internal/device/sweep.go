package device

import "github.com/eruption-project/eruption-sub002/internal/canvas"

// Hardware verification sweeps, driven through the canvas-override path
// so they bypass scripted compositing.

type SweepKind string

const (
	SweepIndex    SweepKind = "index_sweep"
	SweepChannels SweepKind = "rgb_channels"
	SweepRows     SweepKind = "row_sweep"
)

// Sweep generates one verification frame per step.
type Sweep struct {
	kind SweepKind
	step int
}

func NewSweep(kind SweepKind) *Sweep { return &Sweep{kind: kind} }

func (s *Sweep) Kind() SweepKind { return s.kind }

// Step fills cells with the next frame; returns false when the sweep is
// complete. width is the canvas row width for row sweeps.
func (s *Sweep) Step(cells []canvas.Color, width int) bool {
	for i := range cells {
		cells[i] = canvas.Transparent
	}
	n := len(cells)

	switch s.kind {
	case SweepIndex:
		if s.step >= n {
			return false
		}
		cells[s.step] = canvas.RGB(255, 255, 255)
	case SweepChannels:
		if s.step >= 3 {
			return false
		}
		var c canvas.Color
		switch s.step {
		case 0:
			c = canvas.RGB(255, 0, 0)
		case 1:
			c = canvas.RGB(0, 255, 0)
		case 2:
			c = canvas.RGB(0, 0, 255)
		}
		for i := range cells {
			cells[i] = c
		}
	case SweepRows:
		if width <= 0 {
			width = n
		}
		rows := (n + width - 1) / width
		if s.step >= rows {
			return false
		}
		for i := s.step * width; i < (s.step+1)*width && i < n; i++ {
			cells[i] = canvas.RGB(0, 255, 255)
		}
	default:
		return false
	}
	s.step++
	return true
}
