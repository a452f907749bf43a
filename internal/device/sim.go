package device

import (
	"sync"
	"sync/atomic"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// Sim is an in-memory output standing in for hardware: frames land in a
// snapshot buffer instead of a device node. Used for headless preview
// setups and tests.
type Sim struct {
	mu     sync.Mutex
	last   []canvas.Color
	writes atomic.Uint64
}

func (s *Sim) WriteFrame(cells []canvas.Color) error {
	s.mu.Lock()
	s.last = append(s.last[:0], cells...)
	s.mu.Unlock()
	s.writes.Add(1)
	return nil
}

func (s *Sim) Close() error { return nil }

// LastFrame is a copy of the most recently written frame.
func (s *Sim) LastFrame() []canvas.Color {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]canvas.Color, len(s.last))
	copy(out, s.last)
	return out
}

// Writes is the total number of frames written.
func (s *Sim) Writes() uint64 { return s.writes.Load() }

// NewSim builds a bound virtual device over a Sim output.
func NewSim(info Info, t Topology) (*Device, *Sim) {
	sim := &Sim{}
	return &Device{Info: info, Topology: t, out: sim}, sim
}
