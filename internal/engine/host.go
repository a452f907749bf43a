package engine

import (
	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// host adapts the engine into the curated script API surface. All reads
// go through atomics or immutable snapshots so staged script loads off
// the hot path never race the render loop.
type host struct {
	e *Engine
}

func (h host) CanvasSize() (int, int) {
	g := h.e.geo.Load()
	return g.width, g.height
}

func (h host) Zones() map[string]canvas.Rect {
	return h.e.geo.Load().zones
}

func (h host) NumKeys() int {
	return h.e.geo.Load().numKeys
}

func (h host) KeyCells(index int) []int {
	g := h.e.geo.Load()
	if index < 0 || index >= len(g.keyCells) {
		return nil
	}
	return g.keyCells[index]
}

func (h host) KeyState(index int) bool {
	if index < 0 || index >= len(h.e.keys) {
		return false
	}
	return h.e.keys[index].Load()
}

func (h host) AudioLevel() float64 { return h.e.store.AudioLevel() }

func (h host) AudioSpectrum(bucket int) float64 { return h.e.store.AudioSpectrum(bucket) }

func (h host) Temperature() float64 { return h.e.store.Temperature() }

func (h host) MouseDelta() (int, int, int) {
	return int(h.e.mouseDx.Load()), int(h.e.mouseDy.Load()), int(h.e.mouseDz.Load())
}
