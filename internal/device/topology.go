package device

import "github.com/eruption-project/eruption-sub002/internal/canvas"

// Topology maps physical key/button indices to device-local canvas cell
// offsets. Some keys drive more than one LED, so the mapping is
// one-to-many. Cell offsets are row-major within the device's grid.
type Topology struct {
	Rows, Cols int

	// KeyCells[i] lists the cell offsets lit by key index i.
	KeyCells [][]int

	// Zones are device-local zone rectangles, merged into the canvas
	// zone table (shifted by the device offset row) at composition.
	Zones map[string]canvas.Rect
}

// CellCount is the number of addressable LED positions.
func (t Topology) CellCount() int { return t.Rows * t.Cols }

// NumKeys is the number of physical key indices.
func (t Topology) NumKeys() int { return len(t.KeyCells) }

// CellsForKey returns the cell offsets for key index i, or nil when the
// index is out of range.
func (t Topology) CellsForKey(i int) []int {
	if i < 0 || i >= len(t.KeyCells) {
		return nil
	}
	return t.KeyCells[i]
}

// GenericKeyboard is a 6x22 per-key RGB keyboard. Most keys drive one
// LED; the enter key drives two (ISO layouts stack its LEDs).
func GenericKeyboard() Topology {
	const rows, cols = 6, 22
	const enterKey = 3*cols - 1 // right edge of the home row
	keys := make([][]int, rows*cols)
	for i := range keys {
		keys[i] = []int{i}
	}
	keys[enterKey] = []int{enterKey, enterKey + cols}
	return Topology{
		Rows:     rows,
		Cols:     cols,
		KeyCells: keys,
		Zones: map[string]canvas.Rect{
			"function_row": {X: 0, Y: 0, X2: cols - 1, Y2: 0},
			"numpad":       {X: cols - 4, Y: 1, X2: cols - 1, Y2: rows - 1},
			"main_area":    {X: 0, Y: 1, X2: cols - 5, Y2: rows - 1},
		},
	}
}

// GenericMouse is an 11-LED mouse: 8 body LEDs plus 3 button LEDs.
func GenericMouse() Topology {
	const leds = 11
	keys := make([][]int, 3)
	for i := range keys {
		keys[i] = []int{8 + i}
	}
	return Topology{
		Rows:     1,
		Cols:     leds,
		KeyCells: keys,
		Zones: map[string]canvas.Rect{
			"mouse_body":    {X: 0, Y: 0, X2: 7, Y2: 0},
			"mouse_buttons": {X: 8, Y: 0, X2: leds - 1, Y2: 0},
		},
	}
}

// Strip is an n-LED addressable strip with no input surface.
func Strip(n int) Topology {
	return Topology{
		Rows: 1,
		Cols: n,
		Zones: map[string]canvas.Rect{
			"strip": {X: 0, Y: 0, X2: n - 1, Y2: 0},
		},
	}
}
