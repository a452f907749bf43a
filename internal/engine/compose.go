package engine

import (
	"sort"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
	"github.com/eruption-project/eruption-sub002/internal/device"
	"github.com/eruption-project/eruption-sub002/internal/sink"
)

// geometry is the immutable canvas shape scripts query. It is swapped
// atomically on reconfiguration so staged profile loads off the hot
// path always see a consistent snapshot.
type geometry struct {
	width, height int
	zones         map[string]canvas.Rect

	// Primary keyboard topology projected into global cell indices.
	numKeys  int
	keyCells [][]int
}

// composition is the result of stacking bound devices onto one canvas:
// each device occupies a band of full-width rows; its own columns are
// the leading cells of each row.
type composition struct {
	cv      *canvas.Canvas
	geo     *geometry
	windows map[string]sink.Window
}

// classRank orders devices on the canvas: keyboards first, then mice,
// misc, serial strips. Stable across runs so cell indices are stable.
func classRank(c device.Class) int {
	switch c {
	case device.ClassKeyboard:
		return 0
	case device.ClassMouse:
		return 1
	case device.ClassSerial:
		return 3
	default:
		return 2
	}
}

// composeDevices builds the unified canvas for the bound device set.
// With no devices attached a virtual keyboard provides the canvas so
// effects keep running headless (and the websocket preview still works).
func composeDevices(devs []*device.Device) (*composition, error) {
	devs = append([]*device.Device(nil), devs...)
	sort.Slice(devs, func(i, j int) bool {
		ri, rj := classRank(devs[i].Info.Class), classRank(devs[j].Info.Class)
		if ri != rj {
			return ri < rj
		}
		return devs[i].Info.Path < devs[j].Info.Path
	})

	virtual := device.Topology{}
	if len(devs) == 0 {
		virtual = device.GenericKeyboard()
	}

	width := virtual.Cols
	height := virtual.Rows
	for _, d := range devs {
		if d.Topology.Cols > width {
			width = d.Topology.Cols
		}
		height += d.Topology.Rows
	}
	if width == 0 || height == 0 {
		width, height = 1, 1
	}

	cv, err := canvas.New(width, height)
	if err != nil {
		return nil, err
	}
	geo := &geometry{
		width:  width,
		height: height,
		zones:  map[string]canvas.Rect{},
	}
	windows := map[string]sink.Window{}

	addTopology := func(t device.Topology, row int, primary bool) {
		for name, r := range t.Zones {
			shifted := canvas.Rect{X: r.X, Y: r.Y + row, X2: r.X2, Y2: r.Y2 + row}
			_ = cv.DefineZone(name, shifted)
			geo.zones[name] = shifted
		}
		if primary && geo.numKeys == 0 && t.NumKeys() > 0 {
			geo.numKeys = t.NumKeys()
			geo.keyCells = make([][]int, t.NumKeys())
			for k := 0; k < t.NumKeys(); k++ {
				local := t.CellsForKey(k)
				cells := make([]int, len(local))
				for n, lc := range local {
					cells[n] = (row+lc/t.Cols)*width + lc%t.Cols
				}
				geo.keyCells[k] = cells
			}
		}
	}

	row := 0
	if len(devs) == 0 {
		addTopology(virtual, 0, true)
		row = virtual.Rows
	}
	for _, d := range devs {
		t := d.Topology
		d.Offset = row * width
		windows[d.Info.Path] = sink.Window{
			StartRow:    row,
			Rows:        t.Rows,
			Cols:        t.Cols,
			CanvasWidth: width,
		}
		addTopology(t, row, d.Info.Class == device.ClassKeyboard)
		row += t.Rows
	}

	all := canvas.Rect{X: 0, Y: 0, X2: width - 1, Y2: height - 1}
	_ = cv.DefineZone("all", all)
	geo.zones["all"] = all

	return &composition{cv: cv, geo: geo, windows: windows}, nil
}
