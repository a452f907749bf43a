package device

import (
	"testing"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

func TestGenericKeyboardTopology(t *testing.T) {
	kb := GenericKeyboard()
	if kb.CellCount() != 6*22 {
		t.Fatalf("cell count: %d", kb.CellCount())
	}
	if kb.NumKeys() != 6*22 {
		t.Fatalf("key count: %d", kb.NumKeys())
	}
	// Most keys drive one LED.
	if cells := kb.CellsForKey(0); len(cells) != 1 || cells[0] != 0 {
		t.Fatalf("key 0 cells: %#v", cells)
	}
	// The enter key drives two vertically stacked LEDs.
	enter := 3*22 - 1
	cells := kb.CellsForKey(enter)
	if len(cells) != 2 || cells[1]-cells[0] != 22 {
		t.Fatalf("enter key cells: %#v", cells)
	}
	if kb.CellsForKey(-1) != nil || kb.CellsForKey(kb.NumKeys()) != nil {
		t.Fatal("out-of-range keys must return nil")
	}
	for _, name := range []string{"function_row", "numpad", "main_area"} {
		if _, ok := kb.Zones[name]; !ok {
			t.Fatalf("missing zone %q", name)
		}
	}
}

func TestGenericMouseTopology(t *testing.T) {
	m := GenericMouse()
	if m.CellCount() != 11 {
		t.Fatalf("cell count: %d", m.CellCount())
	}
	if m.NumKeys() != 3 {
		t.Fatalf("button count: %d", m.NumKeys())
	}
	if cells := m.CellsForKey(0); cells[0] != 8 {
		t.Fatalf("button 0 should map past the body LEDs: %#v", cells)
	}
}

func TestStripTopology(t *testing.T) {
	s := Strip(144)
	if s.CellCount() != 144 || s.NumKeys() != 0 {
		t.Fatalf("strip: %d cells, %d keys", s.CellCount(), s.NumKeys())
	}
	if z := s.Zones["strip"]; z.X2 != 143 {
		t.Fatalf("strip zone: %#v", z)
	}
}

func TestKeyboardCodecChunks(t *testing.T) {
	c := newKeyboardCodec(0x0f)
	cells := make([]canvas.Color, 42) // 3 chunks: 20 + 20 + 2
	cells[0] = canvas.RGB(1, 2, 3)
	cells[41] = canvas.RGB(7, 8, 9)

	reports := c.EncodeFrame(nil, cells)
	if len(reports) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(reports))
	}
	for i, r := range reports {
		if len(r) != 2+keysPerChunk*3 {
			t.Fatalf("chunk %d length: %d", i, len(r))
		}
		if r[0] != 0x0f || r[1] != byte(i) {
			t.Fatalf("chunk %d header: % x", i, r[:2])
		}
	}
	if reports[0][2] != 1 || reports[0][3] != 2 || reports[0][4] != 3 {
		t.Fatalf("cell 0 payload: % x", reports[0][2:5])
	}
	// Cell 41 is the second key of the last chunk.
	off := 2 + 1*3
	if reports[2][off] != 7 || reports[2][off+1] != 8 || reports[2][off+2] != 9 {
		t.Fatalf("cell 41 payload: % x", reports[2][off:off+3])
	}
	// Unused tail keys must be zeroed.
	if reports[2][off+3] != 0 {
		t.Fatal("padding keys must be black")
	}
}

func TestMouseCodecSingleReport(t *testing.T) {
	c := newMouseCodec(0x10)
	cells := []canvas.Color{canvas.RGB(10, 20, 30), canvas.RGB(40, 50, 60)}
	reports := c.EncodeFrame(nil, cells)
	if len(reports) != 1 {
		t.Fatalf("expected 1 report, got %d", len(reports))
	}
	r := reports[0]
	if r[0] != 0x10 || len(r) != 1+2*3 {
		t.Fatalf("report shape: % x", r)
	}
	if r[4] != 40 || r[5] != 50 || r[6] != 60 {
		t.Fatalf("cell 1 payload: % x", r[4:7])
	}
}

func TestDecodeGenericKeyboard(t *testing.T) {
	evs := decodeGenericKeyboard([]byte{0x01, 17, 1})
	if len(evs) != 1 || evs[0].Kind != KeyDown || evs[0].Index != 17 {
		t.Fatalf("key down: %#v", evs)
	}
	evs = decodeGenericKeyboard([]byte{0x01, 17, 0})
	if len(evs) != 1 || evs[0].Kind != KeyUp {
		t.Fatalf("key up: %#v", evs)
	}
	if decodeGenericKeyboard([]byte{0x02, 1, 1}) != nil {
		t.Fatal("wrong report id must be ignored")
	}
	if decodeGenericKeyboard([]byte{0x01}) != nil {
		t.Fatal("truncated report must be ignored")
	}
}

func TestDecodeGenericMouse(t *testing.T) {
	evs := decodeGenericMouse([]byte{0x02, 0x00, 2, 1})
	if len(evs) != 1 || evs[0].Kind != MouseButtonDown || evs[0].Index != 2 {
		t.Fatalf("button: %#v", evs)
	}
	evs = decodeGenericMouse([]byte{0x02, 0x01, 0xff}) // -1
	if len(evs) != 1 || evs[0].Kind != MouseWheel || evs[0].Direction != -1 {
		t.Fatalf("wheel: %#v", evs)
	}
	evs = decodeGenericMouse([]byte{0x02, 0x02, 5, 0xfe, 0}) // dx=5 dy=-2
	if len(evs) != 1 || evs[0].Kind != MouseMove || evs[0].Dx != 5 || evs[0].Dy != -2 {
		t.Fatalf("move: %#v", evs)
	}
	evs = decodeGenericMouse([]byte{0x02, 0x03, 4, 7})
	if len(evs) != 1 || evs[0].Kind != MouseHID || evs[0].Index != 4 || evs[0].Arg != 7 {
		t.Fatalf("vendor: %#v", evs)
	}
	if decodeGenericMouse([]byte{0x02, 0x09}) != nil {
		t.Fatal("unknown subtype must be ignored")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	b, ok := r.Lookup(0x1e7d, 0x3098)
	if !ok || b.Class != ClassKeyboard {
		t.Fatalf("keyboard binding: %#v ok=%v", b, ok)
	}
	b, ok = r.Lookup(0x1e7d, 0x2e27)
	if !ok || b.Class != ClassMouse {
		t.Fatalf("mouse binding: %#v ok=%v", b, ok)
	}
	if _, ok := r.Lookup(0xdead, 0xbeef); ok {
		t.Fatal("unknown id must miss")
	}

	r.Register(0xdead, 0xbeef, Binding{Name: "custom", Class: ClassMisc})
	if b, ok := r.Lookup(0xdead, 0xbeef); !ok || b.Name != "custom" {
		t.Fatalf("registered binding: %#v", b)
	}
	if len(r.Names()) != 3 {
		t.Fatalf("names: %#v", r.Names())
	}
}

func TestSweepIndex(t *testing.T) {
	s := NewSweep(SweepIndex)
	cells := make([]canvas.Color, 3)
	for i := 0; i < 3; i++ {
		if !s.Step(cells, 3) {
			t.Fatalf("sweep ended early at step %d", i)
		}
		for j := range cells {
			want := canvas.Transparent
			if j == i {
				want = canvas.RGB(255, 255, 255)
			}
			if cells[j] != want {
				t.Fatalf("step %d cell %d: %#v", i, j, cells[j])
			}
		}
	}
	if s.Step(cells, 3) {
		t.Fatal("sweep must terminate")
	}
}

func TestSweepChannels(t *testing.T) {
	s := NewSweep(SweepChannels)
	cells := make([]canvas.Color, 2)
	want := []canvas.Color{canvas.RGB(255, 0, 0), canvas.RGB(0, 255, 0), canvas.RGB(0, 0, 255)}
	for _, c := range want {
		if !s.Step(cells, 2) {
			t.Fatal("sweep ended early")
		}
		if cells[0] != c {
			t.Fatalf("expected %#v, got %#v", c, cells[0])
		}
	}
	if s.Step(cells, 2) {
		t.Fatal("sweep must terminate after three channels")
	}
}

func TestSweepRows(t *testing.T) {
	s := NewSweep(SweepRows)
	cells := make([]canvas.Color, 6)
	steps := 0
	for s.Step(cells, 3) {
		steps++
		if steps > 10 {
			t.Fatal("row sweep runaway")
		}
	}
	if steps != 2 {
		t.Fatalf("expected 2 row steps, got %d", steps)
	}
}

func TestDeviceNilTransport(t *testing.T) {
	d := &Device{Info: Info{Path: "virtual"}, Topology: GenericKeyboard()}
	if err := d.WriteFrame(make([]canvas.Color, d.CellCount())); err != nil {
		t.Fatalf("nil output should no-op: %v", err)
	}
	if evs := d.PollInput(); evs != nil {
		t.Fatalf("nil input should poll empty: %#v", evs)
	}
	if err := d.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
