package device

import "github.com/eruption-project/eruption-sub002/internal/canvas"

// Codec serializes device-local cells into vendor wire reports. Each
// binding owns its own layout; nothing here is standardized.
type Codec interface {
	// EncodeFrame appends the frame's reports to dst and returns it.
	// Reports are reused across frames; callers must not retain them.
	EncodeFrame(dst [][]byte, cells []canvas.Color) [][]byte
}

// DecodeFunc turns one raw input report into zero or more events.
type DecodeFunc func(report []byte) []InputEvent

// keyboardCodec chunks per-key RGB triples into fixed-size feature
// reports: [reportID, chunkIndex, 20 * RGB].
type keyboardCodec struct {
	reportID byte
	chunks   [][]byte
}

const keysPerChunk = 20

func newKeyboardCodec(reportID byte) *keyboardCodec {
	return &keyboardCodec{reportID: reportID}
}

func (c *keyboardCodec) EncodeFrame(dst [][]byte, cells []canvas.Color) [][]byte {
	nChunks := (len(cells) + keysPerChunk - 1) / keysPerChunk
	for len(c.chunks) < nChunks {
		c.chunks = append(c.chunks, make([]byte, 2+keysPerChunk*3))
	}
	for ci := 0; ci < nChunks; ci++ {
		buf := c.chunks[ci]
		buf[0] = c.reportID
		buf[1] = byte(ci)
		for k := 0; k < keysPerChunk; k++ {
			i := ci*keysPerChunk + k
			off := 2 + k*3
			if i < len(cells) {
				buf[off+0] = cells[i].R
				buf[off+1] = cells[i].G
				buf[off+2] = cells[i].B
			} else {
				buf[off+0], buf[off+1], buf[off+2] = 0, 0, 0
			}
		}
		dst = append(dst, buf)
	}
	return dst
}

// mouseCodec emits a single report carrying all LEDs.
type mouseCodec struct {
	reportID byte
	buf      []byte
}

func newMouseCodec(reportID byte) *mouseCodec { return &mouseCodec{reportID: reportID} }

func (c *mouseCodec) EncodeFrame(dst [][]byte, cells []canvas.Color) [][]byte {
	need := 1 + len(cells)*3
	if len(c.buf) < need {
		c.buf = make([]byte, need)
	}
	buf := c.buf[:need]
	buf[0] = c.reportID
	for i, cell := range cells {
		buf[1+i*3+0] = cell.R
		buf[1+i*3+1] = cell.G
		buf[1+i*3+2] = cell.B
	}
	return append(dst, buf)
}

// Input report layouts for the generic bindings:
//
//	keyboard: [0x01, keyIndex, state]
//	mouse:    [0x02, sub, args...]  sub 0=button 1=wheel 2=move 3=vendor

func decodeGenericKeyboard(report []byte) []InputEvent {
	if len(report) < 3 || report[0] != 0x01 {
		return nil
	}
	kind := KeyUp
	if report[2] != 0 {
		kind = KeyDown
	}
	return []InputEvent{{Kind: kind, Index: int(report[1])}}
}

func decodeGenericMouse(report []byte) []InputEvent {
	if len(report) < 2 || report[0] != 0x02 {
		return nil
	}
	switch report[1] {
	case 0x00: // button
		if len(report) < 4 {
			return nil
		}
		kind := MouseButtonUp
		if report[3] != 0 {
			kind = MouseButtonDown
		}
		return []InputEvent{{Kind: kind, Index: int(report[2])}}
	case 0x01: // wheel
		if len(report) < 3 {
			return nil
		}
		dir := 1
		if int8(report[2]) < 0 {
			dir = -1
		}
		return []InputEvent{{Kind: MouseWheel, Direction: dir}}
	case 0x02: // relative motion
		if len(report) < 5 {
			return nil
		}
		return []InputEvent{{
			Kind: MouseMove,
			Dx:   int(int8(report[2])),
			Dy:   int(int8(report[3])),
			Dz:   int(int8(report[4])),
		}}
	case 0x03: // vendor HID event
		if len(report) < 4 {
			return nil
		}
		return []InputEvent{{Kind: MouseHID, Index: int(report[2]), Arg: int(int8(report[3]))}}
	}
	return nil
}
