package device

// EventKind enumerates decoded input events.
type EventKind int

const (
	KeyDown EventKind = iota
	KeyUp
	MouseButtonDown
	MouseButtonUp
	MouseWheel
	MouseMove
	MouseHID
)

func (k EventKind) String() string {
	switch k {
	case KeyDown:
		return "key_down"
	case KeyUp:
		return "key_up"
	case MouseButtonDown:
		return "mouse_button_down"
	case MouseButtonUp:
		return "mouse_button_up"
	case MouseWheel:
		return "mouse_wheel"
	case MouseMove:
		return "mouse_move"
	default:
		return "mouse_hid"
	}
}

// InputEvent is one decoded report, delivered to scripts in arrival order.
type InputEvent struct {
	Kind   EventKind
	Device string

	// Index is the key or button index for key/button events.
	Index int
	// Direction is +1/-1 for wheel events.
	Direction int
	// Dx/Dy/Dz are relative motion deltas for move events.
	Dx, Dy, Dz int
	// Arg carries the payload of vendor HID events.
	Arg int
}
