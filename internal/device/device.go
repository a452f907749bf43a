package device

import (
	"errors"
	"fmt"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// Class partitions devices by the input/LED surface they expose.
type Class int

const (
	ClassKeyboard Class = iota
	ClassMouse
	ClassMisc
	ClassSerial
)

func (c Class) String() string {
	switch c {
	case ClassKeyboard:
		return "keyboard"
	case ClassMouse:
		return "mouse"
	case ClassSerial:
		return "serial"
	default:
		return "misc"
	}
}

var (
	// ErrDeviceBusy is returned by Bind when the device node is already
	// owned by this or another process.
	ErrDeviceBusy = errors.New("device busy")
	// ErrUnsupportedDevice is returned by Bind when no registry entry
	// matches the device's vendor/product identifier.
	ErrUnsupportedDevice = errors.New("unsupported device")
)

// Info describes an enumerated but not yet bound device.
type Info struct {
	VendorID  uint16
	ProductID uint16
	Class     Class
	Path      string
	Name      string
}

func (i Info) String() string {
	return fmt.Sprintf("%04x:%04x %s (%s)", i.VendorID, i.ProductID, i.Name, i.Path)
}

// Output pushes a composited frame slice to the hardware.
type Output interface {
	// WriteFrame serializes the device's cells into its wire format and
	// writes with a bounded timeout.
	WriteFrame(cells []canvas.Color) error
	Close() error
}

// Input drains pending input reports without blocking.
type Input interface {
	Poll() []InputEvent
}

// Device is a bound peripheral: transport plus topology plus codec.
type Device struct {
	Info     Info
	Topology Topology

	// Offset is the device's first cell in the global canvas, assigned
	// when the canvas is composed at startup or on hotplug.
	Offset int

	out Output
	in  Input
}

// WriteFrame pushes the device-local cell window to hardware.
func (d *Device) WriteFrame(cells []canvas.Color) error {
	if d.out == nil {
		return nil
	}
	return d.out.WriteFrame(cells)
}

// PollInput returns any input events that arrived since the last poll.
// Events carry the device path so the scheduler can attribute them.
func (d *Device) PollInput() []InputEvent {
	if d.in == nil {
		return nil
	}
	evs := d.in.Poll()
	for i := range evs {
		evs[i].Device = d.Info.Path
	}
	return evs
}

// CellCount is the number of canvas cells the device occupies.
func (d *Device) CellCount() int { return d.Topology.CellCount() }

func (d *Device) Close() error {
	if d.out == nil {
		return nil
	}
	return d.out.Close()
}
