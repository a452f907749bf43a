//go:build linux

package device

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// Raw hidraw access via the character device, no external deps. Reads and
// writes are bounded by short deadlines so one wedged device cannot stall
// the pipeline.

const (
	hidWriteTimeout  = 50 * time.Millisecond
	hidReadTimeout   = 2 * time.Millisecond
	maxEventsPerPoll = 250
)

type hidDevice struct {
	f       *os.File
	codec   Codec
	decode  DecodeFunc
	reports [][]byte
	readBuf []byte
}

func openHID(info Info, b Binding) (Output, Input, error) {
	f, err := os.OpenFile(info.Path, os.O_RDWR, 0)
	if err != nil {
		if errors.Is(err, syscall.EBUSY) {
			return nil, nil, fmt.Errorf("%s: %w", info.Path, ErrDeviceBusy)
		}
		return nil, nil, fmt.Errorf("open %s: %w", info.Path, err)
	}
	d := &hidDevice{
		f:       f,
		codec:   b.NewCodec(),
		decode:  b.Decode,
		readBuf: make([]byte, 64),
	}
	return d, d, nil
}

func (d *hidDevice) WriteFrame(cells []canvas.Color) error {
	d.reports = d.codec.EncodeFrame(d.reports[:0], cells)
	deadline := time.Now().Add(hidWriteTimeout)
	if err := d.f.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	for _, rep := range d.reports {
		if _, err := d.f.Write(rep); err != nil {
			return fmt.Errorf("hidraw write: %w", err)
		}
	}
	return nil
}

func (d *hidDevice) Poll() []InputEvent {
	var out []InputEvent
	_ = d.f.SetReadDeadline(time.Now().Add(hidReadTimeout))
	for len(out) < maxEventsPerPoll {
		n, err := d.f.Read(d.readBuf)
		if err != nil || n == 0 {
			break
		}
		if d.decode != nil {
			out = append(out, d.decode(d.readBuf[:n])...)
		}
	}
	return out
}

func (d *hidDevice) Close() error { return d.f.Close() }

// enumerateHID scans /sys/class/hidraw for device nodes and parses the
// HID_ID / HID_NAME uevent fields.
func enumerateHID() []Info {
	entries, err := filepath.Glob("/sys/class/hidraw/hidraw*")
	if err != nil {
		return nil
	}
	var out []Info
	for _, dir := range entries {
		b, err := os.ReadFile(filepath.Join(dir, "device", "uevent"))
		if err != nil {
			continue
		}
		info := Info{Path: "/dev/" + filepath.Base(dir), Class: ClassMisc}
		for _, line := range strings.Split(string(b), "\n") {
			switch {
			case strings.HasPrefix(line, "HID_ID="):
				// HID_ID=0003:0000VVVV:0000PPPP
				parts := strings.Split(strings.TrimPrefix(line, "HID_ID="), ":")
				if len(parts) == 3 {
					if v, err := strconv.ParseUint(parts[1], 16, 32); err == nil {
						info.VendorID = uint16(v)
					}
					if p, err := strconv.ParseUint(parts[2], 16, 32); err == nil {
						info.ProductID = uint16(p)
					}
				}
			case strings.HasPrefix(line, "HID_NAME="):
				info.Name = strings.TrimPrefix(line, "HID_NAME=")
			}
		}
		out = append(out, info)
	}
	return out
}
