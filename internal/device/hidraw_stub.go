//go:build !linux

package device

import "fmt"

func openHID(info Info, b Binding) (Output, Input, error) {
	return nil, nil, fmt.Errorf("%s: hidraw not available on this platform: %w", info.Path, ErrUnsupportedDevice)
}

func enumerateHID() []Info { return nil }
