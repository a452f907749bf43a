//go:build !linux

package sensors

import "errors"

// SysfsThermal is unavailable off linux; readings fail and the store
// keeps its last value.
type SysfsThermal struct {
	Path string
}

func NewSysfsThermal(path string) *SysfsThermal { return &SysfsThermal{Path: path} }

func (t *SysfsThermal) ReadTemp() (float64, error) {
	return 0, errors.New("thermal zones not available on this platform")
}
