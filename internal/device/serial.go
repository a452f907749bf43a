package device

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"

	"github.com/eruption-project/eruption-sub002/internal/canvas"
)

// SerialConfig describes one string-addressable LED strip driven over
// SPI NRZ encoding (WS2812 class).
type SerialConfig struct {
	Name    string `yaml:"name"`
	Port    string `yaml:"port"` // e.g. /dev/spidev0.0 or a spireg alias
	Count   int    `yaml:"count"`
	SpeedHz int    `yaml:"speed_hz"`
}

// stripOutput feeds an nrzled device; the strip has no input surface.
type stripOutput struct {
	port spi.PortCloser
	dev  *nrzled.Dev
	buf  []byte
}

func openStrip(cfg SerialConfig) (Output, error) {
	if cfg.Count <= 0 {
		return nil, fmt.Errorf("strip %q: invalid LED count %d", cfg.Name, cfg.Count)
	}
	speed := cfg.SpeedHz
	if speed <= 0 {
		speed = 2500000
	}
	port, err := spireg.Open(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Port, err)
	}
	dev, err := nrzled.NewSPI(port, &nrzled.Opts{
		NumPixels: cfg.Count,
		Channels:  3,
		Freq:      physic.Frequency(speed) * physic.Hertz,
	})
	if err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("nrzled %s: %w", cfg.Port, err)
	}
	return &stripOutput{
		port: port,
		dev:  dev,
		buf:  make([]byte, cfg.Count*3),
	}, nil
}

func (s *stripOutput) WriteFrame(cells []canvas.Color) error {
	n := len(s.buf) / 3
	for i := 0; i < n; i++ {
		if i < len(cells) {
			s.buf[i*3+0] = cells[i].R
			s.buf[i*3+1] = cells[i].G
			s.buf[i*3+2] = cells[i].B
		} else {
			s.buf[i*3+0], s.buf[i*3+1], s.buf[i*3+2] = 0, 0, 0
		}
	}
	if _, err := s.dev.Write(s.buf); err != nil {
		return fmt.Errorf("strip write: %w", err)
	}
	return nil
}

func (s *stripOutput) Close() error { return s.port.Close() }
