package device

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
)

// Manager owns enumeration, binding and hotplug bookkeeping. Bound
// devices are keyed by device node path.
type Manager struct {
	reg *Registry
	log zerolog.Logger

	mu     sync.Mutex
	bound  map[string]*Device
	serial []SerialConfig
}

func NewManager(reg *Registry, log zerolog.Logger) *Manager {
	return &Manager{
		reg:   reg,
		log:   log.With().Str("component", "devices").Logger(),
		bound: map[string]*Device{},
	}
}

// AddSerial registers a configured strip; serial strips are not
// discoverable and come from configuration only.
func (m *Manager) AddSerial(cfg SerialConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serial = append(m.serial, cfg)
}

// Enumerate lists attachable devices: hidraw scan plus configured strips.
func (m *Manager) Enumerate() []Info {
	out := enumerateHID()
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.serial {
		out = append(out, Info{Class: ClassSerial, Path: s.Port, Name: s.Name})
	}
	return out
}

// Bind opens a device and attaches its topology and codec. Fails with
// ErrDeviceBusy when the path is already bound and ErrUnsupportedDevice
// when no registry entry matches.
func (m *Manager) Bind(info Info) (*Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bound[info.Path]; ok {
		return nil, fmt.Errorf("%s: %w", info.Path, ErrDeviceBusy)
	}

	var dev *Device
	if info.Class == ClassSerial {
		cfg, ok := m.serialByPort(info.Path)
		if !ok {
			return nil, fmt.Errorf("%s: %w", info.Path, ErrUnsupportedDevice)
		}
		out, err := openStrip(cfg)
		if err != nil {
			return nil, err
		}
		dev = &Device{Info: info, Topology: Strip(cfg.Count), out: out}
	} else {
		b, ok := m.reg.Lookup(info.VendorID, info.ProductID)
		if !ok {
			return nil, fmt.Errorf("%s: %w", info, ErrUnsupportedDevice)
		}
		out, in, err := openHID(info, b)
		if err != nil {
			return nil, err
		}
		info.Class = b.Class
		if info.Name == "" {
			info.Name = b.Name
		}
		dev = &Device{Info: info, Topology: b.Topology, out: out, in: in}
	}

	m.bound[info.Path] = dev
	m.log.Info().Str("path", info.Path).Str("class", dev.Info.Class.String()).
		Int("cells", dev.CellCount()).Msg("device bound")
	return dev, nil
}

// Adopt registers an already constructed device, bypassing enumeration.
// Sim devices come in through here.
func (m *Manager) Adopt(d *Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bound[d.Info.Path]; ok {
		return fmt.Errorf("%s: %w", d.Info.Path, ErrDeviceBusy)
	}
	m.bound[d.Info.Path] = d
	return nil
}

// Unbind closes and forgets a device (hotplug remove or shutdown).
func (m *Manager) Unbind(path string) {
	m.mu.Lock()
	dev, ok := m.bound[path]
	delete(m.bound, path)
	m.mu.Unlock()
	if ok {
		if err := dev.Close(); err != nil {
			m.log.Warn().Err(err).Str("path", path).Msg("device close")
		}
		m.log.Info().Str("path", path).Msg("device unbound")
	}
}

// Bound snapshots the currently bound devices.
func (m *Manager) Bound() []*Device {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Device, 0, len(m.bound))
	for _, d := range m.bound {
		out = append(out, d)
	}
	return out
}

func (m *Manager) serialByPort(port string) (SerialConfig, bool) {
	for _, s := range m.serial {
		if s.Port == port {
			return s, true
		}
	}
	return SerialConfig{}, false
}
