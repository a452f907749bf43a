package sensors

import (
	"context"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// SpectrumBuckets is the number of audio spectrum bands exposed to
// scripts.
const SpectrumBuckets = 16

type audioSnapshot struct {
	level    float64
	spectrum [SpectrumBuckets]float64
}

// Store holds the latest sensor values. Writers are worker goroutines;
// the render loop reads via atomic snapshots, never shared mutable state.
type Store struct {
	audio atomic.Pointer[audioSnapshot]
	temp  atomic.Uint64
}

func NewStore() *Store {
	s := &Store{}
	s.audio.Store(&audioSnapshot{})
	return s
}

// AudioLevel is the current overall level in [0,1].
func (s *Store) AudioLevel() float64 { return s.audio.Load().level }

// AudioSpectrum returns one spectrum bucket in [0,1]; out-of-range
// buckets read 0.
func (s *Store) AudioSpectrum(bucket int) float64 {
	if bucket < 0 || bucket >= SpectrumBuckets {
		return 0
	}
	return s.audio.Load().spectrum[bucket]
}

// Temperature is the last sampled system temperature in Celsius.
func (s *Store) Temperature() float64 {
	return math.Float64frombits(s.temp.Load())
}

// AudioSource supplies level and spectrum samples.
type AudioSource interface {
	Sample() (level float64, spectrum [SpectrumBuckets]float64)
}

// ThermalSource supplies a temperature reading.
type ThermalSource interface {
	ReadTemp() (float64, error)
}

// Feed periodically samples the sources into the store.
type Feed struct {
	store    *Store
	audio    AudioSource
	thermal  ThermalSource
	interval time.Duration
	log      zerolog.Logger
}

func NewFeed(store *Store, audio AudioSource, thermal ThermalSource, interval time.Duration, log zerolog.Logger) *Feed {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	return &Feed{
		store:    store,
		audio:    audio,
		thermal:  thermal,
		interval: interval,
		log:      log.With().Str("component", "sensors").Logger(),
	}
}

// Run samples until the context is cancelled.
func (f *Feed) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	tempEvery := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if f.audio != nil {
				level, spectrum := f.audio.Sample()
				f.store.audio.Store(&audioSnapshot{level: level, spectrum: spectrum})
			}
			// Thermal changes slowly; sample every ~20th iteration.
			if f.thermal != nil {
				if tempEvery == 0 {
					if t, err := f.thermal.ReadTemp(); err == nil {
						f.store.temp.Store(math.Float64bits(t))
					} else {
						f.log.Debug().Err(err).Msg("thermal read")
					}
				}
				tempEvery = (tempEvery + 1) % 20
			}
		}
	}
}

// SimAudio synthesizes a plausible decaying band profile, used when no
// capture source is attached.
type SimAudio struct {
	phase float64
}

func (s *SimAudio) Sample() (float64, [SpectrumBuckets]float64) {
	s.phase += 0.07
	var spectrum [SpectrumBuckets]float64
	level := 0.4 + 0.35*math.Sin(s.phase)
	if level < 0 {
		level = 0
	}
	for i := range spectrum {
		falloff := 1.0 - float64(i)/float64(SpectrumBuckets)
		v := level * falloff * (0.75 + 0.25*math.Sin(s.phase*1.7+float64(i)))
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		spectrum[i] = v
	}
	return level, spectrum
}
