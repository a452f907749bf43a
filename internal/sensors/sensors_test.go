package sensors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fixedAudio struct {
	level float64
}

func (f fixedAudio) Sample() (float64, [SpectrumBuckets]float64) {
	var s [SpectrumBuckets]float64
	for i := range s {
		s[i] = f.level / 2
	}
	return f.level, s
}

type fixedThermal struct {
	temp float64
	err  error
}

func (f fixedThermal) ReadTemp() (float64, error) { return f.temp, f.err }

func TestStoreDefaults(t *testing.T) {
	s := NewStore()
	if s.AudioLevel() != 0 || s.Temperature() != 0 {
		t.Fatalf("fresh store must read zero: %f %f", s.AudioLevel(), s.Temperature())
	}
	if s.AudioSpectrum(-1) != 0 || s.AudioSpectrum(SpectrumBuckets) != 0 {
		t.Fatal("out-of-range buckets must read zero")
	}
}

func TestFeedUpdatesStore(t *testing.T) {
	s := NewStore()
	f := NewFeed(s, fixedAudio{level: 0.75}, fixedThermal{temp: 55.5}, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	go f.Run(ctx)
	defer cancel()

	deadline := time.After(time.Second)
	for s.AudioLevel() != 0.75 || s.Temperature() != 55.5 {
		select {
		case <-deadline:
			t.Fatalf("store never updated: level=%f temp=%f", s.AudioLevel(), s.Temperature())
		case <-time.After(time.Millisecond):
		}
	}
	if s.AudioSpectrum(0) != 0.375 {
		t.Fatalf("spectrum bucket wrong: %f", s.AudioSpectrum(0))
	}
}

func TestFeedKeepsLastTempOnError(t *testing.T) {
	s := NewStore()
	f := NewFeed(s, nil, fixedThermal{err: errors.New("no zone")}, time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	f.Run(ctx)

	if s.Temperature() != 0 {
		t.Fatalf("failed reads must not corrupt the store: %f", s.Temperature())
	}
}

func TestSimAudioBounds(t *testing.T) {
	sim := &SimAudio{}
	for i := 0; i < 500; i++ {
		level, spectrum := sim.Sample()
		if level < 0 {
			t.Fatalf("negative level: %f", level)
		}
		for b, v := range spectrum {
			if v < 0 || v > 1 {
				t.Fatalf("bucket %d out of range: %f", b, v)
			}
		}
	}
}
