package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/host/v3"

	"github.com/eruption-project/eruption-sub002/internal/config"
	"github.com/eruption-project/eruption-sub002/internal/control"
	"github.com/eruption-project/eruption-sub002/internal/device"
	"github.com/eruption-project/eruption-sub002/internal/engine"
	"github.com/eruption-project/eruption-sub002/internal/profile"
	"github.com/eruption-project/eruption-sub002/internal/sensors"
)

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		addr       = flag.String("addr", ":8059", "control-plane listen address")
		fps        = flag.Int("fps", 24, "target frames per second")
		scriptDir  = flag.String("script-dir", "scripts", "effect script directory")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// ---- Load config.yaml (optional; flags remain usable) ----
	var cfg *config.Config
	if c, err := config.Load(*configPath); err != nil {
		log.Warn().Err(err).Str("path", *configPath).Msg("config load failed; proceeding with flags")
	} else {
		cfg = c
	}

	eFPS := *fps
	eAddr := *addr
	eScriptDir := *scriptDir
	eFade := 800 * time.Millisecond
	eFaultLimit := 0
	if cfg != nil {
		if cfg.FPS > 0 {
			eFPS = cfg.FPS
		}
		if cfg.ListenAddr != "" {
			eAddr = cfg.ListenAddr
		}
		if cfg.ScriptDir != "" {
			eScriptDir = cfg.ScriptDir
		}
		if cfg.FadeMS > 0 {
			eFade = time.Duration(cfg.FadeMS) * time.Millisecond
		}
		eFaultLimit = cfg.FaultLimit
	}
	if *debug || (cfg != nil && cfg.Debug) {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	// ---- Hardware host (serial strips need periph drivers loaded) ----
	if _, err := host.Init(); err != nil {
		log.Warn().Err(err).Msg("periph host init failed; serial strips unavailable")
	}

	// ---- Devices ----
	devman := device.NewManager(device.NewRegistry(), log.Logger)
	if cfg != nil {
		for _, s := range cfg.Serial {
			devman.AddSerial(s)
		}
	}

	// ---- Sensors ----
	store := sensors.NewStore()
	thermalPath := ""
	if cfg != nil {
		thermalPath = cfg.ThermalZone
	}
	feed := sensors.NewFeed(store, &sensors.SimAudio{}, sensors.NewSysfsThermal(thermalPath), 50*time.Millisecond, log.Logger)

	// ---- Slots ----
	slots := profile.NewSlots(profile.FailSafe())
	if cfg != nil {
		for i, path := range cfg.Slots {
			if i >= profile.NumSlots || path == "" {
				continue
			}
			p, err := profile.Load(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Int("slot", i).Msg("slot profile load failed; using fail-safe")
				continue
			}
			_ = slots.Assign(i, p)
		}
	}

	// ---- Engine + control plane ----
	eng := engine.New(devman, slots, store, engine.Options{
		FPS:          eFPS,
		FadeDuration: eFade,
		FaultLimit:   eFaultLimit,
		ScriptDir:    eScriptDir,
	}, log.Logger)

	hub := control.NewHub(log.Logger)
	eng.SetFrameHook(hub.PublishFrame)
	srv := &http.Server{
		Addr:         eAddr,
		Handler:      control.NewServer(eng, hub, log.Logger).Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())

	go feed.Run(ctx)
	go hub.Run(ctx)
	engDone := make(chan error, 1)
	go func() { engDone <- eng.Run(ctx) }()
	go func() {
		log.Info().Str("addr", eAddr).Int("fps", eFPS).Msg("control plane starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("control server crashed")
		}
	}()

	// ---- Graceful shutdown ----
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-ch:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-engDone:
		if err != nil {
			log.Error().Err(err).Msg("engine exited")
		}
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	select {
	case <-engDone:
	case <-time.After(2 * time.Second):
	}

	for _, d := range devman.Bound() {
		devman.Unbind(d.Info.Path)
	}
}
